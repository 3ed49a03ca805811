package persist

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the bucket length when none is configured.
const DefaultInterval = 10 * time.Minute

const stampLayout = "200601021504"

// BucketWriter persists the records of one closed (exchange, symbol, bucket)
// to a columnar file at path.
type BucketWriter interface {
	WriteBucket(path string, records []*marketdata.Record) error
}

// Config controls bucketing and flush behavior.
type Config struct {
	Exchange string
	Dir      string
	Interval time.Duration
	// DrainOnStop seals the open bucket on Stop and waits for the flush
	// worker to finish it.
	DrainOnStop bool
}

type bucket struct {
	start   time.Time
	end     time.Time
	records map[string][]*marketdata.Record
}

// Service buffers published records per symbol and rotates the buffer on
// aligned UTC boundaries. Rotation swaps the active buffer out under a mutex
// and hands it to a single flush worker; the hot path never touches the
// filesystem. A swapped-out buffer is immutable from the moment it is
// enqueued.
type Service struct {
	cfg     Config
	writer  BucketWriter
	catalog interfaces.BucketCatalog
	logger  *logrus.Entry
	now     func() time.Time

	mu          sync.Mutex
	active      map[string][]*marketdata.Record
	bucketStart time.Time
	bucketEnd   time.Time
	stopped     bool

	flushCh chan bucket
	done    chan struct{}
}

var _ interfaces.RecordPersister = (*Service)(nil)

// New builds a persistence engine. catalog may be nil.
func New(cfg Config, writer BucketWriter, catalog interfaces.BucketCatalog, logger *logrus.Logger) *Service {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Service{
		cfg:     cfg,
		writer:  writer,
		catalog: catalog,
		logger:  logger.WithField("component", "persist").WithField("exchange", cfg.Exchange),
		now:     time.Now,
		active:  make(map[string][]*marketdata.Record),
		flushCh: make(chan bucket, 16),
		done:    make(chan struct{}),
	}
}

// Start opens the first bucket from the wall clock and launches the flush
// worker.
func (s *Service) Start() {
	now := s.now().UTC()
	s.mu.Lock()
	s.bucketStart = now.Truncate(s.cfg.Interval)
	s.bucketEnd = NextBoundary(now, s.cfg.Interval)
	s.mu.Unlock()

	go s.flushLoop()
	s.logger.WithField("bucket_end", s.bucketEnd.Format(time.RFC3339)).Info("persistence worker started")
}

// Append routes rec into the bucket whose half-open interval
// [bucketStart, bucketEnd) contains its event time. A record at or after the
// boundary closes the open bucket exactly once, hands it to the flush worker
// and lands in the fresh bucket. Never blocks on I/O.
func (s *Service) Append(rec *marketdata.Record) {
	t := rec.EventTime.UTC()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if !t.Before(s.bucketEnd) {
		s.rotateLocked(t)
	}
	s.active[rec.Symbol] = append(s.active[rec.Symbol], rec)
	s.mu.Unlock()

	metrics.RecordsBufferedTotal.WithLabelValues(s.cfg.Exchange).Inc()
}

// rotateLocked closes the current bucket and opens the aligned bucket
// containing t. Feed gaps longer than one interval skip the empty windows
// in between. Caller holds s.mu.
func (s *Service) rotateLocked(t time.Time) {
	closed := bucket{start: s.bucketStart, end: s.bucketEnd, records: s.active}
	s.active = make(map[string][]*marketdata.Record, len(closed.records))
	s.bucketStart = t.Truncate(s.cfg.Interval)
	s.bucketEnd = s.bucketStart.Add(s.cfg.Interval)

	metrics.BucketsRotatedTotal.WithLabelValues(s.cfg.Exchange).Inc()
	select {
	case s.flushCh <- closed:
	default:
		// Flush worker is hopelessly behind; dropping beats stalling the
		// feed loop. Same accepted-loss policy as a failed write.
		metrics.FlushFailuresTotal.WithLabelValues(s.cfg.Exchange).Inc()
		s.logger.WithField("bucket_end", closed.end.Format(time.RFC3339)).
			Error("flush queue full, bucket discarded")
	}
}

// Stop closes the flush channel and waits for the worker within the context
// deadline. With DrainOnStop the open bucket is sealed and flushed too.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	if s.cfg.DrainOnStop && len(s.active) > 0 {
		final := bucket{start: s.bucketStart, end: s.bucketEnd, records: s.active}
		s.active = make(map[string][]*marketdata.Record)
		select {
		case s.flushCh <- final:
		default:
			s.logger.Error("flush queue full, final bucket discarded")
		}
	}
	s.mu.Unlock()
	close(s.flushCh)

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) flushLoop() {
	defer close(s.done)
	for b := range s.flushCh {
		s.flush(b)
	}
	s.logger.Info("persistence worker stopped")
}

func (s *Service) flush(b bucket) {
	for symbol, records := range b.records {
		if len(records) == 0 {
			continue
		}
		name := fmt.Sprintf("orderbook_%s_%s_%s_%s.parquet",
			s.cfg.Exchange, symbol, b.start.Format(stampLayout), b.end.Format(stampLayout))
		path := filepath.Join(s.cfg.Dir, name)

		if err := s.writer.WriteBucket(path, records); err != nil {
			// Accepted data loss: the buffer for this boundary is discarded,
			// no retry or replay.
			metrics.FlushFailuresTotal.WithLabelValues(s.cfg.Exchange).Inc()
			s.logger.WithError(err).WithFields(logrus.Fields{
				"symbol": symbol,
				"file":   name,
			}).Error("bucket flush failed, buffer discarded")
			continue
		}
		metrics.BucketFilesWrittenTotal.WithLabelValues(s.cfg.Exchange).Inc()
		s.logger.WithFields(logrus.Fields{
			"symbol":  symbol,
			"file":    name,
			"records": len(records),
		}).Info("bucket flushed")

		s.register(symbol, path, len(records), b)
	}
}

func (s *Service) register(symbol, path string, count int, b bucket) {
	if s.catalog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	file := &marketdata.BucketFile{
		Exchange:    s.cfg.Exchange,
		Symbol:      symbol,
		BucketStart: b.start,
		BucketEnd:   b.end,
		Path:        path,
		Records:     count,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.catalog.AddBucketFile(ctx, file); err != nil {
		s.logger.WithError(err).WithField("file", path).Warn("catalog insert failed")
	}
}

// NextBoundary rounds now up to the next aligned multiple of interval in
// UTC. An instant exactly on a boundary starts the bucket that ends one full
// interval later.
func NextBoundary(now time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return now.UTC().Truncate(interval).Add(interval)
}
