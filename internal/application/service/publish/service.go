package publish

import (
	"context"
	"encoding/json"
	"sync"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Service decouples the feed loop from transport latency: an unbounded FIFO
// queue drained by a single dispatch worker. Delivery order equals enqueue
// order. There is deliberately no backpressure — a slow subscriber grows the
// queue without bound rather than stalling ingestion.
type Service struct {
	exchange  string
	transport interfaces.RecordTransport
	logger    *logrus.Entry

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []*marketdata.Record
	stopped bool

	done chan struct{}
}

var _ interfaces.RecordPublisher = (*Service)(nil)

func New(exchange string, transport interfaces.RecordTransport, logger *logrus.Logger) *Service {
	s := &Service{
		exchange:  exchange,
		transport: transport,
		logger:    logger.WithField("component", "publish").WithField("exchange", exchange),
		done:      make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Start launches the dispatch worker. The transport must already be bound.
func (s *Service) Start() {
	go s.dispatchLoop()
	s.logger.Info("publish worker started")
}

// Publish enqueues rec for delivery. Never blocks.
func (s *Service) Publish(rec *marketdata.Record) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, rec)
	depth := len(s.queue)
	s.mu.Unlock()

	metrics.PublishQueueDepth.WithLabelValues(s.exchange).Set(float64(depth))
	s.cond.Signal()
}

// QueueDepth reports the number of records awaiting dispatch.
func (s *Service) QueueDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop signals the worker to exit after its in-flight send and waits for it
// within the context deadline. Records enqueued after Stop are not sent.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()
	s.cond.Signal()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) dispatchLoop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.stopped {
			s.mu.Unlock()
			s.logger.Info("publish worker stopped")
			return
		}
		rec := s.queue[0]
		s.queue = s.queue[1:]
		depth := len(s.queue)
		stopped := s.stopped
		s.mu.Unlock()

		metrics.PublishQueueDepth.WithLabelValues(s.exchange).Set(float64(depth))
		s.send(rec)

		if stopped {
			s.logger.Info("publish worker stopped")
			return
		}
	}
}

func (s *Service) send(rec *marketdata.Record) {
	payload, err := json.Marshal(marketdata.Envelope{Topic: rec.Topic(), Data: rec})
	if err != nil {
		metrics.PublishErrorsTotal.WithLabelValues(s.exchange).Inc()
		s.logger.WithError(err).WithField("symbol", rec.Symbol).Error("record marshal failed")
		return
	}
	if err := s.transport.Send(rec.Topic(), payload); err != nil {
		metrics.PublishErrorsTotal.WithLabelValues(s.exchange).Inc()
		s.logger.WithError(err).WithField("symbol", rec.Symbol).Error("transport send failed")
		return
	}
	metrics.RecordsPublishedTotal.WithLabelValues(s.exchange).Inc()
}
