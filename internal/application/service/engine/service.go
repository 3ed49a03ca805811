package engine

import (
	"time"

	"main/internal/domain/book"
	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

// Service applies normalized update batches to the per-symbol books, builds
// one immutable full-state record per processed frame and fans it out to the
// publish queue, the persistence engine and the state cache. Every dispatch
// is fire-and-forget; the feed loop is never blocked and no failure escapes
// Process.
type Service struct {
	exchange  string
	books     map[string]*book.Book
	publisher interfaces.RecordPublisher
	persister interfaces.RecordPersister
	cache     interfaces.RecordCache
	logger    *logrus.Entry
	now       func() time.Time
}

// New creates the engine with one book per configured symbol. persister and
// cache may be nil when those sinks are disabled.
func New(exchange string, symbols []string, publisher interfaces.RecordPublisher, persister interfaces.RecordPersister, cache interfaces.RecordCache, logger *logrus.Logger) *Service {
	books := make(map[string]*book.Book, len(symbols))
	for _, symbol := range symbols {
		books[symbol] = book.New()
	}
	return &Service{
		exchange:  exchange,
		books:     books,
		publisher: publisher,
		persister: persister,
		cache:     cache,
		logger:    logger.WithField("component", "engine").WithField("exchange", exchange),
		now:       time.Now,
	}
}

// Process consumes one normalized batch. Must only be called from the single
// feed-reader goroutine; the books are not thread-safe by design.
func (s *Service) Process(batch *marketdata.UpdateBatch) {
	if batch == nil {
		return
	}
	bk, ok := s.books[batch.Symbol]
	if !ok {
		metrics.DroppedMessagesTotal.WithLabelValues(s.exchange, "unknown_symbol").Inc()
		s.logger.WithField("symbol", batch.Symbol).Warn("update for unconfigured symbol dropped")
		return
	}

	if batch.Snapshot {
		bk.Clear()
		s.logger.WithField("symbol", batch.Symbol).Debug("book reset from snapshot")
	}
	for _, u := range batch.Updates {
		bk.Apply(u.Side, u.Price, u.Quantity)
	}

	rec := s.buildRecord(bk, batch)
	s.publisher.Publish(rec)
	if s.persister != nil {
		s.persister.Append(rec)
	}
	if s.cache != nil {
		s.cache.Store(rec)
	}
}

func (s *Service) buildRecord(bk *book.Book, batch *marketdata.UpdateBatch) *marketdata.Record {
	bidPrices, bidSizes, askPrices, askSizes := bk.Snapshot()
	return &marketdata.Record{
		Exchange:      s.exchange,
		Symbol:        batch.Symbol,
		BidPrices:     bidPrices,
		BidSizes:      bidSizes,
		AskPrices:     askPrices,
		AskSizes:      askSizes,
		TimeExchange:  batch.TimeExchange,
		TimeReceived:  batch.TimeReceived,
		TimePublished: marketdata.FormatTime(s.now()),
		EventTime:     batch.EventTime,
	}
}

// Symbols returns the configured symbol set.
func (s *Service) Symbols() []string {
	out := make([]string, 0, len(s.books))
	for symbol := range s.books {
		out = append(out, symbol)
	}
	return out
}
