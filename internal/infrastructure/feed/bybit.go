package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// BybitAdapter speaks the Bybit v5 public spot orderbook.50 channel, which
// interleaves one snapshot with incremental deltas.
type BybitAdapter struct {
	exchange string
	logger   *logrus.Entry
}

var _ interfaces.FeedAdapter = (*BybitAdapter)(nil)

func NewBybitAdapter(exchange string, logger *logrus.Logger) *BybitAdapter {
	return &BybitAdapter{
		exchange: exchange,
		logger:   logger.WithField("component", "adapter").WithField("exchange", exchange),
	}
}

func (a *BybitAdapter) Exchange() string { return a.exchange }

// SubscribeRequest builds the orderbook.50 subscription for the symbol set.
func (a *BybitAdapter) SubscribeRequest(symbols []string) ([]byte, error) {
	args := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		args = append(args, "orderbook.50."+symbol)
	}
	req := struct {
		Op   string   `json:"op"`
		Args []string `json:"args"`
	}{Op: "subscribe", Args: args}
	return json.Marshal(req)
}

type bybitBookData struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
}

type bybitMessage struct {
	Topic string         `json:"topic"`
	Type  string         `json:"type"`
	Ts    int64          `json:"ts"`
	Data  *bybitBookData `json:"data"`
}

// Parse normalizes one orderbook frame. Operation acks and other topics
// yield a nil batch.
func (a *BybitAdapter) Parse(frame []byte, received time.Time) (*marketdata.UpdateBatch, error) {
	var m bybitMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return nil, fmt.Errorf("decode bybit frame: %w", err)
	}
	if !strings.HasPrefix(m.Topic, "orderbook.") {
		// op acks, pongs, unrelated topics
		return nil, nil
	}
	if m.Data == nil || (len(m.Data.Bids) == 0 && len(m.Data.Asks) == 0) {
		return nil, ErrEmptyPayload
	}
	if m.Data.Symbol == "" {
		return nil, ErrMissingSymbol
	}

	var ts string
	if m.Ts > 0 {
		ts = strconv.FormatInt(m.Ts, 10)
	}
	wireTime, eventTime := exchangeTime(ts, received)
	batch := &marketdata.UpdateBatch{
		Symbol:       m.Data.Symbol,
		Snapshot:     m.Type == "snapshot",
		TimeExchange: wireTime,
		TimeReceived: marketdata.FormatTime(received),
		EventTime:    eventTime,
	}
	batch.Updates = parseLevels(batch.Updates, a.exchange, batch.Symbol, marketdata.Bid, m.Data.Bids, a.logger)
	batch.Updates = parseLevels(batch.Updates, a.exchange, batch.Symbol, marketdata.Ask, m.Data.Asks, a.logger)
	return batch, nil
}
