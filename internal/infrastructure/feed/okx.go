package feed

import (
	"encoding/json"
	"fmt"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// OKXAdapter speaks the OKX public v5 books5 channel. Every books5 push
// carries the full top-5 state, so batches are always flagged as snapshots.
type OKXAdapter struct {
	exchange string
	logger   *logrus.Entry
}

var _ interfaces.FeedAdapter = (*OKXAdapter)(nil)

func NewOKXAdapter(exchange string, logger *logrus.Logger) *OKXAdapter {
	return &OKXAdapter{
		exchange: exchange,
		logger:   logger.WithField("component", "adapter").WithField("exchange", exchange),
	}
}

func (a *OKXAdapter) Exchange() string { return a.exchange }

type okxSubArg struct {
	Channel string `json:"channel"`
	InstID  string `json:"instId"`
}

// SubscribeRequest builds the books5 subscription for the symbol set.
func (a *OKXAdapter) SubscribeRequest(symbols []string) ([]byte, error) {
	args := make([]okxSubArg, 0, len(symbols))
	for _, symbol := range symbols {
		args = append(args, okxSubArg{Channel: "books5", InstID: symbol})
	}
	req := struct {
		Op   string      `json:"op"`
		Args []okxSubArg `json:"args"`
	}{Op: "subscribe", Args: args}
	return json.Marshal(req)
}

type okxBookData struct {
	Bids [][]string `json:"bids"`
	Asks [][]string `json:"asks"`
	Ts   string     `json:"ts"`
}

type okxMessage struct {
	Arg   *okxSubArg    `json:"arg"`
	Data  []okxBookData `json:"data"`
	Event string        `json:"event"`
	Code  string        `json:"code"`
	Msg   string        `json:"msg"`
}

// Parse normalizes one books5 frame. Subscription acks yield a nil batch.
func (a *OKXAdapter) Parse(frame []byte, received time.Time) (*marketdata.UpdateBatch, error) {
	var m okxMessage
	if err := json.Unmarshal(frame, &m); err != nil {
		return nil, fmt.Errorf("decode okx frame: %w", err)
	}
	if m.Event == "error" {
		return nil, fmt.Errorf("okx error event: code=%s msg=%s", m.Code, m.Msg)
	}
	if m.Event != "" {
		// subscribe/unsubscribe ack
		return nil, nil
	}
	if len(m.Data) == 0 {
		return nil, ErrEmptyPayload
	}
	if m.Arg == nil || m.Arg.InstID == "" {
		return nil, ErrMissingSymbol
	}

	item := m.Data[0]
	wireTime, eventTime := exchangeTime(item.Ts, received)
	batch := &marketdata.UpdateBatch{
		Symbol:       m.Arg.InstID,
		Snapshot:     true,
		TimeExchange: wireTime,
		TimeReceived: marketdata.FormatTime(received),
		EventTime:    eventTime,
	}
	batch.Updates = parseLevels(batch.Updates, a.exchange, batch.Symbol, marketdata.Bid, item.Bids, a.logger)
	batch.Updates = parseLevels(batch.Updates, a.exchange, batch.Symbol, marketdata.Ask, item.Asks, a.logger)
	return batch, nil
}
