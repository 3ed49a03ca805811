package marketdata

import (
	"fmt"
	"time"
)

// Record is the immutable full-book state published after each processed
// frame. Price/size slices are parallel: bids descending, asks ascending.
// EventTime is not part of the wire payload; it keys time-bucketed
// persistence.
type Record struct {
	Exchange      string    `json:"exchange"`
	Symbol        string    `json:"symbol"`
	BidPrices     []float64 `json:"bidPrices"`
	BidSizes      []float64 `json:"bidSizes"`
	AskPrices     []float64 `json:"askPrices"`
	AskSizes      []float64 `json:"askSizes"`
	TimeExchange  string    `json:"timeExchange"`
	TimeReceived  string    `json:"timeReceived"`
	TimePublished string    `json:"timePublished"`
	EventTime     time.Time `json:"-"`
}

// Topic returns the routing key for the pub/sub transport.
func (r *Record) Topic() string {
	return fmt.Sprintf("ORDERBOOK_%s_%s", r.Exchange, r.Symbol)
}

// Envelope is the message shape sent over the transport.
type Envelope struct {
	Topic string  `json:"topic"`
	Data  *Record `json:"data"`
}
