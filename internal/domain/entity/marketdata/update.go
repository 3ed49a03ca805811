package marketdata

import "time"

// TimeLayout renders timestamps with microsecond precision, UTC.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// NoExchangeTime is published when the feed payload carried no timestamp.
const NoExchangeTime = "N/A"

// Update is one normalized price-level change produced by a feed adapter.
type Update struct {
	Side     Side
	Price    float64
	Quantity float64
}

// UpdateBatch carries every level change from a single raw frame, already
// normalized. Snapshot batches replace the whole book; delta batches apply
// incrementally. EventTime is the bucketing key: the exchange timestamp when
// the feed supplied one, otherwise the receive time.
type UpdateBatch struct {
	Symbol       string
	Snapshot     bool
	TimeExchange string
	TimeReceived string
	EventTime    time.Time
	Updates      []Update
}

// FormatTime renders t in the canonical wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
