package interfaces

import (
	"time"

	marketdata "main/internal/domain/entity/marketdata"
)

// FeedAdapter normalizes one exchange's wire format. The pipeline depends
// only on this contract, never on exchange-specific payload details.
type FeedAdapter interface {
	// Exchange returns the label used in topics, file names and logs.
	Exchange() string
	// SubscribeRequest builds the subscription frame for the symbol set.
	SubscribeRequest(symbols []string) ([]byte, error)
	// Parse converts one raw frame into a normalized batch. A nil batch with
	// a nil error means the frame carried no book data (acks, pongs).
	Parse(frame []byte, received time.Time) (*marketdata.UpdateBatch, error)
}
