package interfaces

import (
	"context"

	marketdata "main/internal/domain/entity/marketdata"
)

// RecordPublisher accepts records for asynchronous delivery to subscribers.
// Implementations must not block the caller.
type RecordPublisher interface {
	Publish(rec *marketdata.Record)
}

// RecordPersister accepts records for time-bucketed durable storage.
// Implementations must not block the caller.
type RecordPersister interface {
	Append(rec *marketdata.Record)
}

// RecordCache mirrors the latest record per symbol into a fast lookup store.
type RecordCache interface {
	Store(rec *marketdata.Record)
}

// RecordTransport is the bind-style pub/sub socket records are delivered on.
type RecordTransport interface {
	Bind() error
	Send(topic string, payload []byte) error
	Close() error
}

// BucketCatalog registers columnar files written for closed buckets.
type BucketCatalog interface {
	AddBucketFile(ctx context.Context, file *marketdata.BucketFile) error
}
