package marketdata

import (
	"time"

	"github.com/google/uuid"
)

// BucketFile describes one columnar file flushed for a closed time bucket.
type BucketFile struct {
	ID          uuid.UUID `json:"id"`
	Exchange    string    `json:"exchange"`
	Symbol      string    `json:"symbol"`
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	Path        string    `json:"path"`
	Records     int       `json:"records"`
	CreatedAt   time.Time `json:"created_at"`
}
