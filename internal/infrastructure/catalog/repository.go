package catalog

import (
	"context"
	"fmt"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS bucket_files (
	id UUID PRIMARY KEY,
	exchange TEXT NOT NULL,
	symbol TEXT NOT NULL,
	bucket_start TIMESTAMPTZ NOT NULL,
	bucket_end TIMESTAMPTZ NOT NULL,
	path TEXT NOT NULL,
	records BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (exchange, symbol, bucket_start)
)`

// Repository records every written bucket file so downstream jobs can
// discover them without scanning the data directory.
type Repository struct {
	pool   *pgxpool.Pool
	logger *logrus.Entry
}

var _ interfaces.BucketCatalog = (*Repository)(nil)

func NewRepository(ctx context.Context, dsn string, logger *logrus.Logger) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{
		pool:   pool,
		logger: logger.WithField("component", "catalog"),
	}, nil
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure bucket_files table: %w", err)
	}
	return nil
}

// AddBucketFile registers one written file. The id is assigned here when the
// caller left it zero.
func (r *Repository) AddBucketFile(ctx context.Context, bf *marketdata.BucketFile) error {
	if bf.ID == uuid.Nil {
		bf.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bucket_files (id, exchange, symbol, bucket_start, bucket_end, path, records)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (exchange, symbol, bucket_start) DO UPDATE
		 SET path = EXCLUDED.path, records = EXCLUDED.records`,
		bf.ID, bf.Exchange, bf.Symbol, bf.BucketStart, bf.BucketEnd, bf.Path, bf.Records)
	if err != nil {
		return fmt.Errorf("insert bucket file %s: %w", bf.Path, err)
	}
	r.logger.WithFields(logrus.Fields{
		"exchange": bf.Exchange,
		"symbol":   bf.Symbol,
		"path":     bf.Path,
		"records":  bf.Records,
	}).Debug("bucket file registered")
	return nil
}

func (r *Repository) Close() {
	r.pool.Close()
}
