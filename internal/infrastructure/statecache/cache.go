package statecache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	marketdata "main/internal/domain/entity/marketdata"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	queueSize    = 256
	writeTimeout = 2 * time.Second
	keyTTL       = time.Hour
)

// Cache mirrors the latest record per symbol into redis under
// orderbook:{exchange}:{symbol}. Writes go through a buffered queue so a
// slow redis never stalls the feed path; overflow drops the oldest intent
// by dropping the new one.
type Cache struct {
	client   *redis.Client
	exchange string
	logger   *logrus.Entry
	queue    chan *marketdata.Record
	done     chan struct{}
}

var _ interfaces.RecordCache = (*Cache)(nil)

func New(ctx context.Context, addr, password, exchange string, logger *logrus.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	c := &Cache{
		client:   client,
		exchange: exchange,
		logger:   logger.WithField("component", "statecache").WithField("exchange", exchange),
		queue:    make(chan *marketdata.Record, queueSize),
		done:     make(chan struct{}),
	}
	go c.writeLoop()
	return c, nil
}

// Store enqueues the record without blocking. A full queue drops the record.
func (c *Cache) Store(rec *marketdata.Record) {
	select {
	case c.queue <- rec:
	default:
		metrics.DroppedMessagesTotal.WithLabelValues(c.exchange, "cache_queue_full").Inc()
		c.logger.WithField("symbol", rec.Symbol).Debug("cache queue full, record dropped")
	}
}

func (c *Cache) writeLoop() {
	defer close(c.done)
	for rec := range c.queue {
		payload, err := json.Marshal(rec)
		if err != nil {
			c.logger.WithError(err).Warn("marshal record for cache")
			continue
		}
		key := c.key(rec.Symbol)
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = c.client.Set(ctx, key, payload, keyTTL).Err()
		cancel()
		if err != nil {
			c.logger.WithError(err).WithField("key", key).Warn("cache write failed")
		}
	}
}

func (c *Cache) key(symbol string) string {
	return fmt.Sprintf("orderbook:%s:%s", strings.ToLower(c.exchange), symbol)
}

// Close drains queued writes, then releases the client.
func (c *Cache) Close() error {
	close(c.queue)
	<-c.done
	return c.client.Close()
}
