package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"main/internal/application/service/engine"
	"main/internal/application/service/persist"
	"main/internal/application/service/publish"
	interfaces "main/internal/domain/interfaces"
	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

const stopGrace = 5 * time.Second

// FeedSession is one live connection to an exchange feed.
type FeedSession interface {
	Send(msg []byte) error
	Read() ([]byte, error)
	StartKeepAlive(interval time.Duration)
	Close() error
}

// Dialer opens a feed session. Injected so the read loop is testable without
// a live exchange.
type Dialer func() (FeedSession, error)

// Status is a point-in-time view of one collector, served over HTTP.
type Status struct {
	Exchange     string   `json:"exchange"`
	Symbols      []string `json:"symbols"`
	Running      bool     `json:"running"`
	PublishQueue int      `json:"publishQueue"`
}

// Controller owns one exchange pipeline end to end: socket bind, worker
// startup, the single feed-reader goroutine, and ordered shutdown.
type Controller struct {
	exchange  string
	adapter   interfaces.FeedAdapter
	dial      Dialer
	transport interfaces.RecordTransport
	publisher *publish.Service
	persister *persist.Service
	engine    *engine.Service
	logger    *logrus.Entry

	keepAlive time.Duration

	mu      sync.Mutex
	session FeedSession
	running bool

	done chan struct{}
}

// New wires a controller. persister may be nil when persistence is disabled.
func New(adapter interfaces.FeedAdapter, dial Dialer, transport interfaces.RecordTransport, publisher *publish.Service, persister *persist.Service, eng *engine.Service, keepAlive time.Duration, logger *logrus.Logger) *Controller {
	return &Controller{
		exchange:  adapter.Exchange(),
		adapter:   adapter,
		dial:      dial,
		transport: transport,
		publisher: publisher,
		persister: persister,
		engine:    eng,
		keepAlive: keepAlive,
		logger:    logger.WithField("component", "collector").WithField("exchange", adapter.Exchange()),
		done:      make(chan struct{}),
	}
}

// Start binds the transport, launches the workers, connects the feed,
// subscribes and hands the session to the read loop. On any error everything
// already started is torn down.
func (c *Controller) Start(ctx context.Context) error {
	if err := c.transport.Bind(); err != nil {
		return fmt.Errorf("start %s collector: %w", c.exchange, err)
	}
	c.publisher.Start()
	if c.persister != nil {
		c.persister.Start()
	}

	session, err := c.dial()
	if err != nil {
		c.shutdownWorkers(ctx)
		return fmt.Errorf("start %s collector: %w", c.exchange, err)
	}
	req, err := c.adapter.SubscribeRequest(c.engine.Symbols())
	if err != nil {
		session.Close()
		c.shutdownWorkers(ctx)
		return fmt.Errorf("build %s subscribe request: %w", c.exchange, err)
	}
	if err := session.Send(req); err != nil {
		session.Close()
		c.shutdownWorkers(ctx)
		return fmt.Errorf("subscribe %s: %w", c.exchange, err)
	}
	session.StartKeepAlive(c.keepAlive)

	c.mu.Lock()
	c.session = session
	c.running = true
	c.mu.Unlock()

	go c.readLoop(session)
	c.logger.WithField("symbols", len(c.engine.Symbols())).Info("collector started")
	return nil
}

// readLoop is the single goroutine driving the books. It exits when the
// session errors out, which also covers Close from Stop.
func (c *Controller) readLoop(session FeedSession) {
	defer close(c.done)
	for {
		frame, err := session.Read()
		if err != nil {
			c.mu.Lock()
			c.running = false
			c.mu.Unlock()
			c.logger.WithError(err).Info("feed read loop ended")
			return
		}
		metrics.FramesReceivedTotal.WithLabelValues(c.exchange).Inc()

		batch, err := c.adapter.Parse(frame, time.Now().UTC())
		if err != nil {
			metrics.DroppedMessagesTotal.WithLabelValues(c.exchange, "parse_error").Inc()
			c.logger.WithError(err).Warn("frame dropped")
			continue
		}
		if batch == nil {
			continue
		}
		c.engine.Process(batch)
	}
}

// Done closes when the read loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Stop closes the feed, waits briefly for the read loop, then stops the
// workers in dispatch order and releases the socket. A stuck read loop does
// not block shutdown past the grace period.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session != nil {
		session.Close()
	}

	select {
	case <-c.done:
	case <-time.After(stopGrace):
		c.logger.Warn("read loop did not exit in time")
	case <-ctx.Done():
	}

	err := c.shutdownWorkers(ctx)
	c.logger.Info("collector stopped")
	return err
}

func (c *Controller) shutdownWorkers(ctx context.Context) error {
	var errs []error
	if err := c.publisher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop publisher: %w", err))
	}
	if c.persister != nil {
		if err := c.persister.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop persister: %w", err))
		}
	}
	if err := c.transport.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close transport: %w", err))
	}
	return errors.Join(errs...)
}

// Status reports the live state for the ops endpoints.
func (c *Controller) Status() Status {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	return Status{
		Exchange:     c.exchange,
		Symbols:      c.engine.Symbols(),
		Running:      running,
		PublishQueue: c.publisher.QueueDepth(),
	}
}
