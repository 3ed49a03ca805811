package collector

import (
	"context"
	"sync"
	"time"

	"main/internal/infrastructure/metrics"

	"github.com/sirupsen/logrus"
)

const (
	initialBackoff = time.Second
	maxBackoff     = time.Minute
	stopTimeout    = 10 * time.Second
)

// Builder assembles a fresh controller. Called once per connection attempt
// because a stopped controller's workers and socket are single-use.
type Builder func(ctx context.Context) (*Controller, error)

// Supervisor keeps one exchange pipeline alive, rebuilding it with capped
// exponential backoff whenever the feed drops or startup fails.
type Supervisor struct {
	exchange string
	build    Builder
	logger   *logrus.Entry

	mu      sync.Mutex
	current *Controller
}

func NewSupervisor(exchange string, build Builder, logger *logrus.Logger) *Supervisor {
	return &Supervisor{
		exchange: exchange,
		build:    build,
		logger:   logger.WithField("component", "supervisor").WithField("exchange", exchange),
	}
}

// Run blocks until ctx is cancelled. A session that survived longer than the
// backoff cap resets the backoff.
func (s *Supervisor) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		started := time.Now()
		if err := s.runOnce(ctx); err != nil {
			s.logger.WithError(err).Error("collector session failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > maxBackoff {
			backoff = initialBackoff
		}

		metrics.FeedReconnectsTotal.WithLabelValues(s.exchange).Inc()
		s.logger.WithField("backoff", backoff.String()).Warn("feed dropped, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// runOnce builds, starts and tears down one controller generation.
func (s *Supervisor) runOnce(ctx context.Context) error {
	ctrl, err := s.build(ctx)
	if err != nil {
		return err
	}
	if err := ctrl.Start(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = ctrl
	s.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-ctrl.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return ctrl.Stop(stopCtx)
}

// Status reports the live generation, or a stub before the first start.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	ctrl := s.current
	s.mu.Unlock()
	if ctrl == nil {
		return Status{Exchange: s.exchange}
	}
	return ctrl.Status()
}
