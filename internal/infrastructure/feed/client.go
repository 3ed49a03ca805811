package feed

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultReadLimit    = 5 * 1024 * 1024
	defaultPingInterval = 20 * time.Second
	writeTimeout        = 10 * time.Second
)

// Client wraps one websocket session to an exchange feed. Reads happen from
// the single feed-reader goroutine; writes (subscriptions, pings) are
// serialized by a mutex.
type Client struct {
	name   string
	conn   *websocket.Conn
	logger *logrus.Entry

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to url and prepares the session.
func Dial(name, url string, logger *logrus.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s feed: %w", name, err)
	}
	conn.SetReadLimit(defaultReadLimit)
	c := &Client{
		name:   name,
		conn:   conn,
		logger: logger.WithField("component", "feed").WithField("exchange", name),
		closed: make(chan struct{}),
	}
	c.logger.WithField("url", url).Info("feed connected")
	return c, nil
}

// Send writes one text frame.
func (c *Client) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("write %s frame: %w", c.name, err)
	}
	return nil
}

// Read blocks for the next text frame. Non-text frames are logged and
// skipped; the session-level error ends the loop.
func (c *Client) Read() ([]byte, error) {
	for {
		msgType, frame, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			c.logger.WithField("type", msgType).Warn("non-text frame skipped")
			continue
		}
		return frame, nil
	}
}

// StartKeepAlive pings the feed until the client closes.
func (c *Client) StartKeepAlive(interval time.Duration) {
	if interval <= 0 {
		interval = defaultPingInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.closed:
				return
			case <-ticker.C:
				c.writeMu.Lock()
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				err := c.conn.WriteMessage(websocket.PingMessage, nil)
				c.writeMu.Unlock()
				if err != nil {
					c.logger.WithError(err).Warn("keepalive ping failed")
					return
				}
			}
		}
	}()
}

// Close tears the session down; a blocked Read returns with an error.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		c.logger.Info("feed closed")
	})
	return err
}
