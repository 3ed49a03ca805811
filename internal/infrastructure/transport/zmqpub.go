package transport

import (
	"context"
	"fmt"

	interfaces "main/internal/domain/interfaces"

	"github.com/go-zeromq/zmq4"
	"github.com/sirupsen/logrus"
)

// ZMQPublisher is a bind-style PUB socket. Each send carries two frames: the
// topic for subscriber-side filtering and the JSON record payload.
type ZMQPublisher struct {
	sock   zmq4.Socket
	port   int
	logger *logrus.Entry
}

var _ interfaces.RecordTransport = (*ZMQPublisher)(nil)

func NewZMQPublisher(exchange string, port int, logger *logrus.Logger) *ZMQPublisher {
	return &ZMQPublisher{
		sock:   zmq4.NewPub(context.Background()),
		port:   port,
		logger: logger.WithField("component", "transport").WithField("exchange", exchange),
	}
}

// Bind listens on the configured TCP port on all interfaces.
func (p *ZMQPublisher) Bind() error {
	endpoint := fmt.Sprintf("tcp://*:%d", p.port)
	if err := p.sock.Listen(endpoint); err != nil {
		return fmt.Errorf("bind pub socket %s: %w", endpoint, err)
	}
	p.logger.WithField("endpoint", endpoint).Info("pub socket bound")
	return nil
}

// Send publishes one topic-framed message.
func (p *ZMQPublisher) Send(topic string, payload []byte) error {
	msg := zmq4.NewMsgFrom([]byte(topic), payload)
	if err := p.sock.Send(msg); err != nil {
		return fmt.Errorf("send on topic %s: %w", topic, err)
	}
	return nil
}

func (p *ZMQPublisher) Close() error {
	return p.sock.Close()
}
