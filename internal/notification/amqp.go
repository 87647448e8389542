package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const defaultConfirmWait = 2 * time.Second

// confirmPublisher is the part of *amqp.Channel used for confirmed publishing.
type confirmPublisher interface {
	GetNextPublishSeqNo() uint64
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// brokerSession is one connection plus its confirm-mode channel.
type brokerSession struct {
	pub      confirmPublisher
	confirms <-chan amqp.Confirmation
	closed   func() bool
	close    func()
}

// AMQPNotifier publishes events as JSON to a durable topic exchange, routed by
// event kind, and waits for the broker confirm of each message.
type AMQPNotifier struct {
	exchange    string
	dial        func() (*brokerSession, error)
	confirmWait time.Duration

	mu   sync.Mutex
	sess *brokerSession
}

// NewAMQPNotifier dials the broker and declares the exchange.
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	if url == "" {
		return nil, errors.New("amqp url is required")
	}
	return newAMQPNotifier(exchange, func() (*brokerSession, error) {
		return dialBroker(url, exchange)
	}, defaultConfirmWait)
}

func newAMQPNotifier(exchange string, dial func() (*brokerSession, error), confirmWait time.Duration) (*AMQPNotifier, error) {
	n := &AMQPNotifier{exchange: exchange, dial: dial, confirmWait: confirmWait}
	sess, err := dial()
	if err != nil {
		return nil, err
	}
	n.sess = sess
	return n, nil
}

func dialBroker(url, exchange string) (*brokerSession, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("confirm mode: %w", err)
	}
	return &brokerSession{
		pub:      ch,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 8)),
		closed:   conn.IsClosed,
		close: func() {
			_ = ch.Close()
			_ = conn.Close()
		},
	}, nil
}

// reset drops the session. Confirms still in flight die with its channel, so
// they can never be read as the answer to a later publish.
func (n *AMQPNotifier) reset() {
	if n.sess != nil {
		n.sess.close()
		n.sess = nil
	}
}

// Send publishes one event, reconnecting once if the connection was lost.
func (n *AMQPNotifier) Send(ctx context.Context, event Event) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if n.sess == nil || n.sess.closed() {
		n.reset()
		sess, err := n.dial()
		if err != nil {
			return err
		}
		n.sess = sess
	}

	ctx, cancel := context.WithTimeout(ctx, n.confirmWait)
	defer cancel()

	tag := n.sess.pub.GetNextPublishSeqNo()
	err = n.sess.pub.PublishWithContext(ctx, n.exchange, event.Kind, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		n.reset()
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}

	for {
		select {
		case conf, ok := <-n.sess.confirms:
			if !ok {
				n.reset()
				return fmt.Errorf("publish %s: confirm channel closed", event.Kind)
			}
			if conf.DeliveryTag < tag {
				// left over from an earlier publish
				continue
			}
			if conf.DeliveryTag > tag {
				n.reset()
				return fmt.Errorf("publish %s: confirm for tag %d skipped to %d", event.Kind, tag, conf.DeliveryTag)
			}
			if !conf.Ack {
				return fmt.Errorf("publish %s: broker nack (tag %d)", event.Kind, tag)
			}
			return nil
		case <-ctx.Done():
			n.reset()
			return fmt.Errorf("publish %s: %w", event.Kind, ctx.Err())
		}
	}
}

// Close releases the channel and connection.
func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset()
	return nil
}

func encodeEvent(event Event) ([]byte, error) {
	if event.Kind == "" {
		return nil, errors.New("event kind is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}
