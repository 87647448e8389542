package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

// fakeChannel stands in for a confirm-mode channel. reply decides what the
// broker answers for each delivery tag; returning false sends nothing.
type fakeChannel struct {
	next       uint64
	confirms   chan amqp.Confirmation
	published  []published
	publishErr error
	reply      func(tag uint64) (ack bool, send bool)
	closedN    int
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		next:     1,
		confirms: make(chan amqp.Confirmation, 8),
		reply:    func(uint64) (bool, bool) { return true, true },
	}
}

func (f *fakeChannel) GetNextPublishSeqNo() uint64 { return f.next }

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	tag := f.next
	f.next++
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	if ack, send := f.reply(tag); send {
		f.confirms <- amqp.Confirmation{DeliveryTag: tag, Ack: ack}
	}
	return nil
}

func (f *fakeChannel) session() *brokerSession {
	return &brokerSession{
		pub:      f,
		confirms: f.confirms,
		closed:   func() bool { return false },
		close:    func() { f.closedN++ },
	}
}

// fakeDialer hands out the given channels in order.
func fakeDialer(t *testing.T, channels ...*fakeChannel) (func() (*brokerSession, error), *int) {
	t.Helper()
	dials := 0
	return func() (*brokerSession, error) {
		if dials >= len(channels) {
			return nil, errors.New("broker unreachable")
		}
		ch := channels[dials]
		dials++
		return ch.session(), nil
	}, &dials
}

func testEvent(kind string) Event {
	return Event{Kind: kind, UserID: "u1", Email: "a@x.com", Inserted: []string{"0x1"}, OccurredAt: time.Now().UTC()}
}

func TestAMQPNotifierPublishesConfirmedEvent(t *testing.T) {
	ch := newFakeChannel()
	dial, _ := fakeDialer(t, ch)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	require.NoError(t, n.Send(context.Background(), testEvent(KindUserCreated)))

	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, "identity.events", p.exchange)
	assert.Equal(t, KindUserCreated, p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)

	var decoded Event
	require.NoError(t, json.Unmarshal(p.msg.Body, &decoded))
	assert.Equal(t, "u1", decoded.UserID)
	assert.Equal(t, []string{"0x1"}, decoded.Inserted)
}

func TestAMQPNotifierReportsNack(t *testing.T) {
	ch := newFakeChannel()
	ch.reply = func(uint64) (bool, bool) { return false, true }
	dial, _ := fakeDialer(t, ch)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	err = n.Send(context.Background(), testEvent(KindUserCreated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
}

func TestAMQPNotifierSkipsConfirmsOfEarlierPublishes(t *testing.T) {
	ch := newFakeChannel()
	ch.next = 2
	// an ack for tag 1 is still buffered when tag 2 is nacked
	ch.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	ch.reply = func(tag uint64) (bool, bool) { return false, true }
	dial, _ := fakeDialer(t, ch)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	err = n.Send(context.Background(), testEvent(KindWalletsReconciled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag 2")
}

func TestAMQPNotifierTimeoutDropsSession(t *testing.T) {
	slow := newFakeChannel()
	slow.reply = func(uint64) (bool, bool) { return true, false }
	fresh := newFakeChannel()
	fresh.reply = func(uint64) (bool, bool) { return false, true }
	dial, dials := fakeDialer(t, slow, fresh)
	n, err := newAMQPNotifier("identity.events", dial, 20*time.Millisecond)
	require.NoError(t, err)

	err = n.Send(context.Background(), testEvent(KindUserCreated))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, slow.closedN)

	// The late ack of the timed out publish must not answer the next one.
	slow.confirms <- amqp.Confirmation{DeliveryTag: 1, Ack: true}
	err = n.Send(context.Background(), testEvent(KindUserCreated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
	assert.Equal(t, 2, *dials)
	assert.Len(t, fresh.published, 1)
}

func TestAMQPNotifierPublishErrorReconnects(t *testing.T) {
	broken := newFakeChannel()
	broken.publishErr = errors.New("channel/connection is not open")
	healthy := newFakeChannel()
	dial, dials := fakeDialer(t, broken, healthy)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	require.Error(t, n.Send(context.Background(), testEvent(KindUserCreated)))
	assert.Equal(t, 1, broken.closedN)

	require.NoError(t, n.Send(context.Background(), testEvent(KindUserCreated)))
	assert.Equal(t, 2, *dials)
	assert.Len(t, healthy.published, 1)
}

func TestAMQPNotifierClosedConfirmChannel(t *testing.T) {
	ch := newFakeChannel()
	ch.reply = func(uint64) (bool, bool) { return true, false }
	close(ch.confirms)
	dial, _ := fakeDialer(t, ch)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	err = n.Send(context.Background(), testEvent(KindUserCreated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "confirm channel closed")
	assert.NoError(t, n.Close())
}

func TestAMQPNotifierRejectsEventWithoutKind(t *testing.T) {
	ch := newFakeChannel()
	dial, _ := fakeDialer(t, ch)
	n, err := newAMQPNotifier("identity.events", dial, time.Second)
	require.NoError(t, err)

	require.Error(t, n.Send(context.Background(), Event{UserID: "u1"}))
	assert.Empty(t, ch.published)
}
