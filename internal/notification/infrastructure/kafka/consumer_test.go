package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeDeduper struct {
	seen     map[string]bool
	released []string
}

func (d *fakeDeduper) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("%s:%d:%d", topic, partition, offset)
}

func (d *fakeDeduper) Seen(_ context.Context, key string) (bool, error) {
	if d.seen[key] {
		return true, nil
	}
	d.seen[key] = true
	return false, nil
}

func (d *fakeDeduper) Release(_ context.Context, key string) error {
	delete(d.seen, key)
	d.released = append(d.released, key)
	return nil
}

type recordingHandler struct {
	calls []string
	fail  int
}

func (h *recordingHandler) Handle(_ context.Context, eventType string, _ []byte) error {
	h.calls = append(h.calls, eventType)
	if h.fail > 0 {
		h.fail--
		return errors.New("rabbit down")
	}
	return nil
}

func message(offset int64, eventType string) kafka.Message {
	return kafka.Message{
		Topic:   "order.events",
		Offset:  offset,
		Key:     []byte("o-1"),
		Value:   []byte(`{}`),
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(eventType)}},
	}
}

func newConsumer(r Reader, h Handler, d Deduper) *Consumer {
	c := NewConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), r, h, d)
	c.backoff = 0
	return c
}

func TestRunHandlesAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message(1, "OrderSubmitted"), message(2, "OrderStatusChanged")}}
	handler := &recordingHandler{}

	err := newConsumer(reader, handler, &fakeDeduper{seen: map[string]bool{}}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"OrderSubmitted", "OrderStatusChanged"}, handler.calls)
	assert.Equal(t, []int64{1, 2}, reader.committed)
	assert.True(t, reader.closed)
}

func TestDuplicateIsSkippedButCommitted(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message(7, "OrderSubmitted")}}
	handler := &recordingHandler{}
	dedup := &fakeDeduper{seen: map[string]bool{"order.events:0:7": true}}

	require.NoError(t, newConsumer(reader, handler, dedup).Run(context.Background()))
	assert.Empty(t, handler.calls)
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestHandlerRetriedThenSucceeds(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message(3, "OrderStatusChanged")}}
	handler := &recordingHandler{fail: 2}
	dedup := &fakeDeduper{seen: map[string]bool{}}

	require.NoError(t, newConsumer(reader, handler, dedup).Run(context.Background()))
	assert.Len(t, handler.calls, 3)
	assert.Empty(t, dedup.released)
}

func TestGivingUpReleasesClaim(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{message(4, "OrderStatusChanged")}}
	handler := &recordingHandler{fail: 10}
	dedup := &fakeDeduper{seen: map[string]bool{}}

	require.NoError(t, newConsumer(reader, handler, dedup).Run(context.Background()))
	assert.Len(t, handler.calls, maxAttempts)
	assert.Equal(t, []string{"order.events:0:4"}, dedup.released)
	assert.Equal(t, []int64{4}, reader.committed)
}
