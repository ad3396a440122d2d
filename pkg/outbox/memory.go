package outbox

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process outbox used by the memory adapters and tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(events ...Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.nextID++
		ev.ID = s.nextID
		ev.Status = StatusPending
		s.events = append(s.events, ev)
	}
}

// Events returns a copy of everything appended so far.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// Types lists the event types of aggregateID in append order.
func (s *MemoryStore) Types(aggregateID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		if ev.AggregateID == aggregateID {
			out = append(out, ev.Type)
		}
	}
	return out
}

func (s *MemoryStore) LockBatch(_ context.Context, relayID string, batchSize int, _ time.Duration) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for i := range s.events {
		if len(out) == batchSize {
			break
		}
		ev := &s.events[i]
		if ev.Status == StatusPending || (ev.Status == StatusFailed && ev.RetryCount < maxRetries) {
			ev.Status = StatusInProgress
			ev.RelayID = relayID
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, ids []int64) error {
	s.setStatus(ids, StatusSent, "")
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id int64, errMsg string) error {
	s.setStatus([]int64{id}, StatusFailed, errMsg)
	return nil
}

func (s *MemoryStore) ExtendLease(context.Context, string, []int64, time.Duration) error {
	return nil
}

func (s *MemoryStore) setStatus(ids []int64, status Status, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range s.events {
		ev := &s.events[i]
		if !want[ev.ID] {
			continue
		}
		ev.Status = status
		if status == StatusFailed {
			ev.RetryCount++
			msg := errMsg
			ev.LastError = &msg
		}
	}
}
