package idempotency

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memClaimer struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memClaimer) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memClaimer) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

func TestMiddlewareRejectsReplay(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	claimer := &memClaimer{keys: map[string]bool{}}
	calls := 0
	h := Middleware(claimer, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/orders/o-1/payments", nil)
		req.Header.Set(HeaderKey, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusCreated, send())
	assert.Equal(t, http.StatusConflict, send())
	assert.Equal(t, 1, calls)
}

func TestMiddlewareReleasesOnServerError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	claimer := &memClaimer{keys: map[string]bool{}}
	status := http.StatusBadGateway
	h := Middleware(claimer, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/orders/o-1/payments", nil)
		req.Header.Set(HeaderKey, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusBadGateway, send())
	status = http.StatusCreated
	assert.Equal(t, http.StatusCreated, send())
}

func TestMiddlewareWithoutHeaderPassesThrough(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	claimer := &memClaimer{keys: map[string]bool{}}
	h := Middleware(claimer, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
	assert.Empty(t, claimer.keys)
}
