package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type stubLock struct {
	ok       bool
	err      error
	calls    int
	released int
	key      string
}

func (s *stubLock) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	s.calls++
	s.key = key
	return func() { s.released++ }, s.ok, s.err
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestRunOnce_SkipsWhenLockHeld(t *testing.T) {
	for _, lock := range []*stubLock{{ok: false}, {err: errors.New("redis down")}} {
		// a nil dispatcher would panic if RunOnce tried to dispatch
		w := NewCollectionWorker(nil, lock, time.Minute, quietLogger())
		w.RunOnce(context.Background())

		if lock.calls != 1 {
			t.Fatalf("expected one lock attempt, got %d", lock.calls)
		}
		if lock.released != 0 {
			t.Fatalf("lock released without being acquired")
		}
		if lock.key != "lock:collection-dispatch" {
			t.Fatalf("unexpected lock key %q", lock.key)
		}
	}
}

func TestNewCollectionWorker_DefaultsInterval(t *testing.T) {
	w := NewCollectionWorker(nil, &stubLock{}, 0, quietLogger())
	if w.Interval != time.Minute {
		t.Fatalf("expected 1m default interval, got %s", w.Interval)
	}
}

func TestStart_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewCollectionWorker(nil, &stubLock{}, time.Minute, quietLogger()).Start(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}
