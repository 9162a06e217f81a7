package lock

import (
	"context"
	"sync"
	"sync/atomic"
)

// Guard admits at most one holder at a time. TryAcquire never blocks: it
// either returns a release function and true, or nil and false.
type Guard interface {
	TryAcquire(ctx context.Context) (release func(), ok bool)
}

// Local is an in-process guard
type Local struct {
	held atomic.Bool
}

// NewLocal creates an in-process guard
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) TryAcquire(ctx context.Context) (func(), bool) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.held.Store(false) })
	}, true
}

// Held reports whether a holder currently exists.
func (l *Local) Held() bool {
	return l.held.Load()
}
