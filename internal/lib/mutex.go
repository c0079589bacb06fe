package lib

import "context"

// Mutex is a lock that can be acquired with a context deadline
type Mutex struct {
	ch chan struct{}
}

func NewMutex() Mutex {
	return Mutex{ch: make(chan struct{}, 1)}
}

func (m Mutex) Lock() {
	m.ch <- struct{}{}
}

// LockCtx waits for the lock until ctx is done
func (m Mutex) LockCtx(ctx context.Context) error {
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m Mutex) Unlock() {
	select {
	case <-m.ch:
	default:
		panic("unlock of unlocked mutex")
	}
}
