package syncs

import "context"

type Semaphore chan struct{}

func NewSemaphore(n int) Semaphore {
	if n <= 0 {
		return nil
	}
	return make(chan struct{}, n)
}

// Acquire blocks until a slot is free or ctx is done. A nil semaphore never blocks.
func (s Semaphore) Acquire(ctx context.Context) error {
	if s == nil {
		return nil
	}
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (s Semaphore) TryAcquire() bool {
	if s == nil {
		return true
	}
	select {
	case s <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s Semaphore) Release() {
	if s == nil {
		return
	}
	<-s
}

func (s Semaphore) InUse() int {
	return len(s)
}
