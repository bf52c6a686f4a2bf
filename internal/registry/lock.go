package registry

import "context"

// cacheLock is a single-slot mutex that can be abandoned when ctx ends.
type cacheLock chan struct{}

func newCacheLock() cacheLock {
	return make(cacheLock, 1)
}

func (l cacheLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l cacheLock) release() {
	<-l
}
