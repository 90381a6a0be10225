package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// keyedMutex serializes work per session id. Entries are dropped once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*keyedEntry
}

type keyedEntry struct {
	held chan struct{}
	refs int
}

// lock blocks until id is free or ctx ends.
func (k *keyedMutex) lock(ctx context.Context, id uuid.UUID) (unlock func(), err error) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uuid.UUID]*keyedEntry)
	}
	e, ok := k.locks[id]
	if !ok {
		e = &keyedEntry{held: make(chan struct{}, 1)}
		k.locks[id] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.held <- struct{}{}:
		return func() {
			<-e.held
			k.drop(id, e)
		}, nil
	case <-ctx.Done():
		k.drop(id, e)
		return nil, ctx.Err()
	}
}

func (k *keyedMutex) drop(id uuid.UUID, e *keyedEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, id)
	}
}

// Len reports how many ids are locked or waited on.
func (k *keyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
