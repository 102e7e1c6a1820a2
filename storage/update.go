package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruteri/watchstate/interfaces"
)

// maxUpdateAttempts bounds the retries of optimistic (WATCH or CAS) updates.
// A retry only happens when another writer committed in between.
const maxUpdateAttempts = 16

var errUpdateContention = errors.New("too many concurrent writers")

// update runs a read-modify-write of key. Drivers implementing
// interfaces.AtomicUpdater do it natively. For the others the read and the
// write are serialized within this process only.
func (s *KVStorage) update(ctx context.Context, key string, fn interfaces.UpdateFunc) error {
	if u, ok := s.kv.(interfaces.AtomicUpdater); ok {
		return u.Update(ctx, key, fn)
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	current, err := s.kv.Get(ctx, key)
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		current, err = nil, nil
	}
	if err != nil {
		return err
	}

	next, err := fn(current)
	if errors.Is(err, interfaces.ErrNoUpdate) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, key, next)
}

// lockUpdates holds back fallback updates while the caller deletes keys that
// an update could otherwise write back.
func (s *KVStorage) lockUpdates() (unlock func()) {
	if _, ok := s.kv.(interfaces.AtomicUpdater); ok {
		return func() {}
	}
	s.updateMu.Lock()
	return s.updateMu.Unlock
}

func contentionError(family, key string) error {
	return fmt.Errorf("%s update of %s: %w", family, key, errUpdateContention)
}
