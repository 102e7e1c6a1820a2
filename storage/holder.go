package storage

import (
	"log/slog"
	"sync"

	"github.com/ruteri/watchstate/interfaces"
)

// Holder keeps the one storage backend of a process. The first Get builds it;
// every later Get returns the same instance, whatever it is passed.
type Holder struct {
	once    sync.Once
	storage interfaces.Storage
}

// Get returns the held storage, calling build on first use only.
// Concurrent first calls block until the single build has finished.
func (h *Holder) Get(build func() interfaces.Storage) interfaces.Storage {
	h.once.Do(func() {
		h.storage = build()
	})
	return h.storage
}

var shared Holder

// Shared returns the process-wide storage, selecting it from cfg on the first
// call. Configuration passed to later calls is ignored until restart.
func Shared(cfg Config, log *slog.Logger) interfaces.Storage {
	return shared.Get(func() interfaces.Storage {
		return NewStorageFactory(log).StorageFor(cfg)
	})
}
