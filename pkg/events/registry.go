package events

import (
	"sync"

	"github.com/strandio/strand/pkg/bus"
)

// Registry spawns the demo handlers onto a bus at most once. It keeps no
// handler references of its own; a suspended handler stays alive as its
// parked goroutine.
type Registry struct {
	mu      sync.Mutex
	logger  Logger
	spawned bool
}

var (
	registryOnce sync.Once
	registry     *Registry
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	registryOnce.Do(func() {
		registry = NewRegistry(nil)
	})
	return registry
}

// NewRegistry creates a registry writing observations to logger; nil picks
// the standard console logger.
func NewRegistry(logger Logger) *Registry {
	if logger == nil {
		logger = newStdLogger()
	}
	return &Registry{logger: logger}
}

// RegisterAllHandlers spawns one handler per well-known event on b. It is
// idempotent: repeated calls do not spawn duplicates.
func (r *Registry) RegisterAllHandlers(b bus.Bus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spawned {
		return nil
	}
	for _, h := range []bus.Handler{
		LoginHandler(r.logger),
		MessageHandler(r.logger),
		StatusHandler(r.logger),
	} {
		if err := b.Spawn(h); err != nil {
			return err
		}
	}
	r.spawned = true
	return nil
}
