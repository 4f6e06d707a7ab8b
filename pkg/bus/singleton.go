package bus

import (
	"context"
	"sync"
	"time"

	"github.com/strandio/strand/pkg/executor"
)

// The process-wide bus hides lifecycle from handlers: it is lazily
// initialized on first access with a default executor and lives until
// process exit. Tests that need isolation should build their own bus with
// New, or call ResetDefault between cases.
var (
	defaultMu  sync.Mutex
	defaultBus Bus
)

// Default returns the process-wide bus, creating it (and starting its
// executor) on first access.
func Default() Bus {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultBus == nil {
		exec := executor.New(executor.DefaultConfig())
		if err := exec.Start(); err != nil {
			panic(err)
		}
		defaultBus = New(exec)
	}
	return defaultBus
}

// ResetDefault tears down the process-wide bus so the next Default call
// builds a fresh one. Intended for tests.
func ResetDefault() {
	defaultMu.Lock()
	b := defaultBus
	defaultBus = nil
	defaultMu.Unlock()

	if b != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = b.Close(ctx)
	}
}
