// Command strand runs the scheduler core end to end: it loads
// configuration, starts the executor and the event bus, registers the demo
// handlers, emits a scripted event sequence, and drives the asynchronous
// file-system layer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/strandio/strand/pkg/asyncfs"
	"github.com/strandio/strand/pkg/bus"
	"github.com/strandio/strand/pkg/config"
	"github.com/strandio/strand/pkg/events"
	"github.com/strandio/strand/pkg/executor"
	promexport "github.com/strandio/strand/pkg/observability/prometheus"
	"github.com/strandio/strand/pkg/observability/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML or JSON config file")
	trace := flag.Bool("trace", false, "export emission spans to stdout")
	flag.Parse()

	if err := run(*configPath, *trace); err != nil {
		log.Fatalf("strand: %v", err)
	}
}

func run(configPath string, trace bool) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if trace {
		shutdown, err := tracing.Setup(nil)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}

	var exec executor.Executor
	if cfg.BatchExecutor {
		exec = executor.NewBatch(cfg.Executor.Config())
	} else {
		exec = executor.New(cfg.Executor.Config())
	}
	if err := exec.Start(); err != nil {
		return err
	}

	b := bus.New(exec)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = b.Close(ctx)
	}()

	if err := promexport.Register(exec, b); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	if err := events.DefaultRegistry().RegisterAllHandlers(b); err != nil {
		return fmt.Errorf("register handlers: %w", err)
	}
	waitForHandlers(b, 3, 5*time.Second)

	// Scripted emission sequence.
	emissions := []struct {
		event   string
		payload interface{}
	}{
		{events.UserLogin, events.LoginPayload{UserID: "alice"}},
		{events.UserMessage, events.MessagePayload{From: "alice", Text: "hello"}},
		{events.SystemStatus, events.StatusPayload{Healthy: true, Load: 0.42}},
		{events.UserLogin, events.LoginPayload{UserID: "bob"}},
		{events.UserMessage, events.MessagePayload{From: "bob", Text: "hi alice"}},
	}
	for _, em := range emissions {
		if err := b.Emit(em.event, em.payload); err != nil {
			return fmt.Errorf("emit %s: %w", em.event, err)
		}
		// Handlers re-register between observations; give each emission
		// a moment so the demo exercises sequential delivery.
		waitForHandlers(b, 3, time.Second)
	}

	if err := runFSDemo(exec, cfg.FS.Config()); err != nil {
		return fmt.Errorf("fs demo: %w", err)
	}

	stats := exec.Stats()
	fmt.Printf("executor: completed=%d failed=%d stolen=%d pending=%d workers=%d\n",
		stats.CompletedTasks, stats.FailedTasks, stats.StolenTasks,
		stats.PendingTasks, stats.ActiveWorkers)
	busStats := b.Stats()
	fmt.Printf("bus: emitted=%d resumed=%d\n", busStats.EventsEmitted, busStats.HandlersResumed)
	return nil
}

// waitForHandlers polls until n handlers are suspended on the bus again.
func waitForHandlers(b bus.Bus, n int, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for b.Stats().RegisteredHandlers < n && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

// runFSDemo writes and reads back a handful of files through the
// asynchronous file-system layer.
func runFSDemo(exec executor.Executor, cfg asyncfs.Config) error {
	dir, err := os.MkdirTemp("", "strand-fs-demo")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	fs := asyncfs.New(exec, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	writes := make([]*asyncfs.Future[int], 0, 16)
	for i := 0; i < 16; i++ {
		path := filepath.Join(dir, fmt.Sprintf("chunk-%02d.dat", i))
		payload := []byte(fmt.Sprintf("payload %d", i))
		writes = append(writes, fs.WriteFileBatch(path, payload))
	}
	fs.Flush()
	for i, w := range writes {
		if _, err := w.Get(ctx); err != nil {
			return fmt.Errorf("write %d: %w", i, err)
		}
	}

	read, err := fs.ReadFile(filepath.Join(dir, "chunk-00.dat")).Get(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("fs demo: read back %d bytes\n", len(read))
	return nil
}
