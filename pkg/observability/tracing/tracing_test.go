package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/strandio/strand/pkg/bus"
	"github.com/strandio/strand/pkg/executor"
)

func TestSetup_ExportsEmissionSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Setup(&buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	exec := executor.New(executor.Config{MaxWorkers: 2, MinWorkers: 1, KeepAlive: time.Minute})
	if err := exec.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	b := bus.New(exec)

	observed := make(chan struct{})
	_ = b.Spawn(func(hc *bus.HandlerContext) {
		hc.SwitchToExecutor()
		if _, err := bus.AwaitEvent[int](hc, "traced"); err == nil {
			close(observed)
		}
	})

	deadline := time.Now().Add(5 * time.Second)
	for b.Stats().RegisteredHandlers != 1 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}

	if err := b.Emit("traced", 1); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	select {
	case <-observed:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never observed the emission")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = b.Close(ctx)
	if err := shutdown(ctx); err != nil {
		t.Fatalf("shutdown error = %v", err)
	}

	if !strings.Contains(buf.String(), "bus.emit") {
		t.Error("expected an exported bus.emit span")
	}
}
