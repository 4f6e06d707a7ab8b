package asyncfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/strandio/strand/pkg/executor"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	exec := executor.New(executor.Config{
		MaxWorkers: 4,
		MinWorkers: 2,
		KeepAlive:  time.Minute,
	})
	if err := exec.Start(); err != nil {
		t.Fatalf("executor Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = exec.Stop(ctx)
	})
	return New(exec, DefaultConfig())
}

func TestFS_WriteThenRead(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	payload := []byte("scheduler core test payload")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := fs.WriteFile(path, payload).Get(ctx)
	if err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if n != len(payload) {
		t.Errorf("WriteFile wrote %d bytes, want %d", n, len(payload))
	}

	data, err := fs.ReadFile(path).Get(ctx)
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("ReadFile = %q, want %q", data, payload)
	}
}

// TestFS_ReadSpansMultipleChunks round-trips a file larger than the read
// buffer: the chunked path must return the whole file, not one buffer's
// worth.
func TestFS_ReadSpansMultipleChunks(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "large.bin")

	payload := make([]byte, 2*ReadBufferSize+3)
	for i := range payload {
		payload[i] = byte(i % 251)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := fs.WriteFile(path, payload).Get(ctx)
	if err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	if n != len(payload) {
		t.Fatalf("WriteFile wrote %d bytes, want %d", n, len(payload))
	}

	data, err := fs.ReadFile(path).Get(ctx)
	if err != nil {
		t.Fatalf("ReadFile error = %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("ReadFile returned %d bytes, want %d", len(data), len(payload))
	}
	for i := range data {
		if data[i] != payload[i] {
			t.Fatalf("byte %d = %d, want %d", i, data[i], payload[i])
		}
	}
}

func TestFS_ReadMissingFile(t *testing.T) {
	fs := newTestFS(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := fs.ReadFile(filepath.Join(t.TempDir(), "absent")).Get(ctx)
	if !os.IsNotExist(err) {
		t.Errorf("ReadFile on missing file = %v, want not-exist error", err)
	}
}

func TestFS_BatchedWritesFlushWhenFull(t *testing.T) {
	exec := executor.New(executor.Config{MaxWorkers: 2, MinWorkers: 1, KeepAlive: time.Minute})
	if err := exec.Start(); err != nil {
		t.Fatalf("executor Start() error = %v", err)
	}
	defer exec.Stop(context.Background())

	fs := New(exec, Config{WriteBatchSize: 4, ReadBatchSize: 4})
	dir := t.TempDir()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	futures := make([]*Future[int], 4)
	for i := range futures {
		path := filepath.Join(dir, fmt.Sprintf("f%d", i))
		futures[i] = fs.WriteFileBatch(path, []byte{byte(i)})
	}

	// The fourth write filled the batch; no Flush needed.
	for i, fut := range futures {
		if _, err := fut.Get(ctx); err != nil {
			t.Fatalf("batched write %d error = %v", i, err)
		}
	}
}

func TestFS_FlushForcesPartialBatches(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "partial")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wf := fs.WriteFileBatch(path, []byte("x"))
	fs.Flush()
	if _, err := wf.Get(ctx); err != nil {
		t.Fatalf("flushed write error = %v", err)
	}

	rf := fs.ReadFileBatch(path)
	fs.Flush()
	data, err := rf.Get(ctx)
	if err != nil {
		t.Fatalf("flushed read error = %v", err)
	}
	if string(data) != "x" {
		t.Errorf("flushed read = %q, want \"x\"", data)
	}
}

func TestFS_ProcessDir(t *testing.T) {
	fs := newTestFS(t)
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		name := filepath.Join(dir, fmt.Sprintf("file%d", i))
		if err := os.WriteFile(name, []byte("content"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var processed atomic.Int64
	count, err := fs.ProcessDir(dir, func(path string) {
		processed.Add(1)
	}).Get(ctx)
	if err != nil {
		t.Fatalf("ProcessDir error = %v", err)
	}
	if count != 5 {
		t.Errorf("ProcessDir scheduled %d files, want 5", count)
	}

	deadline := time.Now().Add(5 * time.Second)
	for processed.Load() != 5 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if processed.Load() != 5 {
		t.Errorf("processed %d files, want 5", processed.Load())
	}
}
