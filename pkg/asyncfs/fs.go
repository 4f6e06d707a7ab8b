// Package asyncfs layers asynchronous file operations on top of the
// executor. Reads and writes are scheduled as tasks and observed through
// futures; the batched variants coalesce several operations into one task
// to amortize scheduling cost, mirroring the batch acquisition strategy of
// the executor itself.
package asyncfs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/strandio/strand/pkg/executor"
	"github.com/strandio/strand/pkg/failfast"
)

// Buffer sizing of the chunked file paths. Reads pull the file in
// ReadBufferSize chunks rather than capping the result at one chunk, so
// files larger than the buffer come back whole.
const (
	// WriteBufferSize is the bufio buffer backing write paths.
	WriteBufferSize = 64 << 10

	// ReadBufferSize is the chunk size used by read paths.
	ReadBufferSize = 1 << 20
)

// Config tunes the batching behavior of the file-system layer.
type Config struct {
	// WriteBatchSize is the number of coalesced writes that triggers a
	// flush.
	WriteBatchSize int `yaml:"write_batch_size" json:"write_batch_size"`

	// ReadBatchSize is the number of coalesced reads that triggers a
	// flush.
	ReadBatchSize int `yaml:"read_batch_size" json:"read_batch_size"`
}

// DefaultConfig returns the documented batching defaults.
func DefaultConfig() Config {
	return Config{
		WriteBatchSize: 8,
		ReadBatchSize:  32,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.WriteBatchSize < 1 {
		c.WriteBatchSize = def.WriteBatchSize
	}
	if c.ReadBatchSize < 1 {
		c.ReadBatchSize = def.ReadBatchSize
	}
	return c
}

type writeOp struct {
	path   string
	data   []byte
	future *Future[int]
}

type readOp struct {
	path   string
	future *Future[[]byte]
}

// FS schedules file operations on an executor.
type FS struct {
	exec executor.Executor
	cfg  Config

	mu         sync.Mutex
	writeBatch []*writeOp
	readBatch  []*readOp
}

// New creates a file-system layer scheduling onto exec.
func New(exec executor.Executor, cfg Config) *FS {
	failfast.NotNil(exec, "executor")
	return &FS{
		exec: exec,
		cfg:  cfg.normalize(),
	}
}

// readChunked reads the whole file in ReadBufferSize chunks.
func readChunked(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data []byte
	buf := make([]byte, ReadBufferSize)
	for {
		n, err := file.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// writeBuffered writes data through a WriteBufferSize bufio writer.
func writeBuffered(path string, data []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	w := bufio.NewWriterSize(file, WriteBufferSize)
	if _, err := w.Write(data); err != nil {
		file.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadFile schedules an asynchronous whole-file read.
func (f *FS) ReadFile(path string) *Future[[]byte] {
	future := newFuture[[]byte]()
	task := executor.NewNamedTask(fmt.Sprintf("fs-read-%s", path), func(ctx context.Context) error {
		data, err := readChunked(path)
		future.complete(data, err)
		return err
	})
	f.schedule(task, func(err error) { future.complete(nil, err) })
	return future
}

// WriteFile schedules an asynchronous whole-file write and resolves to the
// number of bytes written.
func (f *FS) WriteFile(path string, data []byte) *Future[int] {
	future := newFuture[int]()
	task := executor.NewNamedTask(fmt.Sprintf("fs-write-%s", path), func(ctx context.Context) error {
		err := writeBuffered(path, data)
		if err != nil {
			future.complete(0, err)
			return err
		}
		future.complete(len(data), nil)
		return nil
	})
	f.schedule(task, func(err error) { future.complete(0, err) })
	return future
}

// WriteFileBatch coalesces the write into the pending batch, flushing when
// the batch is full. Call Flush to force out a partial batch.
func (f *FS) WriteFileBatch(path string, data []byte) *Future[int] {
	op := &writeOp{path: path, data: data, future: newFuture[int]()}

	f.mu.Lock()
	f.writeBatch = append(f.writeBatch, op)
	var flush []*writeOp
	if len(f.writeBatch) >= f.cfg.WriteBatchSize {
		flush = f.writeBatch
		f.writeBatch = nil
	}
	f.mu.Unlock()

	if flush != nil {
		f.scheduleWriteBatch(flush)
	}
	return op.future
}

// ReadFileBatch coalesces the read into the pending batch, flushing when
// the batch is full.
func (f *FS) ReadFileBatch(path string) *Future[[]byte] {
	op := &readOp{path: path, future: newFuture[[]byte]()}

	f.mu.Lock()
	f.readBatch = append(f.readBatch, op)
	var flush []*readOp
	if len(f.readBatch) >= f.cfg.ReadBatchSize {
		flush = f.readBatch
		f.readBatch = nil
	}
	f.mu.Unlock()

	if flush != nil {
		f.scheduleReadBatch(flush)
	}
	return op.future
}

// Flush forces out partially filled read and write batches.
func (f *FS) Flush() {
	f.mu.Lock()
	writes := f.writeBatch
	reads := f.readBatch
	f.writeBatch = nil
	f.readBatch = nil
	f.mu.Unlock()

	if len(writes) > 0 {
		f.scheduleWriteBatch(writes)
	}
	if len(reads) > 0 {
		f.scheduleReadBatch(reads)
	}
}

func (f *FS) scheduleWriteBatch(ops []*writeOp) {
	task := executor.NewNamedTask("fs-write-batch", func(ctx context.Context) error {
		for _, op := range ops {
			if err := writeBuffered(op.path, op.data); err != nil {
				op.future.complete(0, err)
				continue
			}
			op.future.complete(len(op.data), nil)
		}
		return nil
	})
	f.schedule(task, func(err error) {
		for _, op := range ops {
			op.future.complete(0, err)
		}
	})
}

func (f *FS) scheduleReadBatch(ops []*readOp) {
	task := executor.NewNamedTask("fs-read-batch", func(ctx context.Context) error {
		for _, op := range ops {
			data, err := readChunked(op.path)
			op.future.complete(data, err)
		}
		return nil
	})
	f.schedule(task, func(err error) {
		for _, op := range ops {
			op.future.complete(nil, err)
		}
	})
}

// ProcessDir walks dir recursively and schedules processor once per
// regular file. The returned future resolves to the number of files
// scheduled once the walk finishes.
func (f *FS) ProcessDir(dir string, processor func(path string)) *Future[int] {
	future := newFuture[int]()
	task := executor.NewNamedTask(fmt.Sprintf("fs-walk-%s", dir), func(ctx context.Context) error {
		count := 0
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			count++
			return f.exec.Schedule(ctx, executor.NewNamedTask(
				fmt.Sprintf("fs-process-%s", path),
				func(ctx context.Context) error {
					processor(path)
					return nil
				},
			))
		})
		future.complete(count, err)
		return err
	})
	f.schedule(task, func(err error) { future.complete(0, err) })
	return future
}

// schedule submits task; onErr fails the associated futures if the
// executor rejects the submission.
func (f *FS) schedule(task executor.Task, onErr func(error)) {
	if err := f.exec.Schedule(context.Background(), task); err != nil {
		onErr(err)
	}
}
