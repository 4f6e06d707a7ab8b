package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeTempConfig(t, "strand.yaml", `
executor:
  max_workers: 8
  min_workers: 2
  tasks_per_worker_threshold: 5
  keep_alive: 30s
  work_stealing: true
  initial_task_pool_size: 128
  batch_size: 64
batch_executor: true
fs:
  write_batch_size: 16
  read_batch_size: 64
`)

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if f.Executor.MaxWorkers != 8 || f.Executor.MinWorkers != 2 {
		t.Errorf("worker bounds = %d/%d, want 8/2", f.Executor.MaxWorkers, f.Executor.MinWorkers)
	}
	if got := f.Executor.Config().KeepAlive; got != 30*time.Second {
		t.Errorf("KeepAlive = %v, want 30s", got)
	}
	if !f.Executor.WorkStealing {
		t.Error("WorkStealing should be true")
	}
	if !f.BatchExecutor {
		t.Error("BatchExecutor should be true")
	}
	if f.FS.WriteBatchSize != 16 || f.FS.ReadBatchSize != 64 {
		t.Errorf("fs batch sizes = %d/%d, want 16/64", f.FS.WriteBatchSize, f.FS.ReadBatchSize)
	}
}

func TestLoadFile_JSON(t *testing.T) {
	path := writeTempConfig(t, "strand.json",
		`{"executor": {"max_workers": 3, "min_workers": 1, "keep_alive": 60000000000}}`)

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if f.Executor.MaxWorkers != 3 {
		t.Errorf("MaxWorkers = %d, want 3", f.Executor.MaxWorkers)
	}
	if got := f.Executor.Config().KeepAlive; got != time.Minute {
		t.Errorf("KeepAlive = %v, want 1m", got)
	}
}

func TestLoadFile_EnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "strand.yaml", `
executor:
  max_workers: 2
  min_workers: 1
`)

	t.Setenv("STRAND_EXECUTOR_MAXWORKERS", "6")
	t.Setenv("STRAND_EXECUTOR_KEEPALIVE", "250ms")
	t.Setenv("STRAND_BATCHEXECUTOR", "true")

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if f.Executor.MaxWorkers != 6 {
		t.Errorf("MaxWorkers = %d, want 6 (env override)", f.Executor.MaxWorkers)
	}
	if got := f.Executor.Config().KeepAlive; got != 250*time.Millisecond {
		t.Errorf("KeepAlive = %v, want 250ms (env override)", got)
	}
	if !f.BatchExecutor {
		t.Error("BatchExecutor should be true (env override)")
	}
}

func TestLoadFile_RejectsUnknownKeys(t *testing.T) {
	yamlPath := writeTempConfig(t, "strand.yaml", `
executor:
  max_wrokers: 8
`)
	if _, err := LoadFile(yamlPath); err == nil {
		t.Error("LoadFile() should reject a misspelled YAML key")
	}

	jsonPath := writeTempConfig(t, "strand.json", `{"executor": {"max_wrokers": 8}}`)
	if _, err := LoadFile(jsonPath); err == nil {
		t.Error("LoadFile() should reject a misspelled JSON key")
	}
}

func TestLoadFile_InvalidExecutorConfig(t *testing.T) {
	path := writeTempConfig(t, "strand.yaml", `
executor:
  max_workers: 2
  min_workers: 5
`)

	if _, err := LoadFile(path); err == nil {
		t.Error("LoadFile() should reject min_workers > max_workers")
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() on missing file should fail")
	}
}

func TestValidate_Chain(t *testing.T) {
	calls := 0
	ok := ValidatorFunc(func(cfg interface{}) error {
		calls++
		return nil
	})
	if err := Validate(struct{}{}, ok, ok); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("validator calls = %d, want 2", calls)
	}
}
