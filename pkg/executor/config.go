package executor

import (
	"fmt"
	"runtime"
	"time"
)

// Config holds the tuning options of an executor. The zero value is not
// usable; obtain defaults from DefaultConfig and override as needed, or let
// New normalize unset fields.
type Config struct {
	// MaxWorkers is the upper bound on live workers.
	MaxWorkers int `yaml:"max_workers" json:"max_workers"`

	// MinWorkers is the floor below which idle timeouts do not exit a
	// worker.
	MinWorkers int `yaml:"min_workers" json:"min_workers"`

	// TasksPerWorkerThreshold triggers an upscale when the average queue
	// depth per worker exceeds it.
	TasksPerWorkerThreshold int `yaml:"tasks_per_worker_threshold" json:"tasks_per_worker_threshold"`

	// KeepAlive is the idle timeout after which a worker above the floor
	// exits.
	KeepAlive time.Duration `yaml:"keep_alive" json:"keep_alive"`

	// WorkStealing enables per-worker local queues and stealing on empty.
	WorkStealing bool `yaml:"work_stealing" json:"work_stealing"`

	// InitialTaskPoolSize is the starting node-pool capacity of each
	// global queue.
	InitialTaskPoolSize int `yaml:"initial_task_pool_size" json:"initial_task_pool_size"`

	// BatchSize caps how many tasks the batch variant pulls in one
	// acquisition.
	BatchSize int `yaml:"batch_size" json:"batch_size"`

	// Logger receives task-failure and spawn diagnostics. Defaults to a
	// stderr logger.
	Logger Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns the documented defaults: MaxWorkers tracks hardware
// parallelism and MinWorkers is half of it.
func DefaultConfig() Config {
	maxWorkers := runtime.NumCPU()
	minWorkers := maxWorkers / 2
	if minWorkers < 1 {
		minWorkers = 1
	}
	return Config{
		MaxWorkers:              maxWorkers,
		MinWorkers:              minWorkers,
		TasksPerWorkerThreshold: 3,
		KeepAlive:               60 * time.Second,
		WorkStealing:            true,
		InitialTaskPoolSize:     256,
		BatchSize:               512,
	}
}

// normalize fills unset fields with defaults and clamps inconsistent
// bounds.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.MaxWorkers < 1 {
		c.MaxWorkers = def.MaxWorkers
	}
	if c.MinWorkers < 1 {
		c.MinWorkers = c.MaxWorkers / 2
	}
	if c.MinWorkers < 1 {
		c.MinWorkers = 1
	}
	if c.MinWorkers > c.MaxWorkers {
		c.MinWorkers = c.MaxWorkers
	}
	if c.TasksPerWorkerThreshold < 1 {
		c.TasksPerWorkerThreshold = def.TasksPerWorkerThreshold
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = def.KeepAlive
	}
	if c.InitialTaskPoolSize < 1 {
		c.InitialTaskPoolSize = def.InitialTaskPoolSize
	}
	if c.BatchSize < 1 {
		c.BatchSize = def.BatchSize
	}
	if c.Logger == nil {
		c.Logger = newDefaultLogger()
	}
	return c
}

// Validate reports configuration errors for externally loaded configs.
func (c Config) Validate() error {
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1, got %d", c.MaxWorkers)
	}
	if c.MinWorkers > c.MaxWorkers {
		return fmt.Errorf("min_workers (%d) must not exceed max_workers (%d)", c.MinWorkers, c.MaxWorkers)
	}
	if c.KeepAlive < 0 {
		return fmt.Errorf("keep_alive must not be negative, got %v", c.KeepAlive)
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize)
	}
	return nil
}
