// Package config loads scheduler configuration from YAML or JSON files,
// with environment variable overrides and pluggable validation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/strandio/strand/pkg/asyncfs"
	"github.com/strandio/strand/pkg/executor"
)

// Duration wraps time.Duration so YAML and JSON configs can use the usual
// "250ms"/"1m" forms.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler, accepting either a duration
// string or a nanosecond count.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid duration %s", data)
	}
	*d = Duration(n)
	return nil
}

// ExecutorSection is the on-disk form of executor.Config.
type ExecutorSection struct {
	MaxWorkers              int      `yaml:"max_workers" json:"max_workers"`
	MinWorkers              int      `yaml:"min_workers" json:"min_workers"`
	TasksPerWorkerThreshold int      `yaml:"tasks_per_worker_threshold" json:"tasks_per_worker_threshold"`
	KeepAlive               Duration `yaml:"keep_alive" json:"keep_alive"`
	WorkStealing            bool     `yaml:"work_stealing" json:"work_stealing"`
	InitialTaskPoolSize     int      `yaml:"initial_task_pool_size" json:"initial_task_pool_size"`
	BatchSize               int      `yaml:"batch_size" json:"batch_size"`
}

// Config converts the section to the executor's configuration type.
func (s ExecutorSection) Config() executor.Config {
	return executor.Config{
		MaxWorkers:              s.MaxWorkers,
		MinWorkers:              s.MinWorkers,
		TasksPerWorkerThreshold: s.TasksPerWorkerThreshold,
		KeepAlive:               time.Duration(s.KeepAlive),
		WorkStealing:            s.WorkStealing,
		InitialTaskPoolSize:     s.InitialTaskPoolSize,
		BatchSize:               s.BatchSize,
	}
}

// FSSection is the on-disk form of asyncfs.Config.
type FSSection struct {
	WriteBatchSize int `yaml:"write_batch_size" json:"write_batch_size"`
	ReadBatchSize  int `yaml:"read_batch_size" json:"read_batch_size"`
}

// Config converts the section to the file-system layer's configuration
// type.
func (s FSSection) Config() asyncfs.Config {
	return asyncfs.Config{
		WriteBatchSize: s.WriteBatchSize,
		ReadBatchSize:  s.ReadBatchSize,
	}
}

// File is the on-disk configuration schema of a strand process.
type File struct {
	// Executor tunes the scheduler core.
	Executor ExecutorSection `yaml:"executor" json:"executor"`

	// BatchExecutor selects the batch-acquisition worker loop.
	BatchExecutor bool `yaml:"batch_executor" json:"batch_executor"`

	// FS tunes the asynchronous file-system layer.
	FS FSSection `yaml:"fs" json:"fs"`
}

// Default returns a File populated with documented defaults.
func Default() File {
	ex := executor.DefaultConfig()
	fs := asyncfs.DefaultConfig()
	return File{
		Executor: ExecutorSection{
			MaxWorkers:              ex.MaxWorkers,
			MinWorkers:              ex.MinWorkers,
			TasksPerWorkerThreshold: ex.TasksPerWorkerThreshold,
			KeepAlive:               Duration(ex.KeepAlive),
			WorkStealing:            ex.WorkStealing,
			InitialTaskPoolSize:     ex.InitialTaskPoolSize,
			BatchSize:               ex.BatchSize,
		},
		FS: FSSection{
			WriteBatchSize: fs.WriteBatchSize,
			ReadBatchSize:  fs.ReadBatchSize,
		},
	}
}

// LoadFile reads path (YAML or JSON by extension), applies STRAND_*
// environment overrides, and validates the result.
func LoadFile(path string) (File, error) {
	f := Default()
	if err := Load(path, &f); err != nil {
		return File{}, err
	}
	if err := ApplyEnvOverrides("STRAND", &f); err != nil {
		return File{}, fmt.Errorf("apply env overrides: %w", err)
	}
	if err := f.Executor.Config().Validate(); err != nil {
		return File{}, fmt.Errorf("invalid executor config: %w", err)
	}
	return f, nil
}

// Load loads configuration from a file into target, detecting the format
// by extension. Unknown extensions default to YAML.
func Load(path string, target interface{}) error {
	if strings.HasSuffix(path, ".json") {
		return LoadJSON(path, target)
	}
	return LoadYAML(path, target)
}

// ApplyEnvOverrides sets struct fields from environment variables named
// PREFIX_FIELD or PREFIX_SECTION_FIELD, walking nested structs.
func ApplyEnvOverrides(prefix string, target interface{}) error {
	if prefix == "" {
		prefix = "STRAND"
	}
	val := reflect.ValueOf(target)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to a struct")
	}
	return applyEnvToStruct(prefix, val.Elem())
}

func applyEnvToStruct(prefix string, val reflect.Value) error {
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		if !field.CanSet() {
			continue
		}

		envKey := prefix + "_" + strings.ToUpper(fieldType.Name)

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(envKey, field); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}
		if err := setFieldFromEnv(field, envValue); err != nil {
			return fmt.Errorf("field %s from env %s: %w", fieldType.Name, envKey, err)
		}
	}
	return nil
}

var durationType = reflect.TypeOf(Duration(0))

func setFieldFromEnv(field reflect.Value, envValue string) error {
	if field.Type() == durationType || field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(envValue)
		if err != nil {
			return fmt.Errorf("invalid duration %q", envValue)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var v int64
		if _, err := fmt.Sscanf(envValue, "%d", &v); err != nil {
			return fmt.Errorf("invalid integer %q", envValue)
		}
		field.SetInt(v)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var v uint64
		if _, err := fmt.Sscanf(envValue, "%d", &v); err != nil {
			return fmt.Errorf("invalid unsigned integer %q", envValue)
		}
		field.SetUint(v)
	case reflect.Float32, reflect.Float64:
		var v float64
		if _, err := fmt.Sscanf(envValue, "%f", &v); err != nil {
			return fmt.Errorf("invalid float %q", envValue)
		}
		field.SetFloat(v)
	case reflect.Bool:
		field.SetBool(strings.ToLower(envValue) == "true" || envValue == "1")
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}
