package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
)

// ConfigurationError reports invalid arguments or a missing input; it is
// always fatal before any image is processed.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// Errorf builds a ConfigurationError.
func Errorf(format string, args ...any) error {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// Config holds every knob the pipeline needs. It is built once from
// environment defaults plus CLI flags and threaded explicitly into the
// orchestrator — nothing reads ambient process state after startup.
type Config struct {
	// Paths
	InputPath  string
	OutputPath string

	// Kernel
	Optimized bool
	BlockDim  int

	// Execution
	Pipeline bool
	Workers  int

	// Instrumentation
	Benchmark  bool
	ReportPath string
	WatchAddr  string

	// Device
	DeviceMemoryMB int
	SMs            int
}

// Load reads configuration from environment variables with sane defaults.
// CLI flags are bound on top by the command layer.
func Load() *Config {
	return &Config{
		BlockDim:       envInt("GREYSCALE_BLOCK_DIM", 16),
		Workers:        envInt("GREYSCALE_PIPELINE_DEPTH", 2),
		DeviceMemoryMB: envInt("GREYSCALE_VRAM_MB", 1024),
		SMs:            envInt("GREYSCALE_SMS", runtime.NumCPU()),
		ReportPath:     envStr("GREYSCALE_REPORT", ""),
		WatchAddr:      envStr("GREYSCALE_WATCH_ADDR", ""),
	}
}

// Validate checks the batch-mode invariants.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return Errorf("input path is required")
	}
	if c.OutputPath == "" {
		return Errorf("output path is required")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return Errorf("input path %s: %v", c.InputPath, err)
	}
	if c.DeviceMemoryMB <= 0 {
		return Errorf("device memory must be positive, got %d MB", c.DeviceMemoryMB)
	}
	if c.Workers <= 0 {
		return Errorf("pipeline depth must be positive, got %d", c.Workers)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
