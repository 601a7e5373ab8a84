package host

import (
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/ast-ral/divine/hostfuncs"
	wazeroadapter "github.com/ast-ral/divine/infrastructure/wazero"
)

// WASM page size is 64KB.
const pageSize = 64 * 1024

// Common memory limits for convenience.
const (
	MemoryLimit1MB   = 1 * 1024 * 1024 / pageSize
	MemoryLimit16MB  = 16 * 1024 * 1024 / pageSize
	MemoryLimit64MB  = 64 * 1024 * 1024 / pageSize
	MemoryLimit256MB = 256 * 1024 * 1024 / pageSize
)

// ExecutorOption configures an Executor.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	logger           *slog.Logger
	order            binary.ByteOrder
	random           hostfuncs.RandomSource
	cacheDir         string
	handlers         []wazeroadapter.CustomHandler
	middleware       []hostfuncs.Middleware
	timeout          time.Duration
	memoryLimitPages uint32
	cacheCompiled    bool
	diskCache        bool
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		logger:        slog.Default(),
		random:        hostfuncs.DefaultRandom,
		cacheCompiled: true,
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// WithByteOrder skips host byte order detection and uses order instead.
func WithByteOrder(order binary.ByteOrder) ExecutorOption {
	return func(c *executorConfig) {
		c.order = order
	}
}

// WithRandomSource sets the default source behind js.random.
func WithRandomSource(src hostfuncs.RandomSource) ExecutorOption {
	return func(c *executorConfig) {
		c.random = src
	}
}

// WithCustomHandler exposes an extra host function to guests.
func WithCustomHandler(h wazeroadapter.CustomHandler) ExecutorOption {
	return func(c *executorConfig) {
		c.handlers = append(c.handlers, h)
	}
}

// WithTargetMiddleware wraps every invocation's target generator.
func WithTargetMiddleware(mws ...hostfuncs.Middleware) ExecutorOption {
	return func(c *executorConfig) {
		c.middleware = append(c.middleware, mws...)
	}
}

// WithDefaultTimeout bounds every invocation unless Run overrides it.
// Zero, the default, means no limit.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		c.timeout = d
	}
}

// WithMemoryLimit caps guest linear memory, in 64KB pages.
func WithMemoryLimit(pages uint32) ExecutorOption {
	return func(c *executorConfig) {
		c.memoryLimitPages = pages
	}
}

// WithDiskCache enables wazero's on-disk compilation cache in dir.
func WithDiskCache(dir string) ExecutorOption {
	return func(c *executorConfig) {
		c.diskCache = true
		c.cacheDir = dir
	}
}

// WithCompiledCache controls whether compiled modules are kept in memory
// keyed by artifact digest. Enabled by default.
func WithCompiledCache(enabled bool) ExecutorOption {
	return func(c *executorConfig) {
		c.cacheCompiled = enabled
	}
}

// Option configures a single Run.
type Option func(*runConfig)

type runConfig struct {
	random  hostfuncs.RandomSource
	timeout time.Duration
}

// WithTimeout sets the maximum execution time of one invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithRandom overrides js.random for one invocation.
func WithRandom(src hostfuncs.RandomSource) Option {
	return func(c *runConfig) {
		c.random = src
	}
}
