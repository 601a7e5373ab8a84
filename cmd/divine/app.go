package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ast-ral/divine/application/artifactstore"
	"github.com/ast-ral/divine/application/divine"
	"github.com/ast-ral/divine/config"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/ports"
	"github.com/ast-ral/divine/host"
	"github.com/ast-ral/divine/infrastructure/recordstore"
	divinelog "github.com/ast-ral/divine/log"
	"github.com/spf13/cobra"
)

// app holds the components one command invocation works with.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *artifactstore.Store
	executor *host.Executor
	service  *divine.Service
	caller   entities.CallerContext
	closers  []func() error
}

func newLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	level, err := divinelog.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return divinelog.New(
		divinelog.WithLevel(level),
		divinelog.WithFormat(cfg.Log.Format),
		divinelog.WithWriter(cmd.ErrOrStderr()),
	)
}

func openRecords(cfg config.StoreConfig) (ports.RecordStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case config.BackendMemory:
		return recordstore.NewMemoryStore(), noop, nil
	case config.BackendFile:
		return recordstore.NewFileStore(recordstore.WithPath(cfg.Path)), noop, nil
	case config.BackendBolt:
		s, err := recordstore.OpenBolt(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func executorOptions(cfg config.RuntimeConfig, logger *slog.Logger) []host.ExecutorOption {
	opts := []host.ExecutorOption{
		host.WithLogger(logger),
		host.WithCompiledCache(cfg.CacheCompiled),
		host.WithDefaultTimeout(cfg.Timeout),
	}
	if cfg.MemoryLimitPages > 0 {
		opts = append(opts, host.WithMemoryLimit(cfg.MemoryLimitPages))
	}
	if cfg.CacheDir != "" {
		opts = append(opts, host.WithDiskCache(cfg.CacheDir))
	}
	return opts
}

// newApp wires config, logging, the record store, the executor and the
// request service. Callers must close the app.
func newApp(cmd *cobra.Command, svcOpts ...divine.Option) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger}

	records, closeRecords, err := openRecords(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	a.closers = append(a.closers, closeRecords)

	a.store = artifactstore.New(records,
		artifactstore.WithRecordID(cfg.Store.RecordID),
		artifactstore.WithLogger(logger))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	executor, err := host.NewExecutor(ctx, executorOptions(cfg.Runtime, logger)...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.executor = executor
	a.closers = append(a.closers, func() error { return executor.Close(context.Background()) })

	svcOpts = append([]divine.Option{divine.WithLogger(logger)}, svcOpts...)
	a.service = divine.NewService(a.store, executor, svcOpts...)

	callerID, _ := cmd.Flags().GetString("as")
	if callerID == "" {
		callerID = cfg.Owner
	}
	a.caller = entities.CallerContext{CallerID: callerID, OwnerID: cfg.Owner, IsDirectCall: true}
	return a, nil
}

// Close releases the executor and the record store, newest first.
func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
