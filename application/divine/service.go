// Package divine handles requests against the stored artifact: privileged
// administrative actions and guest runs driven by a target generator.
package divine

import (
	"context"
	"log/slog"

	"github.com/ast-ral/divine/application/validation"
	"github.com/ast-ral/divine/artifact"
	"github.com/ast-ral/divine/domain/entities"
	"github.com/ast-ral/divine/domain/errors"
	"github.com/ast-ral/divine/domain/ports"
	"github.com/ast-ral/divine/host"
)

// Replies to administrative actions and to requests without a target.
const (
	MsgCleared   = "data cleared"
	MsgUploaded  = "data uploaded"
	NoTargetText = "pass a fragment script to `target`"
)

// Runner executes an artifact for one invocation. *host.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, wasm []byte, target entities.TargetFunc, opts ...host.Option) (*entities.Invocation, error)
}

var _ Runner = (*host.Executor)(nil)

type serviceConfig struct {
	logger  *slog.Logger
	runOpts []host.Option
}

// Option configures a Service.
type Option func(*serviceConfig)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *serviceConfig) {
		c.logger = l
	}
}

// WithRunOptions applies opts to every guest run.
func WithRunOptions(opts ...host.Option) Option {
	return func(c *serviceConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// Service routes requests to the artifact store and the runner.
type Service struct {
	store  ports.ArtifactStore
	runner Runner
	config serviceConfig
}

// NewService creates a Service.
func NewService(store ports.ArtifactStore, runner Runner, opts ...Option) *Service {
	cfg := serviceConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{store: store, runner: runner, config: cfg}
}

// Handle serves one request.
//
// A privileged caller's Clear or Upload is performed instead of a run, with
// Clear taking precedence. Unprivileged callers have both ignored. Without a
// target the response is the instructional text, with Error describing the
// missing field for in-process callers. Otherwise the stored
// artifact runs and its fragments are returned.
//
// On failure the returned Response describes the error and the typed error
// is returned as well.
func (s *Service) Handle(ctx context.Context, caller entities.CallerContext, req entities.Request) (entities.Response, error) {
	if caller.Privileged() {
		switch {
		case req.Clear:
			return s.clear(ctx, caller)
		case req.Upload != "":
			return s.upload(ctx, caller, req)
		}
	} else if req.Clear || req.Upload != "" {
		s.config.logger.DebugContext(ctx, "ignoring administrative action from unprivileged caller",
			"caller", caller.CallerID, "direct", caller.IsDirectCall)
	}

	if req.Target == nil {
		cfgErr := &errors.ConfigurationError{Field: "target", Message: NoTargetText}
		s.config.logger.DebugContext(ctx, "request without target", "error", cfgErr)
		return entities.Response{Text: NoTargetText, Error: cfgErr.ToErrorDetail()}, nil
	}
	return s.run(ctx, req.Target)
}

func (s *Service) clear(ctx context.Context, caller entities.CallerContext) (entities.Response, error) {
	if err := s.store.Clear(ctx); err != nil {
		return failure(err)
	}
	s.config.logger.InfoContext(ctx, "artifact cleared", "caller", caller.CallerID)
	return entities.Response{OK: true, Msg: MsgCleared}, nil
}

func (s *Service) upload(ctx context.Context, caller entities.CallerContext, req entities.Request) (entities.Response, error) {
	if err := validation.Struct(req); err != nil {
		return failure(err)
	}
	if err := s.store.Append(ctx, req.Upload); err != nil {
		return failure(err)
	}
	s.config.logger.InfoContext(ctx, "artifact chunk uploaded", "caller", caller.CallerID, "hex_len", len(req.Upload))
	return entities.Response{OK: true, Msg: MsgUploaded}, nil
}

func (s *Service) run(ctx context.Context, target entities.TargetFunc) (entities.Response, error) {
	hexText, err := s.store.Read(ctx)
	if err != nil {
		return failure(err)
	}

	wasm, err := artifact.DecodeHex(hexText)
	if err != nil {
		return failure(&errors.CompileError{Err: err})
	}

	inv, err := s.runner.Run(ctx, wasm, target, s.config.runOpts...)
	if err != nil {
		return failure(err)
	}

	return entities.Response{
		OK:        true,
		Fragments: inv.Fragments,
		Time:      inv.Elapsed.Milliseconds(),
	}, nil
}

func failure(err error) (entities.Response, error) {
	return entities.Response{Error: errors.ToErrorDetail(err)}, err
}
