// internal/session/manager.go
// Owns the session lifecycle for each test unit: decides local vs remote,
// opens the handle, and tears it down with exactly-once outcome reporting.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
)

// LocalDriverFactory acquires a browser process directly for LOCAL mode.
type LocalDriverFactory func(ctx context.Context, caps schemas.Capabilities) (schemas.Driver, error)

// OutcomeHook observes each test unit's Outcome exactly once, during
// teardown. It is the only path by which pass/fail information reaches the
// remote-reporting step.
type OutcomeHook func(outcome schemas.Outcome)

// Manager decides whether a session runs locally or against the remote
// provider and owns every handle it opens end to end.
type Manager struct {
	cfg          config.HarnessConfig
	logger       *zap.Logger
	provider     schemas.Provider
	localFactory LocalDriverFactory
	hook         OutcomeHook
}

// Option configures a Manager.
type Option func(*Manager)

// WithOutcomeHook installs the post-run outcome observer.
func WithOutcomeHook(hook OutcomeHook) Option {
	return func(m *Manager) { m.hook = hook }
}

// NewManager creates a session manager. The provider may be nil when the
// configured mode is LOCAL; the local factory may be nil when it is REMOTE.
func NewManager(
	cfg config.HarnessConfig,
	provider schemas.Provider,
	localFactory LocalDriverFactory,
	logger *zap.Logger,
	opts ...Option,
) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	m := &Manager{
		cfg:          cfg,
		logger:       logger.With(zap.String("component", "session_manager")),
		provider:     provider,
		localFactory: localFactory,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Describe builds the immutable SessionDescriptor for a test unit. The
// execution mode is validated here, so a bad mode surfaces as a
// ConfigurationError before any session exists.
func (m *Manager) Describe(unitID string) (schemas.SessionDescriptor, error) {
	mode, err := m.cfg.ParsedMode()
	if err != nil {
		return schemas.SessionDescriptor{}, err
	}
	return schemas.SessionDescriptor{
		Mode:         mode,
		Capabilities: m.cfg.Capabilities,
		DisplayName:  unitID,
		Visibility:   schemas.Visibility(m.cfg.Visibility),
	}, nil
}

// Open acquires a browser session per the descriptor and returns the handle
// the owning test unit will use for its full duration.
func (m *Manager) Open(ctx context.Context, desc schemas.SessionDescriptor) (*Handle, error) {
	log := m.logger.With(zap.String("unit_id", desc.DisplayName), zap.String("mode", string(desc.Mode)))

	switch desc.Mode {
	case schemas.ModeLocal:
		if m.localFactory == nil {
			return nil, &schemas.Failure{
				Kind: schemas.FailConfiguration,
				Op:   "open session",
				Err:  errors.New("mode is LOCAL but no local driver factory is configured"),
			}
		}
		driver, err := m.localFactory(ctx, desc.Capabilities)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire local browser: %w", err)
		}
		h := &Handle{
			id:     uuid.New().String(),
			unitID: desc.DisplayName,
			mode:   schemas.ModeLocal,
			driver: driver,
		}
		log.Info("Local session opened", zap.String("session_id", h.id))
		return h, nil

	case schemas.ModeRemote:
		if m.provider == nil {
			return nil, &schemas.Failure{
				Kind: schemas.FailConfiguration,
				Op:   "open session",
				Err:  errors.New("mode is REMOTE but no provider is configured"),
			}
		}
		envelope := schemas.CapabilityEnvelope{
			Capabilities: desc.Capabilities,
			JobName:      desc.DisplayName,
			Visibility:   desc.Visibility,
		}
		driver, jobID, err := m.provider.OpenSession(ctx, envelope)
		if err != nil {
			if schemas.KindOf(err) != "" {
				return nil, err
			}
			return nil, &schemas.Failure{Kind: schemas.FailProvider, Op: "open session", Err: err}
		}
		h := &Handle{
			id:     uuid.New().String(),
			unitID: desc.DisplayName,
			mode:   schemas.ModeRemote,
			driver: driver,
			jobID:  jobID,
		}
		log.Info("Remote session opened", zap.String("session_id", h.id), zap.String("job_id", jobID))
		return h, nil

	default:
		return nil, &schemas.Failure{
			Kind: schemas.FailConfiguration,
			Op:   "open session",
			Err:  fmt.Errorf("unrecognized execution mode %q", desc.Mode),
		}
	}
}

// Teardown destroys the handle. It runs unconditionally on success, failure
// or uncaught error, and is safe to call more than once; only the first
// call does anything. Order matters: the outcome is observed and reported
// to the provider before the job is closed and the driver terminated,
// otherwise the remote job is abandoned without a final status. A provider
// failure never prevents the driver handle from being terminated.
func (m *Manager) Teardown(ctx context.Context, h *Handle, outcome schemas.Outcome) error {
	if h == nil {
		return nil
	}

	var teardownErr error
	h.closeOnce.Do(func() {
		// Mark closed first so facade calls fail fast instead of racing the
		// driver shutdown.
		h.closed.Store(true)

		log := m.logger.With(
			zap.String("session_id", h.id),
			zap.String("unit_id", h.unitID),
			zap.String("status", string(outcome.Status)),
		)

		if m.hook != nil {
			m.hook(outcome)
		}

		var errs []error
		if h.mode == schemas.ModeRemote {
			if err := m.provider.ReportOutcome(ctx, h.jobID, outcome.Passed()); err != nil {
				log.Error("Failed to report outcome to remote provider", zap.Error(err))
				errs = append(errs, &schemas.Failure{Kind: schemas.FailProvider, Op: "report outcome", Err: err})
			}
			if err := m.provider.CloseJob(ctx, h.jobID); err != nil {
				log.Error("Failed to close remote job", zap.Error(err))
				errs = append(errs, &schemas.Failure{Kind: schemas.FailProvider, Op: "close job", Err: err})
			}
		}

		if err := h.driver.CloseSession(ctx); err != nil {
			log.Error("Failed to terminate driver handle", zap.Error(err))
			errs = append(errs, fmt.Errorf("close driver session: %w", err))
		}

		log.Info("Session torn down")
		teardownErr = errors.Join(errs...)
	})
	return teardownErr
}
