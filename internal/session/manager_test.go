// internal/session/manager_test.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
)

// callRecorder captures the cross-component call sequence so teardown
// ordering can be asserted exactly.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *callRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type mockDriver struct {
	rec        *callRecorder
	closeErr   error
	closeCount atomic.Int32
}

func (d *mockDriver) Navigate(ctx context.Context, url string) error { return nil }
func (d *mockDriver) Locate(ctx context.Context, locator schemas.Locator) ([]schemas.ElementHandle, error) {
	return nil, nil
}
func (d *mockDriver) ElementAction(ctx context.Context, h schemas.ElementHandle, kind schemas.ActionKind, args ...string) error {
	return nil
}
func (d *mockDriver) ElementState(ctx context.Context, h schemas.ElementHandle, prop schemas.StateProperty) (string, error) {
	return "", nil
}
func (d *mockDriver) CloseSession(ctx context.Context) error {
	d.closeCount.Add(1)
	if d.rec != nil {
		d.rec.record("driver_close")
	}
	return d.closeErr
}

type mockProvider struct {
	rec       *callRecorder
	driver    schemas.Driver
	openErr   error
	reportErr error
	closeErr  error
}

func (p *mockProvider) OpenSession(ctx context.Context, envelope schemas.CapabilityEnvelope) (schemas.Driver, string, error) {
	p.rec.record("open_session:" + envelope.JobName)
	if p.openErr != nil {
		return nil, "", p.openErr
	}
	return p.driver, "job-42", nil
}

func (p *mockProvider) ReportOutcome(ctx context.Context, jobID string, passed bool) error {
	p.rec.record(fmt.Sprintf("report_outcome:%s:%t", jobID, passed))
	return p.reportErr
}

func (p *mockProvider) CloseJob(ctx context.Context, jobID string) error {
	p.rec.record("close_job:" + jobID)
	return p.closeErr
}

func localFactoryFor(d schemas.Driver) LocalDriverFactory {
	return func(ctx context.Context, caps schemas.Capabilities) (schemas.Driver, error) {
		return d, nil
	}
}

func TestNewManagerRequiresLogger(t *testing.T) {
	_, err := NewManager(config.HarnessConfig{}, nil, nil, nil)
	require.Error(t, err)
}

func TestDescribeValidatesMode(t *testing.T) {
	testCases := []struct {
		name string
		mode string
		ok   bool
	}{
		{name: "local", mode: "LOCAL", ok: true},
		{name: "remote", mode: "REMOTE", ok: true},
		{name: "unset", mode: "", ok: false},
		{name: "unrecognized", mode: "STAGING", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			factoryCalls := 0
			mgr, err := NewManager(
				config.HarnessConfig{Mode: tc.mode},
				nil,
				func(ctx context.Context, caps schemas.Capabilities) (schemas.Driver, error) {
					factoryCalls++
					return &mockDriver{}, nil
				},
				zap.NewNop(),
			)
			require.NoError(t, err)

			desc, err := mgr.Describe("login/valid-credentials")
			if tc.ok {
				require.NoError(t, err)
				assert.Equal(t, schemas.Mode(tc.mode), desc.Mode)
				assert.Equal(t, "login/valid-credentials", desc.DisplayName)
				return
			}
			require.Error(t, err)
			assert.True(t, schemas.IsKind(err, schemas.FailConfiguration), "expected ConfigurationError, got %v", err)
			assert.Zero(t, factoryCalls, "a bad mode must fail before any session is acquired")
		})
	}
}

func TestOpenRejectsUnrecognizedDescriptorMode(t *testing.T) {
	mgr, err := NewManager(config.HarnessConfig{Mode: "LOCAL"}, nil, localFactoryFor(&mockDriver{}), zap.NewNop())
	require.NoError(t, err)

	_, err = mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: "GRID"})
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.FailConfiguration))
}

func TestOpenLocalWithoutFactory(t *testing.T) {
	mgr, err := NewManager(config.HarnessConfig{Mode: "LOCAL"}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeLocal})
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.FailConfiguration))
}

func TestOpenRemoteWithoutProvider(t *testing.T) {
	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote})
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.FailConfiguration))
}

func TestOpenRemoteWrapsProviderError(t *testing.T) {
	rec := &callRecorder{}
	provider := &mockProvider{rec: rec, openErr: errors.New("quota exceeded")}
	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, provider, nil, zap.NewNop())
	require.NoError(t, err)

	_, err = mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote, DisplayName: "unit-a"})
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.FailProvider), "expected ProviderError, got %v", err)
}

func TestLocalLifecycleNeverTouchesProvider(t *testing.T) {
	rec := &callRecorder{}
	driver := &mockDriver{rec: rec}
	provider := &mockProvider{rec: rec, driver: &mockDriver{}}

	var hooked []schemas.Outcome
	mgr, err := NewManager(
		config.HarnessConfig{Mode: "LOCAL"},
		provider,
		localFactoryFor(driver),
		zap.NewNop(),
		WithOutcomeHook(func(o schemas.Outcome) { hooked = append(hooked, o) }),
	)
	require.NoError(t, err)

	desc, err := mgr.Describe("login/valid-credentials")
	require.NoError(t, err)
	h, err := mgr.Open(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, schemas.ModeLocal, h.Mode())
	assert.Empty(t, h.JobID())
	assert.NotEmpty(t, h.ID())
	assert.False(t, h.Closed())

	outcome := schemas.Outcome{UnitID: "login/valid-credentials", Status: schemas.StatusPass}
	require.NoError(t, mgr.Teardown(context.Background(), h, outcome))

	assert.True(t, h.Closed())
	assert.Equal(t, int32(1), driver.closeCount.Load())
	assert.Equal(t, []string{"driver_close"}, rec.snapshot(), "a local run must never call the provider")
	require.Len(t, hooked, 1)
	assert.Equal(t, outcome, hooked[0])
}

func TestRemoteFailureReportedBeforeJobClose(t *testing.T) {
	rec := &callRecorder{}
	driver := &mockDriver{rec: rec}
	provider := &mockProvider{rec: rec, driver: driver}

	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, provider, nil, zap.NewNop())
	require.NoError(t, err)

	desc, err := mgr.Describe("login/invalid-credentials")
	require.NoError(t, err)
	h, err := mgr.Open(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "job-42", h.JobID())

	outcome := schemas.Outcome{UnitID: "login/invalid-credentials", Status: schemas.StatusFail}
	require.NoError(t, mgr.Teardown(context.Background(), h, outcome))

	want := []string{
		"open_session:login/invalid-credentials",
		"report_outcome:job-42:false",
		"close_job:job-42",
		"driver_close",
	}
	assert.Equal(t, want, rec.snapshot(), "the outcome must reach the provider before the job closes")
}

func TestRemotePassReportsTrue(t *testing.T) {
	rec := &callRecorder{}
	provider := &mockProvider{rec: rec, driver: &mockDriver{rec: rec}}
	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, provider, nil, zap.NewNop())
	require.NoError(t, err)

	h, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote, DisplayName: "unit-b"})
	require.NoError(t, err)
	require.NoError(t, mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusPass}))

	assert.Contains(t, rec.snapshot(), "report_outcome:job-42:true")
}

func TestTeardownIsIdempotent(t *testing.T) {
	rec := &callRecorder{}
	driver := &mockDriver{rec: rec}
	provider := &mockProvider{rec: rec, driver: driver}

	hookCount := 0
	mgr, err := NewManager(
		config.HarnessConfig{Mode: "REMOTE"},
		provider,
		nil,
		zap.NewNop(),
		WithOutcomeHook(func(schemas.Outcome) { hookCount++ }),
	)
	require.NoError(t, err)

	h, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote, DisplayName: "unit-c"})
	require.NoError(t, err)

	require.NoError(t, mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusFail}))
	// Repeat calls, including with a different outcome, must be no-ops.
	require.NoError(t, mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusPass}))
	require.NoError(t, mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusError}))

	assert.Equal(t, int32(1), driver.closeCount.Load())
	assert.Equal(t, 1, hookCount, "the outcome hook fires exactly once per handle")

	var reports int
	for _, call := range rec.snapshot() {
		if call == "report_outcome:job-42:false" {
			reports++
		}
	}
	assert.Equal(t, 1, reports, "the first teardown's outcome wins; it is never re-reported")
}

func TestTeardownProviderErrorStillClosesDriver(t *testing.T) {
	rec := &callRecorder{}
	driver := &mockDriver{rec: rec}
	provider := &mockProvider{rec: rec, driver: driver, reportErr: errors.New("503 service unavailable")}

	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, provider, nil, zap.NewNop())
	require.NoError(t, err)

	h, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote, DisplayName: "unit-d"})
	require.NoError(t, err)

	err = mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusFail})
	require.Error(t, err)
	assert.True(t, schemas.IsKind(err, schemas.FailProvider))

	assert.Equal(t, int32(1), driver.closeCount.Load(), "a provider fault must not leak the browser")
	assert.Contains(t, rec.snapshot(), "close_job:job-42", "job close is still attempted after a report failure")
}

func TestTeardownCollectsEveryError(t *testing.T) {
	rec := &callRecorder{}
	driver := &mockDriver{rec: rec, closeErr: errors.New("browser already gone")}
	provider := &mockProvider{
		rec:       rec,
		driver:    driver,
		reportErr: errors.New("report rejected"),
		closeErr:  errors.New("job close rejected"),
	}

	mgr, err := NewManager(config.HarnessConfig{Mode: "REMOTE"}, provider, nil, zap.NewNop())
	require.NoError(t, err)

	h, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeRemote, DisplayName: "unit-e"})
	require.NoError(t, err)

	err = mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusError})
	require.Error(t, err)
	assert.ErrorContains(t, err, "report rejected")
	assert.ErrorContains(t, err, "job close rejected")
	assert.ErrorContains(t, err, "browser already gone")
}

func TestTeardownNilHandle(t *testing.T) {
	mgr, err := NewManager(config.HarnessConfig{Mode: "LOCAL"}, nil, localFactoryFor(&mockDriver{}), zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, mgr.Teardown(context.Background(), nil, schemas.Outcome{}))
}

func TestConcurrentTeardownClosesOnce(t *testing.T) {
	driver := &mockDriver{}
	mgr, err := NewManager(config.HarnessConfig{Mode: "LOCAL"}, nil, localFactoryFor(driver), zap.NewNop())
	require.NoError(t, err)

	h, err := mgr.Open(context.Background(), schemas.SessionDescriptor{Mode: schemas.ModeLocal, DisplayName: "unit-f"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.Teardown(context.Background(), h, schemas.Outcome{Status: schemas.StatusPass})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), driver.closeCount.Load())
}
