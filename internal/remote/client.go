// internal/remote/client.go
// REST client for the remote execution provider's job API. The provider
// hosts the browsers; this client only manages job records and hands back
// a driver attached to the job's CDP endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/config"
	"github.com/xkilldash9x/checkride/internal/driver/cdp"
)

// DriverDialer attaches a driver to the browser endpoint a job exposes.
type DriverDialer func(ctx context.Context, websocketURL string) (schemas.Driver, error)

// Client implements schemas.Provider over the provider's HTTP job API.
// Job-API calls are rate limited client side; the provider's concurrency
// quota is its own to enforce.
type Client struct {
	cfg     config.RemoteConfig
	http    *http.Client
	limiter *rate.Limiter
	dial    DriverDialer
	logger  *zap.Logger
}

var _ schemas.Provider = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithDriverDialer overrides how drivers attach to a job's browser.
func WithDriverDialer(dial DriverDialer) ClientOption {
	return func(c *Client) { c.dial = dial }
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.RemoteConfig, logger *zap.Logger, opts ...ClientOption) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	log := logger.With(zap.String("component", "remote_provider"))
	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  log,
	}
	c.dial = func(ctx context.Context, websocketURL string) (schemas.Driver, error) {
		return cdp.NewRemote(ctx, websocketURL, log)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type openJobResponse struct {
	JobID        string `json:"job_id"`
	WebsocketURL string `json:"websocket_url"`
}

// OpenSession opens a job record and returns a driver bound to the job's
// browser plus the job id.
func (c *Client) OpenSession(ctx context.Context, envelope schemas.CapabilityEnvelope) (schemas.Driver, string, error) {
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, "", &schemas.Failure{Kind: schemas.FailProvider, Op: "open session", Err: err}
	}

	var job openJobResponse
	if err := c.do(ctx, http.MethodPost, "/v1/jobs", body, &job); err != nil {
		return nil, "", &schemas.Failure{Kind: schemas.FailProvider, Op: "open session", Err: err}
	}
	if job.JobID == "" || job.WebsocketURL == "" {
		return nil, "", &schemas.Failure{
			Kind: schemas.FailProvider,
			Op:   "open session",
			Err:  fmt.Errorf("provider returned incomplete job record (job_id=%q)", job.JobID),
		}
	}

	c.logger.Info("Remote job opened", zap.String("job_id", job.JobID), zap.String("job_name", envelope.JobName))

	driver, err := c.dial(ctx, job.WebsocketURL)
	if err != nil {
		// Don't leak the job record when we can't reach its browser.
		if closeErr := c.CloseJob(ctx, job.JobID); closeErr != nil {
			c.logger.Warn("Failed to close orphaned job", zap.String("job_id", job.JobID), zap.Error(closeErr))
		}
		return nil, "", &schemas.Failure{Kind: schemas.FailProvider, Op: "attach driver", Err: err}
	}
	return driver, job.JobID, nil
}

// ReportOutcome records the final pass/fail status on the job.
func (c *Client) ReportOutcome(ctx context.Context, jobID string, passed bool) error {
	body, _ := json.Marshal(map[string]bool{"passed": passed})
	if err := c.do(ctx, http.MethodPut, "/v1/jobs/"+jobID+"/outcome", body, nil); err != nil {
		return &schemas.Failure{Kind: schemas.FailProvider, Op: "report outcome", Err: err}
	}
	c.logger.Info("Reported job outcome", zap.String("job_id", jobID), zap.Bool("passed", passed))
	return nil
}

// CloseJob closes the job record.
func (c *Client) CloseJob(ctx context.Context, jobID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/jobs/"+jobID, nil, nil); err != nil {
		return &schemas.Failure{Kind: schemas.FailProvider, Op: "close job", Err: err}
	}
	return nil
}

// do issues one rate-limited, authenticated request and decodes the
// response into out when given.
func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.Endpoint, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.AccessKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: provider returned %d: %s", method, path, resp.StatusCode, string(snippet))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}
