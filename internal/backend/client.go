// Package backend is the typed HTTP client for the remote optimization service.
// Every request and response shape the web app depends on lives here, and
// responses are checked against embedded JSON Schemas before decoding.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-optimizer/internal/schemas"
	"github.com/jonathan/resume-optimizer/internal/types"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 10 << 20
)

// RequestObserver receives one call per backend request. StatusCode is zero for transport failures.
type RequestObserver interface {
	ObserveBackendRequest(op string, statusCode int, duration time.Duration)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client // overrides Timeout and tracing when set
	Timeout    time.Duration
	Breaker    BreakerConfig
	Logger     *slog.Logger
	Observer   RequestObserver
}

// Client talks to the optimization backend.
type Client struct {
	base     *url.URL
	baseURL  string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[[]byte]
	validate *validator.Validate
	logger   *slog.Logger
	observer RequestObserver
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", baseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	return &Client{
		base:     base,
		baseURL:  base.String(),
		http:     httpClient,
		breaker:  newBreaker(opts.Breaker, logger),
		validate: validator.New(),
		logger:   logger,
		observer: opts.Observer,
	}, nil
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// call describes one request. body is sent as JSON; raw, when set, is sent
// as is with contentType.
type call struct {
	op          string
	method      string
	path        string
	token       string
	body        any
	raw         []byte
	contentType string
	schema      string
}

// Submit starts an optimization job. The request is validated before any network call.
func (c *Client) Submit(ctx context.Context, token string, req *types.OptimizeRequest) (*types.SubmitResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid optimization request: %w", err)
	}
	var out types.SubmitResponse
	err := c.do(ctx, call{op: "submit", method: http.MethodPost, path: "/optimize/", token: token, body: req, schema: schemas.Submit}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Status fetches the status resource of a job.
func (c *Client) Status(ctx context.Context, token, jobID string) (*types.JobStatus, error) {
	var out types.JobStatus
	err := c.do(ctx, call{op: "status", method: http.MethodGet, path: "/optimize/" + url.PathEscape(jobID) + "/status", token: token, schema: schemas.Status}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Result fetches the result resource of a job.
func (c *Client) Result(ctx context.Context, token, jobID string) (*types.JobResult, error) {
	var out types.JobResult
	err := c.do(ctx, call{op: "result", method: http.MethodGet, path: "/optimize/" + url.PathEscape(jobID) + "/result", token: token, schema: schemas.Result}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Compile recompiles edited LaTeX source into a new PDF.
func (c *Client) Compile(ctx context.Context, token string, req *types.CompileRequest) (*types.CompileResponse, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid compile request: %w", err)
	}
	var out types.CompileResponse
	err := c.do(ctx, call{op: "compile", method: http.MethodPost, path: "/optimize/compile-latex", token: token, body: req, schema: schemas.Compile}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a job and its artifacts from the backend.
func (c *Client) Delete(ctx context.Context, token, jobID string) error {
	return c.do(ctx, call{op: "delete", method: http.MethodDelete, path: "/optimize/" + url.PathEscape(jobID), token: token}, nil)
}

// TestConnection asks the backend to verify a provider configuration.
func (c *Client) TestConnection(ctx context.Context, cfg types.ProviderConfig) (*types.ConnectionTestResponse, error) {
	body := types.LLMConfigFrom(cfg)
	if err := c.validate.Struct(&body); err != nil {
		return nil, fmt.Errorf("invalid provider configuration: %w", err)
	}
	var out types.ConnectionTestResponse
	err := c.do(ctx, call{op: "test_connection", method: http.MethodPost, path: "/llm/test-connection", body: body, schema: schemas.Connection}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Providers fetches the provider catalog.
func (c *Client) Providers(ctx context.Context) ([]types.ProviderInfo, error) {
	var out []types.ProviderInfo
	err := c.do(ctx, call{op: "providers", method: http.MethodGet, path: "/llm/providers", schema: schemas.Providers}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Dashboard fetches usage statistics for the signed-in user.
func (c *Client) Dashboard(ctx context.Context, token string) (*types.Dashboard, error) {
	var out types.Dashboard
	err := c.do(ctx, call{op: "dashboard", method: http.MethodGet, path: "/analytics/dashboard", token: token, schema: schemas.Dashboard}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeATS sends a resume document for an ATS compatibility check. The
// token is optional: without one the backend returns the limited report.
func (c *Client) AnalyzeATS(ctx context.Context, token string, req *types.ATSRequest) (*types.ATSAnalysis, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid ATS request: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(req.Filename))
	if err != nil {
		return nil, fmt.Errorf("failed to encode ats request: %w", err)
	}
	if _, err := part.Write(req.Content); err != nil {
		return nil, fmt.Errorf("failed to encode ats request: %w", err)
	}
	if jd := strings.TrimSpace(req.JobDescription); jd != "" {
		if err := mw.WriteField("job_description", jd); err != nil {
			return nil, fmt.Errorf("failed to encode ats request: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode ats request: %w", err)
	}

	var out types.ATSAnalysis
	err = c.do(ctx, call{
		op:          "ats",
		method:      http.MethodPost,
		path:        "/ats/analyze",
		token:       token,
		raw:         buf.Bytes(),
		contentType: mw.FormDataContentType(),
		schema:      schemas.ATS,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ExchangeToken trades a verified identity token for a backend session credential.
func (c *Client) ExchangeToken(ctx context.Context, idToken string) (*types.TokenExchangeResponse, error) {
	req := types.TokenExchangeRequest{IDToken: idToken}
	if err := c.validate.Struct(&req); err != nil {
		return nil, fmt.Errorf("invalid token exchange: %w", err)
	}
	var out types.TokenExchangeResponse
	err := c.do(ctx, call{op: "token_exchange", method: http.MethodPost, path: "/auth/google", body: req, schema: schemas.Token}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout invalidates the session credential on the backend.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, call{op: "logout", method: http.MethodPost, path: "/auth/logout", token: token}, nil)
}

// Download is a streamed artifact. The caller closes Body.
type Download struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// Download streams an artifact referenced by a result (pdf_download_url or latex_download_url).
// Only URLs served by the backend itself are followed.
func (c *Client) Download(ctx context.Context, token, ref string) (*Download, error) {
	target, err := c.resolve(ref)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("download", 0, time.Since(start))
		return nil, &APIError{Op: "download", Message: "Could not reach the optimization service.", Cause: err}
	}
	c.observe("download", resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newStatusError("download", resp.StatusCode, body)
	}

	return &Download{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Filename:      filenameFrom(resp.Header.Get("Content-Disposition"), target),
	}, nil
}

func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil || ref == "" {
		return "", fmt.Errorf("invalid download reference %q", ref)
	}
	abs := c.base.ResolveReference(u)
	if abs.Scheme != c.base.Scheme || abs.Host != c.base.Host {
		return "", fmt.Errorf("download reference %q is not served by the backend", ref)
	}
	return abs.String(), nil
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	var status int
	run := func() ([]byte, error) {
		body, code, err := c.roundTrip(ctx, cl)
		status = code
		return body, err
	}

	start := time.Now()
	var (
		body []byte
		err  error
	)
	if c.breaker == nil {
		body, err = run()
	} else {
		body, err = c.breaker.Execute(run)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s: %w", cl.op, ErrBackendUnavailable)
		}
	}
	c.observe(cl.op, status, time.Since(start))

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Debug("backend request failed", "op", cl.op, "status", status, "error", err)
		}
		return err
	}

	if cl.schema != "" {
		if err := schemas.Validate(cl.schema, body); err != nil {
			c.logger.Warn("backend response failed schema validation", "op", cl.op, "error", err)
			return &APIError{Op: cl.op, StatusCode: status, Message: GenericErrorMessage, Cause: err}
		}
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Op: cl.op, StatusCode: status, Message: GenericErrorMessage, Cause: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, cl call) ([]byte, int, error) {
	var reader io.Reader
	contentType := "application/json"
	switch {
	case cl.raw != nil:
		reader = bytes.NewReader(cl.raw)
		contentType = cl.contentType
	case cl.body != nil:
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to encode %s request: %w", cl.op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if cl.token != "" {
		req.Header.Set("Authorization", "Bearer "+cl.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &APIError{Op: cl.op, Message: "Could not reach the optimization service.", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, &APIError{Op: cl.op, StatusCode: resp.StatusCode, Message: GenericErrorMessage, Cause: err}
	}

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, newStatusError(cl.op, resp.StatusCode, body)
	}
	return body, resp.StatusCode, nil
}

func newStatusError(op string, status int, body []byte) *APIError {
	msg := errorMessage(body)
	if msg == "" {
		msg = GenericErrorMessage
	}
	return &APIError{Op: op, StatusCode: status, Message: msg}
}

func (c *Client) observe(op string, status int, d time.Duration) {
	if c.observer != nil {
		c.observer.ObserveBackendRequest(op, status, d)
	}
}

func filenameFrom(disposition, target string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
		return params["filename"]
	}
	if u, err := url.Parse(target); err == nil {
		if i := strings.LastIndex(u.Path, "/"); i >= 0 && i < len(u.Path)-1 {
			return u.Path[i+1:]
		}
	}
	return "download"
}
