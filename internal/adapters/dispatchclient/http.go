// Package dispatchclient implements ports.DispatchClient over HTTP and in process.
package dispatchclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
	apperrors "github.com/target/integrations-dispatch/internal/errors"
	"github.com/target/integrations-dispatch/internal/ports"
)

// maxErrorBody caps how much of a failed response is read for the error message.
const maxErrorBody = 64 << 10

var _ ports.DispatchClient = (*HTTPClient)(nil)

// Config captures how to reach a remote dispatch API.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Client  *http.Client
	// SchedulerToken is sent with enqueues so the API exempts them from its rate limit.
	SchedulerToken string
}

// HTTPClient talks to the dispatch API routes served by internal/http.
type HTTPClient struct {
	baseURL        string
	client         *http.Client
	schedulerToken string
}

// NewHTTPClient builds an HTTP dispatch client. BaseURL is required.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("dispatch api base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid dispatch api base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{baseURL: base, client: hc, schedulerToken: strings.TrimSpace(cfg.SchedulerToken)}, nil
}

// ScheduledDeployments implements ports.DispatchClient.
func (c *HTTPClient) ScheduledDeployments(ctx context.Context) ([]*model.Deployment, error) {
	var deps []*model.Deployment
	if _, err := c.do(ctx, call{method: http.MethodGet, path: "/deployments/scheduled", out: &deps}); err != nil {
		return nil, err
	}
	return deps, nil
}

// Enqueue implements ports.DispatchClient. With a scheduler token the call is marked
// as coming from the scheduler, which exempts it from the on-demand rate limit.
func (c *HTTPClient) Enqueue(ctx context.Context, deploymentID string) (string, error) {
	var resp model.EnqueueJobResponse
	var header http.Header
	if c.schedulerToken != "" {
		header = http.Header{
			ports.SourceHeader: {ports.SourceScheduler},
			"Authorization":    {"Bearer " + c.schedulerToken},
		}
	}
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/jobs",
		body:   model.EnqueueJobRequest{DeploymentID: deploymentID},
		out:    &resp,
		header: header,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// ClaimNext implements ports.DispatchClient. A 204 maps to model.ErrNoJobsAvailable.
func (c *HTTPClient) ClaimNext(ctx context.Context, queue string) (*model.Job, error) {
	var job model.Job
	status, err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/jobs/next?queue=" + url.QueryEscape(queue),
		out:    &job,
	})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, model.ErrNoJobsAvailable
	}
	return &job, nil
}

// Complete implements ports.DispatchClient.
func (c *HTTPClient) Complete(ctx context.Context, jobID string, req model.CompleteJobRequest) error {
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/jobs/" + url.PathEscape(jobID) + "/complete",
		body:   req,
	})
	return err
}

// ReportViolation implements ports.DispatchClient.
func (c *HTTPClient) ReportViolation(ctx context.Context, jobID string, req model.CreateViolationRequest) (string, error) {
	var resp model.CreateViolationResponse
	_, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/jobs/" + url.PathEscape(jobID) + "/violations",
		body:   req,
		out:    &resp,
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

type call struct {
	method string
	path   string
	body   any
	out    any
	header http.Header
}

// do sends one request and decodes a 2xx body into c.out. Non-2xx responses come
// back as *apperrors.AppError carrying the server's code.
func (c *HTTPClient) do(ctx context.Context, in call) (int, error) {
	var body io.Reader
	if in.body != nil {
		b, err := json.Marshal(in.body)
		if err != nil {
			return 0, fmt.Errorf("encode %s %s: %w", in.method, in.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, in.method, c.baseURL+in.path, body)
	if err != nil {
		return 0, fmt.Errorf("create dispatch request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range in.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("dispatch request %s %s: %w", in.method, in.path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, decodeErrorResponse(resp)
	}
	if resp.StatusCode == http.StatusNoContent || in.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(in.out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s response: %w", in.method, in.path, err)
	}
	return resp.StatusCode, nil
}

func decodeErrorResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = string(codeForStatus(resp.StatusCode))
		body.Message = strings.TrimSpace(string(raw))
	}
	if body.Message == "" {
		body.Message = http.StatusText(resp.StatusCode)
	}
	return &apperrors.AppError{
		Code:    apperrors.ErrorCode(body.Error),
		Message: fmt.Sprintf("dispatch api %d: %s", resp.StatusCode, body.Message),
		Field:   body.Field,
	}
}

func codeForStatus(status int) apperrors.ErrorCode {
	switch status {
	case http.StatusBadRequest:
		return apperrors.ErrCodeValidation
	case http.StatusNotFound:
		return apperrors.ErrCodeNotFound
	case http.StatusConflict:
		return apperrors.ErrCodeConflict
	case http.StatusTooManyRequests:
		return apperrors.ErrCodeRateLimited
	case http.StatusUnauthorized:
		return apperrors.ErrCodeUnauthorized
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return apperrors.ErrCodeTransientStore
	default:
		return apperrors.ErrCodeInternal
	}
}
