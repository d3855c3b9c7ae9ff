package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
)

// HTTPCheckUnit is the builtin unit that probes a URL.
const HTTPCheckUnit = "http_check"

const httpCheckBodyLimit = 1024

// HTTPCheckConfig is the deployment config the builtin accepts.
type HTTPCheckConfig struct {
	URL            string `json:"url"`
	Method         string `json:"method,omitempty"`
	ExpectedStatus int    `json:"expected_status,omitempty"`
	JobID          string `json:"job_id,omitempty"`
}

// HTTPCheckResult is the job result the builtin produces.
type HTTPCheckResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
	OK         bool   `json:"ok"`
	Body       string `json:"body,omitempty"`
}

// HTTPCheck probes a URL and records a violation when the status is not the one expected.
type HTTPCheck struct {
	client *http.Client
}

// NewHTTPCheck builds the builtin. A nil client uses a client without its own timeout;
// the job deadline on ctx bounds the request.
func NewHTTPCheck(client *http.Client) *HTTPCheck {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPCheck{client: client}
}

// Run is a Handler.
func (h *HTTPCheck) Run(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var cfg HTTPCheckConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("http_check config: %w", err)
	}
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("http_check url must be an absolute http or https URL: %q", cfg.URL)
	}
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create http_check request: %w", err)
	}
	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http_check request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, httpCheckBodyLimit))

	res := HTTPCheckResult{
		URL:        u.String(),
		StatusCode: resp.StatusCode,
		DurationMS: time.Since(start).Milliseconds(),
		OK:         statusMatches(resp.StatusCode, cfg.ExpectedStatus),
	}
	if !res.OK {
		res.Body = string(body)
		if rerr := reportStatusViolation(ctx, cfg, res); rerr != nil {
			return nil, rerr
		}
	}
	return json.Marshal(res)
}

func statusMatches(got, want int) bool {
	if want == 0 {
		return got >= 200 && got < 300
	}
	return got == want
}

func reportStatusViolation(ctx context.Context, cfg HTTPCheckConfig, res HTTPCheckResult) error {
	report := ports.ViolationReporterFrom(ctx)
	if report == nil {
		return nil
	}
	output, err := json.Marshal(map[string]any{
		"url":             res.URL,
		"status_code":     res.StatusCode,
		"expected_status": cfg.ExpectedStatus,
	})
	if err != nil {
		return err
	}
	desc := fmt.Sprintf("%s returned HTTP %d", res.URL, res.StatusCode)
	vtype := "availability"
	// A failed post is logged by the reporter; the check result still stands.
	_ = report(ctx, model.CreateViolationRequest{
		TaskName:          HTTPCheckUnit,
		ControlReferences: json.RawMessage(`[]`),
		Output:            output,
		Severity:          model.SeverityHigh,
		Description:       &desc,
		ViolationType:     &vtype,
	})
	return nil
}
