package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/target/integrations-dispatch/internal/domain/model"
	"github.com/target/integrations-dispatch/internal/ports"
)

const (
	// EntryName is the executable each unit directory must contain.
	EntryName = "entry"

	defaultKillGrace = 5 * time.Second
	maxStdout        = 8 << 20
	maxStderr        = 64 << 10
	stderrTail       = 2048
)

var _ UnitProvider = (*Subprocess)(nil)

// SubprocessConfig configures the subprocess provider.
type SubprocessConfig struct {
	// Dir holds one directory per unit, each with an executable named EntryName.
	Dir string
	// KillGrace is the wait between SIGTERM and SIGKILL once the job deadline passes.
	KillGrace time.Duration
	Logger    *slog.Logger
}

// Subprocess runs <Dir>/<unit>/entry. The request is written to stdin as JSON and a
// single JSON response is read from stdout.
type Subprocess struct {
	dir       string
	killGrace time.Duration
	logger    *slog.Logger
}

// SubprocessRequest is written to the unit's stdin.
type SubprocessRequest struct {
	JobID  string          `json:"job_id"`
	Unit   string          `json:"unit"`
	Config json.RawMessage `json:"config"`
}

// SubprocessResponse is read from the unit's stdout.
type SubprocessResponse struct {
	Status     string                         `json:"status"`
	Result     json.RawMessage                `json:"result,omitempty"`
	Error      string                         `json:"error,omitempty"`
	Violations []model.CreateViolationRequest `json:"violations,omitempty"`
}

// NewSubprocess validates cfg.Dir and builds the provider.
func NewSubprocess(cfg SubprocessConfig) (*Subprocess, error) {
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return nil, errors.New("provider directory is required")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("provider directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("provider directory %s is not a directory", dir)
	}
	grace := cfg.KillGrace
	if grace <= 0 {
		grace = defaultKillGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Subprocess{
		dir:       dir,
		killGrace: grace,
		logger:    logger.With("component", "subprocess_provider"),
	}, nil
}

// Has reports whether the unit has an executable entry.
func (s *Subprocess) Has(unit string) bool {
	path, ok := s.entryPath(unit)
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// entryPath rejects unit names that would escape Dir.
func (s *Subprocess) entryPath(unit string) (string, bool) {
	if unit == "" || unit == "." || unit == ".." || strings.ContainsAny(unit, `/\`) {
		return "", false
	}
	return filepath.Join(s.dir, unit, EntryName), true
}

// Execute implements ports.ExecutionProvider. When ctx ends first the process gets
// SIGTERM, then SIGKILL after the grace period.
func (s *Subprocess) Execute(
	ctx context.Context,
	unit string,
	config json.RawMessage,
	timeout time.Duration,
) (json.RawMessage, error) {
	if !s.Has(unit) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
	}
	entry, _ := s.entryPath(unit)
	log := s.logger.With("unit", unit)

	input, err := json.Marshal(SubprocessRequest{JobID: jobIDFrom(config), Unit: unit, Config: config})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Termination is managed below rather than through CommandContext so the unit gets a grace period.
	cmd := exec.Command(entry) // #nosec G204 - entry is confined to the provider directory
	cmd.Dir = filepath.Dir(entry)
	cmd.Stdin = bytes.NewReader(input)
	stdout := &cappedBuffer{limit: maxStdout}
	stderr := &cappedBuffer{limit: maxStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = s.killGrace

	log.Debug("spawning unit", "entry", entry, "timeout", timeout)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", unit, err)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()

	select {
	case <-ctx.Done():
		s.terminate(cmd, waitErr, log)
		return nil, ctx.Err()
	case err := <-waitErr:
		return s.handleExit(ctx, unit, err, stdout, stderr, log)
	}
}

func (s *Subprocess) terminate(cmd *exec.Cmd, waitErr <-chan error, log *slog.Logger) {
	log.Warn("unit deadline reached, sending SIGTERM")
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		log.Error("failed to send SIGTERM", "error", err)
	}
	grace := time.NewTimer(s.killGrace)
	defer grace.Stop()
	select {
	case <-waitErr:
		log.Info("unit exited after SIGTERM")
	case <-grace.C:
		log.Warn("unit did not exit after SIGTERM, sending SIGKILL")
		if err := cmd.Process.Kill(); err != nil {
			log.Error("failed to send SIGKILL", "error", err)
		}
		<-waitErr
	}
}

func (s *Subprocess) handleExit(
	ctx context.Context,
	unit string,
	waitErr error,
	stdout, stderr *cappedBuffer,
	log *slog.Logger,
) (json.RawMessage, error) {
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			log.Warn("unit exited with non-zero status", "exit_code", exitErr.ExitCode())
			return nil, fmt.Errorf("integration '%s' exited with status %d: %s",
				unit, exitErr.ExitCode(), tail(stderr.String(), stderrTail))
		}
		return nil, fmt.Errorf("wait for %s: %w", unit, waitErr)
	}
	if stdout.truncated {
		return nil, fmt.Errorf("integration '%s' wrote more than %d bytes to stdout", unit, maxStdout)
	}

	var resp SubprocessResponse
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); err != nil {
		log.Error("failed to decode unit response", "error", err, "stderr", tail(stderr.String(), stderrTail))
		return nil, fmt.Errorf("decode %s response: %w", unit, err)
	}

	postViolations(ctx, resp.Violations, log)

	switch resp.Status {
	case "ok", "":
		return resp.Result, nil
	case "error":
		msg := resp.Error
		if msg == "" {
			msg = fmt.Sprintf("integration '%s' reported an error", unit)
		}
		return nil, errors.New(msg)
	default:
		return nil, fmt.Errorf("integration '%s' returned unknown status %q", unit, resp.Status)
	}
}

// postViolations hands each finding to the reporter on ctx. A failed post does not
// fail the job.
func postViolations(ctx context.Context, vs []model.CreateViolationRequest, log *slog.Logger) {
	if len(vs) == 0 {
		return
	}
	report := ports.ViolationReporterFrom(ctx)
	if report == nil {
		log.Warn("unit produced violations but no reporter is attached", "count", len(vs))
		return
	}
	for _, v := range vs {
		if err := report(ctx, v); err != nil {
			log.Warn("violation not recorded", "task_name", v.TaskName, "error", err)
		}
	}
}

func jobIDFrom(config json.RawMessage) string {
	var probe struct {
		JobID string `json:"job_id"`
	}
	_ = json.Unmarshal(config, &probe)
	return probe.JobID
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// cappedBuffer keeps at most limit bytes and drops the rest.
type cappedBuffer struct {
	bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.truncated = true
		b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
