// Package provider implements ports.ExecutionProvider: in-process handlers, prepared
// executables run as subprocesses, and a chain that picks between them by unit name.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/target/integrations-dispatch/internal/ports"
)

// ErrUnknownUnit is returned when no provider can run the named unit.
var ErrUnknownUnit = errors.New("unknown integration unit")

// UnitProvider is an ExecutionProvider that knows which units it can run.
type UnitProvider interface {
	ports.ExecutionProvider
	Has(unit string) bool
}

// Handler runs a unit of work in process. The config carries the injected job_id.
type Handler func(ctx context.Context, config json.RawMessage) (json.RawMessage, error)

var _ UnitProvider = (*Registry)(nil)

// Registry holds in-process handlers keyed by unit name.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns a registry with the builtin handlers registered.
func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]Handler)}
	r.handlers[HTTPCheckUnit] = NewHTTPCheck(nil).Run
	return r
}

// Register adds a handler. Registering a name twice is an error.
func (r *Registry) Register(unit string, h Handler) error {
	if unit == "" || h == nil {
		return errors.New("unit name and handler are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[unit]; dup {
		return fmt.Errorf("handler for %q already registered", unit)
	}
	r.handlers[unit] = h
	return nil
}

// Has reports whether unit has a handler.
func (r *Registry) Has(unit string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[unit]
	return ok
}

// Units lists registered unit names in order.
func (r *Registry) Units() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Execute runs the unit's handler. The handler sees ctx with the worker's deadline;
// one that ignores it is abandoned by the worker.
func (r *Registry) Execute(
	ctx context.Context,
	unit string,
	config json.RawMessage,
	_ time.Duration,
) (json.RawMessage, error) {
	r.mu.RLock()
	h, ok := r.handlers[unit]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
	}
	return h(ctx, config)
}

var _ ports.ExecutionProvider = (*Chain)(nil)

// Chain tries each provider in order and runs the unit on the first one that has it.
type Chain struct {
	providers []UnitProvider
}

// NewChain builds a chain. Nil providers are skipped.
func NewChain(providers ...UnitProvider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Execute implements ports.ExecutionProvider.
func (c *Chain) Execute(
	ctx context.Context,
	unit string,
	config json.RawMessage,
	timeout time.Duration,
) (json.RawMessage, error) {
	for _, p := range c.providers {
		if p.Has(unit) {
			return p.Execute(ctx, unit, config, timeout)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownUnit, unit)
}
