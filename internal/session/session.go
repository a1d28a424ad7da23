// Package session tracks the operator's admin session: whether the console
// is authenticated and the CSRF token that authorizes writes.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/five82/bulwark/internal/adminapi"
)

// ErrUnauthenticated is returned when the server rejects the credentials.
var ErrUnauthenticated = errors.New("session: not authenticated")

// Remote is the slice of the admin API the controller drives.
type Remote interface {
	Session(ctx context.Context) (adminapi.SessionState, error)
	Login(ctx context.Context, apiKey string) (adminapi.SessionState, error)
	Logout(ctx context.Context) error
	SetCSRFToken(token string)
	Endpoint() string
}

// State is the current session. CSRFToken is always empty when
// Authenticated is false.
type State struct {
	Authenticated bool
	CSRFToken     string
}

// AdminContext carries what an authorized API call needs.
type AdminContext struct {
	Endpoint  string
	CSRFToken string
}

// Option customizes a Controller.
type Option func(*Controller)

// WithLogger sets the logger. The default discards.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOnChange registers a callback run after every state change.
func WithOnChange(fn func(State)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the session state. Safe for concurrent use.
type Controller struct {
	remote   Remote
	logger   *zap.Logger
	onChange func(State)

	mu    sync.RWMutex
	state State
}

// NewController returns an unauthenticated controller.
func NewController(remote Remote, opts ...Option) *Controller {
	c := &Controller{remote: remote, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Restore asks the server whether the stored cookie is still a live session.
// A rejected session leaves the controller unauthenticated without error;
// transport failures are returned.
func (c *Controller) Restore(ctx context.Context) (State, error) {
	remote, err := c.remote.Session(ctx)
	if err != nil {
		c.Invalidate()
		if adminapi.IsUnauthorized(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("restore session: %w", err)
	}
	state := c.Set(State{Authenticated: remote.Authenticated, CSRFToken: remote.CSRFToken})
	c.logger.Info("session restored", zap.Bool("authenticated", state.Authenticated))
	return state, nil
}

// Login exchanges an API key for a session.
func (c *Controller) Login(ctx context.Context, apiKey string) (State, error) {
	if strings.TrimSpace(apiKey) == "" {
		return State{}, fmt.Errorf("login: %w", ErrUnauthenticated)
	}
	remote, err := c.remote.Login(ctx, apiKey)
	if err != nil {
		c.Invalidate()
		if adminapi.IsUnauthorized(err) {
			return State{}, fmt.Errorf("login: %w", ErrUnauthenticated)
		}
		return State{}, fmt.Errorf("login: %w", err)
	}
	if !remote.Authenticated {
		c.Invalidate()
		return State{}, fmt.Errorf("login: %w", ErrUnauthenticated)
	}
	state := c.Set(State{Authenticated: true, CSRFToken: remote.CSRFToken})
	c.logger.Info("session established")
	return state, nil
}

// Logout ends the session on the server. The local session is dropped even
// when the request fails.
func (c *Controller) Logout(ctx context.Context) error {
	err := c.remote.Logout(ctx)
	c.Invalidate()
	if err != nil && !adminapi.IsUnauthorized(err) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Set replaces the session state and returns the stored value.
func (c *Controller) Set(state State) State {
	if !state.Authenticated {
		state.CSRFToken = ""
	}
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()

	c.remote.SetCSRFToken(state.CSRFToken)
	if changed && c.onChange != nil {
		c.onChange(state)
	}
	return state
}

// Invalidate drops the session, typically after a 401 from any endpoint.
func (c *Controller) Invalidate() {
	c.Set(State{})
}

// State returns the current session.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// HasValidAPIContext reports whether authorized calls can be made.
func (c *Controller) HasValidAPIContext() bool {
	return c.AdminContext() != nil
}

// AdminContext returns nil unless the session is authenticated and the
// endpoint is known.
func (c *Controller) AdminContext() *AdminContext {
	state := c.State()
	endpoint := c.remote.Endpoint()
	if !state.Authenticated || endpoint == "" {
		return nil
	}
	return &AdminContext{Endpoint: endpoint, CSRFToken: state.CSRFToken}
}
