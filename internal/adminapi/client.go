package adminapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client talks to the admin HTTP API. Session auth rides on a cookie jar;
// state-changing requests carry the CSRF token recorded by SetCSRFToken.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string

	mu        sync.RWMutex
	csrfToken string
}

const (
	defaultEndpoint  = "http://127.0.0.1:3000"
	defaultUserAgent = "bulwark/0.1"
	requestTimeout   = 10 * time.Second
	errorBodyLimit   = 512

	// CSRFHeader carries the session CSRF token on non-GET requests.
	CSRFHeader = "X-Shuma-CSRF"
	// RequestIDHeader tags every request for server-side log correlation.
	RequestIDHeader = "X-Request-ID"
)

// Option customizes a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if strings.TrimSpace(ua) != "" {
			c.userAgent = ua
		}
	}
}

// NewClient builds a Client for the admin API rooted at endpoint.
func NewClient(endpoint string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(endpoint)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	c := &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: requestTimeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the normalized base URL.
func (c *Client) Endpoint() string {
	return c.baseURL.String()
}

// SetCSRFToken records the token sent with state-changing requests.
func (c *Client) SetCSRFToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.csrfToken = token
}

func (c *Client) csrf() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.csrfToken
}

// GetConfig retrieves the full server configuration.
func (c *Client) GetConfig(ctx context.Context) (Config, error) {
	var payload Config
	if err := c.get(ctx, "/admin/config", nil, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = Config{}
	}
	return payload, nil
}

// UpdateConfig applies a partial configuration update.
func (c *Client) UpdateConfig(ctx context.Context, patch ConfigPatch) (SaveResult, error) {
	var result SaveResult
	if err := c.send(ctx, http.MethodPost, "/admin/config", nil, patch, &result); err != nil {
		return SaveResult{}, err
	}
	return result, nil
}

// GetAnalytics retrieves the headline counters.
func (c *Client) GetAnalytics(ctx context.Context) (Analytics, error) {
	var payload Analytics
	if err := c.get(ctx, "/admin/analytics", nil, &payload); err != nil {
		return Analytics{}, err
	}
	return payload, nil
}

// GetEvents retrieves the event log for the last hours.
func (c *Client) GetEvents(ctx context.Context, hours int) (Events, error) {
	var payload Events
	if err := c.get(ctx, "/admin/events", windowQuery(hours, 0), &payload); err != nil {
		return Events{}, err
	}
	return AdaptEvents(payload), nil
}

// GetBans lists active bans.
func (c *Client) GetBans(ctx context.Context) (Bans, error) {
	var payload Bans
	if err := c.get(ctx, "/admin/ban", nil, &payload); err != nil {
		return Bans{}, err
	}
	return AdaptBans(payload), nil
}

// GetMaze retrieves maze crawler statistics.
func (c *Client) GetMaze(ctx context.Context) (Maze, error) {
	var payload Maze
	if err := c.get(ctx, "/admin/maze", nil, &payload); err != nil {
		return Maze{}, err
	}
	return AdaptMaze(payload), nil
}

// GetCDP retrieves automation-detection statistics.
func (c *Client) GetCDP(ctx context.Context) (CDP, error) {
	var payload CDP
	if err := c.get(ctx, "/admin/cdp", nil, &payload); err != nil {
		return CDP{}, err
	}
	return payload, nil
}

// GetCDPEvents retrieves recent automation-detection events.
func (c *Client) GetCDPEvents(ctx context.Context, hours, limit int) (CDPEvents, error) {
	var payload CDPEvents
	if err := c.get(ctx, "/admin/cdp/events", windowQuery(hours, limit), &payload); err != nil {
		return CDPEvents{}, err
	}
	return AdaptCDPEvents(payload), nil
}

// GetMonitoring retrieves the monitoring summary.
func (c *Client) GetMonitoring(ctx context.Context, hours, limit int) (Monitoring, error) {
	var payload Monitoring
	if err := c.get(ctx, "/admin/monitoring", windowQuery(hours, limit), &payload); err != nil {
		return Monitoring{}, err
	}
	return payload, nil
}

// BanIP bans ip for durationSeconds.
func (c *Client) BanIP(ctx context.Context, ip string, durationSeconds int) error {
	if strings.TrimSpace(ip) == "" {
		return errors.New("ip required")
	}
	body := map[string]any{"ip": ip, "duration": durationSeconds}
	return c.send(ctx, http.MethodPost, "/admin/ban", nil, body, nil)
}

// UnbanIP lifts the ban on ip.
func (c *Client) UnbanIP(ctx context.Context, ip string) error {
	if strings.TrimSpace(ip) == "" {
		return errors.New("ip required")
	}
	query := url.Values{}
	query.Set("ip", ip)
	return c.send(ctx, http.MethodPost, "/admin/unban", query, nil, nil)
}

// Session reports whether the cookie jar holds a live admin session.
func (c *Client) Session(ctx context.Context) (SessionState, error) {
	var payload SessionState
	if err := c.get(ctx, "/admin/session", nil, &payload); err != nil {
		return SessionState{}, err
	}
	return payload, nil
}

// Login exchanges an API key for a session cookie.
func (c *Client) Login(ctx context.Context, apiKey string) (SessionState, error) {
	if strings.TrimSpace(apiKey) == "" {
		return SessionState{}, errors.New("api key required")
	}
	var payload SessionState
	body := map[string]string{"api_key": apiKey}
	if err := c.send(ctx, http.MethodPost, "/admin/login", nil, body, &payload); err != nil {
		return SessionState{}, err
	}
	return payload, nil
}

// Logout ends the admin session.
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/admin/logout", nil, nil, nil)
}

func windowQuery(hours, limit int) url.Values {
	values := url.Values{}
	if hours > 0 {
		values.Set("hours", strconv.Itoa(hours))
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	return values
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dest any) error {
	return c.send(ctx, http.MethodGet, path, query, nil, dest)
}

func (c *Client) send(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	rel := &url.URL{Path: path}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	reqURL := c.baseURL.ResolveReference(rel)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		if token := c.csrf(); token != "" {
			req.Header.Set(CSRFHeader, token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{
			Method:     method,
			Path:       rel.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(endpoint string) (*url.URL, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultEndpoint
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse admin endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse admin endpoint %q: missing host", endpoint)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
