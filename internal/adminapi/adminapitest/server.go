// Package adminapitest runs an in-memory admin API for tests.
package adminapitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/canonical"
)

const (
	sessionCookie = "shuma_admin_session"
	sessionValue  = "adminapitest-session"
	csrfToken     = "adminapitest-csrf"
)

// Server is a fake admin API. Zero-configuration servers accept every
// request; RequireLogin switches on cookie auth.
type Server struct {
	URL string

	httpServer *httptest.Server
	now        func() time.Time

	mu          sync.Mutex
	config      map[string]any
	analytics   adminapi.Analytics
	events      adminapi.Events
	bans        []adminapi.Ban
	maze        adminapi.Maze
	cdp         adminapi.CDP
	cdpEvents   adminapi.CDPEvents
	monitoring  adminapi.Monitoring
	calls       map[string]int
	failures    map[string]int
	lastPatch   map[string]any
	lastCSRF    string
	apiKey      string
	loggedIn    bool
	authEnabled bool
	block       map[string]chan struct{}
}

// New starts a server and registers its shutdown with t.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		now:      time.Now,
		config:   map[string]any{},
		calls:    map[string]int{},
		failures: map[string]int{},
		block:    map[string]chan struct{}{},
	}
	router := gin.New()
	router.Use(s.track, s.inject)

	router.GET("/admin/session", s.handleSession)
	router.POST("/admin/login", s.handleLogin)

	authed := router.Group("/admin", s.requireSession)
	authed.POST("/logout", s.handleLogout)
	authed.GET("/config", s.handleGetConfig)
	authed.POST("/config", s.requireCSRF, s.handleUpdateConfig)
	authed.GET("/analytics", s.handleAnalytics)
	authed.GET("/events", s.handleEvents)
	authed.GET("/ban", s.handleGetBans)
	authed.POST("/ban", s.requireCSRF, s.handleBan)
	authed.POST("/unban", s.requireCSRF, s.handleUnban)
	authed.GET("/maze", s.handleMaze)
	authed.GET("/cdp", s.handleCDP)
	authed.GET("/cdp/events", s.handleCDPEvents)
	authed.GET("/monitoring", s.handleMonitoring)

	s.httpServer = httptest.NewServer(router)
	s.URL = s.httpServer.URL
	t.Cleanup(s.httpServer.Close)
	return s
}

// Client returns a real client pointed at the server.
func (s *Server) Client(t testing.TB) *adminapi.Client {
	t.Helper()
	c, err := adminapi.NewClient(s.URL, adminapi.WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("adminapi.NewClient: %v", err)
	}
	return c
}

// RequireLogin enables session auth with the given API key.
func (s *Server) RequireLogin(apiKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authEnabled = true
	s.apiKey = apiKey
	s.loggedIn = false
}

// ExpireSession drops the server-side session; later calls see 401.
func (s *Server) ExpireSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authEnabled = true
	s.loggedIn = false
}

// SetConfig replaces the server configuration.
func (s *Server) SetConfig(cfg map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = canonical.Clone(cfg)
}

// Config returns a copy of the server configuration.
func (s *Server) Config() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return canonical.Clone(s.config)
}

// SetAnalytics replaces the analytics payload.
func (s *Server) SetAnalytics(a adminapi.Analytics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = a
}

// SetEvents replaces the event payload.
func (s *Server) SetEvents(e adminapi.Events) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = e
}

// SetBans replaces the active bans.
func (s *Server) SetBans(bans ...adminapi.Ban) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bans = append([]adminapi.Ban(nil), bans...)
}

// Bans returns the active bans.
func (s *Server) Bans() []adminapi.Ban {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]adminapi.Ban(nil), s.bans...)
}

// SetMaze replaces the maze payload.
func (s *Server) SetMaze(m adminapi.Maze) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maze = m
}

// LastPatch returns the body of the last config update.
func (s *Server) LastPatch() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return canonical.Clone(s.lastPatch)
}

// LastCSRF returns the CSRF header of the last state-changing request.
func (s *Server) LastCSRF() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCSRF
}

// Fail makes method+path answer with status until Recover.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = status
}

// Recover clears an injected failure.
func (s *Server) Recover(method, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, method+" "+path)
}

// Block holds method+path requests until the returned release func runs.
func (s *Server) Block(method, path string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.block[method+" "+path] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.block, method+" "+path)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls reports how many requests hit method+path.
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// TotalCalls reports every request since the last ResetCalls.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

// ResetCalls zeroes the request counters.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = map[string]int{}
}

func (s *Server) track(c *gin.Context) {
	s.mu.Lock()
	s.calls[c.Request.Method+" "+c.Request.URL.Path]++
	s.mu.Unlock()
	c.Next()
}

func (s *Server) inject(c *gin.Context) {
	key := c.Request.Method + " " + c.Request.URL.Path
	s.mu.Lock()
	status, failing := s.failures[key]
	gate := s.block[key]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	c.Next()
}

func (s *Server) authorized(c *gin.Context) bool {
	if !s.authEnabled {
		return true
	}
	cookie, err := c.Cookie(sessionCookie)
	return err == nil && cookie == sessionValue && s.loggedIn
}

func (s *Server) requireSession(c *gin.Context) {
	s.mu.Lock()
	ok := s.authorized(c)
	s.mu.Unlock()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func (s *Server) requireCSRF(c *gin.Context) {
	token := c.GetHeader(adminapi.CSRFHeader)
	s.mu.Lock()
	s.lastCSRF = token
	enforced := s.authEnabled
	s.mu.Unlock()
	if enforced && token != csrfToken {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "csrf"})
		return
	}
	c.Next()
}

func (s *Server) handleSession(c *gin.Context) {
	s.mu.Lock()
	ok := s.authorized(c)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, adminapi.SessionState{})
		return
	}
	c.JSON(http.StatusOK, adminapi.SessionState{Authenticated: true, CSRFToken: csrfToken})
}

func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.authEnabled && body.APIKey != s.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_key"})
		return
	}
	s.loggedIn = true
	c.SetCookie(sessionCookie, sessionValue, 3600, "/", "", false, true)
	c.JSON(http.StatusOK, adminapi.SessionState{Authenticated: true, CSRFToken: csrfToken})
}

func (s *Server) handleLogout(c *gin.Context) {
	s.mu.Lock()
	s.loggedIn = false
	s.mu.Unlock()
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"status": "logged_out"})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.config)
}

func (s *Server) handleUpdateConfig(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPatch = patch
	for key, value := range patch {
		nested, isObject := value.(map[string]any)
		current, hasObject := s.config[key].(map[string]any)
		if isObject && hasObject {
			for k, v := range nested {
				current[k] = v
			}
			continue
		}
		s.config[key] = value
	}
	c.JSON(http.StatusOK, adminapi.SaveResult{Status: "updated", Config: adminapi.Config(s.config)})
}

func (s *Server) handleAnalytics(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload := s.analytics
	payload.BanCount = adminapi.Count(len(s.bans))
	c.JSON(http.StatusOK, payload)
}

func (s *Server) handleEvents(c *gin.Context) {
	if _, err := strconv.Atoi(c.DefaultQuery("hours", "24")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_hours"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.events)
}

func (s *Server) handleGetBans(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, adminapi.Bans{Bans: s.bans})
}

func (s *Server) handleBan(c *gin.Context) {
	var body struct {
		IP       string `json:"ip"`
		Duration int64  `json:"duration"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.IP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_ban"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.bans = append(s.bans, adminapi.Ban{
		IP:       body.IP,
		Reason:   "manual_ban",
		BannedAt: now.Unix(),
		Expires:  now.Unix() + body.Duration,
	})
	c.JSON(http.StatusOK, gin.H{"status": "banned", "ip": body.IP})
}

func (s *Server) handleUnban(c *gin.Context) {
	ip := c.Query("ip")
	if ip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_ip"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.bans[:0]
	for _, ban := range s.bans {
		if ban.IP != ip {
			kept = append(kept, ban)
		}
	}
	s.bans = kept
	c.String(http.StatusOK, "Unbanned")
}

func (s *Server) handleMaze(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.maze)
}

func (s *Server) handleCDP(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.cdp)
}

func (s *Server) handleCDPEvents(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.cdpEvents)
}

func (s *Server) handleMonitoring(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, s.monitoring)
}
