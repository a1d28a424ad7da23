package adminapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	require.NoError(t, err)
	require.Equal(t, "http", u.Scheme)
	require.Equal(t, "127.0.0.1:3000", u.Host)

	u, err = parseBaseURL("https://shuma.example.com:8443/admin?x=1#frag")
	require.NoError(t, err)
	require.Equal(t, "https://shuma.example.com:8443", u.String())

	_, err = parseBaseURL("http://")
	require.Error(t, err)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(server.URL, WithTimeout(2*time.Second))
	require.NoError(t, err)
	return c
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_ReadEndpointsDecodeAndEncodeQueries(t *testing.T) {
	queries := map[string]url.Values{}
	var gotUserAgent, gotRequestID string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotRequestID = r.Header.Get(RequestIDHeader)
		queries[r.URL.Path] = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/admin/config":
			_, _ = io.WriteString(w, `{"maze_enabled":true,"maze_auto_ban_threshold":75}`)
		case "/admin/analytics":
			_, _ = io.WriteString(w, `{"ban_count":"7","test_mode":true,"fail_mode":"open"}`)
		case "/admin/events":
			_, _ = io.WriteString(w, `{"recent_events":null,"top_ips":[["10.0.0.1","4"]]}`)
		case "/admin/ban":
			_, _ = io.WriteString(w, `{"bans":[{"ip":"10.0.0.2","reason":"honeypot","expires":1700000000}]}`)
		case "/admin/maze":
			_, _ = io.WriteString(w, `{"total_hits":12.0,"unique_crawlers":"3"}`)
		case "/admin/cdp":
			_, _ = io.WriteString(w, `{"stats":{"total_detections":5,"auto_bans":1}}`)
		case "/admin/cdp/events":
			_, _ = io.WriteString(w, `{}`)
		case "/admin/monitoring":
			_, _ = io.WriteString(w, `{"summary":{"requests":10}}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := testContext(t)

	cfg, err := c.GetConfig(ctx)
	require.NoError(t, err)
	require.True(t, cfg.Bool("maze_enabled", false))
	require.Equal(t, 75, cfg.Int("maze_auto_ban_threshold", 0))

	analytics, err := c.GetAnalytics(ctx)
	require.NoError(t, err)
	require.Equal(t, Count(7), analytics.BanCount)
	require.True(t, analytics.TestMode)

	events, err := c.GetEvents(ctx, 24)
	require.NoError(t, err)
	require.NotNil(t, events.RecentEvents)
	require.Empty(t, events.RecentEvents)
	require.Equal(t, []IPCount{{IP: "10.0.0.1", Count: 4}}, events.TopIPs)
	require.Equal(t, "24", queries["/admin/events"].Get("hours"))

	bans, err := c.GetBans(ctx)
	require.NoError(t, err)
	require.Len(t, bans.Bans, 1)
	require.Equal(t, "honeypot", bans.Bans[0].Reason)

	maze, err := c.GetMaze(ctx)
	require.NoError(t, err)
	require.Equal(t, Count(12), maze.TotalHits)
	require.Equal(t, Count(3), maze.UniqueCrawlers)
	require.NotNil(t, maze.TopCrawlers)

	cdp, err := c.GetCDP(ctx)
	require.NoError(t, err)
	require.Equal(t, Count(5), cdp.Stats.TotalDetections)

	cdpEvents, err := c.GetCDPEvents(ctx, 24, 500)
	require.NoError(t, err)
	require.NotNil(t, cdpEvents.Events)
	require.Equal(t, "500", queries["/admin/cdp/events"].Get("limit"))

	mon, err := c.GetMonitoring(ctx, 24, 10)
	require.NoError(t, err)
	require.EqualValues(t, 10, mon.Summary["requests"])
	require.Equal(t, "10", queries["/admin/monitoring"].Get("limit"))

	require.Equal(t, defaultUserAgent, gotUserAgent)
	require.NotEmpty(t, gotRequestID)
}

func TestClient_WritesCarryCSRFAndBody(t *testing.T) {
	var gotCSRF []string
	var banBody map[string]any
	var unbanIP string
	var patch map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			gotCSRF = append(gotCSRF, r.Header.Get(CSRFHeader))
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/admin/config":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&patch))
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"status":"updated","config":{"maze_auto_ban_threshold":80}}`)
		case r.Method == http.MethodPost && r.URL.Path == "/admin/ban":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&banBody))
			_, _ = io.WriteString(w, `{"status":"banned"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/admin/unban":
			unbanIP = r.URL.Query().Get("ip")
			_, _ = io.WriteString(w, "Unbanned")
		default:
			http.NotFound(w, r)
		}
	})
	c.SetCSRFToken("tok-1")
	ctx := testContext(t)

	result, err := c.UpdateConfig(ctx, ConfigPatch{"maze_auto_ban_threshold": 80})
	require.NoError(t, err)
	require.Equal(t, "updated", result.Status)
	require.Equal(t, 80, result.Config.Int("maze_auto_ban_threshold", 0))
	require.EqualValues(t, 80, patch["maze_auto_ban_threshold"])

	require.NoError(t, c.BanIP(ctx, "10.0.0.9", 3600))
	require.Equal(t, "10.0.0.9", banBody["ip"])
	require.EqualValues(t, 3600, banBody["duration"])

	require.NoError(t, c.UnbanIP(ctx, "10.0.0.9"))
	require.Equal(t, "10.0.0.9", unbanIP)

	require.Equal(t, []string{"tok-1", "tok-1", "tok-1"}, gotCSRF)

	require.Error(t, c.BanIP(ctx, " ", 60))
	require.Error(t, c.UnbanIP(ctx, ""))
}

func TestClient_SessionCookieRoundTrip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/admin/login":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["api_key"] != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"error":"bad key"}`)
				return
			}
			http.SetCookie(w, &http.Cookie{Name: "shuma_admin_session", Value: "s1", Path: "/"})
			_, _ = io.WriteString(w, `{"authenticated":true,"csrf_token":"c1"}`)
		case "/admin/session":
			if cookie, err := r.Cookie("shuma_admin_session"); err == nil && cookie.Value == "s1" {
				_, _ = io.WriteString(w, `{"authenticated":true,"csrf_token":"c1"}`)
				return
			}
			_, _ = io.WriteString(w, `{"authenticated":false}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := testContext(t)

	state, err := c.Session(ctx)
	require.NoError(t, err)
	require.False(t, state.Authenticated)

	_, err = c.Login(ctx, "wrong")
	require.True(t, IsUnauthorized(err))

	state, err = c.Login(ctx, "secret")
	require.NoError(t, err)
	require.Equal(t, "c1", state.CSRFToken)

	state, err = c.Session(ctx)
	require.NoError(t, err)
	require.True(t, state.Authenticated)
}

func TestClient_StatusErrorCarriesBodySnippet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "config store unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.GetConfig(testContext(t))
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	require.Equal(t, "/admin/config", statusErr.Path)
	require.Contains(t, err.Error(), "config store unavailable")
	require.False(t, IsUnauthorized(err))
}

func TestClient_MalformedJSONIsDecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"bans":`)
	})

	_, err := c.GetBans(testContext(t))
	require.ErrorContains(t, err, "decode response")
}
