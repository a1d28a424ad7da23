package adminapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Count decodes a JSON number or numeric string. Sparse or malformed values
// decode as zero.
type Count int64

// UnmarshalJSON accepts 3, 3.0, "3" and null.
func (c *Count) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = 0
		return nil
	}
	text := string(trimmed)
	if unquoted, err := strconv.Unquote(text); err == nil {
		text = strings.TrimSpace(unquoted)
	}
	if text == "" {
		*c = 0
		return nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*c = Count(n)
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		*c = Count(f)
		return nil
	}
	*c = 0
	return nil
}

// Config is the server's full configuration document. Its schema belongs to
// the server, so it stays generic; package sections reads typed views of it.
type Config map[string]any

// Bool reads a boolean field, accepting "true"/"false" strings.
func (c Config) Bool(key string, fallback bool) bool {
	switch v := c[key].(type) {
	case bool:
		return v
	case string:
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return parsed
		}
	}
	return fallback
}

// Int reads an integer field, accepting numbers and numeric strings.
func (c Config) Int(key string, fallback int) int {
	switch v := c[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// Float reads a floating point field.
func (c Config) Float(key string, fallback float64) float64 {
	switch v := c[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// String reads a string field.
func (c Config) String(key, fallback string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return fallback
}

// Strings reads a list-of-strings field. Non-string elements are skipped.
func (c Config) Strings(key string) []string {
	raw, ok := c[key].([]any)
	if !ok {
		if typed, ok := c[key].([]string); ok {
			out := make([]string, len(typed))
			copy(out, typed)
			return out
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Object reads a nested object field.
func (c Config) Object(key string) Config {
	if v, ok := c[key].(map[string]any); ok {
		return Config(v)
	}
	if v, ok := c[key].(Config); ok {
		return v
	}
	return Config{}
}

// ConfigPatch is a partial configuration update for POST /admin/config.
type ConfigPatch map[string]any

// SaveResult mirrors the POST /admin/config response.
type SaveResult struct {
	Status string `json:"status"`
	Config Config `json:"config"`
}

// Analytics mirrors /admin/analytics.
type Analytics struct {
	BanCount Count  `json:"ban_count"`
	TestMode bool   `json:"test_mode"`
	FailMode string `json:"fail_mode"`
}

// Event is one entry of the admin event log.
type Event struct {
	TS      int64  `json:"ts"`
	Event   string `json:"event"`
	IP      string `json:"ip,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Outcome string `json:"outcome,omitempty"`
	Admin   string `json:"admin,omitempty"`
}

// Time converts the unix timestamp.
func (e Event) Time() time.Time {
	if e.TS <= 0 {
		return time.Time{}
	}
	return time.Unix(e.TS, 0)
}

// IPCount is one [ip, count] pair from the top_ips list.
type IPCount struct {
	IP    string
	Count int64
}

// UnmarshalJSON decodes a two-element array whose count may be a string.
func (p *IPCount) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode ip count: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode ip count: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.IP); err != nil {
		return fmt.Errorf("decode ip count ip: %w", err)
	}
	var n Count
	if err := n.UnmarshalJSON(pair[1]); err != nil {
		return err
	}
	p.Count = int64(n)
	return nil
}

// MarshalJSON writes the pair form back.
func (p IPCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.IP, p.Count})
}

// Events mirrors /admin/events.
type Events struct {
	RecentEvents []Event          `json:"recent_events"`
	EventCounts  map[string]int64 `json:"event_counts"`
	TopIPs       []IPCount        `json:"top_ips"`
}

// Fingerprint lists detection signals attached to a ban.
type Fingerprint struct {
	Signals []string `json:"signals"`
}

// Ban is one active ban.
type Ban struct {
	IP          string       `json:"ip"`
	Reason      string       `json:"reason"`
	BannedAt    int64        `json:"banned_at,omitempty"`
	Expires     int64        `json:"expires"`
	Fingerprint *Fingerprint `json:"fingerprint,omitempty"`
}

// ExpiresAt converts the unix expiry.
func (b Ban) ExpiresAt() time.Time {
	return time.Unix(b.Expires, 0)
}

// Expired reports whether the ban has lapsed at now.
func (b Ban) Expired(now time.Time) bool {
	return b.Expires < now.Unix()
}

// Bans mirrors GET /admin/ban.
type Bans struct {
	Bans []Ban `json:"bans"`
}

// Crawler is one maze visitor.
type Crawler struct {
	IP   string `json:"ip"`
	Hits Count  `json:"hits"`
}

// Maze mirrors /admin/maze.
type Maze struct {
	TotalHits      Count     `json:"total_hits"`
	UniqueCrawlers Count     `json:"unique_crawlers"`
	AutoBans       Count     `json:"maze_auto_bans"`
	TopCrawlers    []Crawler `json:"top_crawlers"`
}

// CDPStats holds automation-detection totals.
type CDPStats struct {
	TotalDetections Count `json:"total_detections"`
	AutoBans        Count `json:"auto_bans"`
}

// CDP mirrors /admin/cdp.
type CDP struct {
	Stats            CDPStats         `json:"stats"`
	FingerprintStats map[string]Count `json:"fingerprint_stats"`
}

// CDPEvents mirrors /admin/cdp/events.
type CDPEvents struct {
	Events []Event `json:"events"`
}

// Monitoring mirrors /admin/monitoring.
type Monitoring struct {
	Summary    map[string]any `json:"summary"`
	Prometheus map[string]any `json:"prometheus"`
}

// SessionState mirrors GET /admin/session.
type SessionState struct {
	Authenticated bool   `json:"authenticated"`
	CSRFToken     string `json:"csrf_token"`
}

// AdaptEvents normalizes a sparse events payload: nil lists become empty.
func AdaptEvents(e Events) Events {
	if e.RecentEvents == nil {
		e.RecentEvents = []Event{}
	}
	if e.TopIPs == nil {
		e.TopIPs = []IPCount{}
	}
	if e.EventCounts == nil {
		e.EventCounts = map[string]int64{}
	}
	return e
}

// AdaptMaze normalizes a sparse maze payload.
func AdaptMaze(m Maze) Maze {
	if m.TopCrawlers == nil {
		m.TopCrawlers = []Crawler{}
	}
	return m
}

// AdaptBans normalizes a sparse bans payload.
func AdaptBans(b Bans) Bans {
	if b.Bans == nil {
		b.Bans = []Ban{}
	}
	return b
}

// AdaptCDPEvents normalizes a sparse CDP events payload.
func AdaptCDPEvents(e CDPEvents) CDPEvents {
	if e.Events == nil {
		e.Events = []Event{}
	}
	return e
}
