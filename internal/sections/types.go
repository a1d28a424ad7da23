package sections

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/views"
)

// Maze controls the crawler maze and its auto-ban threshold.
type Maze struct {
	Enabled   bool `json:"enabled"`
	AutoBan   bool `json:"autoBan"`
	Threshold int  `json:"threshold"`
}

func (Maze) Key() draft.Section { return KeyMaze }
func (Maze) Scope() views.Scope { return views.ScopeSecurityConfig }

func (m Maze) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"maze_enabled":            m.Enabled,
		"maze_auto_ban":           m.AutoBan,
		"maze_auto_ban_threshold": m.Threshold,
	}
}

func (m Maze) Validate() error {
	return checkRange(KeyMaze, "threshold", m.Threshold, 5, 500)
}

// Ban duration bounds in seconds.
const (
	MinBanSeconds = 60
	MaxBanSeconds = 31536000
)

// BanDurations holds per-reason ban lengths in seconds.
type BanDurations struct {
	Honeypot  int `json:"honeypot"`
	RateLimit int `json:"rateLimit"`
	Browser   int `json:"browser"`
	CDP       int `json:"cdp"`
	Admin     int `json:"admin"`
}

func (BanDurations) Key() draft.Section { return KeyBanDurations }
func (BanDurations) Scope() views.Scope { return views.ScopeSecurityConfig }

func (b BanDurations) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"ban_durations": map[string]any{
			"honeypot":   b.Honeypot,
			"rate_limit": b.RateLimit,
			"browser":    b.Browser,
			"cdp":        b.CDP,
			"admin":      b.Admin,
		},
	}
}

func (b BanDurations) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"honeypot", b.Honeypot},
		{"rateLimit", b.RateLimit},
		{"browser", b.Browser},
		{"cdp", b.CDP},
		{"admin", b.Admin},
	}
	for _, f := range fields {
		if err := checkRange(KeyBanDurations, f.name, f.value, MinBanSeconds, MaxBanSeconds); err != nil {
			return err
		}
	}
	return nil
}

// RateLimit is the per-IP request threshold. It feeds every view.
type RateLimit struct {
	Value int `json:"value"`
}

func (RateLimit) Key() draft.Section { return KeyRateLimit }
func (RateLimit) Scope() views.Scope { return views.ScopeAll }

func (r RateLimit) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{"rate_limit": r.Value}
}

func (r RateLimit) Validate() error {
	return checkRange(KeyRateLimit, "value", r.Value, 1, 1000000)
}

// JSRequired toggles the JavaScript verification gate.
type JSRequired struct {
	Enforced bool `json:"enforced"`
}

func (JSRequired) Key() draft.Section { return KeyJSRequired }
func (JSRequired) Scope() views.Scope { return views.ScopeSecurityConfig }

func (j JSRequired) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{"js_required_enforced": j.Enforced}
}

func (JSRequired) Validate() error { return nil }

// Robots controls robots.txt serving.
type Robots struct {
	Enabled    bool `json:"enabled"`
	CrawlDelay int  `json:"crawlDelay"`
}

func (Robots) Key() draft.Section { return KeyRobots }
func (Robots) Scope() views.Scope { return views.ScopeSecurityConfig }

func (r Robots) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"robots_enabled":     r.Enabled,
		"robots_crawl_delay": r.CrawlDelay,
	}
}

func (r Robots) Validate() error {
	return checkRange(KeyRobots, "crawlDelay", r.CrawlDelay, 0, 60)
}

// CDP controls automation detection.
type CDP struct {
	Enabled   bool    `json:"enabled"`
	AutoBan   bool    `json:"autoBan"`
	Threshold float64 `json:"threshold"`
}

func (CDP) Key() draft.Section { return KeyCDP }
func (CDP) Scope() views.Scope { return views.ScopeSecurityConfig }

func (c CDP) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"cdp_detection_enabled":   c.Enabled,
		"cdp_auto_ban":            c.AutoBan,
		"cdp_detection_threshold": c.Threshold,
	}
}

func (c CDP) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return &ValidationError{
			Section: KeyCDP,
			Field:   "threshold",
			Reason:  fmt.Sprintf("must be in (0, 1], got %g", c.Threshold),
		}
	}
	return nil
}

// PoW controls the proof-of-work challenge.
type PoW struct {
	Enabled    bool `json:"enabled"`
	Difficulty int  `json:"difficulty"`
	TTL        int  `json:"ttl"`
	Mutable    bool `json:"mutable"`
}

func (PoW) Key() draft.Section { return KeyPoW }
func (PoW) Scope() views.Scope { return views.ScopeSecurityConfig }

func (p PoW) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"pow_enabled":     p.Enabled,
		"pow_difficulty":  p.Difficulty,
		"pow_ttl_seconds": p.TTL,
	}
}

func (p PoW) Validate() error {
	if !p.Mutable {
		return &ValidationError{Section: KeyPoW, Err: ErrReadOnly}
	}
	if err := checkRange(KeyPoW, "difficulty", p.Difficulty, 12, 20); err != nil {
		return err
	}
	return checkRange(KeyPoW, "ttl", p.TTL, 30, 300)
}

// Honeypot controls trap paths. Values holds one path per line.
type Honeypot struct {
	Enabled bool   `json:"enabled"`
	Values  string `json:"values"`
}

func (Honeypot) Key() draft.Section { return KeyHoneypot }
func (Honeypot) Scope() views.Scope { return views.ScopeSecurityConfig }

// Paths splits Values on newlines and commas.
func (h Honeypot) Paths() []string {
	return SplitList(h.Values)
}

func (h Honeypot) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"honeypot_enabled": h.Enabled,
		"honeypots":        h.Paths(),
	}
}

func (h Honeypot) Validate() error {
	for _, path := range h.Paths() {
		if !strings.HasPrefix(path, "/") {
			return &ValidationError{
				Section: KeyHoneypot,
				Field:   "values",
				Reason:  fmt.Sprintf("path %q must start with /", path),
			}
		}
	}
	return nil
}

// Geo holds comma-separated country code lists per routing tier.
type Geo struct {
	Risk      string `json:"risk"`
	Allow     string `json:"allow"`
	Challenge string `json:"challenge"`
	Maze      string `json:"maze"`
	Block     string `json:"block"`
	Mutable   bool   `json:"mutable"`
}

func (Geo) Key() draft.Section { return KeyGeo }
func (Geo) Scope() views.Scope { return views.ScopeSecurityConfig }

func (g Geo) tiers() []struct {
	field string
	key   string
	raw   string
} {
	return []struct {
		field string
		key   string
		raw   string
	}{
		{"risk", "geo_risk", g.Risk},
		{"allow", "geo_allow", g.Allow},
		{"challenge", "geo_challenge", g.Challenge},
		{"maze", "geo_maze", g.Maze},
		{"block", "geo_block", g.Block},
	}
}

func (g Geo) Patch() adminapi.ConfigPatch {
	patch := adminapi.ConfigPatch{}
	for _, tier := range g.tiers() {
		codes, _ := ParseCountryCodes(tier.raw)
		patch[tier.key] = codes
	}
	return patch
}

func (g Geo) Validate() error {
	if !g.Mutable {
		return &ValidationError{Section: KeyGeo, Err: ErrReadOnly}
	}
	for _, tier := range g.tiers() {
		if _, err := ParseCountryCodes(tier.raw); err != nil {
			return &ValidationError{Section: KeyGeo, Field: tier.field, Reason: err.Error()}
		}
	}
	return nil
}

// Edge integration modes.
const (
	EdgeModeOff           = "off"
	EdgeModeAdvisory      = "advisory"
	EdgeModeAuthoritative = "authoritative"
)

// EdgeMode selects how the edge integration participates in decisions.
type EdgeMode struct {
	Mode string `json:"mode"`
}

func (EdgeMode) Key() draft.Section { return KeyEdgeMode }
func (EdgeMode) Scope() views.Scope { return views.ScopeAll }

func (e EdgeMode) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{"edge_integration_mode": e.Mode}
}

func (e EdgeMode) Validate() error {
	switch e.Mode {
	case EdgeModeOff, EdgeModeAdvisory, EdgeModeAuthoritative:
		return nil
	}
	return &ValidationError{
		Section: KeyEdgeMode,
		Field:   "mode",
		Reason:  fmt.Sprintf("unknown mode %q", e.Mode),
	}
}

// NormalizeEdgeMode lowercases raw and maps unknown modes to off.
func NormalizeEdgeMode(raw string) string {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case EdgeModeAdvisory, EdgeModeAuthoritative:
		return mode
	}
	return EdgeModeOff
}

// ParseCountryCodes parses a comma or whitespace separated list of ISO
// 3166-1 alpha-2 codes. Codes are uppercased, deduplicated and sorted.
func ParseCountryCodes(raw string) ([]string, error) {
	seen := map[string]bool{}
	codes := []string{}
	for _, item := range SplitList(raw) {
		code := strings.ToUpper(item)
		if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
			return nil, fmt.Errorf("invalid country code %q", item)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// JoinCountryCodes formats codes the way Geo stores them.
func JoinCountryCodes(codes []string) string {
	normalized, err := ParseCountryCodes(strings.Join(codes, ","))
	if err != nil {
		return strings.Join(codes, ",")
	}
	return strings.Join(normalized, ",")
}

// SplitList splits a comma, space or newline separated list.
func SplitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// AIPolicy steers how robots.txt treats AI crawlers.
type AIPolicy struct {
	BlockTraining      bool `json:"blockTraining"`
	BlockSearch        bool `json:"blockSearch"`
	AllowSearchEngines bool `json:"allowSearchEngines"`
}

func (AIPolicy) Key() draft.Section { return KeyAIPolicy }
func (AIPolicy) Scope() views.Scope { return views.ScopeSecurityConfig }

func (a AIPolicy) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"ai_policy_block_training":       a.BlockTraining,
		"ai_policy_block_search":         a.BlockSearch,
		"ai_policy_allow_search_engines": a.AllowSearchEngines,
	}
}

func (AIPolicy) Validate() error { return nil }

// Allowlists holds the networks and paths that bypass every defence. Each
// field holds one entry per line.
type Allowlists struct {
	Network string `json:"network"`
	Path    string `json:"path"`
}

func (Allowlists) Key() draft.Section { return KeyAllowlists }
func (Allowlists) Scope() views.Scope { return views.ScopeSecurityConfig }

// Networks splits Network on newlines and commas.
func (a Allowlists) Networks() []string {
	return SplitList(a.Network)
}

// Paths splits Path on newlines and commas.
func (a Allowlists) Paths() []string {
	return SplitList(a.Path)
}

func (a Allowlists) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"whitelist":      a.Networks(),
		"path_whitelist": a.Paths(),
	}
}

func (a Allowlists) Validate() error {
	for _, entry := range a.Networks() {
		if _, err := netip.ParsePrefix(entry); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(entry); err != nil {
			return &ValidationError{
				Section: KeyAllowlists,
				Field:   "network",
				Reason:  fmt.Sprintf("%q is not an IP address or CIDR range", entry),
			}
		}
	}
	for _, path := range a.Paths() {
		if !strings.HasPrefix(path, "/") {
			return &ValidationError{
				Section: KeyAllowlists,
				Field:   "path",
				Reason:  fmt.Sprintf("path %q must start with /", path),
			}
		}
	}
	return nil
}

// ChallengePuzzle controls the interactive challenge served to suspect
// clients.
type ChallengePuzzle struct {
	Enabled        bool `json:"enabled"`
	TransformCount int  `json:"count"`
	Mutable        bool `json:"mutable"`
}

func (ChallengePuzzle) Key() draft.Section { return KeyChallengePuzzle }
func (ChallengePuzzle) Scope() views.Scope { return views.ScopeSecurityConfig }

func (c ChallengePuzzle) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"challenge_puzzle_enabled":         c.Enabled,
		"challenge_puzzle_transform_count": c.TransformCount,
	}
}

func (c ChallengePuzzle) Validate() error {
	if !c.Mutable {
		return &ValidationError{Section: KeyChallengePuzzle, Err: ErrReadOnly}
	}
	return checkRange(KeyChallengePuzzle, "count", c.TransformCount, 4, 8)
}

// Botness holds the risk score thresholds and the weight of each scored
// signal.
type Botness struct {
	ChallengeThreshold int  `json:"challengeThreshold"`
	MazeThreshold      int  `json:"mazeThreshold"`
	WeightJSRequired   int  `json:"weightJsRequired"`
	WeightGeoRisk      int  `json:"weightGeoRisk"`
	WeightRateMedium   int  `json:"weightRateMedium"`
	WeightRateHigh     int  `json:"weightRateHigh"`
	Mutable            bool `json:"mutable"`
}

func (Botness) Key() draft.Section { return KeyBotness }
func (Botness) Scope() views.Scope { return views.ScopeSecurityConfig }

func (b Botness) Patch() adminapi.ConfigPatch {
	return adminapi.ConfigPatch{
		"challenge_puzzle_risk_threshold": b.ChallengeThreshold,
		"botness_maze_threshold":          b.MazeThreshold,
		"botness_weights": map[string]any{
			"js_required": b.WeightJSRequired,
			"geo_risk":    b.WeightGeoRisk,
			"rate_medium": b.WeightRateMedium,
			"rate_high":   b.WeightRateHigh,
		},
	}
}

func (b Botness) Validate() error {
	if !b.Mutable {
		return &ValidationError{Section: KeyBotness, Err: ErrReadOnly}
	}
	fields := []struct {
		name   string
		value  int
		lo, hi int
	}{
		{"challengeThreshold", b.ChallengeThreshold, 1, 10},
		{"mazeThreshold", b.MazeThreshold, 1, 10},
		{"weightJsRequired", b.WeightJSRequired, 0, 10},
		{"weightGeoRisk", b.WeightGeoRisk, 0, 10},
		{"weightRateMedium", b.WeightRateMedium, 0, 10},
		{"weightRateHigh", b.WeightRateHigh, 0, 10},
	}
	for _, f := range fields {
		if err := checkRange(KeyBotness, f.name, f.value, f.lo, f.hi); err != nil {
			return err
		}
	}
	return nil
}
