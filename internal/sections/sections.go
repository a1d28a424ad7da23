package sections

import (
	"errors"
	"fmt"
	"strings"

	"github.com/five82/bulwark/internal/adminapi"
	"github.com/five82/bulwark/internal/draft"
	"github.com/five82/bulwark/internal/views"
)

// Section keys.
const (
	KeyMaze         draft.Section = "maze"
	KeyBanDurations draft.Section = "banDurations"
	KeyRateLimit    draft.Section = "rateLimit"
	KeyJSRequired   draft.Section = "jsRequired"
	KeyRobots       draft.Section = "robots"
	KeyCDP          draft.Section = "cdp"
	KeyPoW          draft.Section = "pow"
	KeyHoneypot     draft.Section = "honeypot"
	KeyGeo          draft.Section = "geo"
	KeyEdgeMode     draft.Section = "edgeMode"

	KeyAIPolicy        draft.Section = "aiPolicy"
	KeyAllowlists      draft.Section = "allowlists"
	KeyChallengePuzzle draft.Section = "challengePuzzle"
	KeyBotness         draft.Section = "botness"
)

// Section is one savable configuration unit.
type Section interface {
	Key() draft.Section
	// Patch returns the partial config update that persists the section.
	Patch() adminapi.ConfigPatch
	// Validate runs local bounds checks. It never touches the network.
	Validate() error
	// Scope names the views a successful save invalidates.
	Scope() views.Scope
}

// ErrReadOnly is wrapped by validation errors for sections the server
// refuses to change.
var ErrReadOnly = errors.New("read-only while admin config writes are disabled")

// ValidationError reports a field that failed local checks.
type ValidationError struct {
	Section draft.Section
	Field   string
	Reason  string
	Err     error
}

func (e *ValidationError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Section, reason)
	}
	return fmt.Sprintf("%s.%s: %s", e.Section, e.Field, reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Keys lists every section in display order.
func Keys() []draft.Section {
	return []draft.Section{
		KeyMaze, KeyBanDurations, KeyRateLimit, KeyJSRequired, KeyRobots,
		KeyCDP, KeyPoW, KeyHoneypot, KeyGeo, KeyEdgeMode,
		KeyAIPolicy, KeyAllowlists, KeyChallengePuzzle, KeyBotness,
	}
}

// Defaults returns the values shown before the first config load.
func Defaults() []Section {
	return []Section{
		Maze{Enabled: false, AutoBan: false, Threshold: 50},
		BanDurations{Honeypot: 86400, RateLimit: 3600, Browser: 21600, CDP: 43200, Admin: 21600},
		RateLimit{Value: 80},
		JSRequired{Enforced: true},
		Robots{Enabled: true, CrawlDelay: 2},
		CDP{Enabled: true, AutoBan: true, Threshold: 0.6},
		PoW{Enabled: true, Difficulty: 15, TTL: 90, Mutable: true},
		Honeypot{Enabled: true, Values: "/instaban"},
		Geo{},
		EdgeMode{Mode: EdgeModeOff},
		AIPolicy{BlockTraining: true, BlockSearch: false, AllowSearchEngines: true},
		Allowlists{},
		ChallengePuzzle{Enabled: true, TransformCount: 6, Mutable: true},
		Botness{
			ChallengeThreshold: 3, MazeThreshold: 6,
			WeightJSRequired: 1, WeightGeoRisk: 2, WeightRateMedium: 1, WeightRateHigh: 2,
			Mutable: true,
		},
	}
}

// Default returns the default value of key, or nil for unknown keys.
func Default(key draft.Section) Section {
	for _, s := range Defaults() {
		if s.Key() == key {
			return s
		}
	}
	return nil
}

// DraftDefaults returns Defaults keyed for draft.NewStore.
func DraftDefaults() map[draft.Section]any {
	out := make(map[draft.Section]any)
	for _, s := range Defaults() {
		out[s.Key()] = s
	}
	return out
}

// FromConfig reads every section out of a server config. Missing keys take
// the section's default.
func FromConfig(cfg adminapi.Config) []Section {
	def := Defaults()
	maze := def[0].(Maze)
	bans := def[1].(BanDurations)
	rate := def[2].(RateLimit)
	js := def[3].(JSRequired)
	robots := def[4].(Robots)
	cdp := def[5].(CDP)
	pow := def[6].(PoW)
	honeypot := def[7].(Honeypot)
	edge := def[9].(EdgeMode)
	ai := def[10].(AIPolicy)
	puzzle := def[12].(ChallengePuzzle)
	botness := def[13].(Botness)

	durations := cfg.Object("ban_durations")
	weights := cfg.Object("botness_weights")
	writable := cfg.Bool("admin_config_write_enabled", false)

	return []Section{
		Maze{
			Enabled:   cfg.Bool("maze_enabled", maze.Enabled),
			AutoBan:   cfg.Bool("maze_auto_ban", maze.AutoBan),
			Threshold: cfg.Int("maze_auto_ban_threshold", maze.Threshold),
		},
		BanDurations{
			Honeypot:  positiveOr(durations.Int("honeypot", 0), bans.Honeypot),
			RateLimit: positiveOr(durations.Int("rate_limit", 0), bans.RateLimit),
			Browser:   positiveOr(durations.Int("browser", 0), bans.Browser),
			CDP:       positiveOr(durations.Int("cdp", 0), bans.CDP),
			Admin:     positiveOr(durations.Int("admin", 0), bans.Admin),
		},
		RateLimit{Value: cfg.Int("rate_limit", rate.Value)},
		JSRequired{Enforced: cfg.Bool("js_required_enforced", js.Enforced)},
		Robots{
			Enabled:    cfg.Bool("robots_enabled", robots.Enabled),
			CrawlDelay: cfg.Int("robots_crawl_delay", robots.CrawlDelay),
		},
		CDP{
			Enabled:   cfg.Bool("cdp_detection_enabled", cdp.Enabled),
			AutoBan:   cfg.Bool("cdp_auto_ban", cdp.AutoBan),
			Threshold: cfg.Float("cdp_detection_threshold", cdp.Threshold),
		},
		PoW{
			Enabled:    cfg.Bool("pow_enabled", pow.Enabled),
			Difficulty: cfg.Int("pow_difficulty", pow.Difficulty),
			TTL:        cfg.Int("pow_ttl_seconds", pow.TTL),
			Mutable:    cfg.Bool("admin_config_write_enabled", pow.Mutable),
		},
		Honeypot{
			Enabled: cfg.Bool("honeypot_enabled", honeypot.Enabled),
			Values:  honeypotValues(cfg, honeypot.Values),
		},
		Geo{
			Risk:      JoinCountryCodes(cfg.Strings("geo_risk")),
			Allow:     JoinCountryCodes(cfg.Strings("geo_allow")),
			Challenge: JoinCountryCodes(cfg.Strings("geo_challenge")),
			Maze:      JoinCountryCodes(cfg.Strings("geo_maze")),
			Block:     JoinCountryCodes(cfg.Strings("geo_block")),
			Mutable:   writable,
		},
		EdgeMode{Mode: NormalizeEdgeMode(cfg.String("edge_integration_mode", edge.Mode))},
		AIPolicy{
			BlockTraining:      legacyBool(cfg, "ai_policy_block_training", "robots_block_ai_training", ai.BlockTraining),
			BlockSearch:        legacyBool(cfg, "ai_policy_block_search", "robots_block_ai_search", ai.BlockSearch),
			AllowSearchEngines: legacyBool(cfg, "ai_policy_allow_search_engines", "robots_allow_search_engines", ai.AllowSearchEngines),
		},
		Allowlists{
			Network: strings.Join(cfg.Strings("whitelist"), "\n"),
			Path:    strings.Join(cfg.Strings("path_whitelist"), "\n"),
		},
		ChallengePuzzle{
			Enabled:        cfg.Bool("challenge_puzzle_enabled", puzzle.Enabled),
			TransformCount: cfg.Int("challenge_puzzle_transform_count", puzzle.TransformCount),
			Mutable:        cfg.Bool("admin_config_write_enabled", puzzle.Mutable),
		},
		Botness{
			ChallengeThreshold: cfg.Int("challenge_puzzle_risk_threshold", botness.ChallengeThreshold),
			MazeThreshold:      cfg.Int("botness_maze_threshold", botness.MazeThreshold),
			WeightJSRequired:   positiveOr(weights.Int("js_required", 0), botness.WeightJSRequired),
			WeightGeoRisk:      positiveOr(weights.Int("geo_risk", 0), botness.WeightGeoRisk),
			WeightRateMedium:   positiveOr(weights.Int("rate_medium", 0), botness.WeightRateMedium),
			WeightRateHigh:     positiveOr(weights.Int("rate_high", 0), botness.WeightRateHigh),
			Mutable:            cfg.Bool("admin_config_write_enabled", botness.Mutable),
		},
	}
}

// legacyBool reads key, falling back to the older name of the same setting.
func legacyBool(cfg adminapi.Config, key, legacy string, fallback bool) bool {
	if _, ok := cfg[key]; ok {
		return cfg.Bool(key, fallback)
	}
	return cfg.Bool(legacy, fallback)
}

// Find returns the section with key from list, or nil.
func Find(list []Section, key draft.Section) Section {
	for _, s := range list {
		if s.Key() == key {
			return s
		}
	}
	return nil
}

func honeypotValues(cfg adminapi.Config, fallback string) string {
	if _, ok := cfg["honeypots"]; !ok {
		return fallback
	}
	return strings.Join(cfg.Strings("honeypots"), "\n")
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func checkRange(section draft.Section, field string, v, lo, hi int) error {
	if v < lo || v > hi {
		return &ValidationError{
			Section: section,
			Field:   field,
			Reason:  fmt.Sprintf("must be between %d and %d, got %d", lo, hi, v),
		}
	}
	return nil
}
