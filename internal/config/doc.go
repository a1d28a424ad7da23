// Package config loads the console's TOML configuration.
//
// # Resolution
//
//  1. An explicit path wins.
//  2. Otherwise ~/.config/bulwark/config.toml is read.
//  3. A missing file yields Default().
//  4. Empty or zero fields keep their default.
//
// # Fields
//
//	admin_url        = "https://shuma.example.com"
//	request_timeout  = "10s"
//	log_path         = "~/.local/state/bulwark/bulwark.log"
//	log_level        = "info"
//	events_hours     = 24
//	cdp_events_limit = 500
//	monitoring_limit = 10
//	ban_seconds      = 3600
//
//	[refresh]
//	monitoring = "30s"
//	ip-bans    = "45s"
//
//	[max_age]
//	monitoring = "25s"
//	status     = "0"
//
// The [refresh] table sets the auto-refresh interval per view. The [max_age]
// table lets a scheduled tick refetch a view that was not invalidated once
// its data reaches the given age; "0" turns that off for the view, leaving
// it to refetch only after a write marks it stale.
//
// ban_seconds is the default length of a manual ban and must lie within the
// server's accepted ban range.
//
// Unknown view names and unparsable durations are load errors.
package config
