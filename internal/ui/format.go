package ui

import (
	"fmt"
	"strings"
	"time"

	humanize "github.com/dustin/go-humanize"
)

// ago renders t relative to now, e.g. "3 minutes ago".
func ago(t, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if now.Sub(t) < time.Second {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// remaining renders the time left until t, e.g. "2 hours left".
func remaining(t, now time.Time) string {
	if !t.After(now) {
		return "expired"
	}
	return humanize.RelTime(now, t, "left", "ago")
}

func count(n int64) string {
	return humanize.Comma(n)
}

// formatSeconds renders a ban length compactly: 90 -> 1m30s, 86400 -> 24h0m0s.
func formatSeconds(seconds int) string {
	if seconds <= 0 {
		return "0s"
	}
	return (time.Duration(seconds) * time.Second).String()
}

// truncate shortens s to width runes with a trailing ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}

// padRight pads s with spaces to width runes.
func padRight(s string, width int) string {
	n := len([]rune(s))
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func blocked(v bool) string {
	if v {
		return "blocked"
	}
	return "allowed"
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
