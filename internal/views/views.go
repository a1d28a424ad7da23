// Package views tracks the load, error, empty and staleness status of each
// console view and resolves write scopes to the views they invalidate.
package views

import "strings"

// View names one console tab. The set is closed; see All.
type View string

const (
	Monitoring View = "monitoring"
	IPBans     View = "ip-bans"
	Status     View = "status"
	Config     View = "config"
	Tuning     View = "tuning"
)

// Default is the view shown when none (or an unknown one) is requested.
const Default = Monitoring

var all = []View{Monitoring, IPBans, Status, Config, Tuning}

// All returns every view in display order.
func All() []View {
	out := make([]View, len(all))
	copy(out, all)
	return out
}

// Valid reports whether v is one of the known views.
func (v View) Valid() bool {
	for _, known := range all {
		if v == known {
			return true
		}
	}
	return false
}

// Label returns the tab caption.
func (v View) Label() string {
	switch v {
	case Monitoring:
		return "Monitoring"
	case IPBans:
		return "IP Bans"
	case Status:
		return "Status"
	case Config:
		return "Config"
	case Tuning:
		return "Tuning"
	default:
		return string(v)
	}
}

// Normalize maps free-form input to a known view, falling back to Default.
func Normalize(raw string) View {
	v := View(strings.ToLower(strings.TrimSpace(raw)))
	if v.Valid() {
		return v
	}
	return Default
}
