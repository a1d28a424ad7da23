package ui

import "time"

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which tab badges collapse
	// to a single glyph.
	LayoutCompactWidth = 100

	// LayoutWideWidth is the minimum width for side-by-side monitoring panels.
	LayoutWideWidth = 120
)

// Display limits.
const (
	// RecentEventsLimit caps the event rows on the monitoring view.
	RecentEventsLimit = 8

	// TopListLimit caps top offender and crawler rows.
	TopListLimit = 5
)

// Timing constants.
const (
	// ActionTimeout bounds a single refresh, save or ban request issued
	// from a key press.
	ActionTimeout = 15 * time.Second

	// ClockInterval redraws relative timestamps such as "updated 3 minutes ago".
	ClockInterval = 5 * time.Second

	// NoticeTTL is how long a transient footer notice stays visible.
	NoticeTTL = 6 * time.Second
)
