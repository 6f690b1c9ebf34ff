package domain

import "time"

// StartDirective tells a frame to begin watching. It carries the session's
// start time so all frames share one clock, and the current entry count so a
// frame that reloaded mid-session can resynchronize its display.
type StartDirective struct {
	StartTime  time.Time `json:"start_time"`
	EntryCount int       `json:"entry_count"`
}

// UpdateCountDirective pushes the session's current entry count to the
// active tab so the on-page indicator can update. Best-effort.
type UpdateCountDirective struct {
	Count int `json:"count"`
}

// AutoStoppedDirective tells the frame the aggregator ended the session on
// its own, carrying a human-readable reason to surface before teardown.
type AutoStoppedDirective struct {
	Reason string `json:"reason"`
}

// FlashSignal is the cross-frame relay message: "activity occurred in a
// nested frame". Depth starts at 1 and is incremented at every hop; signals
// past the relay's maximum depth are dropped.
type FlashSignal struct {
	Depth int `json:"depth"`
}

// SessionState is the answer to a "get current state" query.
type SessionState struct {
	IsCapturing bool      `json:"is_capturing"`
	StartTime   time.Time `json:"start_time,omitzero"`
	EntryCount  int       `json:"entry_count"`
}

// TabSessionState is the tab-scoped state variant: it additionally reports
// whether the querying tab is the one actively bound to the session.
type TabSessionState struct {
	SessionState
	IsActiveTab bool `json:"is_active_tab"`
}
