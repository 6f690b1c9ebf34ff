package ws

import "github.com/gosuda/pagecap/internal/domain"

// Directive message types pushed daemon → frame.
const (
	TypeStart       = "start"
	TypeStop        = "stop"
	TypeUpdateCount = "updateCount"
	TypeAutoStopped = "autoStopped"
	TypeBadge       = "badge"
	TypeState       = "state"
)

// Frame message types read frame → daemon.
const (
	TypeEntry = "entry"
	TypeQuery = "query"
)

// DirectiveMessage is the envelope pushed to connected frames. Exactly one
// payload field is set, matching Type.
type DirectiveMessage struct {
	Type        string                       `json:"type"`
	Start       *domain.StartDirective       `json:"start,omitempty"`
	UpdateCount *domain.UpdateCountDirective `json:"update_count,omitempty"`
	AutoStopped *domain.AutoStoppedDirective `json:"auto_stopped,omitempty"`
	Recording   *bool                        `json:"recording,omitempty"`
	State       *domain.TabSessionState      `json:"state,omitempty"`
}

// FrameMessage is the envelope read from a frame connection.
type FrameMessage struct {
	Type  string               `json:"type"`
	Entry *domain.CaptureEntry `json:"entry,omitempty"`
}
