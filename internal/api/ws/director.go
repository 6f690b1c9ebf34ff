package ws

import (
	"context"
	"errors"

	"github.com/gosuda/pagecap/internal/domain"
)

// ErrNoFrames is returned when a directive targets a tab with no connected
// frames.
var ErrNoFrames = errors.New("ws: no frames connected for tab")

// The Hub implements capture.FrameDirector by broadcasting directives to
// every connected frame of the target tab.

// SendStart tells the tab's frames to begin watching.
func (h *Hub) SendStart(ctx context.Context, tabID int, d domain.StartDirective) error {
	return h.broadcast(ctx, tabID, DirectiveMessage{Type: TypeStart, Start: &d})
}

// SendStop tells the tab's frames to tear down.
func (h *Hub) SendStop(ctx context.Context, tabID int) error {
	return h.broadcast(ctx, tabID, DirectiveMessage{Type: TypeStop})
}

// SendUpdateCount pushes the current entry count for the on-page indicator.
func (h *Hub) SendUpdateCount(ctx context.Context, tabID, count int) error {
	d := domain.UpdateCountDirective{Count: count}
	return h.broadcast(ctx, tabID, DirectiveMessage{Type: TypeUpdateCount, UpdateCount: &d})
}

// SendAutoStopped carries the auto-stop reason so the frame can surface it
// before tearing down.
func (h *Hub) SendAutoStopped(ctx context.Context, tabID int, reason string) error {
	d := domain.AutoStoppedDirective{Reason: reason}
	return h.broadcast(ctx, tabID, DirectiveMessage{Type: TypeAutoStopped, AutoStopped: &d})
}

// SetBadge toggles the tab's recording affordance; the extension glue
// listening on the frame channel applies it.
func (h *Hub) SetBadge(ctx context.Context, tabID int, recording bool) error {
	return h.broadcast(ctx, tabID, DirectiveMessage{Type: TypeBadge, Recording: &recording})
}
