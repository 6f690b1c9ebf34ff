package v1

import (
	"context"

	"github.com/gosuda/pagecap/internal/domain"
)

// CaptureController abstracts the session aggregator for handler testing.
// *capture.Aggregator satisfies this interface.
type CaptureController interface {
	Start(ctx context.Context, tabID int) error
	Stop(ctx context.Context, manual bool) error
	State() domain.SessionState
	TabState(ctx context.Context, tabID int) (domain.TabSessionState, error)
	CumulativeSize() int64
	TabNavigated(ctx context.Context, tabID int)
	TabClosed(ctx context.Context, tabID int)
}
