// Package capture implements the session aggregator: the single
// authoritative owner of recording state. It receives entries from all
// frames of the active tab, deduplicates globally, enforces the size budget,
// and serializes the session on stop.
package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/domain"
	"github.com/gosuda/pagecap/internal/output"
	"github.com/gosuda/pagecap/internal/textfilter"
)

const (
	// DefaultBudget is the maximum approximate total entry cost per session.
	DefaultBudget = 10 << 20 // 10 MB

	// reissueAttempts bounds start-directive retries after the active tab
	// navigates; the schedule spans roughly six seconds.
	reissueAttempts = 10
)

// autoStopReason names the configured budget in the notice surfaced to the
// user, e.g. "capture size limit reached (10 MB)".
func autoStopReason(budget int64) string {
	return fmt.Sprintf("capture size limit reached (%s)", formatBudget(budget))
}

func formatBudget(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%d MB", n/(1<<20))
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%d KB", n/(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}

// FrameDirector pushes directives to the frames of a tab. All sends are
// at-most-once and best-effort; a send error means the frame was unreachable
// and the caller decides whether to retry.
type FrameDirector interface {
	SendStart(ctx context.Context, tabID int, d domain.StartDirective) error
	SendStop(ctx context.Context, tabID int) error
	SendUpdateCount(ctx context.Context, tabID int, count int) error
	SendAutoStopped(ctx context.Context, tabID int, reason string) error
	SetBadge(ctx context.Context, tabID int, recording bool) error
}

// Config tunes an Aggregator.
type Config struct {
	Budget      int64         // 0 means DefaultBudget
	ReissueBase time.Duration // first retry delay after tab navigation; 0 means 150ms
}

// Aggregator owns the session state machine: Stopped → Recording → Stopped,
// at most one active session across all tabs. Submit is serialized by the
// aggregator's lock, so two submissions can never race on the dedup or
// size-limit decision.
type Aggregator struct {
	cfg       Config
	director  FrameDirector
	deliverer output.Deliverer
	now       func() time.Time

	mu          sync.Mutex
	recording   bool
	startTime   time.Time
	entries     []domain.CaptureEntry
	seen        *textfilter.SeenSet
	size        int64
	activeTabID int
	epoch       uint64 // bumped every start/stop to invalidate stale retry loops
}

// New creates a stopped Aggregator.
func New(cfg Config, director FrameDirector, deliverer output.Deliverer) *Aggregator {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	if cfg.ReissueBase <= 0 {
		cfg.ReissueBase = 150 * time.Millisecond
	}
	return &Aggregator{
		cfg:       cfg,
		director:  director,
		deliverer: deliverer,
		now:       time.Now,
		seen:      textfilter.NewSeenSet(),
	}
}

// SetClock overrides the time source; intended for tests.
func (a *Aggregator) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// Start begins a session bound to tabID. No-op (with a sentinel error) when
// a session is already recording — there is at most one across all tabs.
func (a *Aggregator) Start(ctx context.Context, tabID int) error {
	a.mu.Lock()
	if a.recording {
		a.mu.Unlock()
		return fmt.Errorf("capture.Aggregator.Start: %w", domain.ErrAlreadyRecording)
	}

	a.recording = true
	a.startTime = a.now()
	a.entries = nil
	a.seen = textfilter.NewSeenSet()
	a.size = 0
	a.activeTabID = tabID
	a.epoch++
	d := domain.StartDirective{StartTime: a.startTime, EntryCount: 0}
	a.mu.Unlock()

	// Directive delivery failure is tolerated: a frame that is not loaded
	// yet will resynchronize and self-start.
	if err := a.director.SendStart(ctx, tabID, d); err != nil {
		log.Debug().Err(err).Int("tab", tabID).Msg("capture: start directive undeliverable")
	}
	if err := a.director.SetBadge(ctx, tabID, true); err != nil {
		log.Debug().Err(err).Int("tab", tabID).Msg("capture: badge set failed")
	}

	log.Info().Int("tab", tabID).Time("start", d.StartTime).Msg("capture session started")
	return nil
}

// Submit offers one entry from a frame. Entries are accepted only while
// recording and only from the session's tab; anything else is silently
// discarded. A duplicate fingerprint is discarded. An entry whose cost would
// exceed the session budget triggers auto-stop instead of being admitted.
func (a *Aggregator) Submit(ctx context.Context, entry domain.CaptureEntry, fromTabID int) error {
	a.mu.Lock()

	if !a.recording {
		a.mu.Unlock()
		return nil
	}
	if fromTabID != a.activeTabID {
		// Stale frame from a previously-active tab.
		a.mu.Unlock()
		log.Debug().Int("tab", fromTabID).Msg("capture: entry from unbound tab discarded")
		return nil
	}

	if !a.seen.Admit(entry.Text) {
		a.mu.Unlock()
		return nil
	}

	cost := domain.EntryCost(entry.Text)
	if a.size+cost > a.cfg.Budget {
		// The would-be entry is NOT added.
		a.stopLocked(ctx, stopOpts{auto: true, reason: autoStopReason(a.cfg.Budget)})
		return nil
	}

	a.entries = append(a.entries, entry)
	a.size += cost
	count := len(a.entries)
	tabID := a.activeTabID
	a.mu.Unlock()

	if err := a.director.SendUpdateCount(ctx, tabID, count); err != nil {
		log.Debug().Err(err).Int("tab", tabID).Msg("capture: count push failed")
	}
	return nil
}

// Stop ends the active session: frames are told to tear down, the document
// is serialized and delivered when at least one entry was captured, and all
// session state is reset. Idempotent; stopping a stopped aggregator is a
// no-op.
func (a *Aggregator) Stop(ctx context.Context, manual bool) error {
	a.mu.Lock()
	if !a.recording {
		a.mu.Unlock()
		return nil
	}
	a.stopLocked(ctx, stopOpts{manual: manual})
	return nil
}

type stopOpts struct {
	manual  bool
	auto    bool
	reason  string
	tabGone bool // active tab was closed; skip directives to it
}

// stopLocked performs the stop sequence. The lock must be held on entry and
// is released before any directive or delivery I/O: the state transition is
// immediate and never depends on a frame message arriving.
func (a *Aggregator) stopLocked(ctx context.Context, opts stopOpts) {
	start := a.startTime
	entries := a.entries
	tabID := a.activeTabID

	a.recording = false
	a.startTime = time.Time{}
	a.entries = nil
	a.seen = textfilter.NewSeenSet()
	a.size = 0
	a.activeTabID = 0
	a.epoch++
	end := a.now()
	a.mu.Unlock()

	if !opts.tabGone {
		if opts.auto {
			if err := a.director.SendAutoStopped(ctx, tabID, opts.reason); err != nil {
				log.Debug().Err(err).Int("tab", tabID).Msg("capture: auto-stop directive failed")
			}
		} else {
			if err := a.director.SendStop(ctx, tabID); err != nil {
				log.Debug().Err(err).Int("tab", tabID).Msg("capture: stop directive failed")
			}
		}
		if err := a.director.SetBadge(ctx, tabID, false); err != nil {
			log.Debug().Err(err).Int("tab", tabID).Msg("capture: badge clear failed")
		}
	}

	if len(entries) > 0 {
		req := output.SaveRequest{
			Content:    output.Serialize(start, end, entries),
			Path:       output.CapturePath(start),
			PromptUser: true,
		}
		// Delivery failure is logged, not retried.
		if err := a.deliverer.Deliver(ctx, req); err != nil {
			log.Error().Err(err).Str("path", req.Path).Msg("capture: session delivery failed")
		}
	}

	log.Info().
		Int("tab", tabID).
		Int("entries", len(entries)).
		Bool("manual", opts.manual).
		Bool("auto", opts.auto).
		Msg("capture session stopped")
}

// State answers a "get current state" query.
func (a *Aggregator) State() domain.SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.SessionState{
		IsCapturing: a.recording,
		StartTime:   a.startTime,
		EntryCount:  len(a.entries),
	}
}

// TabState is the tab-scoped state variant.
func (a *Aggregator) TabState(_ context.Context, tabID int) (domain.TabSessionState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return domain.TabSessionState{
		SessionState: domain.SessionState{
			IsCapturing: a.recording,
			StartTime:   a.startTime,
			EntryCount:  len(a.entries),
		},
		IsActiveTab: a.recording && tabID == a.activeTabID,
	}, nil
}

// CumulativeSize exposes the running approximate byte cost; it never
// decreases while recording and resets to zero on stop.
func (a *Aggregator) CumulativeSize() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// TabNavigated re-issues the start directive after the active tab loads a
// new page: cross-origin navigations reset all frame state, and the new
// page's observers need the current start time and entry count. Retried in
// the background with growing delays, capped at 10 attempts over roughly
// six seconds.
func (a *Aggregator) TabNavigated(ctx context.Context, tabID int) {
	a.mu.Lock()
	if !a.recording || tabID != a.activeTabID {
		a.mu.Unlock()
		return
	}
	epoch := a.epoch
	a.mu.Unlock()

	// Detach from the caller: the notifying request finishes long before the
	// retry loop does.
	go a.reissueStart(context.WithoutCancel(ctx), tabID, epoch)
}

func (a *Aggregator) reissueStart(ctx context.Context, tabID int, epoch uint64) {
	delay := a.cfg.ReissueBase
	for attempt := 1; attempt <= reissueAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		// Exponential-ish, capped so ten attempts stay near six seconds.
		delay = min(delay*3/2, time.Second)

		a.mu.Lock()
		if !a.recording || a.epoch != epoch || tabID != a.activeTabID {
			a.mu.Unlock()
			return
		}
		d := domain.StartDirective{StartTime: a.startTime, EntryCount: len(a.entries)}
		a.mu.Unlock()

		if err := a.director.SendStart(ctx, tabID, d); err == nil {
			log.Debug().Int("tab", tabID).Int("attempt", attempt).Msg("capture: start re-issued after navigation")
			return
		}
	}
	log.Warn().Int("tab", tabID).Msg("capture: start re-issue exhausted retries")
}

// TabClosed stops the session immediately when the bound tab goes away. No
// teardown directives are sent — there is no page left to clean up.
func (a *Aggregator) TabClosed(ctx context.Context, tabID int) {
	a.mu.Lock()
	if !a.recording || tabID != a.activeTabID {
		a.mu.Unlock()
		return
	}
	a.stopLocked(ctx, stopOpts{tabGone: true})
}
