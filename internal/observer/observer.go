// Package observer implements the per-frame capture component: it watches a
// frame's document for content changes, extracts and filters text, and
// forwards surviving entries to the session aggregator.
package observer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/content"
	"github.com/gosuda/pagecap/internal/domain"
	"github.com/gosuda/pagecap/internal/textfilter"
)

const (
	// DefaultDebounce is the trailing quiescence window for mutation batches.
	DefaultDebounce = 250 * time.Millisecond
	// DefaultResyncBackoff is the first retry delay when querying session
	// state after a frame load; it doubles per attempt.
	DefaultResyncBackoff = 200 * time.Millisecond
	// ResyncAttempts bounds state-query retries during resynchronization.
	ResyncAttempts = 3
)

// Submitter receives surviving capture entries. Delivery is fire-and-forget:
// the observer swallows errors so capture never surfaces a user-visible
// failure mid-page-interaction.
type Submitter interface {
	Submit(ctx context.Context, entry domain.CaptureEntry, fromTabID int) error
}

// ActivityNotifier signals the parent frame that this frame produced
// content. Satisfied by *relay.Relay.
type ActivityNotifier interface {
	NotifyParent()
}

// StateQuerier answers tab-scoped session state queries, used by frames that
// missed the original start directive.
type StateQuerier interface {
	TabState(ctx context.Context, tabID int) (domain.TabSessionState, error)
}

// MutationKind says what changed in the document.
type MutationKind int

const (
	// NodeAdded is a newly inserted element subtree.
	NodeAdded MutationKind = iota
	// TextNodeAdded is a bare text node inserted into the document.
	TextNodeAdded
	// CharDataChanged is a content change on an existing text node.
	CharDataChanged
)

// Mutation is one observed document change. Node is set for NodeAdded; Text
// carries the node content for the other kinds.
type Mutation struct {
	Kind MutationKind
	Node *content.Node
	Text string
}

// Config identifies the frame an Observer lives in.
type Config struct {
	TabID         int
	FrameID       string // "main" or a name derived from the frame's resource path
	URL           string
	IsTop         bool
	Debounce      time.Duration // 0 means DefaultDebounce
	ResyncBackoff time.Duration // 0 means DefaultResyncBackoff
}

// Observer watches one frame while a session is active. Idle → Watching on a
// start directive, back to Idle on stop or auto-stop.
type Observer struct {
	cfg      Config
	filter   *textfilter.Filter
	submit   Submitter
	notifier ActivityNotifier // nil in the top frame
	ui       PageUI           // nil outside the top frame
	now      func() time.Time

	mu         sync.Mutex
	watching   bool
	startTime  time.Time
	entryCount int
	seen       *textfilter.SeenSet
	pending    []Mutation
	timer      *time.Timer
	tickerStop chan struct{}

	images imageTracker
}

// Option configures an Observer.
type Option func(*Observer)

// WithClock overrides the entry timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

// WithPageUI attaches the top-frame page UI collaborator.
func WithPageUI(ui PageUI) Option {
	return func(o *Observer) { o.ui = ui }
}

// WithActivityNotifier attaches the cross-frame relay for nested frames.
func WithActivityNotifier(n ActivityNotifier) Option {
	return func(o *Observer) { o.notifier = n }
}

// New creates an Observer for one frame.
func New(cfg Config, filter *textfilter.Filter, submit Submitter, opts ...Option) *Observer {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ResyncBackoff <= 0 {
		cfg.ResyncBackoff = DefaultResyncBackoff
	}
	o := &Observer{
		cfg:    cfg,
		filter: filter,
		submit: submit,
		now:    time.Now,
		seen:   textfilter.NewSeenSet(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Watching reports whether the observer is currently capturing.
func (o *Observer) Watching() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.watching
}

// Start transitions to Watching, extracts all currently-present text tagged
// source=initial, and begins batching mutations. Repeated starts are no-ops.
func (o *Observer) Start(d domain.StartDirective, root *content.Node) {
	o.mu.Lock()
	if o.watching {
		o.mu.Unlock()
		return
	}
	o.watching = true
	o.startTime = d.StartTime
	o.entryCount = d.EntryCount
	o.seen = textfilter.NewSeenSet()
	o.pending = nil
	o.mu.Unlock()

	if o.cfg.IsTop && o.ui != nil {
		o.ui.ShowIndicator(d.StartTime)
		o.ui.UpdateEntryCount(d.EntryCount)
		o.assertTitleMarker()
		o.startElapsedTicker()
	}

	if root != nil {
		o.process(content.ExtractText(root), domain.SourceInitial)
	}
}

// Observe queues a document mutation. Batches are coalesced with a trailing
// debounce window: the processing pass runs only after the window elapses
// with no further mutations, and every batched mutation is still walked.
func (o *Observer) Observe(m Mutation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.watching {
		return
	}
	o.pending = append(o.pending, m)
	if o.timer != nil {
		o.timer.Stop()
	}
	o.timer = time.AfterFunc(o.cfg.Debounce, o.flush)
}

// flush processes the coalesced mutation batch.
func (o *Observer) flush() {
	o.mu.Lock()
	batch := o.pending
	o.pending = nil
	o.timer = nil
	watching := o.watching
	o.mu.Unlock()

	if !watching {
		return
	}

	for _, m := range batch {
		switch m.Kind {
		case NodeAdded:
			o.process(content.ExtractText(m.Node), domain.SourceAdded)
		case TextNodeAdded:
			o.process(m.Text, domain.SourceTextNode)
		case CharDataChanged:
			o.process(m.Text, domain.SourceModified)
		}
	}
}

// process runs one extracted string through the filter and, if it survives
// both the filter and this frame's local duplicate memory, submits it.
func (o *Observer) process(raw string, source domain.EntrySource) {
	cleaned, keep := o.filter.Check(raw)
	if !keep {
		return
	}

	o.mu.Lock()
	if !o.watching || !o.seen.Admit(cleaned) {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	entry := domain.CaptureEntry{
		Timestamp: o.now(),
		Source:    source,
		FrameID:   o.cfg.FrameID,
		URL:       o.cfg.URL,
		Text:      cleaned,
	}
	if err := o.submit.Submit(context.Background(), entry, o.cfg.TabID); err != nil {
		log.Debug().Err(err).Str("frame", o.cfg.FrameID).Msg("observer: entry submit failed")
	}

	// The relay ping is independent of whether the submit landed.
	if !o.cfg.IsTop && o.notifier != nil {
		o.notifier.NotifyParent()
	}
}

// Stop transitions back to Idle, discarding any batched mutations. Idempotent.
func (o *Observer) Stop() {
	o.mu.Lock()
	if !o.watching {
		o.mu.Unlock()
		return
	}
	o.watching = false
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	o.pending = nil
	o.mu.Unlock()

	o.stopElapsedTicker()
	if o.cfg.IsTop && o.ui != nil {
		o.ui.RemoveIndicator()
		o.restoreTitle()
	}
	o.images.reset()
}

// AutoStopped surfaces the aggregator's reason before tearing down.
func (o *Observer) AutoStopped(reason string) {
	if o.cfg.IsTop && o.ui != nil {
		o.ui.ShowAutoStopNotice(reason)
	}
	o.Stop()
}

// UpdateCount receives the aggregator's entry-count push.
func (o *Observer) UpdateCount(count int) {
	o.mu.Lock()
	o.entryCount = count
	watching := o.watching
	o.mu.Unlock()

	if watching && o.cfg.IsTop && o.ui != nil {
		o.ui.UpdateEntryCount(count)
	}
}

// Resync handles a frame that loaded mid-session and missed the start
// directive: it queries the aggregator for current state, retrying up to 3
// times with increasing backoff to tolerate the aggregator not being ready,
// and self-starts if a session is active for its tab.
func (o *Observer) Resync(ctx context.Context, querier StateQuerier, root *content.Node) {
	backoff := o.cfg.ResyncBackoff
	for attempt := 0; attempt < ResyncAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		st, err := querier.TabState(ctx, o.cfg.TabID)
		if err != nil {
			log.Debug().Err(err).Int("attempt", attempt+1).Msg("observer: resync query failed")
			continue
		}
		if st.IsCapturing && st.IsActiveTab {
			o.Start(domain.StartDirective{StartTime: st.StartTime, EntryCount: st.EntryCount}, root)
		}
		return
	}
}
