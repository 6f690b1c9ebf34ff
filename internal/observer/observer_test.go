package observer_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pagecap/internal/content"
	"github.com/gosuda/pagecap/internal/domain"
	"github.com/gosuda/pagecap/internal/observer"
	"github.com/gosuda/pagecap/internal/textfilter"
)

// --- mocks ---

type mockSubmitter struct {
	mu      sync.Mutex
	entries []domain.CaptureEntry
	tabIDs  []int
	err     error
}

func (m *mockSubmitter) Submit(_ context.Context, e domain.CaptureEntry, fromTabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	m.tabIDs = append(m.tabIDs, fromTabID)
	return nil
}

func (m *mockSubmitter) all() []domain.CaptureEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CaptureEntry(nil), m.entries...)
}

type mockNotifier struct {
	mu    sync.Mutex
	pings int
}

func (m *mockNotifier) NotifyParent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pings++
}

func (m *mockNotifier) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pings
}

type mockQuerier struct {
	mu     sync.Mutex
	states []stateResult
	calls  int
}

type stateResult struct {
	state domain.TabSessionState
	err   error
}

func (m *mockQuerier) TabState(context.Context, int) (domain.TabSessionState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := m.states[min(m.calls, len(m.states)-1)]
	m.calls++
	return res.state, res.err
}

func (m *mockQuerier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newObserver(cfg observer.Config, sub observer.Submitter, opts ...observer.Option) *observer.Observer {
	return observer.New(cfg, textfilter.New(), sub, opts...)
}

func prose(s string) *content.Node {
	return &content.Node{Tag: "p", Text: s}
}

const debounce = 10 * time.Millisecond

func waitFlush() { time.Sleep(5 * debounce) }

// --- tests ---

func TestStartSubmitsInitialText(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	o := newObserver(observer.Config{TabID: 7, FrameID: "main", URL: "https://example.com", IsTop: true, Debounce: debounce}, sub)

	root := &content.Node{Tag: "body", Children: []*content.Node{
		prose("Hello world, this is a test paragraph."),
		{Tag: "script", Text: "var noise = true;"},
	}}
	o.Start(domain.StartDirective{StartTime: time.Now()}, root)
	defer o.Stop()

	entries := sub.all()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SourceInitial, entries[0].Source)
	assert.Equal(t, "main", entries[0].FrameID)
	assert.Equal(t, "https://example.com", entries[0].URL)
	assert.Equal(t, "Hello world, this is a test paragraph.", entries[0].Text)
	assert.Equal(t, []int{7}, sub.tabIDs)
}

func TestObserveBatchesWithDebounce(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	o := newObserver(observer.Config{TabID: 1, FrameID: "main", Debounce: debounce}, sub)
	o.Start(domain.StartDirective{StartTime: time.Now()}, nil)
	defer o.Stop()

	// Three mutations inside one window coalesce into a single pass that
	// still walks each mutation individually.
	o.Observe(observer.Mutation{Kind: observer.NodeAdded, Node: prose("The first inserted paragraph of text.")})
	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "A bare text node with enough words."})
	o.Observe(observer.Mutation{Kind: observer.CharDataChanged, Text: "An existing node whose text was modified."})

	assert.Empty(t, sub.all(), "nothing is submitted before the window elapses")

	waitFlush()

	entries := sub.all()
	require.Len(t, entries, 3)
	assert.Equal(t, domain.SourceAdded, entries[0].Source)
	assert.Equal(t, domain.SourceTextNode, entries[1].Source)
	assert.Equal(t, domain.SourceModified, entries[2].Source)
}

func TestObserveSuppressesLocalDuplicates(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	o := newObserver(observer.Config{TabID: 1, FrameID: "main", Debounce: debounce}, sub)
	o.Start(domain.StartDirective{StartTime: time.Now()}, nil)
	defer o.Stop()

	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "Repeated content shown twice on the page."})
	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "Repeated content shown twice on the page."})
	waitFlush()

	assert.Len(t, sub.all(), 1)
}

func TestNestedFramePingsRelayEvenWhenSubmitFails(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{err: errors.New("aggregator unreachable")}
	notifier := &mockNotifier{}
	o := newObserver(
		observer.Config{TabID: 1, FrameID: "frame:ad", IsTop: false, Debounce: debounce},
		sub,
		observer.WithActivityNotifier(notifier),
	)
	o.Start(domain.StartDirective{StartTime: time.Now()}, nil)
	defer o.Stop()

	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "Content produced inside a nested frame."})
	waitFlush()

	assert.Equal(t, 1, notifier.count(), "relay ping is independent of submit success")
}

func TestTopFrameDoesNotPingRelay(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	notifier := &mockNotifier{}
	o := newObserver(
		observer.Config{TabID: 1, FrameID: "main", IsTop: true, Debounce: debounce},
		sub,
		observer.WithActivityNotifier(notifier),
	)
	o.Start(domain.StartDirective{StartTime: time.Now()}, nil)
	defer o.Stop()

	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "Top frame content does not need a flash."})
	waitFlush()

	assert.Zero(t, notifier.count())
}

func TestStopDiscardsPendingBatch(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	o := newObserver(observer.Config{TabID: 1, FrameID: "main", Debounce: time.Second}, sub)
	o.Start(domain.StartDirective{StartTime: time.Now()}, nil)

	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "This never reaches the aggregator at all."})
	o.Stop()
	o.Stop() // idempotent

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sub.all())
	assert.False(t, o.Watching())
}

func TestObserveBeforeStartIsIgnored(t *testing.T) {
	t.Parallel()

	sub := &mockSubmitter{}
	o := newObserver(observer.Config{TabID: 1, FrameID: "main", Debounce: debounce}, sub)

	o.Observe(observer.Mutation{Kind: observer.TextNodeAdded, Text: "Mutation arriving while the observer is idle."})
	waitFlush()

	assert.Empty(t, sub.all())
}

func TestResync(t *testing.T) {
	t.Parallel()

	t.Run("self-starts when a session is active for the tab", func(t *testing.T) {
		t.Parallel()
		sub := &mockSubmitter{}
		o := newObserver(observer.Config{TabID: 3, FrameID: "main", Debounce: debounce, ResyncBackoff: time.Millisecond}, sub)

		start := time.Now().Add(-30 * time.Second)
		q := &mockQuerier{states: []stateResult{{state: domain.TabSessionState{
			SessionState: domain.SessionState{IsCapturing: true, StartTime: start, EntryCount: 4},
			IsActiveTab:  true,
		}}}}

		o.Resync(testContext(t), q, prose("Text already present when the frame reloaded."))
		defer o.Stop()

		assert.True(t, o.Watching())
		require.Len(t, sub.all(), 1)
	})

	t.Run("retries with backoff while the aggregator is not ready", func(t *testing.T) {
		t.Parallel()
		sub := &mockSubmitter{}
		o := newObserver(observer.Config{TabID: 3, FrameID: "main", Debounce: debounce, ResyncBackoff: time.Millisecond}, sub)

		q := &mockQuerier{states: []stateResult{
			{err: errors.New("not ready")},
			{err: errors.New("not ready")},
			{state: domain.TabSessionState{
				SessionState: domain.SessionState{IsCapturing: true, StartTime: time.Now()},
				IsActiveTab:  true,
			}},
		}}

		o.Resync(testContext(t), q, nil)
		defer o.Stop()

		assert.Equal(t, 3, q.callCount())
		assert.True(t, o.Watching())
	})

	t.Run("gives up after bounded attempts", func(t *testing.T) {
		t.Parallel()
		o := newObserver(observer.Config{TabID: 3, FrameID: "main", Debounce: debounce, ResyncBackoff: time.Millisecond}, &mockSubmitter{})

		q := &mockQuerier{states: []stateResult{{err: errors.New("never ready")}}}
		o.Resync(testContext(t), q, nil)

		assert.Equal(t, observer.ResyncAttempts, q.callCount())
		assert.False(t, o.Watching())
	})

	t.Run("stays idle when the session belongs to another tab", func(t *testing.T) {
		t.Parallel()
		o := newObserver(observer.Config{TabID: 3, FrameID: "main", Debounce: debounce, ResyncBackoff: time.Millisecond}, &mockSubmitter{})

		q := &mockQuerier{states: []stateResult{{state: domain.TabSessionState{
			SessionState: domain.SessionState{IsCapturing: true, StartTime: time.Now()},
			IsActiveTab:  false,
		}}}}
		o.Resync(testContext(t), q, nil)

		assert.False(t, o.Watching())
	})
}
