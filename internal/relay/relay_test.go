package relay_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/pagecap/internal/domain"
	"github.com/gosuda/pagecap/internal/relay"
)

type mockFlasher struct {
	mu      sync.Mutex
	flashes []string
}

func (m *mockFlasher) Flash(childID string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flashes = append(m.flashes, childID)
}

func (m *mockFlasher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.flashes)
}

type mockParent struct {
	sent []domain.FlashSignal
	err  error
}

func (m *mockParent) SendToParent(sig domain.FlashSignal) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sig)
	return nil
}

func TestNotifyParent(t *testing.T) {
	t.Parallel()

	t.Run("nested frame originates with depth 1", func(t *testing.T) {
		t.Parallel()
		parent := &mockParent{}
		r := relay.New(false, nil, parent)

		r.NotifyParent()

		require.Len(t, parent.sent, 1)
		assert.Equal(t, 1, parent.sent[0].Depth)
	})

	t.Run("top frame never notifies", func(t *testing.T) {
		t.Parallel()
		r := relay.New(true, &mockFlasher{}, nil)
		r.NotifyParent() // must not panic
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		t.Parallel()
		parent := &mockParent{err: errors.New("gone")}
		r := relay.New(false, nil, parent)
		r.NotifyParent() // must not panic
	})
}

func TestReceive(t *testing.T) {
	t.Parallel()

	t.Run("flashes identified child and forwards upward", func(t *testing.T) {
		t.Parallel()
		flasher := &mockFlasher{}
		parent := &mockParent{}
		r := relay.New(false, flasher, parent)

		r.Receive(domain.FlashSignal{Depth: 3}, "child-a")

		assert.Equal(t, []string{"child-a"}, flasher.flashes)
		require.Len(t, parent.sent, 1)
		assert.Equal(t, 4, parent.sent[0].Depth, "hop counter increments per hop")
	})

	t.Run("top frame flashes but does not forward", func(t *testing.T) {
		t.Parallel()
		flasher := &mockFlasher{}
		r := relay.New(true, flasher, nil)

		r.Receive(domain.FlashSignal{Depth: 2}, "child-b")

		assert.Equal(t, 1, flasher.count())
	})

	t.Run("unidentified origin skips flash but still forwards", func(t *testing.T) {
		t.Parallel()
		flasher := &mockFlasher{}
		parent := &mockParent{}
		r := relay.New(false, flasher, parent)

		r.Receive(domain.FlashSignal{Depth: 1}, "")

		assert.Zero(t, flasher.count())
		assert.Len(t, parent.sent, 1)
	})

	t.Run("signal past max depth is dropped entirely", func(t *testing.T) {
		t.Parallel()
		flasher := &mockFlasher{}
		parent := &mockParent{}
		r := relay.New(false, flasher, parent)

		r.Receive(domain.FlashSignal{Depth: relay.MaxDepth + 1}, "child-c")

		assert.Zero(t, flasher.count(), "no flash for dropped signal")
		assert.Empty(t, parent.sent, "no forwarding for dropped signal")
	})

	t.Run("flashes are rate-limited per child frame", func(t *testing.T) {
		t.Parallel()
		flasher := &mockFlasher{}
		r := relay.New(true, flasher, nil)

		r.Receive(domain.FlashSignal{Depth: 1}, "child-a")
		r.Receive(domain.FlashSignal{Depth: 1}, "child-a") // inside 500 ms window
		r.Receive(domain.FlashSignal{Depth: 1}, "child-b") // distinct child, own budget

		assert.Equal(t, []string{"child-a", "child-b"}, flasher.flashes)
	})
}
