// Package relay propagates a cosmetic "activity occurred in a nested frame"
// signal upward through frame boundaries so the top frame can flash the
// border of whichever child frame just produced content.
package relay

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/gosuda/pagecap/internal/domain"
)

const (
	// MaxDepth is the hop bound; signals past it are dropped. A safety
	// bound against pathological frame nesting or relay loops.
	MaxDepth = 10
	// FlashDuration is how long a child frame's border flash lasts.
	FlashDuration = 2000 * time.Millisecond
	// MinFlashInterval rate-limits flashes per child frame.
	MinFlashInterval = 500 * time.Millisecond
)

// Flasher renders a bordered flash overlay on a child frame.
type Flasher interface {
	Flash(childID string, d time.Duration)
}

// ParentSender forwards a signal to the immediate parent frame. Delivery is
// best-effort; errors are ignored.
type ParentSender interface {
	SendToParent(sig domain.FlashSignal) error
}

// Relay is one frame's end of the signal protocol.
type Relay struct {
	isTop   bool
	flasher Flasher
	parent  ParentSender // nil when isTop

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Relay. parent must be nil exactly when the frame is top.
func New(isTop bool, flasher Flasher, parent ParentSender) *Relay {
	return &Relay{
		isTop:    isTop,
		flasher:  flasher,
		parent:   parent,
		limiters: make(map[string]*rate.Limiter),
	}
}

// NotifyParent originates a signal after this frame produced content. No-op
// in the top frame.
func (r *Relay) NotifyParent() {
	if r.isTop || r.parent == nil {
		return
	}
	if err := r.parent.SendToParent(domain.FlashSignal{Depth: 1}); err != nil {
		log.Debug().Err(err).Msg("relay: parent unreachable")
	}
}

// Receive handles a signal arriving from the child frame identified by
// childID (empty when the origin child cannot be identified). The child is
// flashed at most once per MinFlashInterval; non-top frames forward the
// signal upward with the hop counter incremented.
func (r *Relay) Receive(sig domain.FlashSignal, childID string) {
	if sig.Depth > MaxDepth {
		log.Debug().Int("depth", sig.Depth).Msg("relay: signal past max depth dropped")
		return
	}

	if childID != "" && r.flasher != nil && r.allow(childID) {
		r.flasher.Flash(childID, FlashDuration)
	}

	if r.isTop || r.parent == nil {
		return
	}
	if err := r.parent.SendToParent(domain.FlashSignal{Depth: sig.Depth + 1}); err != nil {
		log.Debug().Err(err).Msg("relay: parent unreachable")
	}
}

func (r *Relay) allow(childID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	lim, ok := r.limiters[childID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(MinFlashInterval), 1)
		r.limiters[childID] = lim
	}
	return lim.Allow()
}
