package observer

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/content"
	"github.com/gosuda/pagecap/internal/output"
)

// TitleMarker prefixes the tab title while capturing. Re-asserted when page
// code rewrites the title mid-session.
const TitleMarker = "[REC] "

// PageUI is the top frame's on-page surface: the floating status indicator,
// the tab title, and the image save overlays.
type PageUI interface {
	ShowIndicator(start time.Time)
	UpdateElapsed(elapsed time.Duration)
	UpdateEntryCount(count int)
	ShowAutoStopNotice(reason string)
	RemoveIndicator()
	Title() string
	SetTitle(title string)
	OfferImageSave(img *content.Image)
}

// assertTitleMarker prefixes the tab title with the recording marker if it
// is not already there.
func (o *Observer) assertTitleMarker() {
	title := o.ui.Title()
	if !strings.HasPrefix(title, TitleMarker) {
		o.ui.SetTitle(TitleMarker + title)
	}
}

// restoreTitle strips the recording marker.
func (o *Observer) restoreTitle() {
	title := o.ui.Title()
	if strings.HasPrefix(title, TitleMarker) {
		o.ui.SetTitle(strings.TrimPrefix(title, TitleMarker))
	}
}

// TitleChanged tells the top-frame observer that page code rewrote the tab
// title; the recording marker is re-asserted while a session is active.
func (o *Observer) TitleChanged() {
	o.mu.Lock()
	watching := o.watching
	o.mu.Unlock()
	if watching && o.cfg.IsTop && o.ui != nil {
		o.assertTitleMarker()
	}
}

func (o *Observer) startElapsedTicker() {
	o.mu.Lock()
	if o.tickerStop != nil {
		o.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	o.tickerStop = stop
	start := o.startTime
	o.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				o.ui.UpdateElapsed(now.Sub(start))
			}
		}
	}()
}

func (o *Observer) stopElapsedTicker() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tickerStop != nil {
		close(o.tickerStop)
		o.tickerStop = nil
	}
}

// imageTracker remembers which image elements were offered a save control
// and which were saved. Tracked by element identity, not URL: visually
// identical images in different elements can each be saved once.
type imageTracker struct {
	mu      sync.Mutex
	offered map[*content.Image]struct{}
	saved   map[*content.Image]struct{}
}

func (t *imageTracker) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.offered = nil
	t.saved = nil
}

func (t *imageTracker) offer(img *content.Image) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.offered == nil {
		t.offered = make(map[*content.Image]struct{})
	}
	if _, ok := t.offered[img]; ok {
		return false
	}
	t.offered[img] = struct{}{}
	return true
}

func (t *imageTracker) markSaved(img *content.Image) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.saved == nil {
		t.saved = make(map[*content.Image]struct{})
	}
	if _, ok := t.saved[img]; ok {
		return false
	}
	t.saved[img] = struct{}{}
	return true
}

// ScanImages offers a save control for each eligible image element not yet
// offered one. Top frame only; no-op while Idle.
func (o *Observer) ScanImages(imgs []*content.Image) {
	o.mu.Lock()
	watching := o.watching
	o.mu.Unlock()
	if !watching || !o.cfg.IsTop || o.ui == nil {
		return
	}

	for _, img := range imgs {
		if img.Eligible() && o.images.offer(img) {
			o.ui.OfferImageSave(img)
		}
	}
}

// SaveImage handles a click on an image's save control: it asks the file
// deliverer to store the image's source URL under a timestamped name in the
// session's output folder. The same element is never saved twice.
func (o *Observer) SaveImage(ctx context.Context, deliverer output.Deliverer, img *content.Image) {
	o.mu.Lock()
	watching := o.watching
	start := o.startTime
	o.mu.Unlock()
	if !watching || !img.Eligible() {
		return
	}
	if !o.images.markSaved(img) {
		return
	}

	req := output.SaveRequest{
		SourceURL:  img.Src,
		Path:       output.ImagePath(start, o.now(), img.Ext()),
		PromptUser: false,
	}
	if err := deliverer.Deliver(ctx, req); err != nil {
		log.Warn().Err(err).Str("src", img.Src).Msg("observer: image save failed")
	}
}
