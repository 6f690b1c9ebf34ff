// Package ws is the frame channel: every frame of a tab holds one WebSocket
// connection over which it receives session directives and submits captured
// entries.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/pagecap/internal/domain"
)

const writeTimeout = 5 * time.Second

// EntrySink receives entries submitted by frames. Satisfied by
// *capture.Aggregator.
type EntrySink interface {
	Submit(ctx context.Context, entry domain.CaptureEntry, fromTabID int) error
	TabState(ctx context.Context, tabID int) (domain.TabSessionState, error)
}

type frameConn struct {
	conn *websocket.Conn
}

// Hub tracks frame connections per tab and implements the aggregator's
// FrameDirector by broadcasting directives to them. All pushes are
// best-effort: dead connections are dropped silently.
type Hub struct {
	mu   sync.RWMutex
	tabs map[int]map[uuid.UUID]*frameConn
	sink EntrySink
}

// NewHub creates an empty Hub. Bind must be called before serving.
func NewHub() *Hub {
	return &Hub{tabs: make(map[int]map[uuid.UUID]*frameConn)}
}

// Bind attaches the entry sink. Separate from NewHub because the hub and the
// aggregator reference each other.
func (h *Hub) Bind(sink EntrySink) {
	h.sink = sink
}

// ServeFrame handles one frame's WebSocket connection for the tab named in
// the URL. The connection stays open for the frame's lifetime; entries and
// state queries are read in a loop.
func (h *Hub) ServeFrame(w http.ResponseWriter, r *http.Request) {
	tabID, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil {
		http.Error(w, "invalid tab id", http.StatusBadRequest)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	id := uuid.New()
	fc := &frameConn{conn: conn}
	h.add(tabID, id, fc)
	defer h.remove(tabID, id)

	ctx := r.Context()
	for {
		_, data, readErr := conn.Read(ctx)
		if readErr != nil {
			// Navigation or tab close tears the socket down; normal.
			log.Debug().Err(readErr).Int("tab", tabID).Msg("frame connection closed")
			return
		}

		var msg FrameMessage
		if jsonErr := json.Unmarshal(data, &msg); jsonErr != nil {
			log.Debug().Err(jsonErr).Int("tab", tabID).Msg("malformed frame message dropped")
			continue
		}

		switch msg.Type {
		case TypeEntry:
			if msg.Entry == nil {
				continue
			}
			// Fire-and-forget from the frame's perspective; the sink's
			// own guards decide whether the entry is admitted.
			if submitErr := h.sink.Submit(ctx, *msg.Entry, tabID); submitErr != nil {
				log.Debug().Err(submitErr).Int("tab", tabID).Msg("entry submit failed")
			}
		case TypeQuery:
			st, stateErr := h.sink.TabState(ctx, tabID)
			if stateErr != nil {
				log.Debug().Err(stateErr).Int("tab", tabID).Msg("state query failed")
				continue
			}
			h.writeConn(ctx, fc, DirectiveMessage{Type: TypeState, State: &st})
		default:
			log.Debug().Str("type", msg.Type).Msg("unknown frame message dropped")
		}
	}
}

func (h *Hub) add(tabID int, id uuid.UUID, fc *frameConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.tabs[tabID] == nil {
		h.tabs[tabID] = make(map[uuid.UUID]*frameConn)
	}
	h.tabs[tabID][id] = fc
}

func (h *Hub) remove(tabID int, id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tabs[tabID], id)
	if len(h.tabs[tabID]) == 0 {
		delete(h.tabs, tabID)
	}
}

// FrameCount reports connected frames for a tab.
func (h *Hub) FrameCount(tabID int) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.tabs[tabID])
}

// broadcast pushes a directive to every frame of a tab. Individual write
// failures are swallowed; an error is returned only when no frame at all is
// connected, so the aggregator's retry paths can tell "nobody listening"
// from "delivered somewhere".
func (h *Hub) broadcast(ctx context.Context, tabID int, msg DirectiveMessage) error {
	h.mu.RLock()
	conns := make([]*frameConn, 0, len(h.tabs[tabID]))
	for _, fc := range h.tabs[tabID] {
		conns = append(conns, fc)
	}
	h.mu.RUnlock()

	if len(conns) == 0 {
		return ErrNoFrames
	}
	for _, fc := range conns {
		h.writeConn(ctx, fc, msg)
	}
	return nil
}

func (h *Hub) writeConn(ctx context.Context, fc *frameConn, msg DirectiveMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if writeErr := fc.conn.Write(wctx, websocket.MessageText, payload); writeErr != nil {
		log.Debug().Err(writeErr).Msg("frame directive write failed")
	}
}
