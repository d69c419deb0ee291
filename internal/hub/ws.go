package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"boardsync/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 4 * 1024
)

// CloseResync is the close code sent to a subscriber dropped for lagging.
// The client reconnects and receives a fresh initialData.
const CloseResync = 4000

// SnapshotFunc loads the current board for a new connection.
type SnapshotFunc func(ctx context.Context) (model.Snapshot, error)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 32 * 1024,
	// Any origin may subscribe; the stream is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams events until either side goes
// away. The subscriber is registered before the snapshot is read, so no event
// published in between is lost; an event already reflected in the snapshot
// may be delivered again, which clients absorb by replacing by id.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, snapshot SnapshotFunc) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.Subscribe()
	defer sub.Close()

	snap, err := snapshot(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("snapshot for new subscriber")
		_ = writeClose(conn, websocket.CloseInternalServerErr, "snapshot failed")
		return
	}
	if err := writeEvent(conn, model.InitialData(snap)); err != nil {
		return
	}

	go readPump(conn, cancel)
	writePump(ctx, conn, sub)
}

// readPump discards client frames; it only keeps the pong deadline fresh and
// notices the peer going away.
func readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(ctx context.Context, conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = writeClose(conn, websocket.CloseNormalClosure, "")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				if sub.Overflowed() {
					_ = writeClose(conn, CloseResync, "resync")
				} else {
					_ = writeClose(conn, websocket.CloseGoingAway, "server shutting down")
				}
				return
			}
			if err := writeEvent(conn, ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, ev model.Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func writeClose(conn *websocket.Conn, code int, reason string) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
