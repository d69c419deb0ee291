package web

import (
	"net/http"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

const streamKeepAlive = 25 * time.Second

// handleStream serves the board as Datastar signals over SSE: the full board
// on connect and again after every event, plus the event that caused it.
// A lagging subscriber is cut off and re-fetches on reconnect.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	sub := s.hub.Subscribe()
	defer sub.Close()

	snap, err := s.board.Snapshot(sse.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("stream snapshot")
		return
	}
	_ = sse.MarshalAndPatchSignals(map[string]any{"board": snap, "lastEvent": nil})

	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			snap, err := s.board.Snapshot(sse.Context())
			if err != nil {
				s.log.Error().Err(err).Msg("stream snapshot")
				return
			}
			if err := sse.MarshalAndPatchSignals(map[string]any{"board": snap, "lastEvent": ev}); err != nil {
				return
			}
		}
	}
}
