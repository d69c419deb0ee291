package client

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"boardsync/internal/hub"
	"boardsync/internal/model"
)

// StreamHandler receives stream callbacks on the Run goroutine.
type StreamHandler struct {
	// Event is called for every server event, starting with initialData on
	// each (re)connect.
	Event func(model.Event)
	// Disconnected is called when a live connection drops.
	Disconnected func(err error)
}

// Stream is a websocket subscription that reconnects with capped
// exponential backoff. It is owned by one client session.
type Stream struct {
	url    string
	dialer *websocket.Dialer
	log    zerolog.Logger

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func NewStream(api *API, log zerolog.Logger) *Stream {
	return &Stream{
		url:            api.streamURL(),
		dialer:         &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:            log,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}
}

func (s *Stream) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.InitialBackoff
	b.MaxInterval = s.MaxBackoff
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(b, ctx)
}

// Run connects and delivers events until ctx is done. It returns ctx.Err().
func (s *Stream) Run(ctx context.Context, h StreamHandler) error {
	bo := s.newBackoff(ctx)
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
		if err == nil {
			bo.Reset()
			s.log.Debug().Str("url", s.url).Msg("stream connected")
			err = s.read(ctx, conn, h)
			_ = conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if h.Disconnected != nil {
				h.Disconnected(err)
			}
			s.log.Warn().Err(err).Msg("stream disconnected")
		} else if ctx.Err() != nil {
			return ctx.Err()
		} else {
			s.log.Debug().Err(err).Msg("stream dial failed")
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return ctx.Err()
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Stream) read(ctx context.Context, conn *websocket.Conn, h StreamHandler) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) && ce.Code == hub.CloseResync {
				return errors.New("server asked for resync")
			}
			return err
		}
		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn().Err(err).Msg("bad event frame")
			continue
		}
		if h.Event != nil {
			h.Event(ev)
		}
	}
}
