package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"boardsync/internal/hub"
	"boardsync/internal/model"
	"boardsync/internal/order"
)

type ServerConfig struct {
	Addr string
	// CORSOrigin is sent as Access-Control-Allow-Origin; empty disables CORS.
	CORSOrigin string
}

// Board is the write/read surface behind the HTTP routes.
type Board interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	CreateItem(ctx context.Context, in model.NewItem) (model.Item, error)
	UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error)
	DeleteItem(ctx context.Context, id string) error
	CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error)
	UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error)
	DeleteFolder(ctx context.Context, id string) error
	Apply(ctx context.Context, plan order.Plan) ([]model.Entity, error)
	Move(ctx context.Context, draggedID, overID string) (order.Plan, []model.Entity, bool, error)
	Reindex(ctx context.Context) (order.Plan, []model.Entity, error)
}

type Server struct {
	cfg   ServerConfig
	board Board
	hub   *hub.Hub
	log   zerolog.Logger
}

func NewServer(cfg ServerConfig, board Board, h *hub.Hub, log zerolog.Logger) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.CORSOrigin = strings.TrimSpace(cfg.CORSOrigin)
	if board == nil {
		return nil, errors.New("web: board is nil")
	}
	if h == nil {
		return nil, errors.New("web: hub is nil")
	}
	return &Server{cfg: cfg, board: board, hub: h, log: log}, nil
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.accessLog, s.cors)

	r.Methods(http.MethodGet).Path("/healthz").HandlerFunc(s.handleHealth)
	r.Methods(http.MethodGet).Path("/ws").HandlerFunc(s.handleWS)

	api := r.PathPrefix("/api").Subrouter()
	api.Methods(http.MethodGet).Path("/data").HandlerFunc(s.handleData)
	api.Methods(http.MethodGet).Path("/stream").HandlerFunc(s.handleStream)

	api.Methods(http.MethodPost).Path("/item").HandlerFunc(s.handleCreateItem)
	api.Methods(http.MethodPut).Path("/item/{id}").HandlerFunc(s.handleUpdateItem)
	api.Methods(http.MethodDelete).Path("/item/{id}").HandlerFunc(s.handleDeleteItem)
	api.Methods(http.MethodGet).Path("/item/{id}/description").HandlerFunc(s.handleDescription)

	api.Methods(http.MethodPost).Path("/folder").HandlerFunc(s.handleCreateFolder)
	api.Methods(http.MethodPut).Path("/folder/{id}").HandlerFunc(s.handleUpdateFolder)
	api.Methods(http.MethodDelete).Path("/folder/{id}").HandlerFunc(s.handleDeleteFolder)

	api.Methods(http.MethodPost).Path("/plan").HandlerFunc(s.handlePlan)
	api.Methods(http.MethodPost).Path("/move").HandlerFunc(s.handleMove)
	api.Methods(http.MethodPost).Path("/reindex").HandlerFunc(s.handleReindex)

	api.Methods(http.MethodOptions).PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// Serve runs the server on ln until ctx is cancelled, then shuts down
// gracefully and ends every subscription.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down")
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"subscribers": s.hub.Count(),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r, s.board.Snapshot)
}
