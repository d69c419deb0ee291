package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"boardsync/internal/coordinator"
	"boardsync/internal/model"
	"boardsync/internal/order"
	"boardsync/internal/store"
)

const maxBody = 1 << 20

// MoveRequest is the body of POST /api/move.
type MoveRequest struct {
	DraggedID string `json:"draggedId"`
	OverID    string `json:"overId"`
}

// PlanResult is returned by the plan, move and reindex routes.
type PlanResult struct {
	Plan     *order.Plan    `json:"plan,omitempty"`
	Entities []model.Entity `json:"entities"`
}

type errorBody struct {
	Error   string         `json:"error"`
	Applied []model.Entity `json:"applied,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

// writeError maps domain errors onto status codes. Anything unrecognized is
// logged and reported as a generic db error.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var partial coordinator.PartialPlanError
	switch {
	case store.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case store.IsInvalid(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case coordinator.IsStale(err):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.As(err, &partial):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Applied: partial.Applied})
	default:
		s.log.Error().Err(err).Str("method", r.Method).Str("url", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "db error"})
	}
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["id"])
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.board.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var in model.NewItem
	if err := decode(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	it, err := s.board.CreateItem(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var p model.ItemPatch
	if err := decode(r, &p); err != nil {
		badRequest(w, err)
		return
	}
	it, err := s.board.UpdateItem(r.Context(), pathID(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.board.DeleteItem(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Deleted{ID: id, Deleted: true})
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var in model.NewFolder
	if err := decode(r, &in); err != nil {
		badRequest(w, err)
		return
	}
	f, err := s.board.CreateFolder(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleUpdateFolder(w http.ResponseWriter, r *http.Request) {
	var p model.FolderPatch
	if err := decode(r, &p); err != nil {
		badRequest(w, err)
		return
	}
	f, err := s.board.UpdateFolder(r.Context(), pathID(r), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if err := s.board.DeleteFolder(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Deleted{ID: id, Deleted: true})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var plan order.Plan
	if err := decode(r, &plan); err != nil {
		badRequest(w, err)
		return
	}
	if plan.IsNoop() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	entities, err := s.board.Apply(r.Context(), plan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PlanResult{Entities: entities})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if strings.TrimSpace(req.DraggedID) == "" || strings.TrimSpace(req.OverID) == "" {
		badRequest(w, errors.New("draggedId and overId are required"))
		return
	}
	plan, entities, ok, err := s.board.Move(r.Context(), req.DraggedID, req.OverID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, PlanResult{Plan: &plan, Entities: entities})
}

func (s *Server) handleReindex(w http.ResponseWriter, r *http.Request) {
	plan, entities, err := s.board.Reindex(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entities == nil {
		entities = []model.Entity{}
	}
	writeJSON(w, http.StatusOK, PlanResult{Plan: &plan, Entities: entities})
}
