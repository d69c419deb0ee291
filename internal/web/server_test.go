package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/coordinator"
	"boardsync/internal/hub"
	"boardsync/internal/model"
	"boardsync/internal/order"
	"boardsync/internal/store"
)

type fixture struct {
	srv *httptest.Server
	hub *hub.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	h := hub.New(hub.Options{Logger: zerolog.Nop()})
	coord := coordinator.New(st, h, coordinator.Options{Logger: zerolog.Nop()})
	s, err := NewServer(ServerConfig{CORSOrigin: "*"}, coord, h, zerolog.Nop())
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		h.Close()
		srv.Close()
	})
	return fixture{srv: srv, hub: h}
}

func (f fixture) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeAs[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func TestCRUDRoutes(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/folder", map[string]any{"name": "F"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	folder := decodeAs[model.Folder](t, body)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, body = f.do(t, http.MethodPost, "/api/item", map[string]any{"title": "A", "icon": "*", "folderId": folder.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	it := decodeAs[model.Item](t, body)
	require.NotNil(t, it.FolderID)

	resp, body = f.do(t, http.MethodPut, "/api/item/"+it.ID, map[string]any{"folderId": nil})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.True(t, decodeAs[model.Item](t, body).IsLoose())

	resp, body = f.do(t, http.MethodPut, "/api/folder/"+folder.ID, map[string]any{"isOpen": false})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.False(t, decodeAs[model.Folder](t, body).IsOpen)

	resp, body = f.do(t, http.MethodGet, "/api/data", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeAs[model.Snapshot](t, body)
	assert.Len(t, snap.Items, 1)
	assert.Len(t, snap.Folders, 1)

	resp, _ = f.do(t, http.MethodDelete, "/api/folder/"+folder.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body = f.do(t, http.MethodDelete, "/api/item/"+it.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"`+it.ID+`","deleted":true}`, string(body))
}

func TestErrorStatuses(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPut, "/api/item/missing", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/item", map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/item", strings.NewReader("{"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusBadRequest, r.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/move", MoveRequest{DraggedID: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMoveRoute(t *testing.T) {
	f := newFixture(t)
	ids := map[string]string{}
	for _, title := range []string{"P", "Q", "R"} {
		_, body := f.do(t, http.MethodPost, "/api/item", map[string]any{"title": title})
		ids[title] = decodeAs[model.Item](t, body).ID
	}

	resp, body := f.do(t, http.MethodPost, "/api/move", MoveRequest{DraggedID: ids["P"], OverID: ids["R"]})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decodeAs[PlanResult](t, body)
	require.NotNil(t, res.Plan)
	assert.Equal(t, order.CaseSameContainer, res.Plan.Case)
	assert.Len(t, res.Entities, 3)

	resp, _ = f.do(t, http.MethodPost, "/api/move", MoveRequest{DraggedID: ids["P"], OverID: "board"})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, body = f.do(t, http.MethodGet, "/api/data", nil)
	snap := decodeAs[model.Snapshot](t, body)
	got := []string{}
	for _, it := range order.SortedItems(snap, order.Board) {
		got = append(got, it.Title)
	}
	assert.Equal(t, []string{"Q", "R", "P"}, got)
}

func TestPlanRoute(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodPost, "/api/folder", map[string]any{"name": "F"})
	folder := decodeAs[model.Folder](t, body)
	_, body = f.do(t, http.MethodPost, "/api/item", map[string]any{"title": "X"})
	x := decodeAs[model.Item](t, body)

	_, body = f.do(t, http.MethodGet, "/api/data", nil)
	plan, ok := order.PlanMove(decodeAs[model.Snapshot](t, body), x.ID, folder.ID)
	require.True(t, ok)

	resp, body := f.do(t, http.MethodPost, "/api/plan", plan)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decodeAs[PlanResult](t, body)
	require.Len(t, res.Entities, 1)
	require.NotNil(t, res.Entities[0].Item.FolderID)
	assert.Equal(t, folder.ID, *res.Entities[0].Item.FolderID)

	resp, _ = f.do(t, http.MethodPost, "/api/plan", order.Plan{})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	stale := order.Plan{Assignments: []order.Assignment{{Kind: model.KindItem, ID: x.ID, OrderIndex: 5}}}
	resp, _ = f.do(t, http.MethodPost, "/api/plan", stale)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPlanRoute_FolderDeletedMidDrag(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodPost, "/api/folder", map[string]any{"name": "F"})
	folder := decodeAs[model.Folder](t, body)
	_, body = f.do(t, http.MethodPost, "/api/item", map[string]any{"title": "X"})
	x := decodeAs[model.Item](t, body)

	_, body = f.do(t, http.MethodGet, "/api/data", nil)
	plan, ok := order.PlanMove(decodeAs[model.Snapshot](t, body), x.ID, folder.ID)
	require.True(t, ok)

	resp, _ := f.do(t, http.MethodDelete, "/api/folder/"+folder.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/api/plan", plan)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}

func TestReindexAndHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodPost, "/api/reindex", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Empty(t, decodeAs[PlanResult](t, body).Entities)

	resp, body = f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true,"subscribers":0}`, string(body))
}

func TestWebsocketReceivesBroadcasts(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() model.Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var ev model.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}
	assert.Equal(t, model.EventInitialData, read().Type)
	require.Eventually(t, func() bool { return f.hub.Count() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, body := f.do(t, http.MethodPost, "/api/item", map[string]any{"title": "A"})
	created := decodeAs[model.Item](t, body)

	ev := read()
	assert.Equal(t, model.EventItemCreated, ev.Type)
	assert.Equal(t, created, *ev.Item)
}

func TestStreamSendsBoardSignals(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	sc := bufio.NewScanner(resp.Body)
	sawEvent, sawBoard := false, false
	for sc.Scan() && !(sawEvent && sawBoard) {
		line := sc.Text()
		sawEvent = sawEvent || strings.Contains(line, "datastar-patch-signals")
		sawBoard = sawBoard || strings.Contains(line, `"board"`)
	}
	assert.True(t, sawEvent)
	assert.True(t, sawBoard)
}

func TestDescriptionRendersMarkdown(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/item", map[string]any{
		"title":       "A",
		"description": "**bold** :tada:\n<script>alert(1)</script>",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	it := decodeAs[model.Item](t, body)

	resp, body = f.do(t, http.MethodGet, "/api/item/"+it.ID+"/description", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	html := string(body)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.NotContains(t, html, ":tada:")
	assert.NotContains(t, html, "<script>")

	resp, _ = f.do(t, http.MethodGet, "/api/item/missing/description", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
