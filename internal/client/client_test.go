package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/coordinator"
	"boardsync/internal/hub"
	"boardsync/internal/model"
	"boardsync/internal/order"
	"boardsync/internal/store"
	"boardsync/internal/web"
)

func TestApplyEvent_UpdateReplacesWholeEntity(t *testing.T) {
	s := model.Snapshot{Items: []model.Item{{ID: "a", Title: "old", Description: model.StringPtr("d"), OrderIndex: 3}}}

	got, changed := ApplyEvent(s, model.ItemUpdated(model.Item{ID: "a", Title: "new", OrderIndex: 0}))
	require.True(t, changed)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "new", got.Items[0].Title)
	assert.Nil(t, got.Items[0].Description, "update is a full replacement")
	assert.Equal(t, "old", s.Items[0].Title, "input untouched")
}

func TestApplyEvent_CreateIsIdempotent(t *testing.T) {
	s := model.Snapshot{}
	ev := model.ItemCreated(model.Item{ID: "a", Title: "A"})

	s, changed := ApplyEvent(s, ev)
	require.True(t, changed)
	s, changed = ApplyEvent(s, ev)
	assert.False(t, changed)
	assert.Len(t, s.Items, 1)

	s, _ = ApplyEvent(s, model.FolderCreated(model.Folder{ID: "f"}))
	s, changed = ApplyEvent(s, model.FolderCreated(model.Folder{ID: "f"}))
	assert.False(t, changed)
	assert.Len(t, s.Folders, 1)
}

func TestApplyEvent_UpdateOfUnknownInserts(t *testing.T) {
	got, changed := ApplyEvent(model.Snapshot{}, model.FolderUpdated(model.Folder{ID: "f", Name: "F"}))
	require.True(t, changed)
	assert.Len(t, got.Folders, 1)
}

func TestApplyEvent_DeleteAndInitialData(t *testing.T) {
	s := model.Snapshot{
		Items:   []model.Item{{ID: "a"}, {ID: "b"}},
		Folders: []model.Folder{{ID: "f"}},
	}
	got, changed := ApplyEvent(s, model.ItemDeleted("a"))
	require.True(t, changed)
	assert.Equal(t, "b", got.Items[0].ID)
	assert.Len(t, s.Items, 2)

	_, changed = ApplyEvent(got, model.ItemDeleted("zzz"))
	assert.False(t, changed)

	got, changed = ApplyEvent(got, model.FolderDeleted("f"))
	require.True(t, changed)
	assert.Empty(t, got.Folders)

	fresh := model.Snapshot{Items: []model.Item{{ID: "x"}}, Folders: []model.Folder{}}
	got, changed = ApplyEvent(got, model.InitialData(fresh))
	require.True(t, changed)
	assert.Equal(t, fresh, got)
}

func TestApplyEvent_ConvergesRegardlessOfOptimisticState(t *testing.T) {
	canonical := model.Folder{ID: "f", Name: "F", IsOpen: false}
	a := model.Snapshot{Folders: []model.Folder{{ID: "f", Name: "F", IsOpen: true}}}
	b := model.Snapshot{Folders: []model.Folder{{ID: "f", Name: "F", IsOpen: false}}}

	a, _ = ApplyEvent(a, model.FolderUpdated(canonical))
	b, _ = ApplyEvent(b, model.FolderUpdated(canonical))
	assert.Equal(t, a, b)
}

func TestCache_SetFolderOpenRevert(t *testing.T) {
	c := NewCache(model.Snapshot{Folders: []model.Folder{{ID: "f", IsOpen: true}}})

	revert, ok := c.SetFolderOpen("f", false)
	require.True(t, ok)
	assert.False(t, c.Snapshot().Folders[0].IsOpen)
	revert()
	assert.True(t, c.Snapshot().Folders[0].IsOpen)

	// A canonical event that lands first wins over the revert.
	revert, _ = c.SetFolderOpen("f", false)
	c.Apply(model.FolderUpdated(model.Folder{ID: "f", Name: "renamed", IsOpen: true}))
	revert()
	assert.Equal(t, "renamed", c.Snapshot().Folders[0].Name)
	assert.True(t, c.Snapshot().Folders[0].IsOpen)

	_, ok = c.SetFolderOpen("missing", true)
	assert.False(t, ok)
}

type fakeSubmitter struct {
	plans []order.Plan
	err   error
}

func (f *fakeSubmitter) SubmitPlan(_ context.Context, p order.Plan) error {
	f.plans = append(f.plans, p)
	return f.err
}

func TestDragSession(t *testing.T) {
	s := model.Snapshot{Items: []model.Item{
		{ID: "P", OrderIndex: 0}, {ID: "Q", OrderIndex: 1}, {ID: "R", OrderIndex: 2},
	}}
	sub := &fakeSubmitter{}
	var d DragSession

	_, ok, err := d.Drop(context.Background(), "R", s, sub)
	require.NoError(t, err)
	assert.False(t, ok, "drop while idle")

	d.Begin("P")
	preview := d.PreviewAt(s, "R")
	assert.Equal(t, []string{"Q", "R", "P"}, order.MembersOf(preview, order.Board))

	plan, ok, err := d.Drop(context.Background(), "R", s, sub)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, d.Dragging())
	require.Len(t, sub.plans, 1)
	assert.Equal(t, plan, sub.plans[0])

	d.Begin("P")
	_, ok, err = d.Drop(context.Background(), "P", s, sub)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, sub.plans, 1, "no-op drop submits nothing")

	d.Begin("P")
	d.Cancel()
	assert.False(t, d.Dragging())

	sub.err = errors.New("offline")
	d.Begin("Q")
	_, ok, err = d.Drop(context.Background(), "P", s, sub)
	assert.True(t, ok)
	assert.Error(t, err)
	assert.False(t, d.Dragging(), "failed drop still ends the session")
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"))
	require.NoError(t, err)
	h := hub.New(hub.Options{Logger: zerolog.Nop()})
	coord := coordinator.New(st, h, coordinator.Options{Logger: zerolog.Nop()})
	srv, err := web.NewServer(web.ServerConfig{}, coord, h, zerolog.Nop())
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		h.Close()
		ts.Close()
		_ = st.Close()
	})
	return ts
}

func TestAPIAndStream_EndToEnd(t *testing.T) {
	ts := newServer(t)
	api, err := NewAPI(ts.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache := NewCache(model.Snapshot{})
	var (
		mu       sync.Mutex
		received int
	)
	stream := NewStream(api, zerolog.Nop())
	done := make(chan error, 1)
	go func() {
		done <- stream.Run(ctx, StreamHandler{Event: func(ev model.Event) {
			cache.Apply(ev)
			mu.Lock()
			received++
			mu.Unlock()
		}})
	}()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received >= 1
	}, 5*time.Second, 10*time.Millisecond, "initialData")

	f, err := api.CreateFolder(ctx, model.NewFolder{Name: "F"})
	require.NoError(t, err)
	x, err := api.CreateItem(ctx, model.NewItem{Title: "X"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		s := cache.Snapshot()
		return len(s.Items) == 1 && len(s.Folders) == 1
	}, 5*time.Second, 10*time.Millisecond)

	var d DragSession
	d.Begin(x.ID)
	_, ok, err := d.Drop(ctx, f.ID, cache.Snapshot(), api)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		it, ok := cache.Snapshot().FindItem(x.ID)
		return ok && it.FolderID != nil && *it.FolderID == f.ID
	}, 5*time.Second, 10*time.Millisecond)

	_, ok, err = api.Move(ctx, x.ID, string(order.Board))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = api.UpdateItem(ctx, "missing", model.ItemPatch{Title: model.StringPtr("x")})
	assert.True(t, IsNotFound(err))

	h, err := api.Health(ctx)
	require.NoError(t, err)
	assert.True(t, h.OK)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestNewAPI_AddsScheme(t *testing.T) {
	api, err := NewAPI("127.0.0.1:5000/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:5000", api.BaseURL())
	assert.Equal(t, "ws://127.0.0.1:5000/ws", api.streamURL())

	_, err = NewAPI(" ")
	assert.Error(t, err)
}
