package coordinator

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardsync/internal/model"
	"boardsync/internal/order"
	"boardsync/internal/store"
)

type recorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recorder) Publish(ev model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.EventType{}
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// flakyStore fails the nth UpdateItem call (1-based).
type flakyStore struct {
	*store.Store
	failAt int
	calls  int
}

func (f *flakyStore) UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error) {
	f.calls++
	if f.calls == f.failAt {
		return model.Item{}, errors.New("disk on fire")
	}
	return f.Store.UpdateItem(ctx, id, p)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "board.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newCoordinator(t *testing.T, mode Mode) (*Coordinator, *store.Store, *recorder) {
	t.Helper()
	st := newTestStore(t)
	rec := &recorder{}
	return New(st, rec, Options{Mode: mode, Logger: zerolog.Nop()}), st, rec
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAtomic, m)

	m, err = ParseMode(" Sequential ")
	require.NoError(t, err)
	assert.Equal(t, ModeSequential, m)

	_, err = ParseMode("eventual")
	assert.Error(t, err)
}

func TestCreate_BroadcastsCanonicalEntity(t *testing.T) {
	c, _, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()

	it, err := c.CreateItem(ctx, model.NewItem{Title: "A", Icon: "*"})
	require.NoError(t, err)
	require.Len(t, rec.events, 1)
	assert.Equal(t, model.EventItemCreated, rec.events[0].Type)
	assert.Equal(t, it, *rec.events[0].Item)
}

func TestMove_BroadcastsEveryWrittenEntity(t *testing.T) {
	for _, mode := range []Mode{ModeAtomic, ModeSequential} {
		t.Run(string(mode), func(t *testing.T) {
			c, st, rec := newCoordinator(t, mode)
			ctx := context.Background()
			p, err := c.CreateItem(ctx, model.NewItem{Title: "P"})
			require.NoError(t, err)
			_, err = c.CreateItem(ctx, model.NewItem{Title: "Q"})
			require.NoError(t, err)
			r, err := c.CreateItem(ctx, model.NewItem{Title: "R"})
			require.NoError(t, err)
			rec.reset()

			plan, entities, ok, err := c.Move(ctx, p.ID, r.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, order.CaseSameContainer, plan.Case)
			assert.Len(t, entities, 3)
			assert.Equal(t, []model.EventType{model.EventItemUpdated, model.EventItemUpdated, model.EventItemUpdated}, rec.types())

			snap, err := st.Snapshot(ctx)
			require.NoError(t, err)
			got := []string{}
			for _, it := range order.SortedItems(snap, order.Board) {
				got = append(got, it.Title)
			}
			assert.Equal(t, []string{"Q", "R", "P"}, got)
		})
	}
}

func TestMove_NoopWritesNothing(t *testing.T) {
	c, _, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
	require.NoError(t, err)
	rec.reset()

	_, entities, ok, err := c.Move(ctx, a.ID, string(order.Board))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, entities)
	assert.Empty(t, rec.types())
}

func TestSequential_PartialFailureBroadcastsWrittenPrefix(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	f, err := st.CreateFolder(ctx, model.NewFolder{Name: "F"})
	require.NoError(t, err)
	a, err := st.CreateItem(ctx, model.NewItem{Title: "A", FolderID: &f.ID})
	require.NoError(t, err)
	_, err = st.CreateItem(ctx, model.NewItem{Title: "B", FolderID: &f.ID})
	require.NoError(t, err)
	cItem, err := st.CreateItem(ctx, model.NewItem{Title: "C"})
	require.NoError(t, err)

	flaky := &flakyStore{Store: st, failAt: 2}
	rec := &recorder{}
	c := New(flaky, rec, Options{Mode: ModeSequential, Logger: zerolog.Nop()})

	_, entities, ok, err := c.Move(ctx, cItem.ID, a.ID)
	require.True(t, ok)
	require.Error(t, err)
	assert.True(t, IsPartial(err))
	var partial PartialPlanError
	require.ErrorAs(t, err, &partial)
	assert.Len(t, partial.Applied, 1)
	assert.Len(t, entities, 1)

	// The one write that landed is broadcast with its stored value.
	require.Len(t, rec.events, 1)
	moved := rec.events[0].Item
	require.NotNil(t, moved)
	assert.Equal(t, cItem.ID, moved.ID)
	require.NotNil(t, moved.FolderID)
	assert.Equal(t, f.ID, *moved.FolderID)

	// Reindex heals the gap left behind.
	healer := New(st, rec, Options{Logger: zerolog.Nop()})
	_, _, err = healer.Reindex(ctx)
	require.NoError(t, err)
	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, order.Check(snap))
}

func TestAtomic_FailureWritesNothing(t *testing.T) {
	c, st, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
	require.NoError(t, err)
	rec.reset()

	plan := order.Plan{Case: order.CaseSameContainer, Assignments: []order.Assignment{
		{Kind: model.KindItem, ID: a.ID, OrderIndex: 0, FolderID: model.Some("missing")},
	}}
	_, err = c.Apply(ctx, plan)
	require.Error(t, err)
	assert.Empty(t, rec.types())

	got, err := st.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLoose())
}

func TestApply_RejectsStalePlan(t *testing.T) {
	c, _, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, model.NewItem{Title: "B"})
	require.NoError(t, err)
	rec.reset()

	// Computed before B existed: A alone at 1 collides with B's slot ordering.
	plan := order.Plan{Case: order.CaseSameContainer, Assignments: []order.Assignment{
		{Kind: model.KindItem, ID: a.ID, OrderIndex: 1},
	}}
	_, err = c.Apply(ctx, plan)
	require.Error(t, err)
	assert.True(t, IsStale(err))
	assert.Empty(t, rec.types())
}

func TestApply_FolderDeletedMidDragIsNotFound(t *testing.T) {
	c, st, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	f, err := c.CreateFolder(ctx, model.NewFolder{Name: "F"})
	require.NoError(t, err)
	a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, model.NewItem{Title: "B"})
	require.NoError(t, err)

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	plan, ok := order.PlanMove(snap, a.ID, f.ID)
	require.True(t, ok)

	require.NoError(t, c.DeleteFolder(ctx, f.ID))
	rec.reset()

	_, err = c.Apply(ctx, plan)
	require.Error(t, err)
	assert.True(t, store.IsNotFound(err), "got %v", err)
	assert.False(t, IsStale(err))
	assert.Empty(t, rec.types())

	got, err := st.GetItem(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLoose())
	assert.Equal(t, 0, got.OrderIndex)
}

func TestApply_RejectsUnknownKindInBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeAtomic, ModeSequential} {
		t.Run(string(mode), func(t *testing.T) {
			c, st, rec := newCoordinator(t, mode)
			ctx := context.Background()
			a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
			require.NoError(t, err)
			rec.reset()

			plan := order.Plan{Assignments: []order.Assignment{
				{Kind: model.Kind("widget"), ID: a.ID, OrderIndex: 0},
			}}
			applied, err := c.Apply(ctx, plan)
			require.Error(t, err)
			assert.True(t, store.IsInvalid(err), "got %v", err)
			assert.Empty(t, applied)
			assert.Empty(t, rec.types())

			got, err := st.GetItem(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, got.OrderIndex)
		})
	}
}

func TestDeleteFolder_BroadcastOrder(t *testing.T) {
	c, _, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	f, err := c.CreateFolder(ctx, model.NewFolder{Name: "F"})
	require.NoError(t, err)
	_, err = c.CreateFolder(ctx, model.NewFolder{Name: "G"})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, model.NewItem{Title: "A", FolderID: &f.ID})
	require.NoError(t, err)
	rec.reset()

	require.NoError(t, c.DeleteFolder(ctx, f.ID))
	assert.Equal(t, []model.EventType{
		model.EventItemUpdated,
		model.EventFolderDeleted,
		model.EventFolderUpdated,
	}, rec.types())
	assert.True(t, rec.events[0].Item.IsLoose())
}

func TestDeleteItem_BroadcastsRenumberedSiblings(t *testing.T) {
	c, _, rec := newCoordinator(t, ModeAtomic)
	ctx := context.Background()
	a, err := c.CreateItem(ctx, model.NewItem{Title: "A"})
	require.NoError(t, err)
	_, err = c.CreateItem(ctx, model.NewItem{Title: "B"})
	require.NoError(t, err)
	rec.reset()

	require.NoError(t, c.DeleteItem(ctx, a.ID))
	assert.Equal(t, []model.EventType{model.EventItemDeleted, model.EventItemUpdated}, rec.types())
	assert.Equal(t, 0, rec.events[1].Item.OrderIndex)

	assert.True(t, store.IsNotFound(c.DeleteItem(ctx, a.ID)))
}
