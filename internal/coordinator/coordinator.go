// Package coordinator is the server-side authority for board writes. It
// persists each request, re-reads the canonical rows, and publishes one event
// per touched entity so every client converges on the stored state.
package coordinator

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"boardsync/internal/model"
	"boardsync/internal/order"
	"boardsync/internal/store"
)

// Mode selects how multi-entity plans reach the store.
type Mode string

const (
	// ModeAtomic writes a whole plan in one transaction.
	ModeAtomic Mode = "atomic"
	// ModeSequential writes one entity at a time and may stop partway.
	ModeSequential Mode = "sequential"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAtomic:
		return ModeAtomic, nil
	case ModeSequential:
		return ModeSequential, nil
	}
	return "", fmt.Errorf("unknown write mode %q (want atomic|sequential)", s)
}

// Store is the persistence surface the coordinator needs.
type Store interface {
	Snapshot(ctx context.Context) (model.Snapshot, error)
	CreateItem(ctx context.Context, in model.NewItem) (model.Item, error)
	CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error)
	UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error)
	UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error)
	DeleteItem(ctx context.Context, id string) ([]model.Item, error)
	DeleteFolder(ctx context.Context, id string) (store.FolderDeletion, error)
	ApplyPlan(ctx context.Context, assignments []order.Assignment) ([]model.Entity, error)
}

// Publisher fans events out to connected clients. Publish must not block.
type Publisher interface {
	Publish(ev model.Event)
}

type Options struct {
	Mode   Mode
	Logger zerolog.Logger
}

// Coordinator serializes writes: one request runs to completion, including
// its broadcasts, before the next starts.
type Coordinator struct {
	store Store
	pub   Publisher
	mode  Mode
	log   zerolog.Logger

	mu sync.Mutex
}

func New(st Store, pub Publisher, opts Options) *Coordinator {
	mode := opts.Mode
	if mode == "" {
		mode = ModeAtomic
	}
	return &Coordinator{store: st, pub: pub, mode: mode, log: opts.Logger}
}

func (c *Coordinator) Mode() Mode { return c.mode }

func (c *Coordinator) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return c.store.Snapshot(ctx)
}

// Apply persists a plan and broadcasts the canonical value of every entity it
// wrote. A plan that would break contiguity of the current state is rejected
// with StalePlanError before anything is written.
func (c *Coordinator) Apply(ctx context.Context, plan order.Plan) ([]model.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if plan.IsNoop() {
		return nil, nil
	}
	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if stale := newViolations(snap, order.Preview(snap, plan)); len(stale) > 0 {
		c.log.Warn().Str("dragged", plan.DraggedID).Str("over", plan.OverID).Strs("containers", containerStrings(stale)).Msg("stale plan rejected")
		return nil, StalePlanError{Containers: stale}
	}
	return c.apply(ctx, plan)
}

// Move plans a drop against the latest stored snapshot and applies it. A
// no-op drop returns ok == false and writes nothing.
func (c *Coordinator) Move(ctx context.Context, draggedID, overID string) (order.Plan, []model.Entity, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return order.Plan{}, nil, false, err
	}
	plan, ok := order.PlanMove(snap, draggedID, overID)
	if !ok {
		c.log.Debug().Str("dragged", draggedID).Str("over", overID).Msg("move is a no-op")
		return plan, nil, false, nil
	}
	entities, err := c.apply(ctx, plan)
	return plan, entities, true, err
}

// Reindex repairs every container of the stored state.
func (c *Coordinator) Reindex(ctx context.Context) (order.Plan, []model.Entity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, err := c.store.Snapshot(ctx)
	if err != nil {
		return order.Plan{}, nil, err
	}
	plan := order.Heal(snap)
	if plan.IsNoop() {
		return plan, nil, nil
	}
	entities, err := c.apply(ctx, plan)
	return plan, entities, err
}

func (c *Coordinator) apply(ctx context.Context, plan order.Plan) ([]model.Entity, error) {
	var (
		entities []model.Entity
		err      error
	)
	switch c.mode {
	case ModeSequential:
		entities, err = c.applySequential(ctx, plan)
	default:
		entities, err = c.store.ApplyPlan(ctx, plan.Assignments)
	}
	// Whatever reached the store is broadcast, including a partial prefix.
	for _, e := range entities {
		c.pub.Publish(model.UpdatedEvent(e))
	}
	if err != nil {
		c.log.Error().Err(err).Str("case", plan.Case.String()).Int("applied", len(entities)).Int("planned", len(plan.Assignments)).Msg("plan failed")
		return entities, err
	}
	c.log.Info().Str("case", plan.Case.String()).Str("dragged", plan.DraggedID).Str("over", plan.OverID).Int("writes", len(entities)).Msg("plan applied")
	return entities, nil
}

func (c *Coordinator) applySequential(ctx context.Context, plan order.Plan) ([]model.Entity, error) {
	applied := make([]model.Entity, 0, len(plan.Assignments))
	for _, a := range plan.Assignments {
		var (
			e   model.Entity
			err error
		)
		switch a.Kind {
		case model.KindItem:
			var it model.Item
			it, err = c.store.UpdateItem(ctx, a.ID, a.ItemPatch())
			e.Item = &it
		case model.KindFolder:
			var f model.Folder
			f, err = c.store.UpdateFolder(ctx, a.ID, a.FolderPatch())
			e.Folder = &f
		default:
			err = store.InvalidError{Field: "kind", Reason: fmt.Sprintf("unknown %q", a.Kind)}
		}
		if err != nil {
			return applied, PartialPlanError{Applied: applied, Failed: a, Err: err}
		}
		applied = append(applied, e)
	}
	return applied, nil
}

func (c *Coordinator) CreateItem(ctx context.Context, in model.NewItem) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, err := c.store.CreateItem(ctx, in)
	if err != nil {
		return model.Item{}, err
	}
	c.pub.Publish(model.ItemCreated(it))
	c.log.Info().Str("id", it.ID).Msg("item created")
	return it, nil
}

func (c *Coordinator) UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, err := c.store.UpdateItem(ctx, id, p)
	if err != nil {
		return model.Item{}, err
	}
	c.pub.Publish(model.ItemUpdated(it))
	return it, nil
}

// DeleteItem removes an item, then broadcasts the siblings whose index moved.
func (c *Coordinator) DeleteItem(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.store.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	c.pub.Publish(model.ItemDeleted(id))
	for _, it := range changed {
		c.pub.Publish(model.ItemUpdated(it))
	}
	c.log.Info().Str("id", id).Int("renumbered", len(changed)).Msg("item deleted")
	return nil
}

func (c *Coordinator) CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.store.CreateFolder(ctx, in)
	if err != nil {
		return model.Folder{}, err
	}
	c.pub.Publish(model.FolderCreated(f))
	c.log.Info().Str("id", f.ID).Msg("folder created")
	return f, nil
}

func (c *Coordinator) UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := c.store.UpdateFolder(ctx, id, p)
	if err != nil {
		return model.Folder{}, err
	}
	c.pub.Publish(model.FolderUpdated(f))
	return f, nil
}

// DeleteFolder broadcasts the re-owned items before the folderDeleted event,
// so no client ever holds an item pointing at a folder it has dropped.
func (c *Coordinator) DeleteFolder(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	del, err := c.store.DeleteFolder(ctx, id)
	if err != nil {
		return err
	}
	for _, it := range del.Items {
		c.pub.Publish(model.ItemUpdated(it))
	}
	c.pub.Publish(model.FolderDeleted(id))
	for _, f := range del.Folders {
		c.pub.Publish(model.FolderUpdated(f))
	}
	c.log.Info().Str("id", id).Int("reowned", len(del.Items)).Msg("folder deleted")
	return nil
}

// newViolations lists containers that are clean in before but broken in after.
// A container naming a folder that no longer exists is left to the store,
// which rejects the write as not found.
func newViolations(before, after model.Snapshot) []order.ContainerID {
	had := map[order.ContainerID]bool{}
	for _, v := range order.Check(before) {
		had[v.Container] = true
	}
	seen := map[order.ContainerID]bool{}
	out := []order.ContainerID{}
	for _, v := range order.Check(after) {
		if had[v.Container] || seen[v.Container] || dangling(after, v.Container) {
			continue
		}
		seen[v.Container] = true
		out = append(out, v.Container)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func dangling(s model.Snapshot, c order.ContainerID) bool {
	if c == order.Board || c == order.Folders {
		return false
	}
	_, ok := s.FindFolder(string(c))
	return !ok
}

func containerStrings(cs []order.ContainerID) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, string(c))
	}
	return out
}
