package client

import (
	"context"

	"boardsync/internal/model"
	"boardsync/internal/order"
)

// Submitter sends a computed plan to the server.
type Submitter interface {
	SubmitPlan(ctx context.Context, plan order.Plan) error
}

// DragSession tracks one pointer gesture: Idle, or Dragging an entity.
type DragSession struct {
	active string
}

func (d *DragSession) Active() (string, bool) {
	return d.active, d.active != ""
}

func (d *DragSession) Dragging() bool { return d.active != "" }

// Begin starts dragging id. Starting a new drag replaces any active one.
func (d *DragSession) Begin(id string) { d.active = id }

func (d *DragSession) Cancel() { d.active = "" }

// PreviewAt is the board as it would look if the drag ended over overID.
// Outside a drag, or when the drop would be a no-op, it is s unchanged.
func (d *DragSession) PreviewAt(s model.Snapshot, overID string) model.Snapshot {
	if d.active == "" {
		return s
	}
	plan, ok := order.PlanMove(s, d.active, overID)
	if !ok {
		return s
	}
	return order.Preview(s, plan)
}

// Drop ends the gesture over overID. The session is Idle afterwards whatever
// the outcome. A no-op drop submits nothing and returns ok == false.
func (d *DragSession) Drop(ctx context.Context, overID string, s model.Snapshot, sub Submitter) (order.Plan, bool, error) {
	dragged := d.active
	d.active = ""
	if dragged == "" {
		return order.Plan{}, false, nil
	}
	plan, ok := order.PlanMove(s, dragged, overID)
	if !ok {
		return plan, false, nil
	}
	if err := sub.SubmitPlan(ctx, plan); err != nil {
		return plan, true, err
	}
	return plan, true, nil
}
