package order

import (
	"encoding/json"
	"fmt"
	"strings"

	"boardsync/internal/model"
)

// Case identifies which drop rule produced a plan.
type Case int

const (
	CaseNone Case = iota
	CaseSameContainer
	CaseCrossContainer
	CaseIntoFolder
	CaseToBoard
	CaseHeal
)

var caseNames = map[Case]string{
	CaseNone:           "none",
	CaseSameContainer:  "same-container",
	CaseCrossContainer: "cross-container",
	CaseIntoFolder:     "into-folder",
	CaseToBoard:        "to-board",
	CaseHeal:           "heal",
}

func (c Case) String() string {
	if s, ok := caseNames[c]; ok {
		return s
	}
	return fmt.Sprintf("case(%d)", int(c))
}

func (c Case) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *Case) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for k, v := range caseNames {
		if v == s {
			*c = k
			return nil
		}
	}
	return fmt.Errorf("unknown plan case: %q", s)
}

// Assignment is one entity write of a plan. FolderID is only set when the
// item changes container.
type Assignment struct {
	Kind       model.Kind           `json:"kind"`
	ID         string               `json:"id"`
	OrderIndex int                  `json:"orderIndex"`
	FolderID   model.OptionalString `json:"folderId,omitzero"`
}

func (a Assignment) ItemPatch() model.ItemPatch {
	n := a.OrderIndex
	return model.ItemPatch{OrderIndex: &n, FolderID: a.FolderID}
}

func (a Assignment) FolderPatch() model.FolderPatch {
	n := a.OrderIndex
	return model.FolderPatch{OrderIndex: &n}
}

// Plan is the full set of writes realizing one drop gesture.
type Plan struct {
	DraggedID   string       `json:"draggedId"`
	OverID      string       `json:"overId"`
	Case        Case         `json:"case"`
	Assignments []Assignment `json:"assignments"`
}

func (p Plan) IsNoop() bool { return len(p.Assignments) == 0 }

// Renumber assigns 0..n-1 to ids in the given order.
func Renumber(kind model.Kind, ids []string) []Assignment {
	out := make([]Assignment, 0, len(ids))
	for i, id := range ids {
		out = append(out, Assignment{Kind: kind, ID: id, OrderIndex: i})
	}
	return out
}

// PlanMove computes the writes needed to drop draggedID onto overID. overID is
// an item id, a folder id, or Board for the loose area's drop zone. The second
// return value is false when the drop is a no-op; the plan then has no
// assignments.
//
// Rules, first match wins:
//  1. same container: move dragged to the target's position
//  2. item onto an item in another container: insert at the target's position
//  3. item onto a folder: append to the end of that folder
//  4. item onto the board drop zone: append to the end of the loose list
func PlanMove(s model.Snapshot, draggedID, overID string) (Plan, bool) {
	draggedID = strings.TrimSpace(draggedID)
	overID = strings.TrimSpace(overID)
	plan := Plan{DraggedID: draggedID, OverID: overID, Case: CaseNone}
	if draggedID == "" || overID == "" || draggedID == overID {
		return plan, false
	}

	draggedItem, isItem := s.FindItem(draggedID)
	_, isFolder := s.FindFolder(draggedID)
	if !isItem && !isFolder {
		return plan, false
	}
	targetItem, overIsItem := s.FindItem(overID)
	_, overIsFolder := s.FindFolder(overID)
	overIsFolder = overIsFolder && !overIsItem

	// Folders only reorder among folders.
	if isFolder && !isItem {
		if !overIsFolder {
			return plan, false
		}
		ids := MembersOf(s, Folders)
		plan.Case = CaseSameContainer
		plan.Assignments = Renumber(model.KindFolder, moveWithin(ids, draggedID, overID))
		return plan, true
	}

	from := ItemContainer(draggedItem)
	switch {
	case overIsItem && ItemContainer(targetItem) == from:
		ids := MembersOf(s, from)
		plan.Case = CaseSameContainer
		plan.Assignments = Renumber(model.KindItem, moveWithin(ids, draggedID, overID))
		return plan, true

	case overIsItem:
		to := ItemContainer(targetItem)
		dest := without(MembersOf(s, to), draggedID)
		at := indexOf(dest, overID)
		dest = insertAt(dest, at, draggedID)
		plan.Case = CaseCrossContainer
		plan.Assignments = relocate(s, draggedID, from, to, dest)
		return plan, true

	case overIsFolder:
		to := FolderContainer(overID)
		dest := append(without(MembersOf(s, to), draggedID), draggedID)
		plan.Case = CaseIntoFolder
		plan.Assignments = relocate(s, draggedID, from, to, dest)
		return plan, true

	case ContainerID(overID) == Board:
		if from == Board {
			return plan, false
		}
		dest := append(without(MembersOf(s, Board), draggedID), draggedID)
		plan.Case = CaseToBoard
		plan.Assignments = relocate(s, draggedID, from, Board, dest)
		return plan, true
	}
	return plan, false
}

// relocate renumbers the destination (dragged first, carrying its new
// folderId when it changes container) and then the source container.
func relocate(s model.Snapshot, draggedID string, from, to ContainerID, dest []string) []Assignment {
	renum := Renumber(model.KindItem, dest)
	out := make([]Assignment, 0, len(renum)+len(s.Items))
	for _, a := range renum {
		if a.ID == draggedID {
			if from != to {
				a.FolderID = model.OptionalFrom(to.FolderRef())
			}
			out = append(out, a)
		}
	}
	for _, a := range renum {
		if a.ID != draggedID {
			out = append(out, a)
		}
	}
	if from != to {
		out = append(out, Renumber(model.KindItem, without(MembersOf(s, from), draggedID))...)
	}
	return out
}

// moveWithin removes id and reinserts it at the target's original index.
func moveWithin(ids []string, id, targetID string) []string {
	from := indexOf(ids, id)
	to := indexOf(ids, targetID)
	if from < 0 || to < 0 {
		return append([]string{}, ids...)
	}
	rest := without(ids, id)
	return insertAt(rest, to, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}

func insertAt(ids []string, at int, id string) []string {
	if at < 0 {
		at = 0
	}
	if at > len(ids) {
		at = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, id)
	out = append(out, ids[at:]...)
	return out
}

func indexOf(ids []string, id string) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

// Preview applies a plan to a copy of s. Used for the local drag preview; the
// real state only changes through canonical broadcasts.
func Preview(s model.Snapshot, p Plan) model.Snapshot {
	out := s.Clone()
	for _, a := range p.Assignments {
		switch a.Kind {
		case model.KindItem:
			for i := range out.Items {
				if out.Items[i].ID == a.ID {
					out.Items[i] = a.ItemPatch().Apply(out.Items[i])
				}
			}
		case model.KindFolder:
			for i := range out.Folders {
				if out.Folders[i].ID == a.ID {
					out.Folders[i] = a.FolderPatch().Apply(out.Folders[i])
				}
			}
		}
	}
	return out
}
