package order

import (
	"fmt"

	"boardsync/internal/model"
)

// Violation describes one broken ordering invariant.
type Violation struct {
	Container ContainerID `json:"container"`
	EntityID  string      `json:"entityId,omitempty"`
	Problem   string      `json:"problem"`
}

func (v Violation) String() string {
	if v.EntityID != "" {
		return fmt.Sprintf("%s: %s (%s)", v.Container, v.Problem, v.EntityID)
	}
	return fmt.Sprintf("%s: %s", v.Container, v.Problem)
}

// Check reports every container whose orderIndex values are not exactly
// 0..n-1, and every item pointing at a folder that does not exist.
func Check(s model.Snapshot) []Violation {
	out := []Violation{}
	for _, c := range Containers(s) {
		if c != Folders && c != Board {
			if _, ok := s.FindFolder(string(c)); !ok {
				for _, id := range MembersOf(s, c) {
					out = append(out, Violation{Container: c, EntityID: id, Problem: "item references missing folder"})
				}
				continue
			}
		}
		for i, idx := range indexesOf(s, c) {
			if idx.orderIndex != i {
				out = append(out, Violation{
					Container: c,
					EntityID:  idx.id,
					Problem:   fmt.Sprintf("orderIndex %d at position %d", idx.orderIndex, i),
				})
			}
		}
	}
	return out
}

type indexed struct {
	id         string
	orderIndex int
}

func indexesOf(s model.Snapshot, c ContainerID) []indexed {
	out := []indexed{}
	if c == Folders {
		for _, f := range SortedFolders(s) {
			out = append(out, indexed{id: f.ID, orderIndex: f.OrderIndex})
		}
		return out
	}
	for _, it := range SortedItems(s, c) {
		out = append(out, indexed{id: it.ID, orderIndex: it.OrderIndex})
	}
	return out
}

// Heal renumbers every container and moves items of missing folders to the
// end of the board. Only entities whose values change are assigned, so a
// healthy snapshot yields an empty plan.
func Heal(s model.Snapshot) Plan {
	plan := Plan{Case: CaseHeal}

	folders := SortedFolders(s)
	for i, f := range folders {
		if f.OrderIndex != i {
			plan.Assignments = append(plan.Assignments, Assignment{Kind: model.KindFolder, ID: f.ID, OrderIndex: i})
		}
	}

	orphans := []model.Item{}
	boardLen := 0
	for _, c := range Containers(s) {
		if c == Folders {
			continue
		}
		if c != Board {
			if _, ok := s.FindFolder(string(c)); !ok {
				orphans = append(orphans, SortedItems(s, c)...)
				continue
			}
		}
		items := SortedItems(s, c)
		if c == Board {
			boardLen = len(items)
		}
		for i, it := range items {
			if it.OrderIndex != i {
				plan.Assignments = append(plan.Assignments, Assignment{Kind: model.KindItem, ID: it.ID, OrderIndex: i})
			}
		}
	}
	for j, it := range orphans {
		plan.Assignments = append(plan.Assignments, Assignment{
			Kind:       model.KindItem,
			ID:         it.ID,
			OrderIndex: boardLen + j,
			FolderID:   model.Null(),
		})
	}
	return plan
}
