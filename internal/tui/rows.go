package tui

import (
	"boardsync/internal/model"
	"boardsync/internal/order"
)

type rowKind int

const (
	rowFolder rowKind = iota
	rowItem
	rowBoardZone
)

// row is one selectable line of the board.
type row struct {
	kind   rowKind
	id     string
	depth  int
	folder *model.Folder
	item   *model.Item
}

// dropTarget is the overID a drop on this row uses.
func (r row) dropTarget() string {
	if r.kind == rowBoardZone {
		return string(order.Board)
	}
	return r.id
}

// buildRows lays the board out top to bottom: folders in order (with their
// items when open), then the loose area's drop zone and loose items.
func buildRows(s model.Snapshot) []row {
	out := []row{}
	for _, f := range order.SortedFolders(s) {
		f := f
		out = append(out, row{kind: rowFolder, id: f.ID, folder: &f})
		if !f.IsOpen {
			continue
		}
		for _, it := range order.SortedItems(s, order.FolderContainer(f.ID)) {
			it := it
			out = append(out, row{kind: rowItem, id: it.ID, depth: 1, item: &it})
		}
	}
	out = append(out, row{kind: rowBoardZone, id: string(order.Board)})
	for _, it := range order.SortedItems(s, order.Board) {
		it := it
		out = append(out, row{kind: rowItem, id: it.ID, item: &it})
	}
	return out
}

func indexOfRow(rows []row, id string) int {
	for i, r := range rows {
		if r.id == id {
			return i
		}
	}
	return -1
}
