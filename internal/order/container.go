package order

import (
	"sort"
	"strings"

	"boardsync/internal/model"
)

// ContainerID names an ordering scope: the loose area, the folder list, or
// the item list of one folder (the folder's own id).
type ContainerID string

const (
	// Board is the loose area. It is also the id of the loose area's drop
	// zone, so an empty board is still a valid drop target.
	Board ContainerID = "board"
	// Folders is the single top-level container holding every folder.
	Folders ContainerID = "folders"
)

func FolderContainer(folderID string) ContainerID {
	return ContainerID(strings.TrimSpace(folderID))
}

// IsItemList reports whether the container holds items (board or a folder).
func (c ContainerID) IsItemList() bool { return c != Folders }

// FolderRef is the folderId an item in this container carries (nil for board).
func (c ContainerID) FolderRef() *string {
	if c == Board || c == Folders {
		return nil
	}
	id := string(c)
	return &id
}

func ItemContainer(it model.Item) ContainerID {
	if it.IsLoose() {
		return Board
	}
	return FolderContainer(*it.FolderID)
}

// ContainerOf resolves the container of any entity id in the snapshot.
func ContainerOf(s model.Snapshot, id string) (ContainerID, bool) {
	if it, ok := s.FindItem(id); ok {
		return ItemContainer(it), true
	}
	if _, ok := s.FindFolder(id); ok {
		return Folders, true
	}
	return "", false
}

// MembersOf returns the ids in c sorted by orderIndex ascending, ties by id.
func MembersOf(s model.Snapshot, c ContainerID) []string {
	if c == Folders {
		fs := SortedFolders(s)
		out := make([]string, 0, len(fs))
		for _, f := range fs {
			out = append(out, f.ID)
		}
		return out
	}
	its := SortedItems(s, c)
	out := make([]string, 0, len(its))
	for _, it := range its {
		out = append(out, it.ID)
	}
	return out
}

// SortedItems returns copies of the items in c in display order.
func SortedItems(s model.Snapshot, c ContainerID) []model.Item {
	out := []model.Item{}
	for _, it := range s.Items {
		if ItemContainer(it) == c {
			out = append(out, it)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareIndexID(out[i].OrderIndex, out[i].ID, out[j].OrderIndex, out[j].ID) < 0
	})
	return out
}

func SortedFolders(s model.Snapshot) []model.Folder {
	out := append([]model.Folder{}, s.Folders...)
	sort.SliceStable(out, func(i, j int) bool {
		return compareIndexID(out[i].OrderIndex, out[i].ID, out[j].OrderIndex, out[j].ID) < 0
	})
	return out
}

func compareIndexID(ai int, aid string, bi int, bid string) int {
	if ai != bi {
		if ai < bi {
			return -1
		}
		return 1
	}
	return strings.Compare(aid, bid)
}

// Containers lists every container present in the snapshot: the folder list,
// the board, each folder in display order, then any folder id referenced by an
// item but missing from the folder set.
func Containers(s model.Snapshot) []ContainerID {
	out := []ContainerID{Folders, Board}
	known := map[ContainerID]bool{Folders: true, Board: true}
	for _, f := range SortedFolders(s) {
		c := FolderContainer(f.ID)
		if !known[c] {
			known[c] = true
			out = append(out, c)
		}
	}
	dangling := []string{}
	for _, it := range s.Items {
		c := ItemContainer(it)
		if !known[c] {
			known[c] = true
			dangling = append(dangling, string(c))
		}
	}
	sort.Strings(dangling)
	for _, id := range dangling {
		out = append(out, ContainerID(id))
	}
	return out
}
