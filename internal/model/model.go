package model

import "strings"

type Kind string

const (
	KindItem   Kind = "item"
	KindFolder Kind = "folder"
)

// Item is a single card on the board. FolderID == nil means the loose area.
type Item struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Icon        string  `json:"icon"`
	Description *string `json:"description,omitempty"`
	FolderID    *string `json:"folderId"`
	OrderIndex  int     `json:"orderIndex"`
}

// IsLoose reports whether the item lives in the loose area.
func (it Item) IsLoose() bool {
	return it.FolderID == nil || strings.TrimSpace(*it.FolderID) == ""
}

type Folder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsOpen     bool   `json:"isOpen"`
	OrderIndex int    `json:"orderIndex"`
}

// Snapshot is the full board state: the shape of GET /api/data and of the
// initialData push on connect.
type Snapshot struct {
	Items   []Item   `json:"items"`
	Folders []Folder `json:"folders"`
}

// Clone returns a deep copy so callers can mutate the result freely.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Items:   make([]Item, len(s.Items)),
		Folders: make([]Folder, len(s.Folders)),
	}
	for i, it := range s.Items {
		out.Items[i] = it.clone()
	}
	copy(out.Folders, s.Folders)
	return out
}

func (s Snapshot) FindItem(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}

func (s Snapshot) FindFolder(id string) (Folder, bool) {
	for _, f := range s.Folders {
		if f.ID == id {
			return f, true
		}
	}
	return Folder{}, false
}

func (it Item) clone() Item {
	out := it
	if it.Description != nil {
		d := *it.Description
		out.Description = &d
	}
	if it.FolderID != nil {
		f := *it.FolderID
		out.FolderID = &f
	}
	return out
}

// Entity is one canonical record returned by a write. Exactly one of Item or
// Folder is set.
type Entity struct {
	Item   *Item   `json:"item,omitempty"`
	Folder *Folder `json:"folder,omitempty"`
}

func (e Entity) Kind() Kind {
	if e.Folder != nil {
		return KindFolder
	}
	return KindItem
}

func (e Entity) ID() string {
	switch {
	case e.Item != nil:
		return e.Item.ID
	case e.Folder != nil:
		return e.Folder.ID
	}
	return ""
}

// NewItem is the create payload. OrderIndex is assigned by the store.
type NewItem struct {
	Title       string  `json:"title"`
	Icon        string  `json:"icon"`
	Description *string `json:"description,omitempty"`
	FolderID    *string `json:"folderId,omitempty"`
}

type NewFolder struct {
	Name   string `json:"name"`
	IsOpen *bool  `json:"isOpen,omitempty"`
}

// StringPtr is a small helper for literals in callers and tests.
func StringPtr(s string) *string { return &s }

func IntPtr(n int) *int { return &n }

func BoolPtr(b bool) *bool { return &b }
