package model

import (
	"encoding/json"
	"fmt"
)

type EventType string

const (
	EventInitialData   EventType = "initialData"
	EventItemCreated   EventType = "itemCreated"
	EventItemUpdated   EventType = "itemUpdated"
	EventItemDeleted   EventType = "itemDeleted"
	EventFolderCreated EventType = "folderCreated"
	EventFolderUpdated EventType = "folderUpdated"
	EventFolderDeleted EventType = "folderDeleted"
)

// Deleted is the payload of itemDeleted/folderDeleted.
type Deleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Event is one server -> client push. Create/update events always carry the
// full canonical entity, never a delta.
type Event struct {
	Type     EventType
	Item     *Item
	Folder   *Folder
	Deleted  *Deleted
	Snapshot *Snapshot
}

func ItemCreated(it Item) Event     { return Event{Type: EventItemCreated, Item: &it} }
func ItemUpdated(it Item) Event     { return Event{Type: EventItemUpdated, Item: &it} }
func FolderCreated(f Folder) Event  { return Event{Type: EventFolderCreated, Folder: &f} }
func FolderUpdated(f Folder) Event  { return Event{Type: EventFolderUpdated, Folder: &f} }
func InitialData(s Snapshot) Event  { return Event{Type: EventInitialData, Snapshot: &s} }
func ItemDeleted(id string) Event   { return Event{Type: EventItemDeleted, Deleted: &Deleted{ID: id, Deleted: true}} }
func FolderDeleted(id string) Event { return Event{Type: EventFolderDeleted, Deleted: &Deleted{ID: id, Deleted: true}} }

// UpdatedEvent wraps a canonical entity as itemUpdated or folderUpdated.
func UpdatedEvent(e Entity) Event {
	if e.Folder != nil {
		return FolderUpdated(*e.Folder)
	}
	return ItemUpdated(*e.Item)
}

// EntityID returns the id the event refers to ("" for initialData).
func (e Event) EntityID() string {
	switch {
	case e.Item != nil:
		return e.Item.ID
	case e.Folder != nil:
		return e.Folder.ID
	case e.Deleted != nil:
		return e.Deleted.ID
	}
	return ""
}

type wireEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (e Event) payload() (any, error) {
	switch e.Type {
	case EventInitialData:
		if e.Snapshot == nil {
			return Snapshot{Items: []Item{}, Folders: []Folder{}}, nil
		}
		return e.Snapshot, nil
	case EventItemCreated, EventItemUpdated:
		if e.Item == nil {
			return nil, fmt.Errorf("%s: missing item", e.Type)
		}
		return e.Item, nil
	case EventFolderCreated, EventFolderUpdated:
		if e.Folder == nil {
			return nil, fmt.Errorf("%s: missing folder", e.Type)
		}
		return e.Folder, nil
	case EventItemDeleted, EventFolderDeleted:
		if e.Deleted == nil {
			return nil, fmt.Errorf("%s: missing id", e.Type)
		}
		return e.Deleted, nil
	}
	return nil, fmt.Errorf("unknown event type: %q", e.Type)
}

// MarshalJSON encodes {"type": ..., "payload": ...}.
func (e Event) MarshalJSON() ([]byte, error) {
	p, err := e.payload()
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{Type: e.Type, Payload: raw})
}

func (e *Event) UnmarshalJSON(b []byte) error {
	var w wireEvent
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	out := Event{Type: w.Type}
	var target any
	switch w.Type {
	case EventInitialData:
		out.Snapshot = &Snapshot{}
		target = out.Snapshot
	case EventItemCreated, EventItemUpdated:
		out.Item = &Item{}
		target = out.Item
	case EventFolderCreated, EventFolderUpdated:
		out.Folder = &Folder{}
		target = out.Folder
	case EventItemDeleted, EventFolderDeleted:
		out.Deleted = &Deleted{}
		target = out.Deleted
	default:
		return fmt.Errorf("unknown event type: %q", w.Type)
	}
	if err := json.Unmarshal(w.Payload, target); err != nil {
		return fmt.Errorf("%s payload: %w", w.Type, err)
	}
	*e = out
	return nil
}
