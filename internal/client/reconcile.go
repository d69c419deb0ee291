// Package client holds the client-side half of board sync: a local cache
// that only changes through canonical server events, a drag session, and the
// REST and websocket transports.
package client

import (
	"boardsync/internal/model"
)

// ApplyEvent folds one canonical server event into s and returns the new
// snapshot. The input is never modified. The bool reports whether anything
// changed.
//
//   - initialData replaces everything
//   - *Created inserts unless the id is already present
//   - *Updated replaces by id, inserting when unknown
//   - *Deleted removes by id
func ApplyEvent(s model.Snapshot, ev model.Event) (model.Snapshot, bool) {
	switch ev.Type {
	case model.EventInitialData:
		if ev.Snapshot == nil {
			return s, false
		}
		out := ev.Snapshot.Clone()
		return out, true

	case model.EventItemCreated, model.EventItemUpdated:
		if ev.Item == nil {
			return s, false
		}
		out := s.Clone()
		for i := range out.Items {
			if out.Items[i].ID == ev.Item.ID {
				if ev.Type == model.EventItemCreated {
					return s, false
				}
				out.Items[i] = *ev.Item
				return out, true
			}
		}
		out.Items = append(out.Items, *ev.Item)
		return out, true

	case model.EventFolderCreated, model.EventFolderUpdated:
		if ev.Folder == nil {
			return s, false
		}
		out := s.Clone()
		for i := range out.Folders {
			if out.Folders[i].ID == ev.Folder.ID {
				if ev.Type == model.EventFolderCreated {
					return s, false
				}
				out.Folders[i] = *ev.Folder
				return out, true
			}
		}
		out.Folders = append(out.Folders, *ev.Folder)
		return out, true

	case model.EventItemDeleted:
		if ev.Deleted == nil {
			return s, false
		}
		out := s.Clone()
		kept := out.Items[:0]
		for _, it := range out.Items {
			if it.ID != ev.Deleted.ID {
				kept = append(kept, it)
			}
		}
		if len(kept) == len(s.Items) {
			return s, false
		}
		out.Items = kept
		return out, true

	case model.EventFolderDeleted:
		if ev.Deleted == nil {
			return s, false
		}
		out := s.Clone()
		kept := out.Folders[:0]
		for _, f := range out.Folders {
			if f.ID != ev.Deleted.ID {
				kept = append(kept, f)
			}
		}
		if len(kept) == len(s.Folders) {
			return s, false
		}
		out.Folders = kept
		return out, true
	}
	return s, false
}
