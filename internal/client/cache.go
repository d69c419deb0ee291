package client

import (
	"sync"

	"boardsync/internal/model"
)

// Cache is the client's local copy of the board.
type Cache struct {
	mu   sync.RWMutex
	snap model.Snapshot
}

func NewCache(initial model.Snapshot) *Cache {
	return &Cache{snap: initial.Clone()}
}

// Snapshot returns a copy safe for the caller to keep.
func (c *Cache) Snapshot() model.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap.Clone()
}

func (c *Cache) Apply(ev model.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	next, changed := ApplyEvent(c.snap, ev)
	if changed {
		c.snap = next
	}
	return changed
}

func (c *Cache) Replace(s model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s.Clone()
}

// SetFolderOpen flips a folder's open flag locally ahead of the server. The
// returned revert restores the previous value unless a newer canonical
// event already overwrote it. ok is false when the folder is unknown.
func (c *Cache) SetFolderOpen(id string, open bool) (revert func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.snap.Folders {
		if c.snap.Folders[i].ID != id {
			continue
		}
		prev := c.snap.Folders[i].IsOpen
		c.snap.Folders[i].IsOpen = open
		return func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for j := range c.snap.Folders {
				if c.snap.Folders[j].ID == id && c.snap.Folders[j].IsOpen == open {
					c.snap.Folders[j].IsOpen = prev
				}
			}
		}, true
	}
	return func() {}, false
}
