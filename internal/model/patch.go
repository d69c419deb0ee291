package model

import (
	"bytes"
	"encoding/json"
)

// OptionalString distinguishes an omitted field from an explicit null.
//
//   - zero value: field omitted, keep the stored value
//   - Set && Value == nil: explicit null, clear the stored value
//   - Set && Value != nil: replace the stored value
//
// Use it with the `omitzero` tag so the omitted state never reaches the wire.
type OptionalString struct {
	Set   bool
	Value *string
}

func Omitted() OptionalString { return OptionalString{} }

func Null() OptionalString { return OptionalString{Set: true} }

func Some(s string) OptionalString { return OptionalString{Set: true, Value: &s} }

// OptionalFrom maps a pointer onto an explicit value (nil => null).
func OptionalFrom(p *string) OptionalString {
	if p == nil {
		return Null()
	}
	return Some(*p)
}

func (o OptionalString) IsZero() bool { return !o.Set }

func (o OptionalString) IsNull() bool { return o.Set && o.Value == nil }

func (o OptionalString) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*o.Value)
}

func (o *OptionalString) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// ItemPatch is a partial update. Nil pointers and omitted optionals leave the
// stored value untouched.
type ItemPatch struct {
	Title       *string        `json:"title,omitempty"`
	Icon        *string        `json:"icon,omitempty"`
	Description OptionalString `json:"description,omitzero"`
	FolderID    OptionalString `json:"folderId,omitzero"`
	OrderIndex  *int           `json:"orderIndex,omitempty"`
}

func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Icon == nil && !p.Description.Set && !p.FolderID.Set && p.OrderIndex == nil
}

// Apply returns it with the patch applied.
func (p ItemPatch) Apply(it Item) Item {
	out := it.clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Icon != nil {
		out.Icon = *p.Icon
	}
	if p.Description.Set {
		out.Description = copyPtr(p.Description.Value)
	}
	if p.FolderID.Set {
		out.FolderID = copyPtr(p.FolderID.Value)
	}
	if p.OrderIndex != nil {
		out.OrderIndex = *p.OrderIndex
	}
	return out
}

type FolderPatch struct {
	Name       *string `json:"name,omitempty"`
	IsOpen     *bool   `json:"isOpen,omitempty"`
	OrderIndex *int    `json:"orderIndex,omitempty"`
}

func (p FolderPatch) IsEmpty() bool {
	return p.Name == nil && p.IsOpen == nil && p.OrderIndex == nil
}

func (p FolderPatch) Apply(f Folder) Folder {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.IsOpen != nil {
		f.IsOpen = *p.IsOpen
	}
	if p.OrderIndex != nil {
		f.OrderIndex = *p.OrderIndex
	}
	return f
}

func copyPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := *p
	return &s
}
