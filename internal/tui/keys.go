package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Grab      key.Binding
	Cancel    key.Binding
	Toggle    key.Binding
	NewItem   key.Binding
	NewFolder key.Binding
	Edit      key.Binding
	EditIcon  key.Binding
	EditDesc  key.Binding
	Delete    key.Binding
	Refresh   key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Grab:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "pick up / drop")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Toggle:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open/close folder")),
		NewItem:   key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new item")),
		NewFolder: key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new folder")),
		Edit:      key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename")),
		EditIcon:  key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "edit icon")),
		EditDesc:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "edit description")),
		Delete:    key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete")),
		Refresh:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Grab, k.Toggle, k.NewItem, k.Edit, k.Delete, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Grab, k.Cancel},
		{k.Toggle, k.NewItem, k.NewFolder, k.Delete},
		{k.Edit, k.EditIcon, k.EditDesc},
		{k.Refresh, k.Help, k.Quit},
	}
}
