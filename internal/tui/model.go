package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"boardsync/internal/client"
	"boardsync/internal/model"
)

// Backend is the server surface the TUI drives.
type Backend interface {
	client.Submitter
	Snapshot(ctx context.Context) (model.Snapshot, error)
	CreateItem(ctx context.Context, in model.NewItem) (model.Item, error)
	CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error)
	UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error)
	UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error)
	DeleteItem(ctx context.Context, id string) error
	DeleteFolder(ctx context.Context, id string) error
}

const (
	requestTimeout = 10 * time.Second

	titleLimit       = 200
	descriptionLimit = 4000
)

type (
	eventMsg        struct{ ev model.Event }
	disconnectedMsg struct{ err error }
	snapshotMsg     struct {
		snap model.Snapshot
		err  error
	}
	opDoneMsg struct {
		what string
		err  error
	}
	toggleDoneMsg struct {
		revert func()
		err    error
	}
)

type promptKind int

const (
	promptNone promptKind = iota
	promptItem
	promptFolder
	promptRename
	promptIcon
	promptDescription
)

type appModel struct {
	ctx     context.Context
	backend Backend
	cache   *client.Cache
	drag    client.DragSession

	keys   keyMap
	help   help.Model
	input  textinput.Model
	prompt promptKind
	styles styles

	// editing is the row a rename, icon or description prompt writes to.
	editing row

	rows     []row
	cursor   int
	width    int
	height   int
	showHelp bool

	connected bool
	status    string
	errLine   string
}

func newAppModel(ctx context.Context, b Backend, cache *client.Cache) appModel {
	in := textinput.New()
	in.CharLimit = titleLimit
	m := appModel{
		ctx:     ctx,
		backend: b,
		cache:   cache,
		keys:    defaultKeyMap(),
		help:    help.New(),
		input:   in,
		styles:  newStyles(),
		width:   80,
		height:  24,
	}
	m.refreshRows("")
	return m
}

func (m appModel) Init() tea.Cmd {
	return m.loadSnapshot()
}

func (m appModel) loadSnapshot() tea.Cmd {
	ctx, b := m.ctx, m.backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		s, err := b.Snapshot(ctx)
		return snapshotMsg{snap: s, err: err}
	}
}

// refreshRows rebuilds rows from the cache, keeping the cursor on keepID
// when it is still visible.
func (m *appModel) refreshRows(keepID string) {
	s := m.cache.Snapshot()
	m.rows = buildRows(s)
	if keepID != "" {
		if i := indexOfRow(m.rows, keepID); i >= 0 {
			m.cursor = i
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m appModel) current() (row, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return row{}, false
	}
	return m.rows[m.cursor], true
}

func (m appModel) currentID() string {
	if r, ok := m.current(); ok {
		return r.id
	}
	return ""
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.connected = true
		keep := m.currentID()
		if m.cache.Apply(msg.ev) {
			m.refreshRows(keep)
		}
		deleted := msg.ev.Type == model.EventItemDeleted || msg.ev.Type == model.EventFolderDeleted
		if id, ok := m.drag.Active(); ok && deleted && id == msg.ev.EntityID() {
			m.drag.Cancel()
			m.status = "dragged entity was deleted"
		}
		return m, nil

	case disconnectedMsg:
		m.connected = false
		if msg.err != nil {
			m.status = "reconnecting: " + msg.err.Error()
		}
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.errLine = "load failed: " + msg.err.Error()
			return m, nil
		}
		keep := m.currentID()
		m.cache.Replace(msg.snap)
		m.refreshRows(keep)
		m.errLine = ""
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.errLine = msg.what + " failed: " + msg.err.Error()
		} else {
			m.errLine = ""
		}
		return m, nil

	case toggleDoneMsg:
		if msg.err != nil {
			if msg.revert != nil {
				msg.revert()
			}
			m.refreshRows(m.currentID())
			m.errLine = "toggle failed: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		if m.prompt != promptNone {
			return m.updatePrompt(msg)
		}
		return m.updateKey(msg)
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.rows)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		if m.drag.Dragging() {
			m.drag.Cancel()
			m.status = "drag cancelled"
		}
		m.errLine = ""
		return m, nil

	case key.Matches(msg, m.keys.Grab):
		return m.grabOrDrop()

	case key.Matches(msg, m.keys.Toggle):
		return m.toggleFolder()

	case key.Matches(msg, m.keys.NewItem):
		return m.openPrompt(promptItem, "item title", "")

	case key.Matches(msg, m.keys.NewFolder):
		return m.openPrompt(promptFolder, "folder name", "")

	case key.Matches(msg, m.keys.Edit):
		return m.openEdit(promptRename)

	case key.Matches(msg, m.keys.EditIcon):
		return m.openEdit(promptIcon)

	case key.Matches(msg, m.keys.EditDesc):
		return m.openEdit(promptDescription)

	case key.Matches(msg, m.keys.Delete):
		return m.deleteCurrent()

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadSnapshot()
	}
	return m, nil
}

func (m appModel) grabOrDrop() (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	if !m.drag.Dragging() {
		if r.kind == rowBoardZone {
			return m, nil
		}
		m.drag.Begin(r.id)
		m.status = "dragging " + r.id
		return m, nil
	}

	dragged, _ := m.drag.Active()
	over := r.dropTarget()
	snap := m.cache.Snapshot()
	sess := m.drag
	m.drag.Cancel()
	m.status = ""

	ctx, b := m.ctx, m.backend
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		_, _, err := sess.Drop(ctx, over, snap, b)
		return opDoneMsg{what: "move " + dragged, err: err}
	}
}

func (m appModel) toggleFolder() (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok || r.kind != rowFolder {
		return m, nil
	}
	open := !r.folder.IsOpen
	revert, ok := m.cache.SetFolderOpen(r.id, open)
	if !ok {
		return m, nil
	}
	m.refreshRows(r.id)

	ctx, b, id := m.ctx, m.backend, r.id
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		_, err := b.UpdateFolder(ctx, id, model.FolderPatch{IsOpen: model.BoolPtr(open)})
		return toggleDoneMsg{revert: revert, err: err}
	}
}

func (m appModel) deleteCurrent() (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok || r.kind == rowBoardZone {
		return m, nil
	}
	ctx, b := m.ctx, m.backend
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		var err error
		if r.kind == rowFolder {
			err = b.DeleteFolder(ctx, r.id)
		} else {
			err = b.DeleteItem(ctx, r.id)
		}
		return opDoneMsg{what: "delete " + r.id, err: err}
	}
}

func (m appModel) openPrompt(kind promptKind, placeholder, value string) (tea.Model, tea.Cmd) {
	m.prompt = kind
	m.input.Reset()
	m.input.CharLimit = titleLimit
	if kind == promptDescription {
		m.input.CharLimit = descriptionLimit
	}
	m.input.Placeholder = placeholder
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

// openEdit prefills a prompt with the current value of the row under the
// cursor. Folders only have a name; icon and description apply to items.
func (m appModel) openEdit(kind promptKind) (tea.Model, tea.Cmd) {
	r, ok := m.current()
	if !ok {
		return m, nil
	}
	var placeholder, value string
	switch {
	case r.kind == rowFolder && kind == promptRename:
		placeholder, value = "folder name", r.folder.Name
	case r.kind != rowItem:
		return m, nil
	case kind == promptRename:
		placeholder, value = "item title", r.item.Title
	case kind == promptIcon:
		placeholder, value = "icon (empty clears)", r.item.Icon
	case kind == promptDescription:
		placeholder = "markdown description (empty clears)"
		if r.item.Description != nil {
			value = *r.item.Description
		}
	}
	m.editing = r
	return m.openPrompt(kind, placeholder, value)
}

// editCmd sends the patch for a finished edit prompt. ok is false when the
// input leaves nothing to send.
func (m appModel) editCmd(kind promptKind, text string) (tea.Cmd, bool) {
	r := m.editing
	if r.id == "" {
		return nil, false
	}
	if kind == promptRename && text == "" {
		return nil, false
	}
	ctx, b := m.ctx, m.backend
	if r.kind == rowFolder {
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			_, err := b.UpdateFolder(ctx, r.id, model.FolderPatch{Name: model.StringPtr(text)})
			return opDoneMsg{what: "rename " + r.id, err: err}
		}, true
	}

	var p model.ItemPatch
	switch kind {
	case promptRename:
		p.Title = model.StringPtr(text)
	case promptIcon:
		p.Icon = model.StringPtr(text)
	case promptDescription:
		if text == "" {
			p.Description = model.Null()
		} else {
			p.Description = model.Some(text)
		}
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		_, err := b.UpdateItem(ctx, r.id, p)
		return opDoneMsg{what: "edit " + r.id, err: err}
	}, true
}

// targetFolder is the folder a new item lands in: the folder under the
// cursor, or the folder of the item under it.
func (m appModel) targetFolder() *string {
	r, ok := m.current()
	if !ok {
		return nil
	}
	switch {
	case r.kind == rowFolder:
		return model.StringPtr(r.id)
	case r.kind == rowItem && r.item.FolderID != nil:
		return model.StringPtr(*r.item.FolderID)
	}
	return nil
}

func (m appModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompt = promptNone
		m.editing = row{}
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		text := strings.TrimSpace(m.input.Value())
		kind := m.prompt
		m.prompt = promptNone
		m.input.Blur()
		if kind == promptRename || kind == promptIcon || kind == promptDescription {
			cmd, ok := m.editCmd(kind, text)
			m.editing = row{}
			if !ok {
				return m, nil
			}
			return m, cmd
		}
		if text == "" {
			return m, nil
		}
		ctx, b, folderID := m.ctx, m.backend, m.targetFolder()
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(ctx, requestTimeout)
			defer cancel()
			if kind == promptFolder {
				_, err := b.CreateFolder(ctx, model.NewFolder{Name: text})
				return opDoneMsg{what: "create folder", err: err}
			}
			_, err := b.CreateItem(ctx, model.NewItem{Title: text, FolderID: folderID})
			return opDoneMsg{what: "create item", err: err}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	var b strings.Builder

	title := m.styles.title.Render("boardsync")
	conn := m.styles.muted.Render("offline")
	if m.connected {
		conn = m.styles.muted.Render("live")
	}
	b.WriteString(title + "  " + conn + "\n\n")

	listWidth := m.width
	side := m.sideView()
	if side != "" {
		listWidth = m.width * 3 / 5
	}

	rows, cursorID := m.rows, m.currentID()
	if m.drag.Dragging() {
		if r, ok := m.current(); ok {
			rows = buildRows(m.drag.PreviewAt(m.cache.Snapshot(), r.dropTarget()))
		}
	}
	dragged, _ := m.drag.Active()

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, m.renderRow(r, listWidth, r.id == cursorID, r.id == dragged))
	}
	list := strings.Join(lines, "\n")
	if side != "" {
		list = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(listWidth).Render(list),
			m.styles.sidePanel.Render(side),
		)
	}
	b.WriteString(list + "\n\n")

	if m.prompt != promptNone {
		b.WriteString(m.styles.promptMark.Render("> ") + m.input.View() + "\n")
	}
	if m.errLine != "" {
		b.WriteString(m.styles.errLine.Render(m.errLine) + "\n")
	}
	if m.status != "" {
		b.WriteString(m.styles.status.Render(m.status) + "\n")
	}
	if m.showHelp {
		b.WriteString(m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return b.String()
}

func (m appModel) renderRow(r row, width int, selected, dragged bool) string {
	var text string
	switch r.kind {
	case rowFolder:
		mark := "▸"
		if r.folder.IsOpen {
			mark = "▾"
		}
		text = fmt.Sprintf("%s %s", mark, r.folder.Name)
	case rowBoardZone:
		text = m.styles.section.Render("── board ──")
	case rowItem:
		icon := r.item.Icon
		if icon == "" {
			icon = "•"
		}
		text = strings.Repeat("  ", r.depth) + icon + " " + r.item.Title
	}
	if width > 2 && xansi.StringWidth(text) > width-2 {
		text = xansi.Truncate(text, width-2, "…")
	}

	prefix := "  "
	if dragged {
		prefix = "⇅ "
		text = m.styles.dragged.Render(text)
	}
	line := prefix + text
	if selected {
		return m.styles.selected.Render(line)
	}
	return m.styles.row.Render(line)
}

// sideView renders the description of the item under the cursor.
func (m appModel) sideView() string {
	r, ok := m.current()
	if !ok || r.kind != rowItem || r.item.Description == nil {
		return ""
	}
	w := m.width*2/5 - 3
	return renderMarkdown(*r.item.Description, w)
}
