package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"boardsync/internal/model"
	"boardsync/internal/order"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const (
	itemColumns   = `id, title, icon, description, folder_id, order_index`
	folderColumns = `id, name, is_open, order_index`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(r rowScanner) (model.Item, error) {
	var (
		it     model.Item
		desc   sql.NullString
		folder sql.NullString
	)
	if err := r.Scan(&it.ID, &it.Title, &it.Icon, &desc, &folder, &it.OrderIndex); err != nil {
		return model.Item{}, err
	}
	it.Description = stringPtr(desc)
	it.FolderID = stringPtr(folder)
	return it, nil
}

func scanFolder(r rowScanner) (model.Folder, error) {
	var (
		f      model.Folder
		isOpen int
	)
	if err := r.Scan(&f.ID, &f.Name, &isOpen, &f.OrderIndex); err != nil {
		return model.Folder{}, err
	}
	f.IsOpen = isOpen != 0
	return f, nil
}

// Snapshot returns every item and folder, each list in (orderIndex, id) order.
func (s *Store) Snapshot(ctx context.Context) (model.Snapshot, error) {
	return snapshot(ctx, s.db)
}

func snapshot(ctx context.Context, q querier) (model.Snapshot, error) {
	out := model.Snapshot{Items: []model.Item{}, Folders: []model.Folder{}}

	rows, err := q.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY order_index, id`)
	if err != nil {
		return out, err
	}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return out, err
		}
		out.Items = append(out.Items, it)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return out, err
	}
	_ = rows.Close()

	rows, err = q.QueryContext(ctx, `SELECT `+folderColumns+` FROM folders ORDER BY order_index, id`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return out, err
		}
		out.Folders = append(out.Folders, f)
	}
	return out, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, id string) (model.Item, error) {
	return getItem(ctx, s.db, id)
}

func (s *Store) GetFolder(ctx context.Context, id string) (model.Folder, error) {
	return getFolder(ctx, s.db, id)
}

func getItem(ctx context.Context, q querier, id string) (model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, NotFoundError{Kind: model.KindItem, ID: id}
	}
	return it, err
}

func getFolder(ctx context.Context, q querier, id string) (model.Folder, error) {
	f, err := scanFolder(q.QueryRowContext(ctx, `SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Folder{}, NotFoundError{Kind: model.KindFolder, ID: id}
	}
	return f, err
}

// itemIDsIn returns the ids of a container's items in display order.
func itemIDsIn(ctx context.Context, q querier, folderID *string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if folderID == nil {
		rows, err = q.QueryContext(ctx, `SELECT id FROM items WHERE folder_id IS NULL ORDER BY order_index, id`)
	} else {
		rows, err = q.QueryContext(ctx, `SELECT id FROM items WHERE folder_id = ? ORDER BY order_index, id`, *folderID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func folderIDs(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT id FROM folders ORDER BY order_index, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// nextItemIndex is one past the largest orderIndex in the container, so a new
// item sorts last even when earlier writes left gaps.
func nextItemIndex(ctx context.Context, q querier, folderID *string) (int, error) {
	var (
		next int
		err  error
	)
	if folderID == nil {
		err = q.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index) + 1, 0) FROM items WHERE folder_id IS NULL`).Scan(&next)
	} else {
		err = q.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index) + 1, 0) FROM items WHERE folder_id = ?`, *folderID).Scan(&next)
	}
	return next, err
}

// normalizeFolderRef maps blank folder ids to the loose area.
func normalizeFolderRef(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}

func (s *Store) CreateItem(ctx context.Context, in model.NewItem) (model.Item, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return model.Item{}, InvalidError{Field: "title", Reason: "required"}
	}
	folderID := normalizeFolderRef(in.FolderID)

	var out model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if folderID != nil {
			if _, err := getFolder(ctx, tx, *folderID); err != nil {
				return err
			}
		}
		next, err := nextItemIndex(ctx, tx, folderID)
		if err != nil {
			return err
		}
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items(id, title, icon, description, folder_id, order_index, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?, ?)`,
			id, title, in.Icon, nullString(in.Description), nullString(folderID), next, s.nowMs(),
		); err != nil {
			return err
		}
		out, err = getItem(ctx, tx, id)
		return err
	})
	return out, err
}

func (s *Store) CreateFolder(ctx context.Context, in model.NewFolder) (model.Folder, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Folder{}, InvalidError{Field: "name", Reason: "required"}
	}
	isOpen := true
	if in.IsOpen != nil {
		isOpen = *in.IsOpen
	}

	var out model.Folder
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(order_index) + 1, 0) FROM folders`).Scan(&next); err != nil {
			return err
		}
		id := uuid.NewString()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO folders(id, name, is_open, order_index, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			id, name, boolToInt(isOpen), next, s.nowMs(),
		); err != nil {
			return err
		}
		out, err = getFolder(ctx, tx, id)
		return err
	})
	return out, err
}

// UpdateItem writes only the fields present in p and returns the re-read row.
func (s *Store) UpdateItem(ctx context.Context, id string, p model.ItemPatch) (model.Item, error) {
	var out model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = updateItem(ctx, tx, id, p, s.nowMs())
		return err
	})
	return out, err
}

func updateItem(ctx context.Context, tx querier, id string, p model.ItemPatch, nowMs int64) (model.Item, error) {
	if _, err := getItem(ctx, tx, id); err != nil {
		return model.Item{}, err
	}
	sets := []string{}
	args := []any{}
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return model.Item{}, InvalidError{Field: "title", Reason: "required"}
		}
		sets = append(sets, "title = ?")
		args = append(args, title)
	}
	if p.Icon != nil {
		sets = append(sets, "icon = ?")
		args = append(args, *p.Icon)
	}
	if p.Description.Set {
		sets = append(sets, "description = ?")
		args = append(args, nullString(p.Description.Value))
	}
	if p.FolderID.Set {
		ref := normalizeFolderRef(p.FolderID.Value)
		if ref != nil {
			if _, err := getFolder(ctx, tx, *ref); err != nil {
				return model.Item{}, err
			}
		}
		sets = append(sets, "folder_id = ?")
		args = append(args, nullString(ref))
	}
	if p.OrderIndex != nil {
		if *p.OrderIndex < 0 {
			return model.Item{}, InvalidError{Field: "orderIndex", Reason: "must be >= 0"}
		}
		sets = append(sets, "order_index = ?")
		args = append(args, *p.OrderIndex)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at_unixms = ?")
		args = append(args, nowMs, id)
		if _, err := tx.ExecContext(ctx, `UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return model.Item{}, err
		}
	}
	return getItem(ctx, tx, id)
}

func (s *Store) UpdateFolder(ctx context.Context, id string, p model.FolderPatch) (model.Folder, error) {
	var out model.Folder
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		out, err = updateFolder(ctx, tx, id, p, s.nowMs())
		return err
	})
	return out, err
}

func updateFolder(ctx context.Context, tx querier, id string, p model.FolderPatch, nowMs int64) (model.Folder, error) {
	if _, err := getFolder(ctx, tx, id); err != nil {
		return model.Folder{}, err
	}
	sets := []string{}
	args := []any{}
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return model.Folder{}, InvalidError{Field: "name", Reason: "required"}
		}
		sets = append(sets, "name = ?")
		args = append(args, name)
	}
	if p.IsOpen != nil {
		sets = append(sets, "is_open = ?")
		args = append(args, boolToInt(*p.IsOpen))
	}
	if p.OrderIndex != nil {
		if *p.OrderIndex < 0 {
			return model.Folder{}, InvalidError{Field: "orderIndex", Reason: "must be >= 0"}
		}
		sets = append(sets, "order_index = ?")
		args = append(args, *p.OrderIndex)
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at_unixms = ?")
		args = append(args, nowMs, id)
		if _, err := tx.ExecContext(ctx, `UPDATE folders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return model.Folder{}, err
		}
	}
	return getFolder(ctx, tx, id)
}

// renumberItems rewrites orderIndex for ids as 0..n-1 and returns the items
// whose index actually changed.
func renumberItems(ctx context.Context, tx querier, ids []string, nowMs int64) ([]model.Item, error) {
	changed := []model.Item{}
	for i, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE items SET order_index = ?, updated_at_unixms = ? WHERE id = ? AND order_index <> ?`, i, nowMs, id, i)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		it, err := getItem(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		changed = append(changed, it)
	}
	return changed, nil
}

func renumberFolders(ctx context.Context, tx querier, ids []string, nowMs int64) ([]model.Folder, error) {
	changed := []model.Folder{}
	for i, id := range ids {
		res, err := tx.ExecContext(ctx, `UPDATE folders SET order_index = ?, updated_at_unixms = ? WHERE id = ? AND order_index <> ?`, i, nowMs, id, i)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		f, err := getFolder(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		changed = append(changed, f)
	}
	return changed, nil
}

// DeleteItem removes the item and closes the gap in its former container.
// The returned siblings are the items whose orderIndex changed.
func (s *Store) DeleteItem(ctx context.Context, id string) ([]model.Item, error) {
	var changed []model.Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		it, err := getItem(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
			return err
		}
		rest, err := itemIDsIn(ctx, tx, it.FolderID)
		if err != nil {
			return err
		}
		changed, err = renumberItems(ctx, tx, rest, s.nowMs())
		return err
	})
	return changed, err
}

// FolderDeletion is what one folder delete touched.
type FolderDeletion struct {
	// Items are the former members, now loose, plus any loose item whose
	// orderIndex changed, in board order.
	Items []model.Item
	// Folders are the remaining folders whose orderIndex changed.
	Folders []model.Folder
}

// DeleteFolder moves the folder's items to the end of the loose area (keeping
// their relative order), renumbers the loose area and the folder list, and
// deletes the folder.
func (s *Store) DeleteFolder(ctx context.Context, id string) (FolderDeletion, error) {
	var out FolderDeletion
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getFolder(ctx, tx, id); err != nil {
			return err
		}
		nowMs := s.nowMs()

		members, err := itemIDsIn(ctx, tx, &id)
		if err != nil {
			return err
		}
		loose, err := itemIDsIn(ctx, tx, nil)
		if err != nil {
			return err
		}
		touched := map[string]bool{}
		for _, itemID := range members {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET folder_id = NULL, updated_at_unixms = ? WHERE id = ?`,
				nowMs, itemID,
			); err != nil {
				return err
			}
			touched[itemID] = true
		}

		board := append(append([]string{}, loose...), members...)
		renumbered, err := renumberItems(ctx, tx, board, nowMs)
		if err != nil {
			return err
		}
		for _, it := range renumbered {
			touched[it.ID] = true
		}
		for _, itemID := range board {
			if !touched[itemID] {
				continue
			}
			it, err := getItem(ctx, tx, itemID)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, it)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
			return err
		}
		rest, err := folderIDs(ctx, tx)
		if err != nil {
			return err
		}
		out.Folders, err = renumberFolders(ctx, tx, rest, nowMs)
		return err
	})
	if err != nil {
		return FolderDeletion{}, err
	}
	return out, nil
}

// ApplyPlan writes every assignment in one transaction and returns the
// re-read canonical entities in assignment order. Either all writes land or
// none do.
func (s *Store) ApplyPlan(ctx context.Context, assignments []order.Assignment) ([]model.Entity, error) {
	out := make([]model.Entity, 0, len(assignments))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		nowMs := s.nowMs()
		for _, a := range assignments {
			switch a.Kind {
			case model.KindItem:
				it, err := updateItem(ctx, tx, a.ID, a.ItemPatch(), nowMs)
				if err != nil {
					return err
				}
				out = append(out, model.Entity{Item: &it})
			case model.KindFolder:
				f, err := updateFolder(ctx, tx, a.ID, a.FolderPatch(), nowMs)
				if err != nil {
					return err
				}
				out = append(out, model.Entity{Folder: &f})
			default:
				return InvalidError{Field: "kind", Reason: fmt.Sprintf("unknown %q", a.Kind)}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
