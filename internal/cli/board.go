package cli

import (
	"fmt"
	"strings"

	"boardsync/internal/client"
	"boardsync/internal/model"
	"boardsync/internal/order"

	"github.com/spf13/cobra"
)

// boardText renders a snapshot as an indented tree.
type boardText struct {
	model.Snapshot
}

func (b boardText) Text() string {
	var sb strings.Builder
	for _, f := range order.SortedFolders(b.Snapshot) {
		mark := "▸"
		if f.IsOpen {
			mark = "▾"
		}
		fmt.Fprintf(&sb, "%s %s  [%s #%d]\n", mark, f.Name, f.ID, f.OrderIndex)
		for _, it := range order.SortedItems(b.Snapshot, order.FolderContainer(f.ID)) {
			fmt.Fprintf(&sb, "    %s  [%s #%d]\n", itemLabel(it), it.ID, it.OrderIndex)
		}
	}
	sb.WriteString("── board ──\n")
	for _, it := range order.SortedItems(b.Snapshot, order.Board) {
		fmt.Fprintf(&sb, "  %s  [%s #%d]\n", itemLabel(it), it.ID, it.OrderIndex)
	}
	return sb.String()
}

func itemLabel(it model.Item) string {
	if it.Icon == "" {
		return it.Title
	}
	return it.Icon + " " + it.Title
}

type planText struct {
	client.PlanResult
}

func (p planText) Text() string {
	if p.Plan == nil {
		return "no changes"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %d assignment(s)\n", p.Plan.Case, len(p.Plan.Assignments))
	for _, a := range p.Plan.Assignments {
		fmt.Fprintf(&sb, "  %s %s -> #%d", a.Kind, a.ID, a.OrderIndex)
		if a.FolderID.Set {
			folder := string(order.Board)
			if a.FolderID.Value != nil {
				folder = *a.FolderID.Value
			}
			fmt.Fprintf(&sb, " in %s", folder)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func newSnapshotCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print the current board",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := api.Snapshot(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{
				Data: boardText{s},
				Meta: map[string]any{
					"items":      len(s.Items),
					"folders":    len(s.Folders),
					"violations": len(order.Check(s)),
				},
			})
		},
	}
}

func newMoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <dragged-id> <over-id>",
		Short: "Drop one entity onto another (or onto \"board\")",
		Example: strings.TrimSpace(`
# Reorder within a container
boardsync move item-c item-a

# Move an item into a folder, or back to the loose area
boardsync move item-c folder-1
boardsync move item-c board
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dragged, over := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			if dragged == "" || over == "" {
				return writeErr(cmd, errUsage("move: ids must be non-empty"))
			}
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, ok, err := api.Move(cmd.Context(), dragged, over)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{
				Data: planText{res},
				Meta: map[string]any{"noop": !ok},
			})
		},
	}
	return cmd
}

func newReindexCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Renumber every container to 0..n-1 on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := api.Reindex(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{
				Data: planText{res},
				Meta: map[string]any{"changed": len(res.Entities)},
			})
		},
	}
}
