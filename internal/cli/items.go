package cli

import (
	"strings"

	"boardsync/internal/model"

	"github.com/spf13/cobra"
)

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Create, edit and delete items",
	}
	cmd.AddCommand(newItemsCreateCmd(app))
	cmd.AddCommand(newItemsUpdateCmd(app))
	cmd.AddCommand(newItemsDeleteCmd(app))
	return cmd
}

func newItemsCreateCmd(app *App) *cobra.Command {
	var title, icon, description, folder string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an item at the end of its container",
		Example: strings.TrimSpace(`
boardsync items create --title "Write report"
boardsync items create --title "Call back" --folder folder-1 --icon "📞"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return writeErr(cmd, errUsage("items create: missing --title"))
			}
			in := model.NewItem{Title: title, Icon: icon}
			if cmd.Flags().Changed("description") {
				in.Description = model.StringPtr(description)
			}
			if f := strings.TrimSpace(folder); f != "" {
				in.FolderID = model.StringPtr(f)
			}

			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			it, err := api.CreateItem(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: it})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Item title")
	cmd.Flags().StringVar(&icon, "icon", "", "Icon (emoji or short text)")
	cmd.Flags().StringVar(&description, "description", "", "Markdown description")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder id (default: the loose board)")
	return cmd
}

func newItemsUpdateCmd(app *App) *cobra.Command {
	var title, icon, description, folder string
	var clearDescription bool

	cmd := &cobra.Command{
		Use:   "update <item-id>",
		Short: "Patch an item's fields",
		Long: strings.TrimSpace(`
Patch an item. Only the flags you pass are changed.

To reposition an item use ` + "`boardsync move`" + `, which keeps every
container numbered 0..n-1.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.ItemPatch
			if cmd.Flags().Changed("title") {
				p.Title = model.StringPtr(title)
			}
			if cmd.Flags().Changed("icon") {
				p.Icon = model.StringPtr(icon)
			}
			switch {
			case clearDescription:
				p.Description = model.Null()
			case cmd.Flags().Changed("description"):
				p.Description = model.Some(description)
			}
			if cmd.Flags().Changed("folder") {
				f := strings.TrimSpace(folder)
				if f == "" || f == "board" {
					p.FolderID = model.Null()
				} else {
					p.FolderID = model.Some(f)
				}
			}
			if p.IsEmpty() {
				return writeErr(cmd, errUsage("items update: nothing to change"))
			}

			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			it, err := api.UpdateItem(cmd.Context(), args[0], p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: it})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&icon, "icon", "", "New icon")
	cmd.Flags().StringVar(&description, "description", "", "New markdown description")
	cmd.Flags().BoolVar(&clearDescription, "clear-description", false, "Remove the description")
	cmd.Flags().StringVar(&folder, "folder", "", "Folder id, or \"board\" to make the item loose")
	return cmd
}

func newItemsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <item-id>",
		Short: "Delete an item; its siblings are renumbered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := api.DeleteItem(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: model.Deleted{ID: args[0], Deleted: true}})
		},
	}
}
