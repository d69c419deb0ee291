package cli

import (
	"strings"

	"boardsync/internal/model"

	"github.com/spf13/cobra"
)

func newFoldersCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Create, rename, open/close and delete folders",
	}
	cmd.AddCommand(newFoldersCreateCmd(app))
	cmd.AddCommand(newFoldersUpdateCmd(app))
	cmd.AddCommand(newFoldersToggleCmd(app))
	cmd.AddCommand(newFoldersDeleteCmd(app))
	return cmd
}

func newFoldersCreateCmd(app *App) *cobra.Command {
	var name string
	var closed bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a folder after the existing ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return writeErr(cmd, errUsage("folders create: missing --name"))
			}
			in := model.NewFolder{Name: name}
			if closed {
				in.IsOpen = model.BoolPtr(false)
			}
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			f, err := api.CreateFolder(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: f})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Folder name")
	cmd.Flags().BoolVar(&closed, "closed", false, "Create the folder closed")
	return cmd
}

func newFoldersUpdateCmd(app *App) *cobra.Command {
	var name string
	var open bool

	cmd := &cobra.Command{
		Use:   "update <folder-id>",
		Short: "Rename a folder or set its open state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p model.FolderPatch
			if cmd.Flags().Changed("name") {
				p.Name = model.StringPtr(name)
			}
			if cmd.Flags().Changed("open") {
				p.IsOpen = model.BoolPtr(open)
			}
			if p.IsEmpty() {
				return writeErr(cmd, errUsage("folders update: nothing to change"))
			}
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			f, err := api.UpdateFolder(cmd.Context(), args[0], p)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: f})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().BoolVar(&open, "open", true, "Open (true) or close (false) the folder")
	return cmd
}

func newFoldersToggleCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <folder-id>",
		Short: "Flip a folder between open and closed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := api.Snapshot(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			cur, ok := s.FindFolder(args[0])
			if !ok {
				return writeErr(cmd, errUsage("folder not found: %s", args[0]))
			}
			f, err := api.UpdateFolder(cmd.Context(), cur.ID, model.FolderPatch{IsOpen: model.BoolPtr(!cur.IsOpen)})
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: f})
		},
	}
}

func newFoldersDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-id>",
		Short: "Delete a folder; its items move to the end of the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := app.api()
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := api.DeleteFolder(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, envelope{Data: model.Deleted{ID: args[0], Deleted: true}})
		},
	}
}
