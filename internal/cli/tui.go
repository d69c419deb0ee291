package cli

import (
	"boardsync/internal/logging"
	"boardsync/internal/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive board",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd, app)
		},
	}
}

func runTUI(cmd *cobra.Command, app *App) error {
	api, err := app.api()
	if err != nil {
		return writeErr(cmd, err)
	}
	// The alt screen owns the terminal; stream logs would corrupt it.
	return tui.Run(cmd.Context(), tui.Options{API: api, Log: logging.Nop()})
}
