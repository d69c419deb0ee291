package cli

import (
	"fmt"
	"strings"

	"boardsync/internal/client"
	"boardsync/internal/config"
	"boardsync/internal/format"
	"boardsync/internal/logging"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	PrettyJSON bool
	Format     string

	cfg config.Config
	log zerolog.Logger
}

// flagKeys maps command-line flags onto config keys. Any command that
// declares one of these flags gets it layered over file and env values.
var flagKeys = map[string]string{
	"server":      "client.server",
	"addr":        "server.addr",
	"db":          "server.db",
	"write-mode":  "server.write_mode",
	"send-buffer": "server.send_buffer",
	"cors-origin": "server.cors_origin",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "boardsync",
		Short:        "Ordered items and folders, synced live between clients",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Run the server
  boardsync serve --addr 127.0.0.1:5000

  # Start the interactive board (same as: boardsync tui)
  boardsync

  # Scriptable commands
  boardsync snapshot --format text
  boardsync move item-a item-b
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.load(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/boardsync/config.toml)")
	cmd.PersistentFlags().String("server", "", "Server base URL for client commands")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().String("log-format", "", "Log format (console|json)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", "json", "Output format (json|text)")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newSnapshotCmd(app))
	cmd.AddCommand(newItemsCmd(app))
	cmd.AddCommand(newFoldersCmd(app))
	cmd.AddCommand(newMoveCmd(app))
	cmd.AddCommand(newReindexCmd(app))
	cmd.AddCommand(newDoctorCmd(app))

	return cmd
}

func (app *App) load(cmd *cobra.Command) error {
	var bindings []config.FlagBinding
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			bindings = append(bindings, config.FlagBinding{Key: key, Flag: f})
		}
	}
	cfg, err := config.Load(app.ConfigPath, bindings...)
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.log = logging.New(cmd.ErrOrStderr(), logging.ProfileRuntime, logging.Options{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		Timestamp: &cfg.Log.Timestamp,
		NoColor:   cfg.Log.NoColor,
	})
	return nil
}

func (app *App) api() (*client.API, error) {
	return client.NewAPI(app.cfg.Client.Server)
}

// envelope is the JSON shape every command prints.
type envelope struct {
	Data  any            `json:"data"`
	Meta  map[string]any `json:"meta,omitempty"`
	Hints []string       `json:"_hints,omitempty"`
}

func (e envelope) Text() string {
	if t, ok := e.Data.(format.Texter); ok {
		return t.Text()
	}
	var b strings.Builder
	_ = format.WriteJSON(&b, e.Data, true)
	return b.String()
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), describeErr(err))
	return err
}
