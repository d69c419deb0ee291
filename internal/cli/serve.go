package cli

import (
	"net"
	"strings"

	"boardsync/internal/coordinator"
	"boardsync/internal/hub"
	"boardsync/internal/store"
	"boardsync/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the board server (REST, websocket and SSE)",
		Long: strings.TrimSpace(`
Run the board server.

All writes go through one coordinator; every change is broadcast to
connected websocket and SSE subscribers as the full canonical entity.
`),
		Example: strings.TrimSpace(`
# Serve on localhost with the default database
boardsync serve

# Per-entity writes instead of one transaction per drop
boardsync serve --write-mode sequential --db ./board.sqlite
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg.Server
			log := app.log
			ctx := cmd.Context()

			mode, err := coordinator.ParseMode(cfg.WriteMode)
			if err != nil {
				return writeErr(cmd, err)
			}

			st, err := store.Open(ctx, cfg.DB)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			h := hub.New(hub.Options{Buffer: cfg.SendBuffer, Logger: log})
			coord := coordinator.New(st, h, coordinator.Options{Mode: mode, Logger: log})

			if version, dirty, err := st.SchemaVersion(ctx); err == nil {
				log.Info().Uint("schema", version).Bool("dirty", dirty).Str("db", st.Path()).Msg("store ready")
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:       cfg.Addr,
				CORSOrigin: cfg.CORSOrigin,
			}, coord, h, log)
			if err != nil {
				return writeErr(cmd, err)
			}

			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return writeErr(cmd, err)
			}
			log.Info().Str("addr", ln.Addr().String()).Str("mode", string(mode)).Msg("listening")

			if err := srv.Serve(ctx, ln); err != nil {
				return writeErr(cmd, err)
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default 127.0.0.1:5000)")
	cmd.Flags().String("db", "", "SQLite database path")
	cmd.Flags().String("write-mode", "", "Plan write mode (atomic|sequential)")
	cmd.Flags().Int("send-buffer", 0, "Per-subscriber event queue size")
	cmd.Flags().String("cors-origin", "", "Access-Control-Allow-Origin value (empty disables CORS)")
	return cmd
}
