package cli

import (
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/order"
	"boardsync/internal/store"

	"github.com/spf13/cobra"
)

var errDoctorIssuesFound = errors.New("doctor: ordering issues found")

type doctorReport struct {
	DB            string            `json:"db"`
	SchemaVersion uint              `json:"schemaVersion"`
	Dirty         bool              `json:"dirty"`
	Violations    []order.Violation `json:"violations"`
	Fixed         int               `json:"fixed"`
}

func (r doctorReport) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (schema v%d", r.DB, r.SchemaVersion)
	if r.Dirty {
		sb.WriteString(", dirty")
	}
	sb.WriteString(")\n")
	if len(r.Violations) == 0 {
		sb.WriteString("ok: every container is numbered 0..n-1\n")
	}
	for _, v := range r.Violations {
		sb.WriteString("  " + v.String() + "\n")
	}
	if r.Fixed > 0 {
		fmt.Fprintf(&sb, "fixed %d row(s)\n", r.Fixed)
	}
	return sb.String()
}

func newDoctorCmd(app *App) *cobra.Command {
	var fix, fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check a database for ordering problems (offline)",
		Long: strings.TrimSpace(`
Open the database directly and report containers whose indexes are not
exactly 0..n-1, and items that reference a missing folder.

Run it while the server is stopped; use --fix to heal the ordering in one
transaction (orphaned items are moved to the end of the board).
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := store.Open(ctx, app.cfg.Server.DB)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			report := doctorReport{DB: st.Path()}
			if v, dirty, err := st.SchemaVersion(ctx); err == nil {
				report.SchemaVersion, report.Dirty = v, dirty
			}

			snap, err := st.Snapshot(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			report.Violations = order.Check(snap)

			if fix && len(report.Violations) > 0 {
				written, err := st.ApplyPlan(ctx, order.Heal(snap).Assignments)
				if err != nil {
					return writeErr(cmd, err)
				}
				report.Fixed = len(written)
				app.log.Info().Int("rows", report.Fixed).Msg("ordering healed")
			}

			if err := writeOut(cmd, app, envelope{
				Data: report,
				Meta: map[string]any{"issues": len(report.Violations)},
				Hints: []string{
					"boardsync doctor --fix",
					"boardsync reindex",
				},
			}); err != nil {
				return err
			}

			if fail && len(report.Violations) > 0 && report.Fixed == 0 {
				return errDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().String("db", "", "SQLite database path")
	cmd.Flags().BoolVar(&fix, "fix", false, "Heal ordering problems in place")
	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if problems are found")
	return cmd
}
