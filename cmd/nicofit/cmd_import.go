package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/ingest"
	"github.com/nicoschmidtj/nicofit2/internal/ingest/alpha"
)

func newImportAlphaCmd(configPath *string) *cobra.Command {
	var tz string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "import-alpha <export.csv>",
		Short: "Import an Alpha Progression CSV export",
		Long: `import-alpha adds the workouts of an Alpha Progression CSV export to the
local state and syncs. Importing the same export again replaces the
sessions it created. Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc := time.Local
			if tz != "" {
				var err error
				if loc, err = time.LoadLocation(tz); err != nil {
					return fmt.Errorf("invalid --tz: %w", err)
				}
			}

			in, closeIn, err := openInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			defer closeIn()

			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			p := alpha.NewProvider(a.store, a.advisor, a.catalog, a.log)
			p.Location = loc
			result, err := p.Ingest(ctx, in)
			if result != nil {
				if asJSON {
					if jerr := writeJSON(cmd.OutOrStdout(), result); jerr != nil {
						return jerr
					}
				} else {
					printImport(cmd.OutOrStdout(), result)
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "", "IANA zone the export was written in (default local)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func openInput(stdin io.Reader, path string) (io.Reader, func(), error) {
	if path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening export: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func printImport(w io.Writer, r *ingest.Result) {
	fmt.Fprintf(w, "workouts: %d (%d new, %d replaced)\n", r.WorkoutsReceived, r.SessionsInserted, r.SessionsReplaced)
	fmt.Fprintf(w, "sets: %d", r.SetsInserted)
	if r.WarmupsSkipped > 0 {
		fmt.Fprintf(w, " (%d warm-ups skipped)", r.WarmupsSkipped)
	}
	fmt.Fprintln(w)
	if len(r.CustomExercises) > 0 {
		fmt.Fprintf(w, "custom exercises: %s\n", strings.Join(r.CustomExercises, ", "))
	}
	fmt.Fprintf(w, "profiles updated: %d\n", r.ProfilesUpdated)
	if r.SyncPhase != "" {
		fmt.Fprintf(w, "sync: %s\n", r.SyncPhase)
	}
}
