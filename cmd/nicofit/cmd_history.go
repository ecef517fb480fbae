package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var weeks, targetSets int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history <exercise-id>",
		Short: "Show the per-day history of an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if weeks < 0 || targetSets < 0 {
				return fmt.Errorf("--weeks and --target-sets must not be negative")
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			points := a.advisor.History(a.store.LoadState(ctx).State, args[0], weeks, targetSets)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), points)
			}
			return printHistory(cmd.OutOrStdout(), points)
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 0, "trailing window in weeks (default from config)")
	cmd.Flags().IntVar(&targetSets, "target-sets", 0, "prescribed sets per session (default from catalog)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printHistory(w io.Writer, points []models.HistoryPoint) error {
	if len(points) == 0 {
		_, err := fmt.Fprintln(w, "no sessions in range")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "date\ttop set\te1RM\tsets\tcompliance\tavg RIR\t")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%g x %d\t%.1f\t%d\t%.0f%%\t%.1f\t\n",
			p.Date, p.TopWeightKg, p.TopReps, p.TopE1RM, p.SetsCompleted, p.Compliance*100, p.AvgRIR)
	}
	return tw.Flush()
}
