package main

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/progression"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

var profileNames = []string{
	progression.ProfileStrength,
	progression.ProfileHypertrophy,
	progression.ProfileRecomposition,
}

func newSuggestCmd(configPath *string) *cobra.Command {
	var profile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "suggest <exercise-id>",
		Short: "Suggest the next working set of an exercise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile != "" && !slices.Contains(profileNames, profile) {
				return fmt.Errorf("unknown profile %q", profile)
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.store.LoadState(ctx).State
			advice := a.advisor.Suggest(st, args[0], profile)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), advice)
			}
			start := history.InitialWeight(args[0], st, a.catalog.WithCustom(st.CustomExercisesByID))
			return printAdvice(cmd.OutOrStdout(), advice, start)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "progression profile (strength, hypertrophy, recomposition)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// printAdvice writes a human-readable suggestion. start is the weight to
// open with when there is nothing to progress from.
func printAdvice(w io.Writer, a workout.Advice, start float64) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "exercise:\t%s\n", a.ExerciseID)
	fmt.Fprintf(tw, "profile:\t%s\n", a.Profile)
	if a.Last != nil {
		fmt.Fprintf(tw, "last:\t%s\n", formatLast(*a.Last))
	}
	if a.Suggestion.OK {
		fmt.Fprintf(tw, "next:\t%g kg x %d\n", a.Suggestion.WeightKg, a.Suggestion.Reps)
		if a.Suggestion.Rule != "" {
			fmt.Fprintf(tw, "rule:\t%s\n", a.Suggestion.Rule)
		}
	} else {
		fmt.Fprintf(tw, "next:\tno suggestion\n")
		if start > 0 {
			fmt.Fprintf(tw, "start at:\t%g kg\n", start)
		}
	}
	if a.Suggestion.Explanation != "" {
		fmt.Fprintf(tw, "why:\t%s\n", a.Suggestion.Explanation)
	}
	return tw.Flush()
}

func formatLast(l models.LastSet) string {
	s := fmt.Sprintf("%g kg x %d", l.WeightKg, l.Reps)
	if l.RIR != nil {
		s += fmt.Sprintf(" @ RIR %g", *l.RIR)
	}
	if l.DateISO != "" {
		s += " on " + l.DateISO
	}
	return s
}
