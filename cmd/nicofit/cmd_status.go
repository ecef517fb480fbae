package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/syncstore"
)

func newStatusCmd(configPath *string) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the local state and when it last synced",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			summary := summarize(a.store.LoadState(ctx), time.Now())
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), summary)
			}
			return printSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

// stateSummary is what the status command reports about the local slot.
type stateSummary struct {
	UserID           string                  `json:"userId"`
	Version          int                     `json:"version"`
	StrengthSessions int                     `json:"strengthSessions"`
	CardioSessions   int                     `json:"cardioSessions"`
	LastSession      string                  `json:"lastSession,omitempty"`
	Routines         []string                `json:"routines"`
	Profiles         int                     `json:"profiles"`
	CustomExercises  int                     `json:"customExercises"`
	UpdatedAt        models.UpdateTimestamps `json:"updatedAt"`
	LastSyncedAt     *time.Time              `json:"lastSyncedAt"`
	StreakDays       int                     `json:"streakDays"`
	Goals            *goalSummary            `json:"goals,omitempty"`
	Warnings         []string                `json:"warnings,omitempty"`
}

type goalSummary struct {
	history.GoalProgress
	AdherencePct   int `json:"adherencePct"`
	MissedSessions int `json:"missedSessions"`
}

func summarize(loaded syncstore.Loaded, now time.Time) stateSummary {
	st := loaded.State
	out := stateSummary{
		UserID:          loaded.UserID,
		Version:         st.Version,
		Profiles:        len(st.ProfileByExerciseID),
		CustomExercises: len(st.CustomExercisesByID),
		UpdatedAt:       loaded.Metadata.UpdatedAt,
		LastSyncedAt:    loaded.Metadata.LastSyncedAt,
		StreakDays:      history.StreakDays(st.Sessions, now),
		Warnings:        loaded.Warnings,
	}
	for _, s := range st.Sessions {
		switch s.Type {
		case models.SessionCardio:
			out.CardioSessions++
		default:
			out.StrengthSessions++
		}
		if s.DateISO > out.LastSession {
			out.LastSession = s.DateISO
		}
	}
	for key := range st.UserRoutinesIndex {
		out.Routines = append(out.Routines, key)
	}
	sort.Strings(out.Routines)

	if st.Settings != nil && st.Settings.Goals != nil {
		p := history.WeeklyGoalProgress(st.Sessions, *st.Settings.Goals, now)
		out.Goals = &goalSummary{
			GoalProgress:   p,
			AdherencePct:   history.AdherencePercent(p),
			MissedSessions: history.MissedSessions(p),
		}
	}
	return out
}

func printSummary(w io.Writer, s stateSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "user:\t%s\n", s.UserID)
	fmt.Fprintf(tw, "schema version:\t%d\n", s.Version)
	fmt.Fprintf(tw, "sessions:\t%d strength, %d cardio\n", s.StrengthSessions, s.CardioSessions)
	if s.LastSession != "" {
		fmt.Fprintf(tw, "last session:\t%s\n", s.LastSession)
	}
	fmt.Fprintf(tw, "routines:\t%d\n", len(s.Routines))
	fmt.Fprintf(tw, "exercise profiles:\t%d\n", s.Profiles)
	fmt.Fprintf(tw, "custom exercises:\t%d\n", s.CustomExercises)
	fmt.Fprintf(tw, "streak:\t%d days\n", s.StreakDays)
	if g := s.Goals; g != nil {
		fmt.Fprintf(tw, "week %s:\t%g/%g sessions, %g/%g kg volume, %g/%g cardio min\n", g.Week,
			g.Sessions.Current, g.Sessions.Target, g.Volume.Current, g.Volume.Target, g.CardioMin.Current, g.CardioMin.Target)
		fmt.Fprintf(tw, "adherence:\t%d%% (%d sessions to go)\n", g.AdherencePct, g.MissedSessions)
	}
	if s.LastSyncedAt != nil {
		fmt.Fprintf(tw, "last synced:\t%s\n", s.LastSyncedAt.Local().Format(time.RFC3339))
	} else {
		fmt.Fprintf(tw, "last synced:\tnever\n")
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(tw, "warning:\t%s\n", warn)
	}
	return tw.Flush()
}

// syncNow pushes the local state through a save so it is merged with the
// remote mirror.
func syncNow(ctx context.Context, store *syncstore.Service) syncstore.SaveResult {
	loaded := store.LoadState(ctx)
	return store.SaveState(ctx, syncstore.SaveRequest{
		State:         loaded.State,
		PreviousState: loaded.State,
		Metadata:      loaded.Metadata,
	})
}
