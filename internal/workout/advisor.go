package workout

import (
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/metrics"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/progression"
)

// Advisor runs the progression engine against a user's state.
type Advisor struct {
	Catalog *catalog.Catalog
	// Cache is optional; without it history is rebuilt on every call.
	Cache *history.Cache
	// Profile is used when neither the exercise entry nor the settings name one.
	Profile string
	// Weeks of history to consider; zero means history.DefaultWeeks.
	Weeks int
	// MinWeightKg floors deloads for exercises without their own minimum.
	MinWeightKg float64
	Metrics     *metrics.Manager
	Now         func() time.Time
}

// Advice is a suggestion plus the history it was computed from.
type Advice struct {
	ExerciseID string                 `json:"exerciseId"`
	Profile    string                 `json:"profile"`
	Last       *models.LastSet        `json:"last,omitempty"`
	Suggestion progression.Suggestion `json:"suggestion"`
	History    []models.HistoryPoint  `json:"history"`
}

// Register records the top set of exerciseID in session as the exercise's
// last set and stores the next suggestion. The returned state is a copy;
// st is not modified. Time-based exercises and sessions without a
// measurable set of the exercise leave the state as is.
func (a *Advisor) Register(st models.State, session models.Session, exerciseID string) (models.State, progression.Suggestion) {
	top, ok := TopSet(session, exerciseID)
	if !ok {
		return st, progression.Suggestion{}
	}
	ex := a.exercise(st, exerciseID)
	if ex.Mode == models.ModeTime {
		return st, progression.Suggestion{}
	}

	sessions := st.Sessions
	if !containsSession(sessions, session.ID) {
		sessions = append(append([]models.Session(nil), sessions...), session)
	}

	entry := st.ProfileByExerciseID[exerciseID]
	last := &models.LastSet{
		WeightKg: *top.WeightKg,
		Reps:     *top.Reps,
		RIR:      top.RIR,
		DateISO:  session.DateISO,
	}
	sugg := a.suggest(st, entry, ex, last, a.history(sessions, exerciseID, a.Weeks, ex.TargetSets), "")

	out := st
	out.ProfileByExerciseID = make(models.ExerciseProfile, len(st.ProfileByExerciseID)+1)
	for id, e := range st.ProfileByExerciseID {
		out.ProfileByExerciseID[id] = e
	}
	entry.Last = last
	if sugg.OK {
		entry.Next = sugg.Next()
	}
	out.ProfileByExerciseID[exerciseID] = entry
	return out, sugg
}

// Suggest computes advice for exerciseID from the stored state without
// changing it. The last set comes from the profile entry, or from the
// session log when the entry has none. profile overrides the configured
// progression profile when not empty.
func (a *Advisor) Suggest(st models.State, exerciseID, profile string) Advice {
	entry := st.ProfileByExerciseID[exerciseID]
	last := entry.Last
	if last == nil {
		last = history.LastUsedSet(exerciseID, st.Sessions)
	}
	ex := a.exercise(st, exerciseID)

	adv := Advice{ExerciseID: exerciseID, Last: last}
	adv.Profile, _ = progression.ProfileFor(a.profileName(st, entry, profile))
	adv.History = a.history(st.Sessions, exerciseID, a.Weeks, ex.TargetSets)
	adv.Suggestion = a.suggest(st, entry, ex, last, adv.History, profile)
	return adv
}

// History returns the per-day history of exerciseID. Zero weeks or
// targetSets fall back to the advisor's window and the catalog prescription.
func (a *Advisor) History(st models.State, exerciseID string, weeks, targetSets int) []models.HistoryPoint {
	if weeks == 0 {
		weeks = a.Weeks
	}
	if targetSets <= 0 {
		targetSets = a.exercise(st, exerciseID).TargetSets
	}
	return a.history(st.Sessions, exerciseID, weeks, targetSets)
}

// TopSet returns the heaviest measurable set of exerciseID in s, breaking
// ties by reps.
func TopSet(s models.Session, exerciseID string) (models.Set, bool) {
	var best models.Set
	found := false
	for _, set := range s.Sets {
		if set.ExerciseID != exerciseID || !history.ValidSet(set) {
			continue
		}
		if !found || *set.WeightKg > *best.WeightKg ||
			(*set.WeightKg == *best.WeightKg && *set.Reps > *best.Reps) {
			best, found = set, true
		}
	}
	return best, found
}

func (a *Advisor) suggest(st models.State, entry models.ProfileEntry, ex catalog.Exercise, last *models.LastSet, hist []models.HistoryPoint, override string) progression.Suggestion {
	minWeight := a.MinWeightKg
	if entry.MinWeightKg != nil {
		minWeight = *entry.MinWeightKg
	}
	target := progression.Exercise{
		Mode:            ex.Mode,
		TargetReps:      ex.TargetReps,
		TargetRepsRange: ex.TargetRepsRange,
	}
	if target.TargetRepsRange == "" && target.TargetReps == 0 && last != nil {
		// No prescription: the range collapses to the last performed reps.
		target.TargetReps = last.Reps
	}
	sugg := progression.CalcNext(progression.Input{
		Last:        last,
		Exercise:    target,
		Profile:     a.profileName(st, entry, override),
		MinWeightKg: minWeight,
		History:     hist,
		Now:         a.now(),
	})
	if sugg.OK {
		a.Metrics.ObserveSuggestion(string(sugg.Rule))
	}
	return sugg
}

func (a *Advisor) history(sessions []models.Session, exerciseID string, weeks, targetSets int) []models.HistoryPoint {
	q := history.Query{
		Sessions:   sessions,
		ExerciseID: exerciseID,
		TargetSets: targetSets,
		Weeks:      weeks,
		Now:        a.now(),
	}
	if a.Cache != nil {
		return a.Cache.Build(q)
	}
	return history.Build(q)
}

// exercise resolves catalog metadata, overlaying the user's custom exercises.
// Unknown ids resolve to a reps exercise with no target range.
func (a *Advisor) exercise(st models.State, exerciseID string) catalog.Exercise {
	ex, ok := a.Catalog.WithCustom(st.CustomExercisesByID).Exercise(exerciseID)
	if !ok {
		ex = catalog.Exercise{ID: exerciseID, Mode: models.ModeReps}
	}
	if ex.ID == "" {
		ex.ID = exerciseID
	}
	return ex
}

func (a *Advisor) profileName(st models.State, entry models.ProfileEntry, override string) string {
	switch {
	case override != "":
		return override
	case entry.ProgressionProfile != "":
		return entry.ProgressionProfile
	case st.Settings != nil && st.Settings.ProgressionProfile != "":
		return st.Settings.ProgressionProfile
	}
	return a.Profile
}

func (a *Advisor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func containsSession(sessions []models.Session, id string) bool {
	for _, s := range sessions {
		if s.ID == id {
			return true
		}
	}
	return false
}
