package history

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/models"
)

// Filter narrows analytics to a time range and optionally one routine.
// Zero bounds are open. Sessions without a routine key always pass the
// routine filter.
type Filter struct {
	From       time.Time
	To         time.Time
	RoutineKey string
}

func (f Filter) match(s models.Session) (time.Time, bool) {
	if s.Type != models.SessionStrength {
		return time.Time{}, false
	}
	when, ok := SessionTime(s)
	if !ok {
		return time.Time{}, false
	}
	if !f.From.IsZero() && when.Before(f.From) {
		return time.Time{}, false
	}
	if !f.To.IsZero() && when.After(f.To) {
		return time.Time{}, false
	}
	if f.RoutineKey != "" && s.RoutineKey != "" && s.RoutineKey != f.RoutineKey {
		return time.Time{}, false
	}
	return when, true
}

// GroupFrequency is the number of distinct training days for a muscle group.
type GroupFrequency struct {
	Group string `json:"group"`
	Days  int    `json:"days"`
}

// FrequencyByGroup counts distinct training days per primary muscle group,
// most frequent first.
func FrequencyByGroup(sessions []models.Session, cat *catalog.Catalog, f Filter) []GroupFrequency {
	days := map[string]map[string]bool{}
	for _, s := range sessions {
		when, ok := f.match(s)
		if !ok {
			continue
		}
		day := when.UTC().Format(models.DateLayout)
		for _, set := range s.Sets {
			if !ValidSet(set) {
				continue
			}
			g := cat.PrimaryGroup(set.ExerciseID, set.ExerciseName)
			if days[g] == nil {
				days[g] = map[string]bool{}
			}
			days[g][day] = true
		}
	}

	out := make([]GroupFrequency, 0, len(days))
	for g, set := range days {
		out = append(out, GroupFrequency{Group: g, Days: len(set)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days > out[j].Days
		}
		return out[i].Group < out[j].Group
	})
	return out
}

// Heatmap counts training days per ISO week and muscle group. Values holds
// a zero for every week/group pair without training.
type Heatmap struct {
	Weeks  []string                  `json:"weeks"`
	Groups []string                  `json:"groups"`
	Values map[string]map[string]int `json:"values"`
}

// ISOWeek formats t's ISO week as "2006-W01".
func ISOWeek(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// WeeklyHeatmap builds the ISO-week by muscle-group matrix of training days.
func WeeklyHeatmap(sessions []models.Session, cat *catalog.Catalog, f Filter) Heatmap {
	seen := map[string]bool{}
	counts := map[string]map[string]int{}
	groups := map[string]bool{}

	for _, s := range sessions {
		when, ok := f.match(s)
		if !ok {
			continue
		}
		week := ISOWeek(when)
		day := when.UTC().Format(models.DateLayout)
		for _, set := range s.Sets {
			if !ValidSet(set) {
				continue
			}
			g := cat.PrimaryGroup(set.ExerciseID, set.ExerciseName)
			if seen[g+"|"+day] {
				continue
			}
			seen[g+"|"+day] = true
			if counts[week] == nil {
				counts[week] = map[string]int{}
			}
			counts[week][g]++
			groups[g] = true
		}
	}

	hm := Heatmap{Values: map[string]map[string]int{}}
	for w := range counts {
		hm.Weeks = append(hm.Weeks, w)
	}
	for g := range groups {
		hm.Groups = append(hm.Groups, g)
	}
	sort.Strings(hm.Weeks)
	sort.Strings(hm.Groups)
	for _, w := range hm.Weeks {
		row := make(map[string]int, len(hm.Groups))
		for _, g := range hm.Groups {
			row[g] = counts[w][g]
		}
		hm.Values[w] = row
	}
	return hm
}

// Between returns the sessions of any type that happened in [from, to],
// newest first. Zero bounds are open.
func Between(sessions []models.Session, from, to time.Time) []models.Session {
	out := []models.Session{}
	for _, s := range sessions {
		when, ok := SessionTime(s)
		if !ok {
			continue
		}
		if (!from.IsZero() && when.Before(from)) || (!to.IsZero() && when.After(to)) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := SessionTime(out[i])
		tj, _ := SessionTime(out[j])
		return ti.After(tj)
	})
	return out
}

// LastUsedSet returns the last weighted reps-mode set of an exercise in the
// most recent strength session that has one.
func LastUsedSet(exerciseID string, sessions []models.Session) *models.LastSet {
	sorted := make([]models.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Type == models.SessionStrength {
			sorted = append(sorted, s)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return models.DateMillis(sorted[i].DateISO) > models.DateMillis(sorted[j].DateISO)
	})

	for _, s := range sorted {
		var last *models.Set
		for i := range s.Sets {
			set := &s.Sets[i]
			if set.ExerciseID == exerciseID && set.Mode == models.ModeReps && set.WeightKg != nil && *set.WeightKg > 0 {
				last = set
			}
		}
		if last == nil {
			continue
		}
		out := &models.LastSet{WeightKg: *last.WeightKg, RIR: last.RIR, DateISO: s.DateISO}
		if last.Reps != nil {
			out.Reps = *last.Reps
		}
		return out
	}
	return nil
}

// InitialWeight picks the starting weight for an exercise: the profile's
// suggestion, then its last set, then the last logged set, then the catalog
// default. The result is rounded to the nearest 0.25 kg.
func InitialWeight(exerciseID string, st models.State, cat *catalog.Catalog) float64 {
	var weight *float64
	if entry, ok := st.ProfileByExerciseID[exerciseID]; ok {
		switch {
		case entry.Next != nil:
			weight = &entry.Next.WeightKg
		case entry.Last != nil:
			weight = &entry.Last.WeightKg
		}
	}
	if weight == nil {
		if last := LastUsedSet(exerciseID, st.Sessions); last != nil {
			weight = &last.WeightKg
		}
	}
	if weight == nil {
		if ex, ok := cat.Exercise(exerciseID); ok {
			weight = &ex.InitialWeightKg
		}
	}
	if weight == nil {
		return 0
	}
	return math.Round(*weight/0.25) * 0.25
}

// GoalStatus is progress toward one weekly goal.
type GoalStatus struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	OK      bool    `json:"ok"`
}

// GoalProgress is progress toward every weekly goal in the ISO week of the
// reference time.
type GoalProgress struct {
	Week      string     `json:"week"`
	Sessions  GoalStatus `json:"sessions"`
	Volume    GoalStatus `json:"volume"`
	CardioMin GoalStatus `json:"cardio"`
}

// WeekStart returns Monday 00:00 UTC of t's ISO week.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

// WeeklyGoalProgress sums strength sessions, strength volume and cardio
// minutes in now's week and compares them against goals.
func WeeklyGoalProgress(sessions []models.Session, goals models.Goals, now time.Time) GoalProgress {
	start := WeekStart(now)
	end := start.AddDate(0, 0, 7)

	var count, volume, cardioSec float64
	for _, s := range sessions {
		when, ok := SessionTime(s)
		if !ok || when.Before(start) || !when.Before(end) {
			continue
		}
		switch s.Type {
		case models.SessionStrength:
			count++
			volume += SessionVolume(s)
		case models.SessionCardio:
			if s.DurationSec != nil {
				cardioSec += *s.DurationSec
			}
		}
	}

	status := func(current, target float64) GoalStatus {
		return GoalStatus{Current: current, Target: target, OK: current >= target}
	}
	return GoalProgress{
		Week:      ISOWeek(start),
		Sessions:  status(count, float64(goals.Sessions)),
		Volume:    status(volume, goals.Volume),
		CardioMin: status(math.Round(cardioSec/60), float64(goals.CardioMin)),
	}
}

// AdherencePercent averages per-goal completion, each capped at 100%, over
// the goals that have a positive target.
func AdherencePercent(p GoalProgress) int {
	var sum float64
	var n int
	for _, g := range []GoalStatus{p.Sessions, p.Volume, p.CardioMin} {
		if g.Target <= 0 {
			continue
		}
		sum += math.Min(1, g.Current/g.Target)
		n++
	}
	if n == 0 {
		return 100
	}
	return int(math.Round(sum / float64(n) * 100))
}

// MissedSessions is how many strength sessions are still needed this week.
func MissedSessions(p GoalProgress) int {
	return int(math.Max(0, p.Sessions.Target-p.Sessions.Current))
}

// StreakDays counts consecutive UTC days with a strength session, ending
// today or, when today has none yet, yesterday.
func StreakDays(sessions []models.Session, now time.Time) int {
	days := map[string]bool{}
	for _, s := range sessions {
		if s.Type != models.SessionStrength {
			continue
		}
		if when, ok := SessionTime(s); ok {
			days[when.UTC().Format(models.DateLayout)] = true
		}
	}

	day := now.UTC()
	if !days[day.Format(models.DateLayout)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[day.Format(models.DateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// SessionVolume is the stored total volume, or the sum of weight times reps
// over untimed sets when none is stored.
func SessionVolume(s models.Session) float64 {
	if s.TotalVolume != nil {
		return *s.TotalVolume
	}
	var total float64
	for _, set := range s.Sets {
		if set.IsTimed() || set.Reps == nil || set.WeightKg == nil {
			continue
		}
		total += *set.WeightKg * float64(*set.Reps)
	}
	return total
}
