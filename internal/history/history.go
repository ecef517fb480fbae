// Package history derives per-exercise training history and weekly
// analytics from the raw session log. Everything here is recomputed from
// sessions and never persisted.
package history

import (
	"math"
	"sort"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/progression"
)

// Window defaults and bounds, in weeks.
const (
	DefaultWeeks      = 4
	MinWeeks          = 2
	MaxWeeks          = 6
	DefaultTargetSets = 3
)

// Query selects the history of one exercise.
type Query struct {
	Sessions   []models.Session
	ExerciseID string
	TargetSets int
	Weeks      int
	Now        time.Time
}

func (q Query) normalized() Query {
	if q.TargetSets <= 0 {
		q.TargetSets = DefaultTargetSets
	}
	if q.Weeks == 0 {
		q.Weeks = DefaultWeeks
	}
	q.Weeks = min(max(q.Weeks, MinWeeks), MaxWeeks)
	if q.Now.IsZero() {
		q.Now = time.Now()
	}
	return q
}

type dayAgg struct {
	rirSum float64
	sets   int
	reps   int
	weight float64
	e1rm   float64
}

// Build returns one point per UTC calendar day on which the exercise was
// trained in a strength session inside the trailing window, oldest first.
// Sessions falling on the same day are folded into one point.
func Build(q Query) []models.HistoryPoint {
	q = q.normalized()
	cutoff := q.Now.Add(-time.Duration(q.Weeks) * 7 * 24 * time.Hour)

	byDay := map[string]*dayAgg{}
	for _, s := range q.Sessions {
		if s.Type != models.SessionStrength {
			continue
		}
		when, ok := SessionTime(s)
		if !ok || when.Before(cutoff) {
			continue
		}
		day := when.UTC().Format(models.DateLayout)

		for _, set := range s.Sets {
			if set.ExerciseID != q.ExerciseID || !measurable(set) {
				continue
			}
			agg := byDay[day]
			if agg == nil {
				agg = &dayAgg{}
				byDay[day] = agg
			}
			reps, weight := *set.Reps, *set.WeightKg
			rir := 1.0
			if r := set.RIR; r != nil {
				rir = *r
			}
			agg.rirSum += rir
			agg.sets++
			agg.reps = max(agg.reps, reps)
			agg.weight = math.Max(agg.weight, weight)
			agg.e1rm = math.Max(agg.e1rm, Epley(weight, reps))
		}
	}

	out := make([]models.HistoryPoint, 0, len(byDay))
	for day, agg := range byDay {
		compliance := math.Min(1, float64(agg.sets)/math.Max(1, float64(q.TargetSets)))
		out = append(out, models.HistoryPoint{
			Date:          day,
			AvgRIR:        progression.Round1(agg.rirSum / float64(agg.sets)),
			SetsCompleted: agg.sets,
			Compliance:    progression.Round1(compliance),
			TopReps:       agg.reps,
			TopWeightKg:   progression.Round1(agg.weight),
			TopE1RM:       progression.Round1(agg.e1rm),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Epley estimates a one-rep max. Non-positive inputs give zero.
func Epley(weightKg float64, reps int) float64 {
	if weightKg <= 0 || reps <= 0 {
		return 0
	}
	return weightKg * (1 + float64(reps)/30)
}

// SessionTime returns when a session happened: its DateISO, or the latest
// set timestamp when the date does not parse.
func SessionTime(s models.Session) (time.Time, bool) {
	if t, err := models.ParseDate(s.DateISO); err == nil {
		return t, true
	}
	var at int64
	for _, set := range s.Sets {
		at = max(at, set.At)
	}
	if at > 0 {
		return time.UnixMilli(at), true
	}
	return time.Time{}, false
}

// measurable reports whether a set carries finite reps and weight and is not timed.
func measurable(set models.Set) bool {
	if set.IsTimed() || set.Reps == nil || set.WeightKg == nil {
		return false
	}
	w := *set.WeightKg
	return !math.IsNaN(w) && !math.IsInf(w, 0)
}

// ValidSet reports whether a set counts toward analytics: not timed, with
// positive reps and a non-negative weight.
func ValidSet(set models.Set) bool {
	return measurable(set) && *set.Reps > 0 && *set.WeightKg >= 0
}
