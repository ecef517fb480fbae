package alpha

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

// idSpace namespaces the name-based UUIDs of imported sessions and sets, so
// importing the same export twice yields the same ids.
var idSpace = uuid.MustParse("6f1c9f3e-2b7a-4d2e-9c51-5a0e8f4b7d21")

// Conversion is the result of mapping workouts onto the session model.
type Conversion struct {
	Sessions []models.Session
	// Custom holds exercises that matched nothing in the catalog, by id.
	Custom         map[string]models.CustomExercise
	WarmupsSkipped int
}

// ToSessions converts parsed workouts into strength sessions. Export times
// are read in loc. Warmup sets are not imported. Exercise names are matched
// against cat; unmatched names become custom exercises.
func ToSessions(workouts []Workout, cat *catalog.Catalog, loc *time.Location) Conversion {
	if loc == nil {
		loc = time.Local
	}
	out := Conversion{Custom: map[string]models.CustomExercise{}}

	for _, w := range workouts {
		start := time.Date(w.Date.Year(), w.Date.Month(), w.Date.Day(),
			w.Date.Hour(), w.Date.Minute(), 0, 0, loc).UTC()
		sessionID := uuid.NewSHA1(idSpace, []byte("session|"+start.Format(time.RFC3339)+"|"+w.Name)).String()

		s := models.Session{
			ID:         sessionID,
			Type:       models.SessionStrength,
			DateISO:    start.Format(time.RFC3339),
			RoutineKey: w.Name,
			Sets:       []models.Set{},
		}
		for _, ex := range w.Exercises {
			exerciseID := resolveExercise(ex, cat, out.Custom)
			for _, set := range ex.Sets {
				if set.IsWarmup {
					out.WarmupsSkipped++
					continue
				}
				key := fmt.Sprintf("set|%s|%d|%d", sessionID, ex.Number, set.Number)
				s.Sets = append(s.Sets, models.Set{
					ID:           uuid.NewSHA1(idSpace, []byte(key)).String(),
					ExerciseID:   exerciseID,
					ExerciseName: ex.Name,
					Mode:         models.ModeReps,
					Reps:         models.Int(set.Reps),
					WeightKg:     models.Float(set.WeightKg),
					RIR:          models.Float(set.RIR),
					At:           start.UnixMilli() + int64(len(s.Sets)),
				})
			}
		}

		var duration float64
		if secs, ok := parseDuration(w.Duration); ok {
			duration = secs
		}
		out.Sessions = append(out.Sessions, workout.Finalize(s, duration, 0))
	}
	return out
}

// resolveExercise returns the catalog id for ex, registering a custom
// exercise in custom when the name matches nothing.
func resolveExercise(ex Exercise, cat *catalog.Catalog, custom map[string]models.CustomExercise) string {
	if match, ok := cat.FindByName(ex.Name); ok {
		return match.ID
	}
	id := catalog.CustomID(ex.Name)
	if _, ok := custom[id]; !ok {
		ce := models.CustomExercise{ID: id, Name: ex.Name, Mode: models.ModeReps, Notes: ex.Equipment}
		if g := catalog.InferMuscle(ex.Name); g != "otros" {
			ce.Muscles = []string{g}
		}
		if ex.TargetReps > 0 {
			ce.Fixed = &models.ExerciseFixed{TargetRepsRange: strconv.Itoa(ex.TargetReps)}
		}
		custom[id] = ce
	}
	return id
}
