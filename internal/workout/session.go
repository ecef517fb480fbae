// Package workout manages the lifecycle of a strength session and writes
// progression suggestions back into the user's exercise profile.
package workout

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/progression"
)

var (
	// ErrNoActiveSession is returned when sets are registered before a session starts.
	ErrNoActiveSession = errors.New("start the session first")
	// ErrDropBeforeBase is returned when a drop set is logged before every base set is done.
	ErrDropBeforeBase = errors.New("complete every base set before the drop set")
)

// NewStrengthSession starts an empty strength session.
func NewStrengthSession(routineKey string, now time.Time) models.Session {
	return models.Session{
		ID:         uuid.NewString(),
		Type:       models.SessionStrength,
		DateISO:    now.UTC().Format(time.RFC3339Nano),
		RoutineKey: routineKey,
		Sets:       []models.Set{},
	}
}

// AppendSets returns a copy of s with sets appended. Sets without an id get
// one, and a set logged with RPE only gets the matching RIR.
func AppendSets(s models.Session, sets ...models.Set) models.Session {
	out := s
	out.Sets = make([]models.Set, 0, len(s.Sets)+len(sets))
	out.Sets = append(out.Sets, s.Sets...)
	for _, set := range sets {
		if set.ID == "" {
			set.ID = uuid.NewString()
		}
		if set.Mode == "" {
			set.Mode = models.ModeReps
		}
		if set.RIR == nil && set.RPE != nil {
			set.RIR = models.Float(progression.RPEToRIR(*set.RPE))
		}
		out.Sets = append(out.Sets, set)
	}
	return out
}

// ValidateRegistration checks that a set may be registered. baseDone is the
// number of base sets already checked off out of baseTotal.
func ValidateRegistration(active *models.Session, drop bool, baseDone, baseTotal int) error {
	if active == nil {
		return ErrNoActiveSession
	}
	if drop && baseDone < baseTotal {
		return ErrDropBeforeBase
	}
	return nil
}

// Finalize returns a copy of s with duration, energy and total volume set.
// A zero kcal is left unset.
func Finalize(s models.Session, durationSec, kcal float64) models.Session {
	out := s
	out.DurationSec = models.Float(durationSec)
	if kcal > 0 {
		out.Kcal = models.Float(kcal)
	}
	out.TotalVolume = models.Float(TotalVolume(s))
	return out
}

// TotalVolume sums weight × reps over every non-timed set.
func TotalVolume(s models.Session) float64 {
	var total float64
	for _, set := range s.Sets {
		if set.IsTimed() || set.Reps == nil || set.WeightKg == nil {
			continue
		}
		total += *set.WeightKg * float64(*set.Reps)
	}
	return total
}
