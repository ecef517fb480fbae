package models

// CurrentVersion is the schema version written by this module.
const CurrentVersion = 5

// Session types.
const (
	SessionStrength = "strength"
	SessionCardio   = "cardio"
)

// Set modes.
const (
	ModeReps = "reps"
	ModeTime = "time"
)

// State is the persisted user blob. Sessions, ProfileByExerciseID and
// UserRoutinesIndex are tracked for conflict resolution; every other field
// follows the local copy.
type State struct {
	Version             int                       `json:"version,omitempty"`
	Settings            *Settings                 `json:"settings,omitempty"`
	Sessions            []Session                 `json:"sessions"`
	ProfileByExerciseID ExerciseProfile           `json:"profileByExerciseId"`
	UserRoutinesIndex   RoutineIndex              `json:"userRoutinesIndex,omitempty"`
	CustomExercisesByID map[string]CustomExercise `json:"customExercisesById,omitempty"`
	CustomRoutineNames  map[string]string         `json:"customRoutineNames,omitempty"`

	// Routines is the pre-v5 free-form routine list, only present before migration.
	Routines []LegacyRoutine `json:"routines,omitempty"`
}

// Settings holds user preferences.
type Settings struct {
	Unit               string `json:"unit" validate:"oneof=kg lb"`
	DefaultRestSec     int    `json:"defaultRestSec" validate:"gte=0"`
	Sound              bool   `json:"sound"`
	Vibration          bool   `json:"vibration"`
	Theme              string `json:"theme" validate:"oneof=system light dark"`
	ProgressionProfile string `json:"progressionProfile,omitempty" validate:"omitempty,oneof=strength hypertrophy recomposition"`
	Goals              *Goals `json:"goals,omitempty"`
}

// Goals are weekly training targets.
type Goals struct {
	Sessions  int     `json:"sessions" validate:"gte=0"`
	Volume    float64 `json:"volume" validate:"gte=0"`
	CardioMin int     `json:"cardio" validate:"gte=0"`
}

// Session is one logged training session. A session is atomic for merge
// purposes: it is never merged field by field.
type Session struct {
	ID          string   `json:"id" validate:"required"`
	Type        string   `json:"type" validate:"required,oneof=strength cardio"`
	DateISO     string   `json:"dateISO" validate:"required"`
	RoutineKey  string   `json:"routineKey,omitempty"`
	Sets        []Set    `json:"sets,omitempty" validate:"dive"`
	DurationSec *float64 `json:"durationSec,omitempty" validate:"omitempty,gte=0"`
	DistanceKm  *float64 `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
	TotalVolume *float64 `json:"totalVolume,omitempty" validate:"omitempty,gte=0"`
	Kcal        *float64 `json:"kcal,omitempty" validate:"omitempty,gte=0"`
}

// Set is a single performed set. It always lives inside exactly one Session.
type Set struct {
	ID           string   `json:"id" validate:"required"`
	ExerciseID   string   `json:"exerciseId" validate:"required"`
	ExerciseName string   `json:"exerciseName,omitempty"`
	Mode         string   `json:"mode" validate:"required,oneof=reps time"`
	Reps         *int     `json:"reps,omitempty" validate:"omitempty,gte=0"`
	WeightKg     *float64 `json:"weightKg,omitempty" validate:"omitempty,gte=0"`
	RPE          *float64 `json:"rpe,omitempty" validate:"omitempty,gte=0,lte=10"`
	RIR          *float64 `json:"rir,omitempty" validate:"omitempty,gte=0,lte=10"`
	At           int64    `json:"at" validate:"gte=0"`
	Drop         bool     `json:"drop,omitempty"`
	Adhoc        bool     `json:"adhoc,omitempty"`
}

// IsTimed reports whether the set is an isometric/time-based hold.
func (s Set) IsTimed() bool { return s.Mode == ModeTime }

// RoutineIndex maps a routine key to its exercise ids in display order.
type RoutineIndex map[string][]string

// CustomExercise is a user-defined exercise not present in the catalog.
type CustomExercise struct {
	ID      string         `json:"id" validate:"required"`
	Name    string         `json:"name"`
	Mode    string         `json:"mode,omitempty"`
	Muscles []string       `json:"muscles,omitempty"`
	Fixed   *ExerciseFixed `json:"fixed,omitempty"`
	Notes   string         `json:"notes,omitempty"`
}

// ExerciseFixed holds fixed prescription values of an exercise.
type ExerciseFixed struct {
	TargetSets      int    `json:"targetSets,omitempty"`
	TargetRepsRange string `json:"targetRepsRange,omitempty"`
	TargetTimeSec   int    `json:"targetTimeSec,omitempty"`
	RestSec         int    `json:"restSec,omitempty"`
}

// LegacyRoutine is a v4 routine with inline exercise definitions.
type LegacyRoutine struct {
	Name      string                  `json:"name"`
	Exercises []LegacyRoutineExercise `json:"exercises"`
}

// LegacyRoutineExercise is an exercise entry inside a v4 routine.
type LegacyRoutineExercise struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name"`
	Mode            string `json:"mode"`
	TargetSets      int    `json:"targetSets,omitempty"`
	TargetReps      int    `json:"targetReps,omitempty"`
	TargetRepsRange string `json:"targetRepsRange,omitempty"`
	TargetTimeSec   int    `json:"targetTimeSec,omitempty"`
	RestSec         int    `json:"restSec,omitempty"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() *Settings {
	return &Settings{
		Unit:           "kg",
		DefaultRestSec: 90,
		Sound:          true,
		Vibration:      true,
		Theme:          "system",
	}
}

// DefaultState returns an empty state at the current version.
func DefaultState() State {
	return State{
		Version:             CurrentVersion,
		Settings:            DefaultSettings(),
		Sessions:            []Session{},
		ProfileByExerciseID: ExerciseProfile{},
		UserRoutinesIndex:   RoutineIndex{},
	}
}

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
