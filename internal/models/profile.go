package models

// ExerciseProfile maps an exercise id to its progression state.
type ExerciseProfile map[string]ProfileEntry

// ProfileEntry is the progression state of one exercise. Last is the most
// recent completed top set; Next is the engine's suggestion for the next
// occurrence of the exercise.
type ProfileEntry struct {
	Last               *LastSet        `json:"last,omitempty"`
	Next               *NextSuggestion `json:"next,omitempty"`
	ProgressionProfile string          `json:"progressionProfile,omitempty"`
	MinWeightKg        *float64        `json:"minWeightKg,omitempty"`
}

// LastSet is a completed top set.
type LastSet struct {
	WeightKg float64  `json:"weightKg"`
	Reps     int      `json:"reps"`
	RIR      *float64 `json:"rir,omitempty"`
	DateISO  string   `json:"dateISO,omitempty"`
}

// NextSuggestion is the suggested load for the next occurrence of an exercise.
type NextSuggestion struct {
	WeightKg    float64 `json:"weightKg"`
	Reps        int     `json:"reps"`
	Explanation string  `json:"explanation,omitempty"`
}

// HistoryPoint is a per-day rollup of one exercise. It is derived from
// sessions and never persisted.
type HistoryPoint struct {
	Date          string  `json:"date"`
	AvgRIR        float64 `json:"avgRir"`
	SetsCompleted int     `json:"setsCompleted"`
	Compliance    float64 `json:"compliance"`
	TopReps       int     `json:"topReps"`
	TopWeightKg   float64 `json:"topWeightKg"`
	TopE1RM       float64 `json:"topE1RM"`
}
