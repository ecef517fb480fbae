// Package ingest holds what every import source reports back.
package ingest

// Result holds the outcome of an import.
type Result struct {
	WorkoutsReceived int `json:"workouts_received"`
	SessionsInserted int `json:"sessions_inserted"`
	SessionsReplaced int `json:"sessions_replaced"`

	SetsReceived   int `json:"sets_received"`
	SetsInserted   int `json:"sets_inserted"`
	WarmupsSkipped int `json:"warmups_skipped,omitempty"`

	CustomExercises []string `json:"custom_exercises,omitempty"`
	ProfilesUpdated int      `json:"profiles_updated"`

	SyncPhase string `json:"sync_phase"`
	Message   string `json:"message,omitempty"`
}
