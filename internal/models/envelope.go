package models

import "time"

// Tracked entity keys, one logical clock each.
const (
	KeySessions            = "sessions"
	KeyProfileByExerciseID = "profileByExerciseId"
	KeyUserRoutinesIndex   = "userRoutinesIndex"
)

// TrackedKeys lists the entities arbitrated by timestamp during merge.
var TrackedKeys = []string{KeySessions, KeyProfileByExerciseID, KeyUserRoutinesIndex}

// UpdateTimestamps holds one epoch-millisecond clock per tracked entity.
// Zero means never set.
type UpdateTimestamps struct {
	Sessions            int64 `json:"sessions,omitempty"`
	ProfileByExerciseID int64 `json:"profileByExerciseId,omitempty"`
	UserRoutinesIndex   int64 `json:"userRoutinesIndex,omitempty"`
}

// Get returns the clock for a tracked key.
func (u UpdateTimestamps) Get(key string) int64 {
	switch key {
	case KeySessions:
		return u.Sessions
	case KeyProfileByExerciseID:
		return u.ProfileByExerciseID
	case KeyUserRoutinesIndex:
		return u.UserRoutinesIndex
	}
	return 0
}

// Set stores the clock for a tracked key. Unknown keys are ignored.
func (u *UpdateTimestamps) Set(key string, v int64) {
	switch key {
	case KeySessions:
		u.Sessions = v
	case KeyProfileByExerciseID:
		u.ProfileByExerciseID = v
	case KeyUserRoutinesIndex:
		u.UserRoutinesIndex = v
	}
}

// Metadata is stored next to the state in every slot.
type Metadata struct {
	UpdatedAt    UpdateTimestamps `json:"updatedAt"`
	LastSyncedAt *time.Time       `json:"lastSyncedAt"`
}

// Envelope is the JSON document held by the local and remote slots.
type Envelope struct {
	UserID   string   `json:"userId,omitempty"`
	State    State    `json:"state"`
	Metadata Metadata `json:"metadata"`
}
