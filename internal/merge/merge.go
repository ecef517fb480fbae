// Package merge reconciles two copies of a user's state.
//
// Each tracked entity (sessions, per-exercise profile, routine index) is
// arbitrated independently by its own logical clock. A strictly newer clock
// wins verbatim; equal clocks fall back to a structural merge that keeps
// everything present on either side.
package merge

import (
	"encoding/json"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

// Timestamps pairs the clocks of both sides of a merge.
type Timestamps struct {
	Local  models.UpdateTimestamps
	Remote models.UpdateTimestamps
}

// Side identifies which copy a tracked entity was taken from.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
	SideMerged Side = "merged"
)

// Decision records how one tracked entity was resolved.
type Decision struct {
	Key  string
	Side Side
}

// Merge reconciles local and remote. Untracked fields follow local, falling
// back to remote only when local has no value at all.
func Merge(local, remote models.State, ts Timestamps) models.State {
	merged, _ := MergeWithDecisions(local, remote, ts)
	return merged
}

// MergeWithDecisions is Merge that also reports the per-entity resolution.
func MergeWithDecisions(local, remote models.State, ts Timestamps) (models.State, []Decision) {
	out := untracked(local, remote)
	decisions := make([]Decision, 0, len(models.TrackedKeys))

	for _, key := range models.TrackedKeys {
		localAt, remoteAt := ts.Local.Get(key), ts.Remote.Get(key)
		side := SideMerged
		switch {
		case localAt > remoteAt:
			side = SideLocal
		case remoteAt > localAt:
			side = SideRemote
		}
		decisions = append(decisions, Decision{Key: key, Side: side})

		switch key {
		case models.KeySessions:
			out.Sessions = pick(side, local.Sessions, remote.Sessions, mergeSessions)
		case models.KeyProfileByExerciseID:
			out.ProfileByExerciseID = pick(side, local.ProfileByExerciseID, remote.ProfileByExerciseID, mergeProfiles)
		case models.KeyUserRoutinesIndex:
			out.UserRoutinesIndex = pick(side, local.UserRoutinesIndex, remote.UserRoutinesIndex, mergeRoutines)
		}
	}
	return out, decisions
}

func pick[T any](side Side, local, remote T, structural func(T, T) T) T {
	switch side {
	case SideLocal:
		return local
	case SideRemote:
		return remote
	default:
		return structural(local, remote)
	}
}

func untracked(local, remote models.State) models.State {
	out := models.State{
		Version:             local.Version,
		Settings:            local.Settings,
		CustomExercisesByID: local.CustomExercisesByID,
		CustomRoutineNames:  local.CustomRoutineNames,
		Routines:            local.Routines,
	}
	if out.Version == 0 {
		out.Version = remote.Version
	}
	if out.Settings == nil {
		out.Settings = remote.Settings
	}
	if out.CustomExercisesByID == nil {
		out.CustomExercisesByID = remote.CustomExercisesByID
	}
	if out.CustomRoutineNames == nil {
		out.CustomRoutineNames = remote.CustomRoutineNames
	}
	if out.Routines == nil {
		out.Routines = remote.Routines
	}
	return out
}

// mergeSessions unions by id. For a shared id the more recent DateISO wins,
// local on ties. Local order is kept, remote-only sessions are appended.
// Sessions without an id cannot be matched: local ones are kept in place and
// a remote one is appended unless local holds an identical copy.
func mergeSessions(local, remote []models.Session) []models.Session {
	if len(remote) == 0 && len(local) == 0 {
		return local
	}
	out := make([]models.Session, 0, len(local)+len(remote))
	index := make(map[string]int, len(local)+len(remote))
	anonymous := map[string]bool{}

	add := func(s models.Session) {
		i, ok := index[s.ID]
		if !ok {
			index[s.ID] = len(out)
			out = append(out, s)
			return
		}
		if models.DateMillis(s.DateISO) > models.DateMillis(out[i].DateISO) {
			out[i] = s
		}
	}
	for _, s := range local {
		if s.ID == "" {
			anonymous[sessionContent(s)] = true
			out = append(out, s)
			continue
		}
		add(s)
	}
	for _, s := range remote {
		if s.ID == "" {
			if !anonymous[sessionContent(s)] {
				out = append(out, s)
			}
			continue
		}
		add(s)
	}
	return out
}

func sessionContent(s models.Session) string {
	b, err := json.Marshal(s)
	if err != nil {
		return s.DateISO
	}
	return string(b)
}

// mergeProfiles overlays local entries on remote ones, per exercise id and
// per top-level entry field.
func mergeProfiles(local, remote models.ExerciseProfile) models.ExerciseProfile {
	if len(remote) == 0 && len(local) == 0 {
		return local
	}
	out := make(models.ExerciseProfile, len(local)+len(remote))
	for id, entry := range remote {
		out[id] = entry
	}
	for id, entry := range local {
		base, ok := out[id]
		if !ok {
			out[id] = entry
			continue
		}
		if entry.Last != nil {
			base.Last = entry.Last
		}
		if entry.Next != nil {
			base.Next = entry.Next
		}
		if entry.ProgressionProfile != "" {
			base.ProgressionProfile = entry.ProgressionProfile
		}
		if entry.MinWeightKg != nil {
			base.MinWeightKg = entry.MinWeightKg
		}
		out[id] = base
	}
	return out
}

// mergeRoutines unions routine keys and, per key, exercise ids.
func mergeRoutines(local, remote models.RoutineIndex) models.RoutineIndex {
	if len(remote) == 0 && len(local) == 0 {
		return local
	}
	out := make(models.RoutineIndex, len(local)+len(remote))
	for key, ids := range local {
		out[key] = appendUnique(nil, ids...)
	}
	for key, ids := range remote {
		out[key] = appendUnique(out[key], ids...)
	}
	return out
}

func appendUnique(dst []string, ids ...string) []string {
	if dst == nil && len(ids) == 0 {
		return ids
	}
	seen := make(map[string]bool, len(dst)+len(ids))
	for _, id := range dst {
		seen[id] = true
	}
	if dst == nil {
		dst = make([]string, 0, len(ids))
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		dst = append(dst, id)
	}
	return dst
}

// NextUpdatedAt advances the clock of every tracked entity whose serialized
// value differs between previous and next. The result is never below prev.
func NextUpdatedAt(prev models.UpdateTimestamps, next, previous models.State, now time.Time) models.UpdateTimestamps {
	out := prev
	nowMs := now.UnixMilli()
	for _, key := range models.TrackedKeys {
		if !Changed(key, next, previous) {
			continue
		}
		if at := prev.Get(key); at > nowMs {
			out.Set(key, at)
		} else {
			out.Set(key, nowMs)
		}
	}
	return out
}

// Changed reports whether a tracked entity serializes differently in a and b.
func Changed(key string, a, b models.State) bool {
	return string(entityJSON(key, a)) != string(entityJSON(key, b))
}

// MaxTimestamps returns the per-entity maximum of two clocks.
func MaxTimestamps(a, b models.UpdateTimestamps) models.UpdateTimestamps {
	out := a
	for _, key := range models.TrackedKeys {
		if b.Get(key) > a.Get(key) {
			out.Set(key, b.Get(key))
		}
	}
	return out
}

// Equal reports whether two states serialize identically.
func Equal(a, b models.State) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(ja) == string(jb)
}

// entityJSON serializes one tracked entity. Empty and absent values
// serialize identically so a nil slice never counts as a change.
func entityJSON(key string, st models.State) []byte {
	var v any
	switch key {
	case models.KeySessions:
		if len(st.Sessions) > 0 {
			v = st.Sessions
		}
	case models.KeyProfileByExerciseID:
		if len(st.ProfileByExerciseID) > 0 {
			v = st.ProfileByExerciseID
		}
	case models.KeyUserRoutinesIndex:
		if len(st.UserRoutinesIndex) > 0 {
			v = st.UserRoutinesIndex
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
