// Package schema decodes persisted state blobs of any known version and
// upgrades them to the current one.
//
// Decoding is field by field: a field that does not parse is dropped with a
// warning instead of failing the whole blob. After migration the state is
// sanitized with models.Sanitize.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/models"
)

// Result is a migrated state plus everything that was repaired on the way.
type Result struct {
	State       models.State
	FromVersion int
	Warnings    []string
}

// step upgrades a state from one version to the next.
type step struct {
	from, to int
	apply    func(*models.State, *catalog.Catalog) []string
}

var chain = []step{
	{from: 4, to: 5, apply: migrateRoutinesToTemplates},
}

// Migrate decodes raw and runs every pending migration step. A nil or empty
// raw yields the default state. It never fails.
func Migrate(raw []byte, cat *catalog.Catalog) Result {
	if len(raw) == 0 {
		return Result{State: models.DefaultState(), FromVersion: models.CurrentVersion}
	}
	st, warnings := decode(raw)
	res := Result{FromVersion: st.Version, Warnings: warnings}

	if st.Version == 0 {
		// Blobs written before versioning carry the v4 layout.
		st.Version = 4
	}
	switch {
	case st.Version > models.CurrentVersion:
		res.Warnings = append(res.Warnings, fmt.Sprintf("unknown schema version %d; loaded as is", st.Version))
	default:
		for _, s := range chain {
			if st.Version != s.from {
				continue
			}
			res.Warnings = append(res.Warnings, s.apply(&st, cat)...)
			res.Warnings = append(res.Warnings, fmt.Sprintf("migrated %d→%d", s.from, s.to))
			st.Version = s.to
		}
		if st.Version < models.CurrentVersion {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no migration from version %d; upgraded as is", st.Version))
			st.Version = models.CurrentVersion
		}
	}

	st, sanitized := models.Sanitize(st)
	res.Warnings = append(res.Warnings, sanitized...)
	res.State = st
	return res
}

// decode reads each top-level field independently. Sessions are decoded one
// by one so a single malformed session does not drop the log.
func decode(raw []byte) (models.State, []string) {
	var st models.State
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.DefaultState(), []string{fmt.Sprintf("state is not a JSON object (%v); using defaults", err)}
	}

	var warnings []string
	field := func(name string, dst any) {
		data, ok := fields[name]
		if !ok || string(data) == "null" {
			return
		}
		if err := json.Unmarshal(data, dst); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped field %s: %v", name, err))
		}
	}

	field("version", &st.Version)
	field("settings", &st.Settings)
	field("profileByExerciseId", &st.ProfileByExerciseID)
	field("userRoutinesIndex", &st.UserRoutinesIndex)
	field("customExercisesById", &st.CustomExercisesByID)
	field("customRoutineNames", &st.CustomRoutineNames)
	field("routines", &st.Routines)

	var sessions []json.RawMessage
	field("sessions", &sessions)
	for i, data := range sessions {
		var s models.Session
		if err := json.Unmarshal(data, &s); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped session %d: %v", i, err))
			continue
		}
		st.Sessions = append(st.Sessions, s)
	}
	if st.Sessions == nil {
		st.Sessions = []models.Session{}
	}
	return st, warnings
}

// migrateRoutinesToTemplates turns the v4 free-form routine list into the
// routine index. Routine i takes the i-th template key (or custom_<i>);
// exercises resolve to catalog ids by name, and the rest become custom
// exercises with a stable id derived from the name.
func migrateRoutinesToTemplates(st *models.State, cat *catalog.Catalog) []string {
	var warnings []string
	if st.CustomExercisesByID == nil {
		st.CustomExercisesByID = map[string]models.CustomExercise{}
	}
	if st.ProfileByExerciseID == nil {
		st.ProfileByExerciseID = models.ExerciseProfile{}
	}

	if st.UserRoutinesIndex == nil && st.Routines != nil {
		keys := cat.RoutineKeys()
		idx := models.RoutineIndex{}
		for _, k := range keys {
			idx[k] = []string{}
		}
		for i, r := range st.Routines {
			key := "custom_" + strconv.Itoa(i)
			if i < len(keys) {
				key = keys[i]
			}
			if r.Name != "" && i >= len(keys) {
				if st.CustomRoutineNames == nil {
					st.CustomRoutineNames = map[string]string{}
				}
				st.CustomRoutineNames[key] = r.Name
			}
			if idx[key] == nil {
				idx[key] = []string{}
			}
			for _, old := range r.Exercises {
				if ex, ok := cat.FindByName(old.Name); ok {
					idx[key] = append(idx[key], ex.ID)
					continue
				}
				id := catalog.CustomID(old.Name)
				st.CustomExercisesByID[id] = customFromLegacy(id, old)
				idx[key] = append(idx[key], id)
			}
		}
		st.UserRoutinesIndex = idx
		st.Routines = nil
	}

	for key, ids := range st.UserRoutinesIndex {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			_, custom := st.CustomExercisesByID[id]
			_, known := cat.Exercise(id)
			if !custom && !known {
				warnings = append(warnings, fmt.Sprintf("routine %s: dropped unknown exercise %s", key, id))
				continue
			}
			kept = append(kept, id)
		}
		st.UserRoutinesIndex[key] = kept
	}
	return warnings
}

func customFromLegacy(id string, old models.LegacyRoutineExercise) models.CustomExercise {
	ce := models.CustomExercise{ID: id, Name: old.Name, Mode: old.Mode}
	if g := catalog.InferMuscle(old.Name); g != "otros" {
		ce.Muscles = []string{g}
	}
	fixed := models.ExerciseFixed{
		TargetSets:      old.TargetSets,
		TargetRepsRange: old.TargetRepsRange,
		TargetTimeSec:   old.TargetTimeSec,
		RestSec:         old.RestSec,
	}
	if fixed.TargetRepsRange == "" && old.TargetReps > 0 {
		fixed.TargetRepsRange = strconv.Itoa(old.TargetReps)
	}
	ce.Fixed = &fixed
	return ce
}
