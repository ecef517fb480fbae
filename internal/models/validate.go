package models

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateSession checks a single session and its sets against the struct rules.
func ValidateSession(s Session) error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("session %q: %w", s.ID, err)
	}
	return nil
}

// ValidateSettings checks user settings.
func ValidateSettings(s Settings) error {
	if err := validatorInstance().Struct(s); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

// Sanitize validates a state at the load/import boundary. Invalid sessions
// are dropped and invalid settings are replaced by defaults; each repair is
// reported as a warning. It never fails.
func Sanitize(st State) (State, []string) {
	var warnings []string

	if st.Settings == nil {
		st.Settings = DefaultSettings()
	} else if err := ValidateSettings(*st.Settings); err != nil {
		warnings = append(warnings, fmt.Sprintf("%v; using defaults", err))
		st.Settings = DefaultSettings()
	}

	seen := make(map[string]bool, len(st.Sessions))
	kept := make([]Session, 0, len(st.Sessions))
	for _, s := range st.Sessions {
		if err := ValidateSession(s); err != nil {
			warnings = append(warnings, fmt.Sprintf("dropped %v", err))
			continue
		}
		if seen[s.ID] {
			warnings = append(warnings, fmt.Sprintf("dropped duplicate session %q", s.ID))
			continue
		}
		seen[s.ID] = true
		kept = append(kept, s)
	}
	st.Sessions = kept

	if st.ProfileByExerciseID == nil {
		st.ProfileByExerciseID = ExerciseProfile{}
	}
	if st.UserRoutinesIndex == nil {
		st.UserRoutinesIndex = RoutineIndex{}
	}
	return st, warnings
}
