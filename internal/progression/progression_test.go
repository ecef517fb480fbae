package progression

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

var now = time.Date(2024, 1, 12, 18, 0, 0, 0, time.UTC)

func point(date string, rir, compliance, e1rm float64) models.HistoryPoint {
	return models.HistoryPoint{Date: date, AvgRIR: rir, Compliance: compliance, SetsCompleted: 3, TopE1RM: e1rm}
}

func strengthInput(history ...models.HistoryPoint) Input {
	return Input{
		Last:     &models.LastSet{WeightKg: 100, Reps: 8, RIR: models.Float(0), DateISO: "2024-01-10"},
		Exercise: Exercise{Mode: models.ModeReps, TargetRepsRange: "6-8"},
		Profile:  ProfileStrength,
		History:  history,
		Now:      now,
	}
}

// TestCalcNext_Deload covers high fatigue with low compliance: weight drops by
// the profile's deload percentage and one rep comes off.
func TestCalcNext_Deload(t *testing.T) {
	got := CalcNext(strengthInput(
		point("2024-01-08", 0.5, 0.6, 120),
		point("2024-01-10", 0.5, 0.6, 120),
	))

	require.True(t, got.OK)
	assert.Equal(t, RuleDeload, got.Rule)
	assert.Equal(t, 90.0, got.WeightKg)
	assert.Equal(t, 7, got.Reps)
	assert.Contains(t, got.Explanation, "fatigue")
}

// TestCalcNext_LoadIncrease covers reps at the top of the range with reserve
// and full compliance.
func TestCalcNext_LoadIncrease(t *testing.T) {
	got := CalcNext(strengthInput(
		point("2024-01-08", 2.5, 1, 120),
		point("2024-01-10", 2.5, 1, 126),
	))

	require.True(t, got.OK)
	assert.Equal(t, RuleLoad, got.Rule)
	assert.Equal(t, 102.5, got.WeightKg)
	assert.Equal(t, 8, got.Reps)
	assert.Contains(t, got.Explanation, "+2.5 kg")
}

// TestCalcNext_PauseBackoff verifies a long gap wins over every history signal.
func TestCalcNext_PauseBackoff(t *testing.T) {
	in := strengthInput(
		point("2024-01-08", 2.5, 1, 120),
		point("2024-01-10", 2.5, 1, 126),
	)
	in.Now = time.Date(2024, 1, 30, 9, 0, 0, 0, time.UTC)

	got := CalcNext(in)

	assert.Equal(t, RulePause, got.Rule)
	assert.Equal(t, 92.0, got.WeightKg)
	assert.Equal(t, 8, got.Reps)
	assert.Contains(t, got.Explanation, "20 days")
}

// TestCalcNext_EmptyHistoryHolds verifies that missing optional fields fall
// through to hold without panicking.
func TestCalcNext_EmptyHistoryHolds(t *testing.T) {
	got := CalcNext(Input{
		Last:     &models.LastSet{WeightKg: 40, Reps: 9},
		Exercise: Exercise{Mode: models.ModeReps, TargetRepsRange: "10-12"},
		Now:      now,
	})

	require.True(t, got.OK)
	assert.Equal(t, RuleHold, got.Rule)
	assert.Equal(t, 40.0, got.WeightKg)
	assert.Equal(t, 9, got.Reps)
	assert.NotEmpty(t, got.Explanation)
}

// TestCalcNext_Plateau covers a flat e1RM over three points with good compliance.
func TestCalcNext_Plateau(t *testing.T) {
	in := Input{
		Last:     &models.LastSet{WeightKg: 60, Reps: 9, DateISO: "2024-01-10"},
		Exercise: Exercise{Mode: models.ModeReps, TargetRepsRange: "8-12"},
		Profile:  ProfileRecomposition,
		History: []models.HistoryPoint{
			point("2024-01-03", 1.2, 1, 78),
			point("2024-01-06", 1.2, 1, 78),
			point("2024-01-10", 1.2, 1, 78),
		},
		Now: now,
	}

	got := CalcNext(in)

	assert.Equal(t, RulePlateau, got.Rule)
	assert.Equal(t, 11, got.Reps)
	assert.Equal(t, 60.0, got.WeightKg)
	assert.Contains(t, got.Explanation, "plateau")
}

// TestCalcNext_GentleRepAdd covers reserve left below the top of the range.
func TestCalcNext_GentleRepAdd(t *testing.T) {
	in := Input{
		Last:     &models.LastSet{WeightKg: 60, Reps: 12, DateISO: "2024-01-10"},
		Exercise: Exercise{Mode: models.ModeReps, TargetRepsRange: "10-15"},
		History: []models.HistoryPoint{
			point("2024-01-06", 2, 0.7, 80),
			point("2024-01-10", 2, 0.7, 84),
		},
		Now: now,
	}

	got := CalcNext(in)

	assert.Equal(t, RuleReps, got.Rule)
	assert.Equal(t, 13, got.Reps)
}

// TestCalcNext_NoSuggestion covers missing last set and timed exercises.
func TestCalcNext_NoSuggestion(t *testing.T) {
	assert.False(t, CalcNext(Input{Now: now}).OK)

	in := strengthInput()
	in.Exercise.Mode = models.ModeTime
	got := CalcNext(in)
	assert.False(t, got.OK)
	assert.Nil(t, got.Next())
}

// TestCalcNext_MinWeightFloor verifies reductions never go below the floor.
func TestCalcNext_MinWeightFloor(t *testing.T) {
	in := strengthInput(point("2024-01-10", 0, 0.3, 100))
	in.MinWeightKg = 95

	got := CalcNext(in)
	assert.Equal(t, RuleDeload, got.Rule)
	assert.Equal(t, 95.0, got.WeightKg)
}

// TestCalcNext_DeloadRepsFloor verifies a deload drops one rep but never
// below the range minimum.
func TestCalcNext_DeloadRepsFloor(t *testing.T) {
	in := strengthInput(point("2024-01-08", 0.5, 0.6, 100), point("2024-01-10", 0.5, 0.6, 100))
	in.Last.Reps = 6

	got := CalcNext(in)
	assert.Equal(t, RuleDeload, got.Rule)
	assert.Equal(t, 90.0, got.WeightKg)
	assert.Equal(t, 6, got.Reps)

	in.Last.Reps = 8
	got = CalcNext(in)
	assert.Equal(t, 7, got.Reps)

	in.Last.Reps = 4
	got = CalcNext(in)
	assert.Equal(t, 6, got.Reps)
}

// TestCalcNext_Deterministic verifies identical inputs give identical output.
func TestCalcNext_Deterministic(t *testing.T) {
	in := strengthInput(point("2024-01-08", 1.5, 0.8, 110), point("2024-01-10", 1.6, 0.9, 112))
	first := CalcNext(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CalcNext(in))
	}
}

// TestCalcNext_UnknownProfileFallsBack verifies unknown profiles use hypertrophy.
func TestCalcNext_UnknownProfileFallsBack(t *testing.T) {
	in := strengthInput(point("2024-01-08", 2.5, 1, 120), point("2024-01-10", 2.5, 1, 126))
	in.Profile = "powerbuilding"

	got := CalcNext(in)
	assert.Equal(t, 101.3, got.WeightKg)
}

// TestParseRange covers the accepted free-text forms.
func TestParseRange(t *testing.T) {
	cases := []struct {
		text       string
		targetReps int
		min, max   int
	}{
		{"8-12", 0, 8, 12},
		{"6 a 8 reps", 0, 6, 8},
		{"10", 0, 10, 10},
		{"", 5, 5, 5},
		{"AMRAP", 7, 7, 7},
		{"", 0, 0, 0},
	}
	for _, tc := range cases {
		lo, hi := ParseRange(tc.text, tc.targetReps)
		if lo != tc.min || hi != tc.max {
			t.Errorf("ParseRange(%q, %d) = [%d,%d], want [%d,%d]", tc.text, tc.targetReps, lo, hi, tc.min, tc.max)
		}
	}
}

// TestRPEToRIR covers each band of the mapping and half-point rounding.
func TestRPEToRIR(t *testing.T) {
	cases := map[float64]float64{10: 0, 9.5: 0, 9: 1, 8.5: 1, 8: 2, 7.5: 2, 7: 3, 6: 3}
	for rpe, want := range cases {
		if got := RPEToRIR(rpe); got != want {
			t.Errorf("RPEToRIR(%v) = %v, want %v", rpe, got, want)
		}
	}
}

// TestComputeSignals_NoHistory verifies the fallbacks used without history.
func TestComputeSignals_NoHistory(t *testing.T) {
	sig := ComputeSignals(models.LastSet{WeightKg: 50, Reps: 5, RIR: models.Float(3), DateISO: "2024-01-01"}, nil, now)
	assert.Equal(t, Signals{AvgRIR: 3, Compliance: 1, E1RMTrend: 0, DaysSince: 11}, sig)
}
