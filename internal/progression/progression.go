// Package progression suggests the next working weight and reps for an
// exercise from its last top set and recent history.
//
// CalcNext is pure: the reference time is part of the input, so identical
// inputs always produce identical suggestions.
package progression

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

// Profile names.
const (
	ProfileStrength      = "strength"
	ProfileHypertrophy   = "hypertrophy"
	ProfileRecomposition = "recomposition"
)

// Rule names the branch of the decision ladder that produced a suggestion.
type Rule string

const (
	RulePause   Rule = "pause"
	RuleDeload  Rule = "deload"
	RuleLoad    Rule = "load"
	RulePlateau Rule = "plateau"
	RuleReps    Rule = "reps"
	RuleHold    Rule = "hold"
)

// Params are the per-profile step sizes.
type Params struct {
	LoadStepKg      float64
	RepStep         int
	DeloadPct       float64
	PauseBackoffPct float64
}

// Profiles holds the tuning of every known profile.
var Profiles = map[string]Params{
	ProfileStrength:      {LoadStepKg: 2.5, RepStep: 1, DeloadPct: 0.10, PauseBackoffPct: 0.08},
	ProfileHypertrophy:   {LoadStepKg: 1.25, RepStep: 1, DeloadPct: 0.08, PauseBackoffPct: 0.06},
	ProfileRecomposition: {LoadStepKg: 1.25, RepStep: 2, DeloadPct: 0.06, PauseBackoffPct: 0.05},
}

// Ladder thresholds.
const (
	pauseDays            = 14
	deloadMaxRIR         = 1.0
	deloadMaxCompliance  = 0.75
	loadMinRIR           = 2.0
	loadMinCompliance    = 0.9
	plateauMinCompliance = 0.8
	plateauMinPoints     = 3
	gentleMinRIR         = 1.5
	defaultRIR           = 1.0
)

// ProfileFor returns the tuning for name, falling back to hypertrophy.
func ProfileFor(name string) (string, Params) {
	if p, ok := Profiles[name]; ok {
		return name, p
	}
	return ProfileHypertrophy, Profiles[ProfileHypertrophy]
}

// Exercise is the prescription the engine needs from the catalog.
type Exercise struct {
	Mode            string
	TargetReps      int
	TargetRepsRange string
}

// Input is everything CalcNext looks at.
type Input struct {
	Last        *models.LastSet
	Exercise    Exercise
	Profile     string
	MinWeightKg float64
	History     []models.HistoryPoint
	Now         time.Time
}

// Suggestion is the engine output. OK is false when no suggestion applies.
type Suggestion struct {
	OK          bool    `json:"ok"`
	WeightKg    float64 `json:"weightKg"`
	Reps        int     `json:"reps"`
	Rule        Rule    `json:"rule,omitempty"`
	Explanation string  `json:"explanation"`
}

// Next converts the suggestion to the form stored in an exercise profile.
func (s Suggestion) Next() *models.NextSuggestion {
	if !s.OK {
		return nil
	}
	return &models.NextSuggestion{WeightKg: s.WeightKg, Reps: s.Reps, Explanation: s.Explanation}
}

// Signals are the aggregates the ladder decides on.
type Signals struct {
	AvgRIR     float64
	Compliance float64
	E1RMTrend  float64
	DaysSince  int
}

// ComputeSignals derives the ladder inputs. The last two history points
// drive RIR and compliance; without history the last set's RIR is used
// and compliance is assumed full. The e1RM trend needs three points.
func ComputeSignals(last models.LastSet, history []models.HistoryPoint, now time.Time) Signals {
	sig := Signals{AvgRIR: defaultRIR, Compliance: 1}
	if last.RIR != nil {
		sig.AvgRIR = *last.RIR
	}

	recent := history
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	if len(recent) > 0 {
		var rir, comp float64
		for _, p := range recent {
			rir += p.AvgRIR
			comp += p.Compliance
		}
		sig.AvgRIR = rir / float64(len(recent))
		sig.Compliance = comp / float64(len(recent))
	}

	if n := len(history); n >= plateauMinPoints {
		sig.E1RMTrend = history[n-1].TopE1RM - history[n-3].TopE1RM
	}
	sig.DaysSince = daysBetween(now, last.DateISO)
	return sig
}

// CalcNext runs the decision ladder. The first matching rule wins:
// pause backoff, deload, load increase, plateau rep-add, gentle rep-add,
// then hold.
func CalcNext(in Input) Suggestion {
	if in.Last == nil || in.Exercise.Mode == models.ModeTime {
		return Suggestion{}
	}
	last := *in.Last
	_, conf := ProfileFor(in.Profile)
	minReps, maxReps := ParseRange(in.Exercise.TargetRepsRange, in.Exercise.TargetReps)
	sig := ComputeSignals(last, in.History, in.Now)

	out := Suggestion{
		OK:          true,
		WeightKg:    Round1(last.WeightKg),
		Reps:        last.Reps,
		Rule:        RuleHold,
		Explanation: "Hold load and reps to consolidate technique.",
	}

	switch {
	case sig.DaysSince >= pauseDays:
		out.Rule = RulePause
		out.WeightKg = Round1(math.Max(in.MinWeightKg, last.WeightKg*(1-conf.PauseBackoffPct)))
		out.Explanation = fmt.Sprintf("-%d%% because it has been %d days since you last trained this exercise.",
			pct(conf.PauseBackoffPct), sig.DaysSince)

	case sig.AvgRIR < deloadMaxRIR && sig.Compliance < deloadMaxCompliance:
		out.Rule = RuleDeload
		out.WeightKg = Round1(math.Max(in.MinWeightKg, last.WeightKg*(1-conf.DeloadPct)))
		out.Reps = max(minReps, last.Reps-1)
		out.Explanation = fmt.Sprintf("Deload (%d%%) for high fatigue (average RIR %s) and low compliance.",
			pct(conf.DeloadPct), formatNumber(Round1(sig.AvgRIR)))

	case last.Reps >= maxReps && sig.AvgRIR >= loadMinRIR && sig.Compliance >= loadMinCompliance:
		out.Rule = RuleLoad
		out.WeightKg = Round1(math.Max(in.MinWeightKg, last.WeightKg+conf.LoadStepKg))
		out.Explanation = fmt.Sprintf("+%s kg because you hit the top of the rep range with RIR>=2 over recent sessions.",
			formatNumber(conf.LoadStepKg))

	case len(in.History) >= plateauMinPoints && sig.E1RMTrend <= 0 && sig.Compliance >= plateauMinCompliance:
		out.Rule = RulePlateau
		out.Reps = min(maxReps, last.Reps+conf.RepStep)
		out.Explanation = fmt.Sprintf("+%d %s because e1RM has plateaued without a drop in compliance.",
			conf.RepStep, plural(conf.RepStep, "rep", "reps"))

	case last.Reps < maxReps && sig.AvgRIR >= gentleMinRIR:
		out.Rule = RuleReps
		out.Reps = min(maxReps, last.Reps+1)
		out.Explanation = "+1 rep to move toward the top of the range while keeping reserve."
	}
	return out
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseRange extracts [min, max] reps from free text such as "8-12",
// "6 a 8" or "10". Without digits both bounds are targetReps.
func ParseRange(text string, targetReps int) (int, int) {
	if text == "" {
		text = strconv.Itoa(targetReps)
	}
	nums := digitsRe.FindAllString(text, 2)
	switch len(nums) {
	case 0:
		return targetReps, targetReps
	case 1:
		n, _ := strconv.Atoi(nums[0])
		return n, n
	default:
		a, _ := strconv.Atoi(nums[0])
		b, _ := strconv.Atoi(nums[1])
		return a, b
	}
}

// RPEToRIR maps an RPE rating, rounded to the nearest whole point, to reps
// in reserve.
func RPEToRIR(rpe float64) float64 {
	rpe = math.Round(rpe)
	switch {
	case rpe >= 10:
		return 0
	case rpe >= 9:
		return 1
	case rpe >= 8:
		return 2
	default:
		return 3
	}
}

// Round1 rounds to one decimal.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// daysBetween counts whole calendar days from the day of dateISO to now's
// UTC day. Unparseable or empty dates count as zero.
func daysBetween(now time.Time, dateISO string) int {
	if dateISO == "" {
		return 0
	}
	day, ok := models.Day(dateISO)
	if !ok {
		return 0
	}
	then, _ := time.Parse(models.DateLayout, day)
	today, _ := time.Parse(models.DateLayout, now.UTC().Format(models.DateLayout))
	return int(math.Floor(today.Sub(then).Hours() / 24))
}

func pct(v float64) int {
	return int(math.Round(v * 100))
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
