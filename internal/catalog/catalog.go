// Package catalog provides read-only lookup over the exercise and routine
// template catalog. Catalog content lives in a YAML file and is treated as
// an input; this package only indexes it.
package catalog

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/nicoschmidtj/nicofit2/internal/models"
)

// Exercise is one catalog entry.
type Exercise struct {
	ID              string   `yaml:"id" json:"id"`
	Name            string   `yaml:"name" json:"name"`
	Mode            string   `yaml:"mode" json:"mode"`
	Muscles         []string `yaml:"muscles" json:"muscles,omitempty"`
	Implement       string   `yaml:"implement" json:"implement,omitempty"`
	TargetSets      int      `yaml:"target_sets" json:"targetSets,omitempty"`
	TargetReps      int      `yaml:"target_reps" json:"targetReps,omitempty"`
	TargetRepsRange string   `yaml:"target_reps_range" json:"targetRepsRange,omitempty"`
	TargetTimeSec   int      `yaml:"target_time_sec" json:"targetTimeSec,omitempty"`
	RestSec         int      `yaml:"rest_sec" json:"restSec,omitempty"`
	InitialWeightKg float64  `yaml:"initial_weight_kg" json:"initialWeightKg,omitempty"`
	Custom          bool     `yaml:"-" json:"custom,omitempty"`
}

// file is the on-disk layout.
type file struct {
	Exercises []Exercise          `yaml:"exercises"`
	Routines  map[string][]string `yaml:"routines"`
}

// Catalog indexes exercises by id and routine templates by key.
type Catalog struct {
	byID     map[string]Exercise
	order    []string
	routines map[string][]string
}

// Load reads a catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML bytes.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	c := New(f.Exercises, f.Routines)
	for key, ids := range c.routines {
		for _, id := range ids {
			if _, ok := c.byID[id]; !ok {
				return nil, fmt.Errorf("routine %q references unknown exercise %q", key, id)
			}
		}
	}
	return c, nil
}

// New builds a catalog from already-decoded entries. Later duplicates win.
func New(exercises []Exercise, routines map[string][]string) *Catalog {
	c := &Catalog{
		byID:     make(map[string]Exercise, len(exercises)),
		routines: make(map[string][]string, len(routines)),
	}
	for _, ex := range exercises {
		if ex.ID == "" {
			continue
		}
		if ex.Mode == "" {
			ex.Mode = models.ModeReps
		}
		if _, ok := c.byID[ex.ID]; !ok {
			c.order = append(c.order, ex.ID)
		}
		c.byID[ex.ID] = ex
	}
	for key, ids := range routines {
		c.routines[key] = append([]string(nil), ids...)
	}
	return c
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return New(nil, nil)
}

// Exercise returns the entry for id.
func (c *Catalog) Exercise(id string) (Exercise, bool) {
	if c == nil {
		return Exercise{}, false
	}
	ex, ok := c.byID[id]
	return ex, ok
}

// Exercises returns every entry in file order.
func (c *Catalog) Exercises() []Exercise {
	if c == nil {
		return nil
	}
	out := make([]Exercise, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// RoutineKeys returns the template routine keys, sorted.
func (c *Catalog) RoutineKeys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.routines))
	for k := range c.routines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Routine returns the exercise ids of a template routine.
func (c *Catalog) Routine(key string) []string {
	if c == nil {
		return nil
	}
	return append([]string(nil), c.routines[key]...)
}

// DefaultRoutineIndex returns a fresh copy of every template routine.
func (c *Catalog) DefaultRoutineIndex() models.RoutineIndex {
	out := models.RoutineIndex{}
	for _, key := range c.RoutineKeys() {
		out[key] = c.Routine(key)
	}
	return out
}

// FindByName returns the first exercise whose normalized name equals or
// contains (in either direction) the normalized query. Blank queries never match.
func (c *Catalog) FindByName(name string) (Exercise, bool) {
	q := NormalizeName(name)
	if q == "" || c == nil {
		return Exercise{}, false
	}
	for _, id := range c.order {
		if NormalizeName(c.byID[id].Name) == q {
			return c.byID[id], true
		}
	}
	for _, id := range c.order {
		n := NormalizeName(c.byID[id].Name)
		if n == "" {
			continue
		}
		if strings.Contains(n, q) || strings.Contains(q, n) {
			return c.byID[id], true
		}
	}
	return Exercise{}, false
}

// PrimaryGroup returns the first muscle of an exercise, inferring one from
// the name (or nameFallback for unknown ids) when none is listed.
func (c *Catalog) PrimaryGroup(id, nameFallback string) string {
	if ex, ok := c.Exercise(id); ok {
		if len(ex.Muscles) > 0 && ex.Muscles[0] != "" {
			return ex.Muscles[0]
		}
		if nameFallback == "" {
			nameFallback = ex.Name
		}
	}
	return InferMuscle(nameFallback)
}

// WithCustom returns a catalog overlaid with the user's custom exercises.
// The receiver is not modified.
func (c *Catalog) WithCustom(custom map[string]models.CustomExercise) *Catalog {
	if c == nil {
		c = Empty()
	}
	out := &Catalog{
		byID:     make(map[string]Exercise, len(c.byID)+len(custom)),
		order:    append([]string(nil), c.order...),
		routines: c.routines,
	}
	for id, ex := range c.byID {
		out.byID[id] = ex
	}
	ids := make([]string, 0, len(custom))
	for id := range custom {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ce := custom[id]
		ex := Exercise{ID: id, Name: ce.Name, Mode: ce.Mode, Muscles: ce.Muscles, Custom: true}
		if ex.Mode == "" {
			ex.Mode = models.ModeReps
		}
		if ce.Fixed != nil {
			ex.TargetSets = ce.Fixed.TargetSets
			ex.TargetRepsRange = ce.Fixed.TargetRepsRange
			ex.TargetTimeSec = ce.Fixed.TargetTimeSec
			ex.RestSec = ce.Fixed.RestSec
		}
		if _, ok := out.byID[id]; !ok {
			out.order = append(out.order, id)
		}
		out.byID[id] = ex
	}
	return out
}

// Warnings reports entries with incomplete metadata.
func (c *Catalog) Warnings() []string {
	var out []string
	for _, ex := range c.Exercises() {
		if ex.Custom {
			continue
		}
		if len(ex.Muscles) == 0 {
			out = append(out, fmt.Sprintf("%s: missing muscle metadata", ex.ID))
		}
		if ex.Implement == "" {
			out = append(out, fmt.Sprintf("%s: missing implement metadata", ex.ID))
		}
	}
	return out
}

// NormalizeName lowercases, strips accents and collapses whitespace.
func NormalizeName(name string) string {
	// Chained transformers carry state, so one is built per call.
	folder := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(folder, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

var musclePatterns = []struct {
	group string
	re    *regexp.Regexp
}{
	{"pecho", regexp.MustCompile(`pecho|press banca|apertura|chest|bench`)},
	{"espalda", regexp.MustCompile(`espalda|remo|jalon|pull|row`)},
	{"pierna", regexp.MustCompile(`pierna|squat|sentadilla|peso muerto|zancada|cuadriceps|gluteo|deadlift|lunge`)},
	{"hombro", regexp.MustCompile(`hombro|militar|lateral|rear delt|face pull|shoulder`)},
	{"brazo", regexp.MustCompile(`biceps|curl|triceps|overhead|barra`)},
	{"core", regexp.MustCompile(`core|abs|plancha|rueda|paloff|woodchopper|elevacion piernas|plank`)},
}

// InferMuscle guesses a primary muscle group from an exercise name.
func InferMuscle(name string) string {
	n := NormalizeName(name)
	for _, p := range musclePatterns {
		if p.re.MatchString(n) {
			return p.group
		}
	}
	return "otros"
}

// CustomID derives a stable id from an exercise name: a 31-multiplier hash
// over UTF-16 code units, absolute value, base 36. Ids produced by earlier
// clients use the same scheme.
func CustomID(name string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(name)) {
		h = 31*h + int32(c)
	}
	abs := int64(h)
	if abs < 0 {
		abs = -abs
	}
	return "custom/" + strconv.FormatInt(abs, 36)
}
