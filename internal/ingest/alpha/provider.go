package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
	"github.com/nicoschmidtj/nicofit2/internal/ingest"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/syncstore"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

// Provider imports Alpha Progression CSV exports into the user's state.
type Provider struct {
	store   *syncstore.Service
	advisor *workout.Advisor
	catalog *catalog.Catalog
	log     *slog.Logger

	// Location is the zone export times are read in. Nil means time.Local.
	Location *time.Location
}

// NewProvider creates a new Alpha Progression import provider.
func NewProvider(store *syncstore.Service, advisor *workout.Advisor, cat *catalog.Catalog, log *slog.Logger) *Provider {
	return &Provider{store: store, advisor: advisor, catalog: cat, log: log}
}

// Ingest parses a CSV export, upserts its sessions, refreshes the exercise
// profiles it touches and saves the result. Re-importing an export replaces
// the sessions it produced before.
func (p *Provider) Ingest(ctx context.Context, r io.Reader) (*ingest.Result, error) {
	workouts, err := Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV: %w", err)
	}

	loaded := p.store.LoadState(ctx)
	prev := loaded.State
	conv := ToSessions(workouts, p.catalog.WithCustom(prev.CustomExercisesByID), p.Location)

	result := &ingest.Result{WorkoutsReceived: len(workouts), WarmupsSkipped: conv.WarmupsSkipped}
	st := prev
	st.Sessions = append([]models.Session(nil), prev.Sessions...)

	index := make(map[string]int, len(st.Sessions))
	for i, s := range st.Sessions {
		index[s.ID] = i
	}
	for _, s := range conv.Sessions {
		result.SetsReceived += len(s.Sets)
		result.SetsInserted += len(s.Sets)
		if i, ok := index[s.ID]; ok {
			st.Sessions[i] = s
			result.SessionsReplaced++
			continue
		}
		index[s.ID] = len(st.Sessions)
		st.Sessions = append(st.Sessions, s)
		result.SessionsInserted++
	}

	if len(conv.Custom) > 0 {
		custom := make(map[string]models.CustomExercise, len(prev.CustomExercisesByID)+len(conv.Custom))
		for id, ce := range prev.CustomExercisesByID {
			custom[id] = ce
		}
		for id, ce := range conv.Custom {
			if _, ok := custom[id]; ok {
				continue
			}
			custom[id] = ce
			result.CustomExercises = append(result.CustomExercises, id)
		}
		sort.Strings(result.CustomExercises)
		st.CustomExercisesByID = custom
	}

	st, result.ProfilesUpdated = p.refreshProfiles(st, conv.Sessions)

	res := p.store.SaveState(ctx, syncstore.SaveRequest{
		State:         st,
		PreviousState: prev,
		Metadata:      loaded.Metadata,
	})
	result.SyncPhase = string(res.Phase)
	if res.Err != nil {
		return result, fmt.Errorf("saving imported sessions: %w", res.Err)
	}

	p.log.Info("alpha import complete",
		"workouts", result.WorkoutsReceived,
		"inserted", result.SessionsInserted,
		"replaced", result.SessionsReplaced,
		"sets", result.SetsInserted,
		"custom", len(result.CustomExercises),
		"phase", res.Phase)
	return result, nil
}

// refreshProfiles registers the imported sessions oldest first so the
// newest top set ends up as Last. Profiles whose Last is newer than an
// imported session are left alone.
func (p *Provider) refreshProfiles(st models.State, sessions []models.Session) (models.State, int) {
	ordered := append([]models.Session(nil), sessions...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return models.DateMillis(ordered[i].DateISO) < models.DateMillis(ordered[j].DateISO)
	})

	updated := map[string]bool{}
	for _, s := range ordered {
		seen := map[string]bool{}
		for _, set := range s.Sets {
			if seen[set.ExerciseID] {
				continue
			}
			seen[set.ExerciseID] = true
			if last := st.ProfileByExerciseID[set.ExerciseID].Last; last != nil &&
				models.DateMillis(last.DateISO) > models.DateMillis(s.DateISO) {
				continue
			}
			var ok bool
			if st, ok = p.register(st, s, set.ExerciseID); ok {
				updated[set.ExerciseID] = true
			}
		}
	}
	return st, len(updated)
}

func (p *Provider) register(st models.State, s models.Session, exerciseID string) (models.State, bool) {
	before := st.ProfileByExerciseID[exerciseID].Last
	next, _ := p.advisor.Register(st, s, exerciseID)
	after := next.ProfileByExerciseID[exerciseID].Last
	return next, after != nil && after != before
}
