package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/syncstore"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

// DataSource abstracts the data layer for MCP tools. LocalSource reads the
// device's synced state; HTTPClient reads a mirror server's REST API.
// An empty userID means the source's own user.
type DataSource interface {
	ExerciseHistory(ctx context.Context, userID, exerciseID string, weeks, targetSets int) ([]models.HistoryPoint, error)
	Suggestion(ctx context.Context, userID, exerciseID, profile string) (*workout.Advice, error)
	Routines(ctx context.Context, userID string) (*Routines, error)
	Sessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error)
}

// StatusSource is implemented by sources that sync, so the sync status can
// be reported.
type StatusSource interface {
	SyncStatus() syncstore.Status
}

// Routines is a user's routine index with display names.
type Routines struct {
	Routines models.RoutineIndex `json:"routines"`
	Names    map[string]string   `json:"names,omitempty"`
}

// ErrOtherUser is returned when a local source is asked for a user it does
// not hold.
var ErrOtherUser = errors.New("user not held by this device")

// LocalSource serves the user signed in on this device from the sync service.
type LocalSource struct {
	store   *syncstore.Service
	advisor *workout.Advisor
}

var (
	_ DataSource   = (*LocalSource)(nil)
	_ StatusSource = (*LocalSource)(nil)
)

// NewLocalSource creates a DataSource over the local sync service.
func NewLocalSource(store *syncstore.Service, advisor *workout.Advisor) *LocalSource {
	return &LocalSource{store: store, advisor: advisor}
}

func (l *LocalSource) state(ctx context.Context, userID string) (models.State, error) {
	if current := l.store.UserID(ctx); userID != "" && userID != current {
		return models.State{}, fmt.Errorf("%w: %s (signed in as %s)", ErrOtherUser, userID, current)
	}
	return l.store.LoadState(ctx).State, nil
}

func (l *LocalSource) ExerciseHistory(ctx context.Context, userID, exerciseID string, weeks, targetSets int) ([]models.HistoryPoint, error) {
	st, err := l.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.advisor.History(st, exerciseID, weeks, targetSets), nil
}

func (l *LocalSource) Suggestion(ctx context.Context, userID, exerciseID, profile string) (*workout.Advice, error) {
	st, err := l.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	advice := l.advisor.Suggest(st, exerciseID, profile)
	return &advice, nil
}

func (l *LocalSource) Routines(ctx context.Context, userID string) (*Routines, error) {
	st, err := l.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := &Routines{Routines: st.UserRoutinesIndex, Names: st.CustomRoutineNames}
	if out.Routines == nil {
		out.Routines = models.RoutineIndex{}
	}
	return out, nil
}

func (l *LocalSource) Sessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error) {
	st, err := l.state(ctx, userID)
	if err != nil {
		return nil, err
	}
	return history.Between(st.Sessions, start, end), nil
}

func (l *LocalSource) SyncStatus() syncstore.Status {
	return l.store.Status()
}
