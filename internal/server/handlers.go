package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/schema"
	"github.com/nicoschmidtj/nicofit2/internal/storage"
)

// maxEnvelopeBytes caps the size of a mirrored envelope.
const maxEnvelopeBytes = 16 << 20

// errNoState is returned when a user has nothing mirrored yet.
var errNoState = errors.New("no mirrored state")

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMirrorGet(w http.ResponseWriter, r *http.Request) {
	key, ok := slotKey(w, r)
	if !ok {
		return
	}
	value, found, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.log.Error("mirror read failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "slot not found"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(value)
}

func (s *Server) handleMirrorPut(w http.ResponseWriter, r *http.Request) {
	key, ok := slotKey(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "body is not valid JSON"})
		return
	}
	if err := s.store.Set(r.Context(), key, body); err != nil {
		s.log.Error("mirror write failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMirrorDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := slotKey(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), key); err != nil {
		s.log.Error("mirror delete failed", "key", key, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExerciseHistory(w http.ResponseWriter, r *http.Request) {
	weeks, err := intParam(r, "weeks")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	targetSets, err := intParam(r, "target_sets")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	st, ok := s.userState(w, r)
	if !ok {
		return
	}
	exerciseID := pathParam(r, "exerciseID")
	writeJSON(w, http.StatusOK, map[string]any{
		"exerciseId": exerciseID,
		"points":     s.advisor.History(st, exerciseID, weeks, targetSets),
	})
}

func (s *Server) handleExerciseSuggestion(w http.ResponseWriter, r *http.Request) {
	st, ok := s.userState(w, r)
	if !ok {
		return
	}
	advice := s.advisor.Suggest(st, pathParam(r, "exerciseID"), r.URL.Query().Get("profile"))
	writeJSON(w, http.StatusOK, advice)
}

func (s *Server) handleRoutines(w http.ResponseWriter, r *http.Request) {
	st, ok := s.userState(w, r)
	if !ok {
		return
	}
	routines := st.UserRoutinesIndex
	if routines == nil {
		routines = models.RoutineIndex{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"routines": routines,
		"names":    st.CustomRoutineNames,
	})
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r, s.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	st, ok := s.userState(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, history.Between(st.Sessions, start, end))
}

// userState writes an error response and reports false when the user's
// mirrored state cannot be read.
func (s *Server) userState(w http.ResponseWriter, r *http.Request) (models.State, bool) {
	userID := pathParam(r, "userID")
	st, err := s.loadUserState(r.Context(), userID)
	switch {
	case errors.Is(err, errNoState):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no state for user " + userID})
		return models.State{}, false
	case err != nil:
		s.log.Error("loading user state", "user", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return models.State{}, false
	}
	return st, true
}

// loadUserState reads and migrates the envelope mirrored for userID.
func (s *Server) loadUserState(ctx context.Context, userID string) (models.State, error) {
	key := storage.RemoteKey(userID)
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return models.State{}, fmt.Errorf("reading %s: %w", key, err)
	}
	if !ok {
		return models.State{}, errNoState
	}
	var env struct {
		State json.RawMessage `json:"state"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.State{}, fmt.Errorf("decoding %s: %w", key, err)
	}
	if string(env.State) == "null" {
		env.State = nil
	}
	res := schema.Migrate(env.State, s.advisor.Catalog)
	for _, w := range res.Warnings {
		s.log.Warn("mirrored state migration", "user", userID, "warning", w)
	}
	return res.State, nil
}

// slotKey extracts the mirror slot key, rejecting keys outside the
// per-user remote namespace.
func slotKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid slot key"})
		return "", false
	}
	if _, ok := storage.UserFromRemoteKey(key); !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "slot key must be " + storage.RemoteKeyPrefix + "<user>"})
		return "", false
	}
	return key, true
}

// pathParam returns an unescaped URL parameter. Malformed escapes are
// returned as is.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func intParam(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (s *Server) now() time.Time {
	if s.advisor.Now != nil {
		return s.advisor.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// parseTimeRange reads start and end as RFC 3339 or YYYY-MM-DD. Without a
// start the range is the last 7 days. A date-only end includes that day.
func parseTimeRange(r *http.Request, now time.Time) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	end = now
	if endStr != "" {
		end, err = time.Parse(time.RFC3339, endStr)
		if err != nil {
			end, err = time.Parse(models.DateLayout, endStr)
			if err != nil {
				return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q", endStr)
			}
			end = end.Add(24*time.Hour - time.Nanosecond)
		}
	}

	if startStr == "" {
		return end.AddDate(0, 0, -7), end, nil
	}
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		start, err = time.Parse(models.DateLayout, startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q", startStr)
		}
	}
	return start, end, nil
}
