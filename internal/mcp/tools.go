package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/nicoschmidtj/nicofit2/internal/history"
	"github.com/nicoschmidtj/nicofit2/internal/progression"
)

// defaultTimeRange returns start/end defaulting to the last 7 days.
func defaultTimeRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -7)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetExerciseHistory = mcp.NewTool("get_exercise_history",
	mcp.WithDescription("Per-day history of one exercise: best estimated 1RM, top set, volume, average RIR and set compliance, oldest first."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id (e.g. bench-press)")),
	mcp.WithNumber("weeks", mcp.Description("Trailing window in weeks (2-6). Defaults to 4.")),
	mcp.WithNumber("target_sets", mcp.Description("Prescribed sets per session for compliance. Defaults to the catalog prescription.")),
)

var toolSuggestNext = mcp.NewTool("suggest_next",
	mcp.WithDescription("Suggest the next working weight and reps for an exercise from its last top set and recent history, with the rule that produced it."),
	mcp.WithString("exercise", mcp.Required(), mcp.Description("Exercise id")),
	mcp.WithString("profile", mcp.Description("Progression profile. Defaults to the user's setting."),
		mcp.Enum(progression.ProfileStrength, progression.ProfileHypertrophy, progression.ProfileRecomposition)),
)

var toolListRoutines = mcp.NewTool("list_routines",
	mcp.WithDescription("List the user's routines and the exercise ids in each."),
)

var toolGetSessions = mcp.NewTool("get_sessions",
	mcp.WithDescription("Logged sessions (strength and cardio) in a time range, newest first, with every set."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetMuscleFrequency = mcp.NewTool("get_muscle_frequency",
	mcp.WithDescription("Distinct training days per primary muscle group in a time range, most frequent first."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("routine", mcp.Description("Only count sessions of this routine key")),
)

var toolGetWeeklyHeatmap = mcp.NewTool("get_weekly_heatmap",
	mcp.WithDescription("Training days per ISO week and muscle group."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
)

var toolSyncStatus = mcp.NewTool("sync_status",
	mcp.WithDescription("Phase of the last sync with the remote mirror (idle, syncing, conflict, error) and when it last succeeded."),
)

// --- Tool handlers ---

func (h *handlers) getExerciseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	points, err := h.ds.ExerciseHistory(ctx, UserIDFromContext(ctx), exercise,
		req.GetInt("weeks", 0), req.GetInt("target_sets", 0))
	if err != nil {
		h.log.Error("mcp get_exercise_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(points)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) suggestNext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, err := req.RequireString("exercise")
	if err != nil {
		return mcp.NewToolResultError("exercise parameter is required"), nil
	}

	advice, err := h.ds.Suggestion(ctx, UserIDFromContext(ctx), exercise, req.GetString("profile", ""))
	if err != nil {
		h.log.Error("mcp suggest_next", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(advice)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) listRoutines(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	routines, err := h.ds.Routines(ctx, UserIDFromContext(ctx))
	if err != nil {
		h.log.Error("mcp list_routines", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(routines)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), start, end)
	if err != nil {
		h.log.Error("mcp get_sessions", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(sessions)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getMuscleFrequency(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), start, end)
	if err != nil {
		h.log.Error("mcp get_muscle_frequency", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	freq := history.FrequencyByGroup(sessions, h.catalog, history.Filter{
		From:       start,
		To:         end,
		RoutineKey: req.GetString("routine", ""),
	})
	result, err := mcp.NewToolResultJSON(freq)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWeeklyHeatmap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""))
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	sessions, err := h.ds.Sessions(ctx, UserIDFromContext(ctx), start, end)
	if err != nil {
		h.log.Error("mcp get_weekly_heatmap", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	hm := history.WeeklyHeatmap(sessions, h.catalog, history.Filter{From: start, To: end})
	result, err := mcp.NewToolResultJSON(hm)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(h.status.SyncStatus())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
