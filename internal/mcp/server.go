package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nicoschmidtj/nicofit2/internal/catalog"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer.
// Empty means the data source's own user.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered. The
// sync_status tool is only offered when ds reports a sync status.
func New(ds DataSource, cat *catalog.Catalog, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("nicofit", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("nicofit workout tracker. Query exercise history, next-set suggestions, routines and logged sessions. All data is scoped to one user."),
	)
	if cat == nil {
		cat = catalog.Empty()
	}

	h := &handlers{ds: ds, catalog: cat, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolGetExerciseHistory, Handler: h.getExerciseHistory},
		server.ServerTool{Tool: toolSuggestNext, Handler: h.suggestNext},
		server.ServerTool{Tool: toolListRoutines, Handler: h.listRoutines},
		server.ServerTool{Tool: toolGetSessions, Handler: h.getSessions},
		server.ServerTool{Tool: toolGetMuscleFrequency, Handler: h.getMuscleFrequency},
		server.ServerTool{Tool: toolGetWeeklyHeatmap, Handler: h.getWeeklyHeatmap},
	)
	if st, ok := ds.(StatusSource); ok {
		h.status = st
		s.AddTool(toolSyncStatus, h.syncStatus)
	}

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentSessions, Handler: h.recentSessions},
		server.ServerResource{Resource: resRoutines, Handler: h.routines},
		server.ServerResource{Resource: resExerciseCatalog, Handler: h.exerciseCatalog},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds      DataSource
	status  StatusSource
	catalog *catalog.Catalog
	log     *slog.Logger
}

// --- Resource definitions ---

var resRecentSessions = mcp.NewResource(
	"nicofit://recent_sessions",
	"Recent Sessions",
	mcp.WithResourceDescription("Sessions logged in the last 14 days, newest first"),
	mcp.WithMIMEType("application/json"),
)

var resRoutines = mcp.NewResource(
	"nicofit://routines",
	"Routines",
	mcp.WithResourceDescription("The user's routines with the exercise ids of each"),
	mcp.WithMIMEType("application/json"),
)

var resExerciseCatalog = mcp.NewResource(
	"nicofit://exercise_catalog",
	"Exercise Catalog",
	mcp.WithResourceDescription("Every catalog exercise with its mode, muscles and prescription"),
	mcp.WithMIMEType("application/json"),
)
