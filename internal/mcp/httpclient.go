package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nicoschmidtj/nicofit2/internal/models"
	"github.com/nicoschmidtj/nicofit2/internal/workout"
)

// HTTPClient implements DataSource by calling the nicofit-server REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the mirrored state lives on the server (reached over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	userID     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. userID
// is used when a call does not name a user.
func NewHTTPClient(baseURL, apiKey, userID string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		userID:     userID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, body)
	}

	return body, nil
}

// userPath builds /api/v1/users/<user>/<parts...> with each part escaped.
func (c *HTTPClient) userPath(userID string, parts ...string) string {
	if userID == "" {
		userID = c.userID
	}
	var b strings.Builder
	b.WriteString("/api/v1/users/")
	b.WriteString(url.PathEscape(userID))
	for _, p := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(p))
	}
	return b.String()
}

func (c *HTTPClient) ExerciseHistory(ctx context.Context, userID, exerciseID string, weeks, targetSets int) ([]models.HistoryPoint, error) {
	params := url.Values{}
	if weeks > 0 {
		params.Set("weeks", strconv.Itoa(weeks))
	}
	if targetSets > 0 {
		params.Set("target_sets", strconv.Itoa(targetSets))
	}

	body, err := c.get(ctx, c.userPath(userID, "exercises", exerciseID, "history"), params)
	if err != nil {
		return nil, err
	}
	var out struct {
		Points []models.HistoryPoint `json:"points"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode history: %w", err)
	}
	return out.Points, nil
}

func (c *HTTPClient) Suggestion(ctx context.Context, userID, exerciseID, profile string) (*workout.Advice, error) {
	params := url.Values{}
	if profile != "" {
		params.Set("profile", profile)
	}

	body, err := c.get(ctx, c.userPath(userID, "exercises", exerciseID, "suggestion"), params)
	if err != nil {
		return nil, err
	}
	var out workout.Advice
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode suggestion: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) Routines(ctx context.Context, userID string) (*Routines, error) {
	body, err := c.get(ctx, c.userPath(userID, "routines"), nil)
	if err != nil {
		return nil, err
	}
	var out Routines
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode routines: %w", err)
	}
	return &out, nil
}

func (c *HTTPClient) Sessions(ctx context.Context, userID string, start, end time.Time) ([]models.Session, error) {
	params := url.Values{}
	params.Set("start", start.Format(time.RFC3339))
	params.Set("end", end.Format(time.RFC3339))

	body, err := c.get(ctx, c.userPath(userID, "sessions"), params)
	if err != nil {
		return nil, err
	}
	var out []models.Session
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("httpclient: decode sessions: %w", err)
	}
	return out, nil
}
