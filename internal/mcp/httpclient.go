package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/forgefit/forge/internal/exercises"
	"github.com/forgefit/forge/internal/goals"
	"github.com/forgefit/forge/internal/history"
	"github.com/forgefit/forge/internal/models"
	"github.com/forgefit/forge/internal/setinput"
	"github.com/forgefit/forge/internal/templates"
	"github.com/forgefit/forge/internal/units"
)

// HTTPClient implements DataSource by calling the forge REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	return c.do(req, path, dst)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, dst any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: encode %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, dst)
}

func (c *HTTPClient) do(req *http.Request, path string, dst any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) ParseSet(ctx context.Context, input string, unit units.Unit, bells int) (setinput.ParsedSet, error) {
	var p setinput.ParsedSet
	err := c.post(ctx, "/api/v1/sets/parse", map[string]any{"input": input, "unit": unit, "bells": bells}, &p)
	return p, err
}

func (c *HTTPClient) Workouts(ctx context.Context, start, end string) ([]models.CompletedWorkout, error) {
	params := url.Values{}
	if start != "" || end != "" {
		if start == "" {
			start = "0000-01-01"
		}
		if end == "" {
			end = "9999-12-31"
		}
		params.Set("start", start)
		params.Set("end", end)
	}
	var res history.Result
	if err := c.get(ctx, "/api/v1/workouts", params, &res); err != nil {
		return nil, err
	}
	return res.Workouts, nil
}

func (c *HTTPClient) WorkoutStats(ctx context.Context) (history.Stats, error) {
	var st history.Stats
	err := c.get(ctx, "/api/v1/workouts/stats", nil, &st)
	return st, err
}

func (c *HTTPClient) VolumeTrend(ctx context.Context, days int) ([]history.TrendPoint, error) {
	var points []history.TrendPoint
	err := c.get(ctx, "/api/v1/workouts/trend", url.Values{"days": {strconv.Itoa(days)}}, &points)
	return points, err
}

func (c *HTTPClient) Templates(ctx context.Context, f templates.Filter) ([]models.WorkoutTemplate, error) {
	params := url.Values{}
	setIf(params, "q", f.Term)
	setIf(params, "category", f.Category)
	setIf(params, "difficulty", f.Difficulty)
	if f.CustomOnly {
		params.Set("custom", "true")
	}
	var res templates.ListResult
	if err := c.get(ctx, "/api/v1/templates", params, &res); err != nil {
		return nil, err
	}
	return res.Templates, nil
}

func (c *HTTPClient) SearchExercises(ctx context.Context, f exercises.Filter) (exercises.SearchResult, error) {
	params := url.Values{}
	for _, v := range f.Categories {
		params.Add("category", v)
	}
	for _, v := range f.Equipment {
		params.Add("equipment", v)
	}
	for _, v := range f.PrimaryMuscles {
		params.Add("muscle", v)
	}
	for _, v := range f.Difficulty {
		params.Add("difficulty", v)
	}
	setIf(params, "q", f.Term)
	if f.HasGif {
		params.Set("hasGif", "true")
	}
	var res exercises.SearchResult
	err := c.get(ctx, "/api/v1/exercises", params, &res)
	return res, err
}

func (c *HTTPClient) GoalProgress(ctx context.Context, kind goals.Kind) (goals.Progress, error) {
	var p goals.Progress
	err := c.get(ctx, "/api/v1/goals/"+url.PathEscape(string(kind)), nil, &p)
	return p, err
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
