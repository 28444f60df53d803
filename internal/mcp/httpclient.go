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

	"github.com/meltforce/freecoach/internal/apperr"
	"github.com/meltforce/freecoach/internal/coach"
	"github.com/meltforce/freecoach/internal/models"
	"github.com/meltforce/freecoach/internal/progress"
)

// HTTPClient implements Coach by calling the FreeCoach REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the coach runs on a remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies Coach.
var _ Coach = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent on write requests when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		// Plan generation waits on the model.
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

// do sends a request and decodes a 2xx JSON response into out. Error
// responses are turned back into classified errors.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" && method != http.MethodGet {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return remoteError(path, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

// remoteError rebuilds an apperr.Error from the server's error body.
func remoteError(path string, status int, data []byte) error {
	var body struct {
		Error   string `json:"error"`
		Kind    string `json:"kind"`
		Field   string `json:"field"`
		Excerpt string `json:"excerpt"`
	}
	if err := json.Unmarshal(data, &body); err != nil || body.Kind == "" {
		return fmt.Errorf("httpclient: %s returned %d: %s", path, status, apperr.Truncate(string(data), 200))
	}
	return &apperr.Error{
		Kind:    apperr.ParseKind(body.Kind),
		Field:   body.Field,
		Msg:     body.Error,
		Excerpt: body.Excerpt,
	}
}

func id(n int64) string { return strconv.FormatInt(n, 10) }

func (c *HTTPClient) CreateUser(ctx context.Context, in coach.UserInput) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodPost, "/api/v1/users", nil, in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var u models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+id(userID), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *HTTPClient) ListUsers(ctx context.Context, limit int) ([]models.User, error) {
	params := url.Values{}
	if limit != 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/v1/users", params, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *HTTPClient) CreateExerciseType(ctx context.Context, in coach.ExerciseTypeInput) (*models.ExerciseType, error) {
	var et models.ExerciseType
	if err := c.do(ctx, http.MethodPost, "/api/v1/exercise-types", nil, in, &et); err != nil {
		return nil, err
	}
	return &et, nil
}

func (c *HTTPClient) ListExerciseTypes(ctx context.Context) ([]models.ExerciseType, error) {
	var types []models.ExerciseType
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercise-types", nil, nil, &types); err != nil {
		return nil, err
	}
	return types, nil
}

func (c *HTTPClient) GeneratePlan(ctx context.Context, userID int64, req coach.GenerateRequest) (*coach.GeneratedPlan, error) {
	var gp coach.GeneratedPlan
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/"+id(userID)+"/plans/generate", nil, req, &gp); err != nil {
		return nil, err
	}
	return &gp, nil
}

func (c *HTTPClient) ListUserPlans(ctx context.Context, userID int64) ([]models.Plan, error) {
	var plans []models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+id(userID)+"/plans", nil, nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

func (c *HTTPClient) GetPlanDetails(ctx context.Context, planID int64) (*models.PlanTree, error) {
	var tree models.PlanTree
	if err := c.do(ctx, http.MethodGet, "/api/v1/plans/"+id(planID), nil, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

func (c *HTTPClient) UpdatePlan(ctx context.Context, planID int64, upd coach.PlanUpdate) (*models.Plan, error) {
	var p models.Plan
	if err := c.do(ctx, http.MethodPut, "/api/v1/plans/"+id(planID), nil, upd, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) DeletePlan(ctx context.Context, planID int64) (*coach.DeleteResult, error) {
	var res coach.DeleteResult
	if err := c.do(ctx, http.MethodDelete, "/api/v1/plans/"+id(planID), nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) ReportSessions(ctx context.Context, userID, planID int64, reports []coach.ReportInput) (*coach.ReportResult, error) {
	var res coach.ReportResult
	path := "/api/v1/users/" + id(userID) + "/plans/" + id(planID) + "/sessions"
	body := map[string]any{"reports": reports}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) GetProgress(ctx context.Context, userID int64, windowDays int) (*progress.Summary, error) {
	params := url.Values{}
	if windowDays != 0 {
		params.Set("days", strconv.Itoa(windowDays))
	}
	var sum progress.Summary
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/"+id(userID)+"/progress", params, nil, &sum); err != nil {
		return nil, err
	}
	return &sum, nil
}
