// Package api is the HTTP client for the GEO analytics backend. Responses
// are decoded here, including the error envelope, so the rest of the agent
// works with typed results only.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aidso/geo-console/internal/models"
	"github.com/go-resty/resty/v2"
)

// Client talks to the backend REST API. A bearer token is attached to every
// request once set; the auth store is the only caller of SetToken/ClearToken.
type Client struct {
	http *resty.Client
}

// New creates a backend client rooted at baseURL.
func New(baseURL string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json"),
	}
}

// SetToken attaches a bearer token to all subsequent requests.
func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// ClearToken removes the bearer token.
func (c *Client) ClearToken() {
	c.http.SetAuthToken("")
}

// CreateTaskRequest is the body of the task creation call.
type CreateTaskRequest struct {
	Keyword    string            `json:"keyword"`
	SearchType models.SearchType `json:"searchType"`
	Models     []string          `json:"models"`
}

// MentionsResponse bundles a keyword's mentions with the server-computed
// aggregates, returned by a single call.
type MentionsResponse struct {
	Mentions []models.BrandMention `json:"mentions"`
	Stats    models.MentionStats   `json:"stats"`
}

// ListTasks fetches the full task list for the current session.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var tasks []models.Task
	if err := c.get(ctx, "/api/tasks", &tasks); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask fetches a single task's current server state.
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.get(ctx, "/api/tasks/"+id, &task); err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return &task, nil
}

// CreateTask submits a new analysis task. Classified errors (insufficient
// balance, quota exceeded) surface as *Error for the caller to render.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	var task models.Task
	if err := c.post(ctx, "/api/tasks", req, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask requests backend deletion of a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/tasks/"+id)
}

// Me returns the account behind the current token.
func (c *Client) Me(ctx context.Context) (*models.AuthUser, error) {
	var user models.AuthUser
	if err := c.get(ctx, "/api/auth/me", &user); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &user, nil
}

// Permissions fetches the public plan-to-features table.
func (c *Client) Permissions(ctx context.Context) ([]models.PlanPermissions, error) {
	var perms []models.PlanPermissions
	if err := c.get(ctx, "/api/permissions", &perms); err != nil {
		return nil, fmt.Errorf("fetch permissions: %w", err)
	}
	return perms, nil
}

// PublicConfig fetches the unauthenticated site configuration.
func (c *Client) PublicConfig(ctx context.Context) (*models.PublicConfig, error) {
	var cfg models.PublicConfig
	if err := c.get(ctx, "/api/config/public", &cfg); err != nil {
		return nil, fmt.Errorf("fetch public config: %w", err)
	}
	return &cfg, nil
}

// BillingSummary fetches the account's usage for the current billing day.
func (c *Client) BillingSummary(ctx context.Context) (*models.BillingSummary, error) {
	var sum models.BillingSummary
	if err := c.get(ctx, "/api/billing/summary", &sum); err != nil {
		return nil, fmt.Errorf("fetch billing summary: %w", err)
	}
	return &sum, nil
}

// Pricing fetches the per-model price table used by the cost estimator.
func (c *Client) Pricing(ctx context.Context) (*models.PricingTable, error) {
	var table models.PricingTable
	if err := c.get(ctx, "/api/billing/pricing", &table); err != nil {
		return nil, fmt.Errorf("fetch pricing: %w", err)
	}
	return &table, nil
}

// ListBrandKeywords fetches all monitored brand keywords.
func (c *Client) ListBrandKeywords(ctx context.Context) ([]models.BrandKeyword, error) {
	var keywords []models.BrandKeyword
	if err := c.get(ctx, "/api/brand-keywords", &keywords); err != nil {
		return nil, fmt.Errorf("list brand keywords: %w", err)
	}
	return keywords, nil
}

// CreateBrandKeyword registers a new keyword to monitor.
func (c *Client) CreateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error) {
	var created models.BrandKeyword
	if err := c.post(ctx, "/api/brand-keywords", kw, &created); err != nil {
		return nil, fmt.Errorf("create brand keyword: %w", err)
	}
	return &created, nil
}

// UpdateBrandKeyword replaces a keyword's definition.
func (c *Client) UpdateBrandKeyword(ctx context.Context, kw models.BrandKeyword) (*models.BrandKeyword, error) {
	var updated models.BrandKeyword
	resp, err := c.http.R().SetContext(ctx).SetBody(kw).Put("/api/brand-keywords/" + kw.ID)
	if err != nil {
		return nil, fmt.Errorf("update brand keyword: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), &updated); err != nil {
		return nil, fmt.Errorf("update brand keyword: decode response: %w", err)
	}
	return &updated, nil
}

// DeleteBrandKeyword removes a keyword; the backend cascades to its mentions.
func (c *Client) DeleteBrandKeyword(ctx context.Context, id string) error {
	return c.delete(ctx, "/api/brand-keywords/"+id)
}

// Mentions fetches a keyword's mentions plus precomputed stats.
func (c *Client) Mentions(ctx context.Context, keywordID string) (*MentionsResponse, error) {
	var out MentionsResponse
	if err := c.get(ctx, "/api/brand-keywords/"+keywordID+"/mentions", &out); err != nil {
		return nil, fmt.Errorf("fetch mentions for %s: %w", keywordID, err)
	}
	return &out, nil
}

// ExportMentionsCSV returns the backend-rendered CSV for a keyword's
// mentions. The bytes are passed through untouched; the server owns the
// formatting.
func (c *Client) ExportMentionsCSV(ctx context.Context, keywordID string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "text/csv").
		Get("/api/brand-keywords/" + keywordID + "/mentions.csv")
	if err != nil {
		return nil, fmt.Errorf("export mentions csv: %w", err)
	}
	if resp.IsError() {
		return nil, decodeError(resp.StatusCode(), resp.Body())
	}
	return resp.Body(), nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.R().SetContext(ctx).SetBody(body).Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp.StatusCode(), resp.Body())
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) delete(ctx context.Context, path string) error {
	resp, err := c.http.R().SetContext(ctx).Delete(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return decodeError(resp.StatusCode(), resp.Body())
	}
	return nil
}
