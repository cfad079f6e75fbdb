package shotgrid

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
	"sync"
	"time"

	"iomanager/internal/config"
	"iomanager/internal/services"
)

const searchContentType = "application/vnd+shotgun.api3_array+json"

// HTTPDoer describes the HTTP client used by the ShotGrid client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Entity is a ShotGrid entity reference.
type Entity struct {
	Type string `json:"type"`
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether the reference is unset.
func (e Entity) IsZero() bool { return e.ID == 0 }

// Shot bundles a shot with the project and sequence it was resolved under.
type Shot struct {
	Project  Entity
	Sequence Entity
	Shot     Entity
}

// Filter is one ShotGrid array filter: field, relation, value.
type Filter [3]any

// Is builds an equality filter.
func Is(field string, value any) Filter { return Filter{field, "is", value} }

// Client talks to the ShotGrid REST API using script credentials.
type Client struct {
	baseURL    string
	scriptName string
	scriptKey  string
	timeout    time.Duration
	client     HTTPDoer
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewConfigured builds a client from configuration. It returns nil when no
// site is configured.
func NewConfigured(cfg *config.Config) *Client {
	if cfg == nil || cfg.ShotGrid.SiteURL == "" {
		return nil
	}
	return New(cfg.ShotGrid.SiteURL, cfg.ShotGrid.ScriptName, cfg.ShotGrid.ScriptKey, cfg.ShotGridTimeout(), http.DefaultClient)
}

// New constructs a client. A zero timeout disables per-request deadlines.
func New(siteURL, scriptName, scriptKey string, timeout time.Duration, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(siteURL), "/"),
		scriptName: scriptName,
		scriptKey:  scriptKey,
		timeout:    timeout,
		client:     client,
		now:        time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expires) {
		return c.token, nil
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.scriptName)
	form.Set("client_secret", c.scriptKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/auth/access_token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build shotgrid auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var decoded tokenResponse
	if err := c.do(req, &decoded); err != nil {
		return "", fmt.Errorf("shotgrid auth: %w", err)
	}
	if decoded.AccessToken == "" {
		return "", fmt.Errorf("shotgrid auth: empty access token")
	}
	c.token = decoded.AccessToken
	lifetime := time.Duration(max(decoded.ExpiresIn-30, 30)) * time.Second
	c.expires = c.now().Add(lifetime)
	return c.token, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path, contentType string, body any, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode shotgrid request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build shotgrid request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	return c.do(req, out)
}

type record struct {
	ID         int            `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

func (r record) entity(nameField string) Entity {
	e := Entity{Type: r.Type, ID: r.ID}
	if value, ok := r.Attributes[nameField].(string); ok {
		e.Name = value
	}
	return e
}

type searchRequest struct {
	Filters []Filter `json:"filters"`
	Fields  []string `json:"fields,omitempty"`
}

// Find returns the first entity of entityType matching filters.
func (c *Client) Find(ctx context.Context, entityType string, filters []Filter, nameField string) (Entity, bool, error) {
	var decoded struct {
		Data []record `json:"data"`
	}
	path := "/api/v1/entity/" + url.PathEscape(entityType) + "/_search?page[size]=1"
	req := searchRequest{Filters: filters, Fields: []string{nameField}}
	if err := c.call(ctx, http.MethodPost, path, searchContentType, req, &decoded); err != nil {
		return Entity{}, false, services.Wrap(services.ErrRemoteLookup, "shotgrid", "find "+entityType, describe(filters), err)
	}
	if len(decoded.Data) == 0 {
		return Entity{}, false, nil
	}
	return decoded.Data[0].entity(nameField), true, nil
}

// Create creates an entity with the given fields.
func (c *Client) Create(ctx context.Context, entityType string, fields map[string]any, nameField string) (Entity, error) {
	var decoded struct {
		Data record `json:"data"`
	}
	path := "/api/v1/entity/" + url.PathEscape(entityType)
	if err := c.call(ctx, http.MethodPost, path, "application/json", fields, &decoded); err != nil {
		return Entity{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "create "+entityType, "", err)
	}
	if decoded.Data.ID == 0 {
		return Entity{}, services.Wrap(services.ErrRemoteLookup, "shotgrid", "create "+entityType, "no id returned", nil)
	}
	created := decoded.Data.entity(nameField)
	if created.Type == "" {
		created.Type = entityType
	}
	return created, nil
}

// Update writes fields onto an existing entity.
func (c *Client) Update(ctx context.Context, entity Entity, fields map[string]any) error {
	path := "/api/v1/entity/" + url.PathEscape(entity.Type) + "/" + strconv.Itoa(entity.ID)
	if err := c.call(ctx, http.MethodPut, path, "application/json", fields, nil); err != nil {
		return services.Wrap(services.ErrRemoteLookup, "shotgrid", "update "+entity.Type, strconv.Itoa(entity.ID), err)
	}
	return nil
}

func describe(filters []Filter) string {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		parts = append(parts, fmt.Sprintf("%v %v %v", f[0], f[1], f[2]))
	}
	return strings.Join(parts, ", ")
}
