// Package equal is a models.Gateway over the HTTP API of an eQual backend.
package equal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/romanzh1/course-player/internal/models"
)

const entityNamespace = `learn\`

type Client struct {
	base       *url.URL
	httpClient *http.Client
}

// NewClient builds the gateway client. ctx is kept by the token source and
// must outlive the client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url (url: %s): %w", cfg.BaseURL, err)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	return &Client{base: base, httpClient: cfg.httpClient(ctx)}, nil
}

func (c *Client) Get(ctx context.Context, path string, params map[string]any, dest any) error {
	u, err := c.resolve(path)
	if err != nil {
		return err
	}

	q := u.Query()
	for k, v := range params {
		// learn_course is keyed by course_id upstream.
		if path == models.PathLearnCourse && k == "id" {
			k = "course_id"
		}
		q.Set(k, fmt.Sprint(v))
	}
	u.RawQuery = q.Encode()

	return c.do(ctx, http.MethodGet, u.String(), nil, dest)
}

func (c *Client) Collect(ctx context.Context, cq models.CollectQuery, dest any) error {
	domain := make([][3]any, 0, len(cq.Filters))
	for _, f := range cq.Filters {
		domain = append(domain, [3]any{f.Field, f.Op, f.Value})
	}
	rawDomain, err := json.Marshal(domain)
	if err != nil {
		return fmt.Errorf("encode domain (entity: %s): %w", cq.Entity, err)
	}
	rawFields, err := json.Marshal(cq.Fields)
	if err != nil {
		return fmt.Errorf("encode fields (entity: %s): %w", cq.Entity, err)
	}

	u, err := c.resolve("?get=model_collect")
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("entity", qualify(cq.Entity))
	q.Set("domain", string(rawDomain))
	q.Set("fields", string(rawFields))
	if cq.SortField != "" {
		q.Set("order", cq.SortField)
		q.Set("sort", string(cmpDir(cq.SortDir)))
	}
	u.RawQuery = q.Encode()

	return c.do(ctx, http.MethodGet, u.String(), nil, dest)
}

func (c *Client) Create(ctx context.Context, entity string, payload map[string]any) error {
	rawFields, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload (entity: %s): %w", entity, err)
	}

	u, err := c.resolve("?do=model_create")
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("entity", qualify(entity))
	form.Set("fields", string(rawFields))

	return c.do(ctx, http.MethodPost, u.String(), form, nil)
}

func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("parse path (path: %s): %w", path, err)
	}
	return c.base.ResolveReference(ref), nil
}

func (c *Client) do(ctx context.Context, method, target string, form url.Values, result any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request (url: %s): %w", target, err)
	}
	req.Header.Set("Accept", "application/json")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request (url: %s): %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{URL: target, Status: resp.StatusCode, Body: string(raw)}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response (url: %s, status: %d): %w", target, resp.StatusCode, err)
	}

	return nil
}

// qualify puts bare entity names into the learn package.
func qualify(entity string) string {
	if strings.Contains(entity, `\`) {
		return entity
	}
	return entityNamespace + entity
}

func cmpDir(d models.SortDir) models.SortDir {
	if d == models.SortDesc {
		return models.SortDesc
	}
	return models.SortAsc
}
