// Package travis talks to the Travis CI v3 API: repository activation, cron
// jobs, builds and secret encryption with a repository's public key.
package travis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"
)

const apiVersion = "3"

// Client is a Travis CI API client. Repository lookups are memoised by slug
// for the lifetime of the client.
type Client struct {
	endpoint  string
	token     string
	userAgent string
	http      *http.Client
	logger    logrus.FieldLogger

	mu    sync.Mutex
	repos map[string]*Repository
}

// NewClient creates a client for the API at endpoint authenticated with token
func NewClient(endpoint, token, userAgent string, logger logrus.FieldLogger) *Client {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		token:     token,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 30 * time.Second},
		logger:    logger,
		repos:     make(map[string]*Repository),
	}
}

// Branch names a branch in Travis responses
type Branch struct {
	Name string `json:"name"`
}

// Repository is the Travis view of a GitHub repository
type Repository struct {
	ID     int64  `json:"id"`
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
}

// Cron is a scheduled build of one branch
type Cron struct {
	ID                         int64  `json:"id"`
	Interval                   string `json:"interval"`
	DontRunIfRecentBuildExists bool   `json:"dont_run_if_recent_build_exists"`
	Branch                     Branch `json:"branch"`
}

// Build is a single build of a branch
type Build struct {
	ID        int64      `json:"id"`
	Number    string     `json:"number"`
	State     string     `json:"state"`
	StartedAt *time.Time `json:"started_at"`
	Branch    Branch     `json:"branch"`
}

type errorBody struct {
	Type    string `json:"error_type"`
	Message string `json:"error_message"`
}

// do sends a request and decodes a JSON response into out. Any status of 300
// or above is returned as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any, resource string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request for %s: %w", resource, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", resource, err)
	}
	req.Header.Set("Travis-API-Version", apiVersion)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "token "+c.token)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Travis request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &APIError{Resource: resource, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode, Resource: resource}
		var eb errorBody
		if json.NewDecoder(resp.Body).Decode(&eb) == nil {
			apiErr.Type = eb.Type
			apiErr.Message = eb.Message
		}
		return resp, apiErr
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp, fmt.Errorf("failed to decode response for %s: %w", resource, err)
		}
	}
	return resp, nil
}

// Repo returns the memoised repository for slug
func (c *Client) Repo(ctx context.Context, slug string) (*Repository, error) {
	c.mu.Lock()
	repo, ok := c.repos[slug]
	c.mu.Unlock()
	if ok {
		return repo, nil
	}

	repo = &Repository{}
	if _, err := c.do(ctx, http.MethodGet, "/repo/"+url.PathEscape(slug), nil, repo, "repository "+slug); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.repos[slug] = repo
	c.mu.Unlock()
	return repo, nil
}

// Enable activates builds for a repository
func (c *Client) Enable(ctx context.Context, slug string) error {
	return c.setActive(ctx, slug, true)
}

// Disable deactivates builds for a repository
func (c *Client) Disable(ctx context.Context, slug string) error {
	return c.setActive(ctx, slug, false)
}

func (c *Client) setActive(ctx context.Context, slug string, active bool) error {
	repo, err := c.Repo(ctx, slug)
	if err != nil {
		return err
	}
	action := "deactivate"
	if active {
		action = "activate"
	}
	if _, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repo/%d/%s", repo.ID, action), nil, nil, "repository "+slug); err != nil {
		return err
	}

	c.mu.Lock()
	repo.Active = active
	c.mu.Unlock()
	return nil
}

// Crons lists the cron jobs of a repository
func (c *Client) Crons(ctx context.Context, slug string) ([]Cron, error) {
	repo, err := c.Repo(ctx, slug)
	if err != nil {
		return nil, err
	}
	var out struct {
		Crons []Cron `json:"crons"`
	}
	if _, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/repo/%d/crons", repo.ID), nil, &out, "crons of "+slug); err != nil {
		return nil, err
	}
	return out.Crons, nil
}

// EnableCron schedules a build of branch at interval. The build is skipped
// when a recent build of the branch exists.
func (c *Client) EnableCron(ctx context.Context, slug, branch, interval string) (*Cron, error) {
	repo, err := c.Repo(ctx, slug)
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"interval":                        interval,
		"dont_run_if_recent_build_exists": true,
	}
	cron := &Cron{}
	path := fmt.Sprintf("/repo/%d/branch/%s/cron", repo.ID, url.PathEscape(branch))
	if _, err := c.do(ctx, http.MethodPost, path, body, cron, fmt.Sprintf("cron of %s@%s", slug, branch)); err != nil {
		return nil, err
	}
	return cron, nil
}

// DisableCrons deletes every cron job of a repository. It stops at the first
// deletion that fails.
func (c *Client) DisableCrons(ctx context.Context, slug string) error {
	crons, err := c.Crons(ctx, slug)
	if err != nil {
		return err
	}
	for _, cron := range crons {
		resource := fmt.Sprintf("cron %d of %s", cron.ID, slug)
		resp, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cron/%d", cron.ID), nil, nil, resource)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusNoContent {
			return &APIError{StatusCode: resp.StatusCode, Resource: resource, Message: "unexpected response to cron deletion"}
		}
	}
	return nil
}

type buildsQuery struct {
	Branch string `url:"branch.name"`
	Limit  int    `url:"limit"`
	SortBy string `url:"sort_by,omitempty"`
}

// LatestBuild returns the most recent build of branch, or nil when the branch
// has never been built.
func (c *Client) LatestBuild(ctx context.Context, slug, branch string) (*Build, error) {
	params, err := query.Values(buildsQuery{Branch: branch, Limit: 1, SortBy: "id:desc"})
	if err != nil {
		return nil, err
	}
	var out struct {
		Builds []Build `json:"builds"`
	}
	path := fmt.Sprintf("/repo/%s/builds?%s", url.PathEscape(slug), params.Encode())
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out, fmt.Sprintf("builds of %s@%s", slug, branch)); err != nil {
		return nil, err
	}
	if len(out.Builds) == 0 {
		return nil, nil
	}
	return &out.Builds[0], nil
}

// RequestBuild asks Travis to build branch. Travis accepts the request
// asynchronously.
func (c *Client) RequestBuild(ctx context.Context, slug, branch string) error {
	body := map[string]any{"request": map[string]string{"branch": branch}}
	resource := fmt.Sprintf("build request for %s@%s", slug, branch)
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/repo/%s/requests", url.PathEscape(slug)), body, nil, resource)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusAccepted {
		return &APIError{StatusCode: resp.StatusCode, Resource: resource, Message: "build request was not accepted"}
	}
	return nil
}

// SyncGitHub refreshes the list of GitHub repositories Travis knows about for
// the authenticated user.
func (c *Client) SyncGitHub(ctx context.Context) error {
	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/user", nil, &user, "current user"); err != nil {
		return err
	}
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/user/%d/sync", user.ID), nil, nil, "sync of user "+user.Login)
	return err
}
