// Package pypi reads release information from the Python Package Index JSON API.
package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// ErrRemoteUnavailable matches every failed call to the index
var ErrRemoteUnavailable = errors.New("pypi unavailable")

// UnknownStatus is reported when a package has no development status classifier
const UnknownStatus = "Unknown"

const uploadTimeLayout = "2006-01-02T15:04:05"

// Release describes the latest release of a package
type Release struct {
	Name              string
	Version           string
	DevelopmentStatus string
	// UploadTime is the upload time of the first file of the release, zero
	// when the release has no files.
	UploadTime time.Time
	PreRelease bool
}

// Client reads package metadata from a PyPI compatible index
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the index at endpoint, e.g. https://pypi.org
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type projectResponse struct {
	Info struct {
		Name        string   `json:"name"`
		Version     string   `json:"version"`
		Classifiers []string `json:"classifiers"`
	} `json:"info"`
	Releases map[string][]struct {
		UploadTime string `json:"upload_time"`
	} `json:"releases"`
}

// LatestRelease returns the latest release of package name, or nil when the
// package does not exist.
func (c *Client) LatestRelease(ctx context.Context, name string) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/pypi/%s/json", c.endpoint, url.PathEscape(name)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: index returned %d for %s", ErrRemoteUnavailable, resp.StatusCode, name)
	}

	var project projectResponse
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, fmt.Errorf("failed to decode release of %s: %w", name, err)
	}

	release := &Release{
		Name:              project.Info.Name,
		Version:           project.Info.Version,
		DevelopmentStatus: DevelopmentStatus(project.Info.Classifiers),
		PreRelease:        IsPreRelease(project.Info.Version),
	}
	if files := project.Releases[release.Version]; len(files) > 0 {
		if t, err := time.Parse(uploadTimeLayout, files[0].UploadTime); err == nil {
			release.UploadTime = t
		}
	}
	return release, nil
}

// DevelopmentStatus returns the value of the first "Development Status"
// classifier, e.g. "5 - Production/Stable".
func DevelopmentStatus(classifiers []string) string {
	for _, c := range classifiers {
		parts := strings.Split(c, "::")
		if len(parts) < 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == "Development Status" {
			return strings.TrimSpace(parts[1])
		}
	}
	return UnknownStatus
}

var pep440PreRelease = regexp.MustCompile(`(?i)[._-]?(a|b|c|rc|alpha|beta|pre|preview|dev)[._-]?\d*$`)

// IsPreRelease reports whether version is a pre-release. Semantic versions are
// checked first; PEP 440 suffixes such as 1.0a1, 2.0rc1 or 3.0.dev2 are
// recognised otherwise.
func IsPreRelease(version string) bool {
	if v, err := semver.NewVersion(version); err == nil {
		return v.Prerelease() != ""
	}
	return pep440PreRelease.MatchString(version)
}
