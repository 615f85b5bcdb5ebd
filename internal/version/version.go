// Package version reports the build of the coffer binary and checks GitHub
// for newer releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	coffererr "github.com/mrz1836/coffer/pkg/errors"
)

// Build metadata, set with -ldflags "-X".
//
//nolint:gochecknoglobals // linker-injected build metadata
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Release repository and API defaults.
const (
	Owner          = "mrz1836"
	Repo           = "coffer"
	DefaultBaseURL = "https://api.github.com"
	DefaultTimeout = 15 * time.Second

	maxBodySize = 64 * 1024
)

// ErrReleaseLookup is returned when the latest release cannot be fetched.
var ErrReleaseLookup = &coffererr.CofferError{
	Code:       "RELEASE_LOOKUP_FAILED",
	Message:    "could not look up the latest release",
	Suggestion: "check your network connection or try again later",
	ExitCode:   coffererr.ExitGeneral,
}

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Current returns the build of the running binary.
func Current() Build {
	return Build{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Release is the subset of a GitHub release used by the checker.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	HTMLURL     string    `json:"html_url"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

// Update is the result of a release check.
type Update struct {
	Current   string `json:"current"`
	Latest    string `json:"latest"`
	Available bool   `json:"available"`
	URL       string `json:"url,omitempty"`
}

// Checker looks up releases on GitHub.
type Checker struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// Option configures a Checker.
type Option func(*Checker)

// WithBaseURL points the checker at another API root.
func WithBaseURL(url string) Option {
	return func(c *Checker) {
		c.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Checker) {
		c.httpClient = client
	}
}

// NewChecker creates a Checker for the coffer repository.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  fmt.Sprintf("coffer/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Latest fetches the latest published release.
func (c *Checker) Latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, Owner, Repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, coffererr.WithCause(ErrReleaseLookup, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // fixed GitHub API endpoint
	if err != nil {
		return nil, coffererr.WithCause(ErrReleaseLookup, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body := io.LimitReader(resp.Body, maxBodySize)
	if resp.StatusCode != http.StatusOK {
		return nil, coffererr.WithDetails(ErrReleaseLookup, map[string]string{
			"status": strconv.Itoa(resp.StatusCode),
		})
	}

	var release Release
	if err := json.NewDecoder(body).Decode(&release); err != nil {
		return nil, coffererr.WithCause(ErrReleaseLookup, fmt.Errorf("decoding release: %w", err))
	}
	return &release, nil
}

// Check compares current with the latest release.
func (c *Checker) Check(ctx context.Context, current string) (*Update, error) {
	release, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	latest := strings.TrimPrefix(release.TagName, "v")
	return &Update{
		Current:   current,
		Latest:    latest,
		Available: Compare(latest, current) > 0,
		URL:       release.HTMLURL,
	}, nil
}

// Compare returns 1, 0 or -1 as v1 is newer than, equal to, or older than v2.
// Development builds and commit hashes are older than every release.
func Compare(v1, v2 string) int {
	dev1, dev2 := isDevelopment(v1), isDevelopment(v2)
	switch {
	case dev1 && dev2:
		return 0
	case dev1:
		return -1
	case dev2:
		return 1
	}

	p1, p2 := parse(v1), parse(v2)
	for i := range 3 {
		if p1[i] != p2[i] {
			if p1[i] > p2[i] {
				return 1
			}
			return -1
		}
	}
	return 0
}

// parse returns major, minor and patch. Pre-release and build suffixes are
// ignored.
func parse(v string) [3]int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if idx := strings.IndexAny(v, "-+"); idx != -1 {
		v = v[:idx]
	}
	var out [3]int
	for i, part := range strings.SplitN(v, ".", 3) {
		n, err := strconv.Atoi(part)
		if err != nil {
			break
		}
		out[i] = n
	}
	return out
}

func isDevelopment(v string) bool {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" || v == "dev" {
		return true
	}
	return isCommitHash(strings.TrimSuffix(v, "-dirty"))
}

// isCommitHash reports whether s looks like an abbreviated or full SHA-1.
// At least one letter is required so plain numbers stay versions.
func isCommitHash(s string) bool {
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	hasLetter := false
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F'):
			hasLetter = true
		default:
			return false
		}
	}
	return hasLetter
}
