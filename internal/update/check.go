// Package update checks GitHub for a newer release in the background and
// surfaces a one-line hint for the TUI footer.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	githubRepo   = "olivier-w/vudial"
	checkDelay   = 5 * time.Second // let the meter settle before touching the network
	checkTimeout = 30 * time.Second
	maxRetries   = 3
	retryDelay   = 1 * time.Minute
)

var apiBase = "https://api.github.com"

// Checker fetches the latest release tag once, shortly after startup.
type Checker struct {
	current string
	delay   time.Duration
	hints   chan string
}

// NewChecker starts the background check. Dev builds never hint.
func NewChecker(current string) *Checker {
	c := &Checker{
		current: normalizeVersion(current),
		delay:   checkDelay,
		hints:   make(chan string, 1),
	}
	go c.run()
	return c
}

// Hints delivers at most one update hint, then closes.
func (c *Checker) Hints() <-chan string { return c.hints }

func (c *Checker) run() {
	defer close(c.hints)
	if c.current == "" || c.current == "dev" || c.current == "unknown" {
		return
	}
	time.Sleep(c.delay)

	for attempt := 0; attempt < maxRetries; attempt++ {
		latest, retry := c.fetchLatest()
		if latest != "" {
			if isNewerVersion(latest, c.current) {
				c.hints <- fmt.Sprintf("update available: v%s (https://github.com/%s/releases)", latest, githubRepo)
			}
			return
		}
		if !retry {
			return
		}
		if attempt < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

// fetchLatest returns the latest stable tag, or "" with retry advice.
func (c *Checker) fetchLatest() (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	url := apiBase + "/repos/" + githubRepo + "/releases/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "vudial/"+c.current)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", true
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		// No releases exist yet.
		return "", false
	case http.StatusForbidden, http.StatusTooManyRequests:
		// Rate limited.
		return "", true
	default:
		return "", resp.StatusCode >= 500
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", true
	}
	if release.Draft || release.Prerelease || release.TagName == "" {
		return "", false
	}
	return normalizeVersion(release.TagName), false
}

func normalizeVersion(v string) string {
	return strings.TrimPrefix(strings.TrimSpace(v), "v")
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func isNewerVersion(latest, current string) bool {
	return semver.Compare(canonicalVersion(latest), canonicalVersion(current)) > 0
}
