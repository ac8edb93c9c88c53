package update

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestIsNewerVersion(t *testing.T) {
	cases := []struct {
		latest, current string
		want            bool
	}{
		{"1.2.0", "1.1.9", true},
		{"v2.0.0", "1.9.9", true},
		{"1.0.0", "1.0.0", false},
		{"0.9.0", "1.0.0", false},
		{"1.0.1", "v1.0.0", true},
	}
	for _, tc := range cases {
		if got := isNewerVersion(tc.latest, tc.current); got != tc.want {
			t.Errorf("isNewerVersion(%q, %q) = %v, expected %v", tc.latest, tc.current, got, tc.want)
		}
	}
}

func TestNormalizeVersion(t *testing.T) {
	if got := normalizeVersion(" v1.2.3 "); got != "1.2.3" {
		t.Errorf("expected 1.2.3, got %q", got)
	}
	if got := normalizeVersion("1.2.3"); got != "1.2.3" {
		t.Errorf("expected 1.2.3, got %q", got)
	}
}

func withReleaseServer(t *testing.T, body string, hits *atomic.Int32) func() {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if !strings.HasSuffix(r.URL.Path, "/releases/latest") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(body)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	old := apiBase
	apiBase = srv.URL
	return func() {
		apiBase = old
		srv.Close()
	}
}

func runChecker(current string) *Checker {
	c := &Checker{current: normalizeVersion(current), hints: make(chan string, 1)}
	go c.run()
	return c
}

func nextHint(t *testing.T, c *Checker) (string, bool) {
	t.Helper()
	select {
	case hint, ok := <-c.Hints():
		return hint, ok
	case <-time.After(2 * time.Second):
		t.Fatal("checker never finished")
		return "", false
	}
}

func TestCheckerHintsOnNewerRelease(t *testing.T) {
	defer withReleaseServer(t, `{"tag_name":"v9.9.9"}`, nil)()

	hint, ok := nextHint(t, runChecker("1.0.0"))
	if !ok {
		t.Fatal("expected a hint before the channel closed")
	}
	if !strings.Contains(hint, "9.9.9") {
		t.Errorf("expected the new version in the hint, got %q", hint)
	}
}

func TestCheckerStaysQuietWhenCurrent(t *testing.T) {
	defer withReleaseServer(t, `{"tag_name":"v1.0.0"}`, nil)()

	if hint, ok := nextHint(t, runChecker("1.0.0")); ok {
		t.Fatalf("expected no hint, got %q", hint)
	}
}

func TestCheckerIgnoresPrereleases(t *testing.T) {
	defer withReleaseServer(t, `{"tag_name":"v9.9.9","prerelease":true}`, nil)()

	if hint, ok := nextHint(t, runChecker("1.0.0")); ok {
		t.Fatalf("expected no hint for a prerelease, got %q", hint)
	}
}

func TestCheckerSkipsDevBuilds(t *testing.T) {
	var hits atomic.Int32
	defer withReleaseServer(t, `{"tag_name":"v9.9.9"}`, &hits)()

	if hint, ok := nextHint(t, runChecker("dev")); ok {
		t.Fatalf("expected no hint for a dev build, got %q", hint)
	}
	if hits.Load() != 0 {
		t.Errorf("dev build must not touch the network, saw %d requests", hits.Load())
	}
}
