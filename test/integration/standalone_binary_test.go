package integration

import (
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	buildOnce  sync.Once
	binaryPath string
	buildErr   error
	buildOut   []byte
)

// buildBinary compiles cmd/quotaguard once per test run and returns a copy
// placed outside the repository.
func buildBinary(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}

	buildOnce.Do(func() {
		var goMod []byte
		goMod, buildErr = exec.Command("go", "env", "GOMOD").Output()
		if buildErr != nil {
			return
		}
		repoRoot := filepath.Dir(strings.TrimSpace(string(goMod)))

		dir, err := os.MkdirTemp("", "quotaguard-bin-")
		if err != nil {
			buildErr = err
			return
		}
		binaryPath = filepath.Join(dir, "quotaguard")

		build := exec.Command("go", "build", "-o", binaryPath, "./cmd/quotaguard")
		build.Dir = repoRoot
		build.Env = os.Environ()
		buildOut, buildErr = build.CombinedOutput()
	})
	require.NoError(t, buildErr, "go build: %s", string(buildOut))
	return binaryPath
}

// run executes the binary from an empty directory with an isolated HOME.
func run(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	bin := buildBinary(t)

	home := t.TempDir()
	cmd := exec.Command(bin, args...)
	cmd.Dir = t.TempDir()
	cmd.Env = append([]string{
		"HOME=" + home,
		"XDG_CONFIG_HOME=" + filepath.Join(home, ".config"),
		"PATH=" + os.Getenv("PATH"),
	}, env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	out, err := run(t, nil, "version")
	require.NoError(t, err, out)
	require.Contains(t, out, "quotaguard")

	out, err = run(t, nil, "--help")
	require.NoError(t, err, out)
	require.Contains(t, out, "CLAUDE_NO_LIMIT")
}

func TestBypassExitsZero(t *testing.T) {
	out, err := run(t, []string{"CLAUDE_NO_LIMIT=1"}, "--some-caller-flag", "-x")
	require.NoError(t, err, out)

	out, err = run(t, []string{"CLAUDE_NO_LIMIT=1"}, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, out)
}

func TestMissingCredentialsExitsZero(t *testing.T) {
	out, err := run(t, nil, "--verbose")
	require.NoError(t, err, out)
}

func TestUsageCheckAgainstLocalServer(t *testing.T) {
	paths := make(chan string, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		if r.Header.Get("Cookie") != "sessionKey=sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"five_hour":{"utilization":97,"resets_at":"2099-01-01T00:00:00Z"},"seven_day":{"utilization":40}}`))
	}))
	defer server.Close()

	metricsFile := filepath.Join(t.TempDir(), "quotaguard.prom")
	env := []string{
		"CLAUDE_SESSION_KEY=sk-test",
		"CLAUDE_ORG_ID=org-test",
		"QUOTAGUARD_API_BASE_URL=" + server.URL,
	}

	out, err := run(t, env, "--no-sleep", "--metrics-file", metricsFile)
	require.NoError(t, err, out)
	require.Equal(t, "/api/organizations/org-test/usage", <-paths)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	require.Contains(t, string(data), `quotaguard_utilization_percent{window="five_hour"} 97`)
	require.Contains(t, string(data), `quotaguard_decision{kind="proceed"} 1`)

	out, err = run(t, env, "status", "--output", "json")
	require.NoError(t, err, out)
	require.Contains(t, out, `"percent": "97%"`)
	require.Contains(t, out, `"over_limit": true`)
}

func TestRejectedSessionExitsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	out, err := run(t, []string{
		"CLAUDE_SESSION_KEY=sk-expired",
		"CLAUDE_ORG_ID=org-test",
		"QUOTAGUARD_API_BASE_URL=" + server.URL,
	})
	require.NoError(t, err, out)
}
