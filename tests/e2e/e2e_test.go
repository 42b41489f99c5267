package e2e_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensor/forensor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Build binary before running tests
	dir, err := os.MkdirTemp("", "forensor-e2e")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	binaryPath = filepath.Join(dir, "forensor")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/forensor")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("build failed: " + string(out))
	}

	os.Exit(m.Run())
}

// syntheticRepo builds a small project with known evidence for the guilt,
// exposure, and cost protocols. It has no git history, so rot reports
// UNAVAILABLE.
func syntheticRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app.py":    "# TODO: tighten validation\n# HACK around the cache\npassword = \"hunter2secret\"\n",
		"db.py":     "query = \"SELECT * FROM users WHERE id = \" + user_id\n",
		"lib/ok.py": "def add(a, b):\n    return a + b\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	out, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return string(out), exitCode
}

// runWithoutAPIKey runs the binary with ANTHROPIC_API_KEY stripped from the
// environment, whatever the host has set.
func runWithoutAPIKey(t *testing.T, args ...string) (string, int) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "ANTHROPIC_API_KEY=") {
			continue
		}
		cmd.Env = append(cmd.Env, kv)
	}
	out, err := cmd.CombinedOutput()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
	}
	return string(out), exitCode
}

// --- Scan Tests ---

func TestE2E_Scan(t *testing.T) {
	out, code := run(t, "scan", syntheticRepo(t))
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "forensor")
	assert.Contains(t, out, "GUILT")
	assert.Contains(t, out, "EXPOSURE")
	assert.Contains(t, out, "findings total")
}

func TestE2E_ScanJSON(t *testing.T) {
	out, code := run(t, "scan", syntheticRepo(t), "--json")
	assert.Equal(t, 0, code)

	var bundle domain.ScanBundle
	err := json.Unmarshal([]byte(out), &bundle)
	require.NoError(t, err)

	assert.Equal(t, 3, bundle.FileCount)
	assert.Equal(t, domain.SizeTiny, bundle.SizeCategory)
	assert.Len(t, bundle.Reports, 4, "every protocol should report")
	assert.Equal(t, domain.StatusUnavailable, bundle.Reports["rot"].Status)
	assert.Equal(t, domain.StatusAnalyzed, bundle.Reports["guilt"].Status)
	assert.NotEmpty(t, bundle.Fingerprint)
}

func TestE2E_ScanDeterministic(t *testing.T) {
	dir := syntheticRepo(t)

	first, code := run(t, "scan", dir, "--json")
	require.Equal(t, 0, code)
	second, code := run(t, "scan", dir, "--json")
	require.Equal(t, 0, code)

	var a, b domain.ScanBundle
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))

	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.Reports, b.Reports)
}

// --- Init Tests ---

func TestE2E_Init(t *testing.T) {
	dir := t.TempDir()

	out, code := run(t, "init", dir)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Created .forensor.yaml")

	// The generated file must load cleanly.
	_, code = run(t, "scan", dir)
	assert.Equal(t, 0, code)
}

func TestE2E_InitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()

	_, code := run(t, "init", dir)
	require.Equal(t, 0, code)

	out, code := run(t, "init", dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "already exists")
}

// --- Audit Tests ---

func TestE2E_AuditHistoryEmpty(t *testing.T) {
	out, code := run(t, "audit", t.TempDir(), "--history")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "No scan records found")
}

func TestE2E_AuditWithoutAPIKey(t *testing.T) {
	out, code := runWithoutAPIKey(t, "audit", syntheticRepo(t))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "ANTHROPIC_API_KEY")
}

// --- Version Test ---

func TestE2E_Version(t *testing.T) {
	out, code := run(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "forensor")
}
