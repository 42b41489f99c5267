package cli_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/forensor/forensor/internal/adapters/inbound/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func evidenceTree(t *testing.T) string {
	t.Helper()
	return writeFixture(t, map[string]string{
		"app.py": "# TODO: tighten validation\npassword = \"hunter2secret\"\n",
		"db.py":  "query = \"SELECT * FROM users WHERE id = \" + user_id\n",
	})
}

func TestScanCommand_DefaultTUI(t *testing.T) {
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"scan", evidenceTree(t)})
	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "forensor")
	assert.Contains(t, output, "GUILT")
	assert.Contains(t, output, "EXPOSURE")
	assert.Contains(t, output, "findings total")
}

func TestScanCommand_JSON(t *testing.T) {
	cmd := cli.NewRootCmdForTest()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"scan", evidenceTree(t), "--json"})
	require.NoError(t, cmd.Execute())

	var result map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &result)
	require.NoError(t, err, "output should be valid JSON")
	assert.Contains(t, result, "fingerprint")
	assert.Contains(t, result, "size_category")
	assert.Contains(t, result, "reports")
}

func TestScanCommand_MissingPathFails(t *testing.T) {
	cmd := cli.NewRootCmdForTest()
	cmd.SetArgs([]string{"scan", filepath.Join(t.TempDir(), "nope")})
	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "scan failed")
}

func TestScanCommand_InvalidConfigFails(t *testing.T) {
	dir := writeFixture(t, map[string]string{
		"app.py":         "x = 1\n",
		".forensor.yaml": "stale_days: -1\n",
	})

	cmd := cli.NewRootCmdForTest()
	cmd.SetArgs([]string{"scan", dir})
	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "stale_days")
}
