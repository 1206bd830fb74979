package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reflux/internal/counter"
)

// executeRun runs the run command and returns stdout, stderr and the error.
func executeRun(t *testing.T, format, stdin string, args ...string) (string, string, error) {
	t.Helper()

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: format})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_IncreaseIncreaseDecrease(t *testing.T) {
	out, _, err := executeRun(t, "text", "", "+", "+", "-")
	require.NoError(t, err)

	assert.Equal(t, "count=0\ncount=1\ncount=2\ncount=1\n", out)
}

func TestRun_ActionsFromStdin(t *testing.T) {
	stdin := "inc\n# comment\n\nset:5\nthunk:increment_if_odd\n"
	out, _, err := executeRun(t, "text", stdin)
	require.NoError(t, err)

	assert.Equal(t, "count=0\ncount=1\ncount=5\ncount=6\n", out)
}

func TestRun_JSON(t *testing.T) {
	out, _, err := executeRun(t, "json", "", "increase", "thunk:increment_twice")
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []counter.State{{Count: 0}, {Count: 1}, {Count: 2}, {Count: 3}}, resp.Data.States)
	assert.Equal(t, counter.State{Count: 3}, resp.Data.Final)
	assert.Empty(t, resp.Data.Journal)
	assert.Nil(t, resp.Data.Metrics)
}

func TestRun_InvalidAction(t *testing.T) {
	out, _, err := executeRun(t, "text", "", "+", "multiply")
	require.Error(t, err)

	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid action")
	assert.Empty(t, out, "nothing is dispatched when any input is bad")
}

func TestRun_UnknownThunk(t *testing.T) {
	_, _, err := executeRun(t, "text", "", "thunk:explode")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown thunk "explode"`)
}

func TestRun_WithConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "reflux.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("initial: count: 10\nmiddleware: [\"logger\"]\n"), 0o644))

	out, _, err := executeRun(t, "text", "", "--config", cfgPath, "dec")
	require.NoError(t, err)
	assert.Equal(t, "count=10\ncount=9\n", out)
}

func TestRun_VerboseLogsToStderr(t *testing.T) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json", Verbose: true})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--metrics", "+"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "run finished")

	var resp map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp), "stdout must stay valid JSON")
}

func TestRun_InvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "reflux.cue")
	require.NoError(t, os.WriteFile(cfgPath, []byte("max_depth: 0\n"), 0o644))

	_, _, err := executeRun(t, "text", "", "--config", cfgPath, "+")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRun_MissingConfig(t *testing.T) {
	_, _, err := executeRun(t, "text", "", "--config", filepath.Join(t.TempDir(), "nope.cue"), "+")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_JournalAndMetrics(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reflux.db")

	out, _, err := executeRun(t, "text", "", "--journal", dbPath, "--metrics", "inc", "inc", "set:2")
	require.NoError(t, err)
	assert.Equal(t, "count=0\ncount=1\ncount=2\ncount=2\ndispatched=3 suppressed=0\n", out)

	_, err = os.Stat(dbPath)
	require.NoError(t, err, "journal file created")
}
