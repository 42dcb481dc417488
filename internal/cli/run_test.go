package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/store"
)

func TestRunMissingConfigFlag(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
	assert.Contains(t, err.Error(), "config")
}

func TestRunNonExistentConfig(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", "/nonexistent/agent.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunInvalidConfig(t *testing.T) {
	path := writeConfig(t, "decision:\n  provider: claude\n  api_key: k\n")

	buf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "decision.provider")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRunUnknownConfigKey(t *testing.T) {
	path := writeConfig(t, "agent:\n  nmae: typo\n")

	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunAgentUntilCancelled(t *testing.T) {
	srv := rulesServer(t)
	dbPath := filepath.Join(t.TempDir(), "trace.db")
	path := writeConfig(t, agentYAML(srv.URL, dbPath))

	out := &bytes.Buffer{}
	logs := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(logs)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text"},
		ConfigPath:  path,
		Build:       BuildOptions{Client: replyClient(speechHi)},
	}
	require.NoError(t, runAgent(opts, cmd))

	assert.Contains(t, out.String(), "Agent racoon started with 1 sources and 4 commands.")
	assert.Contains(t, logs.String(), "fuser starting")
	assert.Contains(t, logs.String(), "agent stopped gracefully")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	history, err := st.CommandHistory(context.Background(), "speech", 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, []string{"hi"}, history[0].Args)
}

func TestRunLogFile(t *testing.T) {
	srv := rulesServer(t)
	dir := t.TempDir()
	path := writeConfig(t, agentYAML(srv.URL, filepath.Join(dir, "trace.db")))
	logPath := filepath.Join(dir, "fuser.log")

	logs := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(logs)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	cmd.SetContext(ctx)

	opts := &RunOptions{
		RootOptions: &RootOptions{Format: "text", Verbose: true},
		ConfigPath:  path,
		LogFile:     logPath,
		Build:       BuildOptions{Client: replyClient(speechHi)},
	}
	require.NoError(t, runAgent(opts, cmd))
	assert.Empty(t, logs.String(), "logs go to the file")
	assert.FileExists(t, logPath)
}
