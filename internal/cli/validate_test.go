package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `agent:
  name: rocky
decision:
  provider: gemini
  api_key: k
sources:
  governance:
    enabled: true
  asr:
    enabled: true
actions:
  handlers:
    - name: speech
    - name: move
`

func runValidateArgs(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"validate"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidateValidConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	out, err := runValidateArgs(t, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration valid for agent rocky")
	assert.Contains(t, out, "provider: gemini")
	assert.Contains(t, out, "sources:  governance, asr")
	assert.Contains(t, out, "speech(sentence)")
	assert.NotContains(t, out, "#Command")
}

func TestValidateShowSchema(t *testing.T) {
	path := writeConfig(t, validYAML)

	out, err := runValidateArgs(t, "--config", path, "--show-schema")
	require.NoError(t, err)
	assert.Contains(t, out, "#cmd_speech")
	assert.Contains(t, out, "#cmd_move")
}

func TestValidateJSON(t *testing.T) {
	path := writeConfig(t, validYAML)

	out, err := runJSON(t, "validate", "--config", path)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []string{"governance", "asr"}, resp.Data.Sources)
	assert.Len(t, resp.Data.Commands, 2)
}

func TestValidateReportsEveryError(t *testing.T) {
	path := writeConfig(t, `decision:
  provider: claude
  temperature: 3
actions:
  mode: parallel
`)

	out, err := runValidateArgs(t, "--config", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Configuration invalid")
	assert.Contains(t, out, "decision.provider")
	assert.Contains(t, out, "decision.temperature")
	assert.Contains(t, out, "sources: at least one source")
	assert.Contains(t, out, "actions.mode")
}

func TestValidateJSONErrors(t *testing.T) {
	path := writeConfig(t, "decision:\n  provider: claude\n")

	out, err := runJSON(t, "validate", "--config", path)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidConfig, resp.Error.Code)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := runValidateArgs(t, "--config", "/nonexistent/agent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSplitErrors(t *testing.T) {
	joined := errors.Join(errors.New("one"), errors.New("two"))
	assert.Equal(t, []string{"one", "two"}, splitErrors(joined))
	assert.Equal(t, []string{"single"}, splitErrors(errors.New("single")))
}

// runJSON executes the root command with --format json.
func runJSON(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--format", "json"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}
