package cli

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/decision"
)

const speechHi = `{"commands":[{"name":"speech","arguments":[{"value":"hi"}]}]}`

// rulesServer serves a fixed governance rule set.
func rulesServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"rules":"be kind to raccoons"}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// agentYAML is a minimal config with only the governance source enabled.
func agentYAML(rulesURL, dbPath string) string {
	return fmt.Sprintf(`agent:
  cadence: 20ms
  poll_timeout: 200ms
decision:
  provider: openai
  api_key: test-key
sources:
  governance:
    enabled: true
    base_url: %s
trace:
  db: %s
`, rulesURL, dbPath)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func replyClient(raw string) decision.Client {
	return decision.ClientFunc(func(context.Context, string, decision.Catalog) (string, error) {
		return raw, nil
	})
}
