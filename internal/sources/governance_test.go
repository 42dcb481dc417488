package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/registry"
)

func TestGovernance_Rules(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/core/rules", r.URL.Path)
		_, _ = w.Write([]byte(`{"rules":"Be kind to animals."}`))
	}))
	defer srv.Close()

	g, err := NewGovernance(GovernanceConfig{BaseURL: srv.URL + "/api/"}, registry.New())
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/api/core/rules", g.RulesURL())
	assert.Equal(t, "Be kind to animals.", g.Rules(context.Background()))
}

func TestGovernance_BackupRule(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}},
		{"missing field", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"law":"x"}`))
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			g, err := NewGovernance(GovernanceConfig{BaseURL: srv.URL}, nil)
			require.NoError(t, err)
			assert.Equal(t, DefaultBackupRule, g.Rules(context.Background()))
		})
	}
}

func TestGovernance_PersistsAndDeduplicates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rules":"Stay honest."}`))
	}))
	defer srv.Close()

	reg := registry.New()
	g, err := NewGovernance(GovernanceConfig{BaseURL: srv.URL, Interval: 10 * time.Millisecond}, reg, fixedClock(time.Unix(9, 0)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = g.Run(ctx)
		close(done)
	}()
	require.Eventually(t, func() bool { return g.queue.Len() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Step(context.Background()))
	}
	assert.Len(t, g.Buffered(), 1, "identical rules are not appended twice")

	first, ok := g.FormatLatest()
	require.True(t, ok)
	second, ok := g.FormatLatest()
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Contains(t, first, "Universal Laws INPUT")

	e, ok := reg.Lookup(GovernanceName)
	require.True(t, ok)
	assert.Equal(t, "Stay honest.", e.Value)
}
