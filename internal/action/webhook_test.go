package action

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/ir"
)

func TestWebhookPoster_Delivers(t *testing.T) {
	var got TweetInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := Tweet(NewWebhookPoster[TweetInput]("tweet", srv.URL, srv.Client(), nil))
	out, err := h.Handle(context.Background(), ir.NewCommand("tweet", "gm frens"))
	require.NoError(t, err)
	assert.Equal(t, TweetInput{Tweet: "gm frens"}, out)
	assert.Equal(t, TweetInput{Tweet: "gm frens"}, got)
}

func TestWebhookPoster_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewWebhookPoster[SpeechInput]("speech", srv.URL, srv.Client(), nil)
	for i := 0; i < 3; i++ {
		_, err := p.Execute(context.Background(), SpeechInput{Sentence: "hi"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	}

	_, err := p.Execute(context.Background(), SpeechInput{Sentence: "hi"})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(3), calls.Load(), "open breaker fails fast")
}
