package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fuser/internal/registry"
)

func TestHTTPVision_EndToEnd(t *testing.T) {
	camera := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("\xff\xd8frame"))
	}))
	defer camera.Close()

	classifier := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if assert.Equal(t, "\xff\xd8frame", string(body)) {
			assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		}
		_, _ = w.Write([]byte(`{"face": true, "emotion": " surprised "}`))
	}))
	defer classifier.Close()

	v, err := NewVision(VisionConfig{},
		HTTPFrameGrabber{URL: camera.URL, Client: camera.Client()},
		HTTPEmotionClassifier{URL: classifier.URL, Client: classifier.Client()},
		registry.New())
	require.NoError(t, err)

	require.NoError(t, v.Capture(context.Background()))
	require.NoError(t, v.Step(context.Background()))

	text, ok := v.FormatLatest()
	require.True(t, ok)
	assert.Contains(t, text, EmotionMessage("surprised"))
}

func TestHTTPEmotionClassifier_NoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"face": false}`))
	}))
	defer srv.Close()

	_, ok, err := HTTPEmotionClassifier{URL: srv.URL}.Classify(context.Background(), Frame("x"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPEmotionClassifier_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, _, err := HTTPEmotionClassifier{URL: srv.URL}.Classify(context.Background(), Frame("x"))
	assert.ErrorContains(t, err, "status 503: model not loaded")
}

func TestHTTPFrameGrabber_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := HTTPFrameGrabber{URL: srv.URL + "/missing"}.Grab(context.Background())
	assert.ErrorContains(t, err, "status 404")

	_, err = HTTPFrameGrabber{URL: srv.URL + "/empty"}.Grab(context.Background())
	assert.ErrorContains(t, err, "empty body")
}
