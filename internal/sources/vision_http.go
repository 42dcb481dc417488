package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxFrameBytes bounds one snapshot download.
const maxFrameBytes = 8 << 20

// HTTPFrameGrabber fetches still frames from a camera snapshot endpoint.
type HTTPFrameGrabber struct {
	URL    string
	Client *http.Client
}

// Grab implements FrameGrabber.
func (g HTTPFrameGrabber) Grab(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient(g.Client).Do(req)
	if err != nil {
		return nil, fmt.Errorf("get frame: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get frame: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("get frame: empty body")
	}
	return Frame(data), nil
}

// HTTPEmotionClassifier posts frames to a classifier service that answers
// {"face": bool, "emotion": string}.
type HTTPEmotionClassifier struct {
	URL         string
	ContentType string
	Client      *http.Client
}

// Classify implements EmotionClassifier.
func (c HTTPEmotionClassifier) Classify(ctx context.Context, f Frame) (string, bool, error) {
	contentType := c.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(f))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpClient(c.Client).Do(req)
	if err != nil {
		return "", false, fmt.Errorf("classify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", false, fmt.Errorf("classify: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out struct {
		Face    bool   `json:"face"`
		Emotion string `json:"emotion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("decode classification: %w", err)
	}
	emotion := strings.TrimSpace(out.Emotion)
	return emotion, out.Face && emotion != "", nil
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return http.DefaultClient
}
