package sources

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/fuser/internal/input"
	"github.com/roach88/fuser/internal/ir"
	"github.com/roach88/fuser/internal/registry"
)

// Vision defaults.
const (
	VisionName            = "vision"
	VisionDescriptor      = "Face Emotion"
	DefaultVisionInterval = 200 * time.Millisecond
	visionPollWait        = 50 * time.Millisecond
)

// Frame is one captured image in the grabber's native encoding.
type Frame []byte

// FrameGrabber captures frames from a camera.
type FrameGrabber interface {
	Grab(ctx context.Context) (Frame, error)
}

// EmotionClassifier finds a face in a frame and labels its dominant emotion.
// ok is false when no face was found.
type EmotionClassifier interface {
	Classify(ctx context.Context, f Frame) (emotion string, ok bool, err error)
}

// VisionConfig configures the face emotion adapter.
type VisionConfig struct {
	Interval time.Duration
}

// Vision turns camera frames into emotion observations.
type Vision struct {
	*input.Input[ir.Record]

	interval   time.Duration
	queue      *input.Queue[ir.Record]
	grabber    FrameGrabber
	classifier EmotionClassifier
	now        func() time.Time
	logger     *slog.Logger
}

// NewVision creates the adapter. Each observation is surfaced once.
func NewVision(cfg VisionConfig, grabber FrameGrabber, classifier EmotionClassifier, reg *registry.Registry, opts ...Option) (*Vision, error) {
	if grabber == nil || classifier == nil {
		return nil, fmt.Errorf("%s: frame grabber and classifier are required", VisionName)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultVisionInterval
	}
	s := newSettings(opts)

	q := input.NewQueue[ir.Record](4)
	in, err := input.New(input.Spec{
		Name:       VisionName,
		Descriptor: VisionDescriptor,
		Policy:     input.SingleSlot,
		Retention:  input.ClearOnFormat,
	}, input.NewQueuePoller(q, visionPollWait), passRecord, reg)
	if err != nil {
		return nil, err
	}

	return &Vision{
		Input:      in,
		interval:   cfg.Interval,
		queue:      q,
		grabber:    grabber,
		classifier: classifier,
		now:        s.now,
		logger:     s.logger.With("source", VisionName),
	}, nil
}

// EmotionMessage renders an observation for the prompt.
func EmotionMessage(emotion string) string {
	return fmt.Sprintf("I see a person. Their emotion is %s.", emotion)
}

// Capture grabs and classifies one frame, queueing the observation.
func (v *Vision) Capture(ctx context.Context) error {
	frame, err := v.grabber.Grab(ctx)
	if err != nil {
		return fmt.Errorf("grab frame: %w", err)
	}
	emotion, ok, err := v.classifier.Classify(ctx, frame)
	if err != nil {
		return fmt.Errorf("classify frame: %w", err)
	}
	if !ok || emotion == "" {
		return nil
	}
	v.queue.Offer(ir.NewRecord(v.now(), EmotionMessage(emotion)))
	return nil
}

// Run captures every Interval until ctx is done.
func (v *Vision) Run(ctx context.Context) error {
	defer v.queue.Close()

	ticker := time.NewTicker(v.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := v.Capture(ctx); err != nil && ctx.Err() == nil {
				v.logger.Warn("capture failed", "error", err)
			}
		}
	}
}
