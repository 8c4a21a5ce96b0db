// Package classifier sends single video frames to a vision model and maps
// the structured response into a typed classification.
package classifier

import (
	"context"
	"errors"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

// ErrParse marks a model response that could not be decoded into the
// expected schema. The analysis pipeline treats these frames as gaps.
var ErrParse = errors.New("malformed classifier response")

// Frame is the classifier's input: one still image plus its position in the
// source video.
type Frame struct {
	Data      []byte
	MIMEType  string
	Timestamp float64
}

// FrameClassifier classifies a single frame. Implementations must be safe
// for concurrent use; the analyzer fans frames out over a worker pool.
type FrameClassifier interface {
	Classify(ctx context.Context, frame Frame) (*models.ClassificationResult, error)
}
