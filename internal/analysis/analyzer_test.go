package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yukawasensei/visual-ai-agent/internal/classifier"
	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

// fakeSampler serves a pre-built frame set backed by real temp files so the
// analyzer's frame reads work.
type fakeSampler struct {
	set *ffmpeg.FrameSet
	err error
}

func (f *fakeSampler) Sample(ctx context.Context, videoPath string, interval float64, maxFrames int) (*ffmpeg.FrameSet, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

// scriptedClassifier answers by frame timestamp; timestamps in fail always
// error.
type scriptedClassifier struct {
	types map[float64]models.SegmentType
	fail  map[float64]bool
	calls atomic.Int64
}

func (c *scriptedClassifier) Classify(ctx context.Context, frame classifier.Frame) (*models.ClassificationResult, error) {
	c.calls.Add(1)
	if c.fail[frame.Timestamp] {
		return nil, errors.New("model unavailable")
	}
	typ, ok := c.types[frame.Timestamp]
	if !ok {
		typ = models.SegmentOther
	}
	return &models.ClassificationResult{Timestamp: frame.Timestamp, Type: typ, Confidence: 0.9}, nil
}

func makeFrameSet(t *testing.T, n int, interval, duration float64) *ffmpeg.FrameSet {
	t.Helper()
	dir := t.TempDir()
	set := &ffmpeg.FrameSet{Duration: duration, Interval: interval}
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, "frame.jpg")
		if i == 0 {
			if err := os.WriteFile(path, []byte("jpeg"), 0644); err != nil {
				t.Fatal(err)
			}
		}
		set.Frames = append(set.Frames, ffmpeg.Frame{
			Index:     i,
			Timestamp: float64(i) * interval,
			Path:      path,
		})
	}
	return set
}

func TestAnalyzeBuildsMergedSegments(t *testing.T) {
	set := makeFrameSet(t, 5, 1, 5)
	fc := &scriptedClassifier{types: map[float64]models.SegmentType{
		0: models.SegmentProductShowcase,
		1: models.SegmentProductShowcase,
		2: models.SegmentProductExplanation,
		3: models.SegmentProductExplanation,
		4: models.SegmentProductExplanation,
	}}

	a := NewAnalyzer(&fakeSampler{set: set}, fc, Options{Workers: 2, RequestsPerSec: 1000})
	res, err := a.Analyze(context.Background(), testVideoID, "video.mp4", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if got := fc.calls.Load(); got != 5 {
		t.Errorf("classifier calls = %d, want 5", got)
	}
	if len(res.Segments) != 2 {
		t.Fatalf("got %d segments, want 2: %v", len(res.Segments), res.Segments)
	}
	if res.Segments[0].Type != models.SegmentProductShowcase || res.Segments[1].Type != models.SegmentProductExplanation {
		t.Errorf("segment types = %q, %q", res.Segments[0].Type, res.Segments[1].Type)
	}
	if res.Summary.FramesAnalyzed != 5 || res.Summary.FramesFailed != 0 {
		t.Errorf("summary frames = %d/%d", res.Summary.FramesAnalyzed, res.Summary.FramesFailed)
	}
}

func TestAnalyzeFailedFramesBecomeGaps(t *testing.T) {
	set := makeFrameSet(t, 4, 1, 4)
	fc := &scriptedClassifier{
		types: map[float64]models.SegmentType{
			0: models.SegmentProductShowcase,
			1: models.SegmentProductShowcase,
			3: models.SegmentProductShowcase,
		},
		fail: map[float64]bool{2: true},
	}

	a := NewAnalyzer(&fakeSampler{set: set}, fc, Options{Workers: 2, RequestsPerSec: 1000})
	res, err := a.Analyze(context.Background(), testVideoID, "video.mp4", nil)
	if err != nil {
		t.Fatalf("a single frame failure must not abort the run: %v", err)
	}

	if len(res.Segments) != 1 {
		t.Fatalf("got %d segments, want 1 (gap bridges the run): %v", len(res.Segments), res.Segments)
	}
	if res.Segments[0].StartTime != 0 || res.Segments[0].EndTime != 4 {
		t.Errorf("range = [%v, %v), want [0, 4)", res.Segments[0].StartTime, res.Segments[0].EndTime)
	}
	if res.Summary.FramesFailed != 1 || res.Summary.FramesAnalyzed != 3 {
		t.Errorf("summary frames = %d/%d", res.Summary.FramesAnalyzed, res.Summary.FramesFailed)
	}
}

func TestAnalyzeSamplerErrorPropagates(t *testing.T) {
	probeErr := &ffmpeg.ProbeError{Path: "video.mp4", Err: errors.New("no such file")}
	a := NewAnalyzer(&fakeSampler{err: probeErr}, &scriptedClassifier{}, Options{})

	_, err := a.Analyze(context.Background(), testVideoID, "video.mp4", nil)
	var pe *ffmpeg.ProbeError
	if !errors.As(err, &pe) {
		t.Errorf("error = %v, want ProbeError", err)
	}
}

func TestAnalyzeCancellation(t *testing.T) {
	set := makeFrameSet(t, 50, 1, 50)
	fc := &scriptedClassifier{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Low rate so a live context would block; a cancelled one must return.
	a := NewAnalyzer(&fakeSampler{set: set}, fc, Options{Workers: 2, RequestsPerSec: 0.001})
	_, err := a.Analyze(ctx, testVideoID, "video.mp4", nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAnalyzeReportsProgress(t *testing.T) {
	set := makeFrameSet(t, 3, 1, 3)
	fc := &scriptedClassifier{}

	var last atomic.Int64
	progress := func(done, total int) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		last.Store(int64(done))
	}

	a := NewAnalyzer(&fakeSampler{set: set}, fc, Options{Workers: 1, RequestsPerSec: 1000, Timeout: time.Second})
	if _, err := a.Analyze(context.Background(), testVideoID, "video.mp4", progress); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if last.Load() != 3 {
		t.Errorf("final progress = %d, want 3", last.Load())
	}
}

// Progress callbacks must be safe to write from even though workers finish
// frames concurrently: the jobs handler keeps an unguarded throttle timestamp
// in its closure.
func TestAnalyzeProgressCallbacksAreSerialized(t *testing.T) {
	set := makeFrameSet(t, 32, 1, 32)
	fc := &scriptedClassifier{}

	var inFlight atomic.Int32
	var calls int
	var lastBroadcast time.Time // unguarded, like the throttle closure
	progress := func(done, total int) {
		if n := inFlight.Add(1); n != 1 {
			t.Errorf("progress entered concurrently (%d in flight)", n)
		}
		calls++
		if time.Since(lastBroadcast) >= 0 {
			lastBroadcast = time.Now()
		}
		inFlight.Add(-1)
	}

	a := NewAnalyzer(&fakeSampler{set: set}, fc, Options{Workers: 8, RequestsPerSec: 1000, Timeout: time.Second})
	if _, err := a.Analyze(context.Background(), testVideoID, "video.mp4", progress); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if calls != 32 {
		t.Errorf("progress calls = %d, want 32", calls)
	}
}
