package analysis

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/yukawasensei/visual-ai-agent/internal/classifier"
	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

// FrameSampler is the sampling contract the analyzer needs; satisfied by
// *ffmpeg.Sampler.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, interval float64, maxFrames int) (*ffmpeg.FrameSet, error)
}

// ProgressFunc reports classification progress (frames done out of total).
// Calls are serialized: the func is never invoked from two goroutines at once.
type ProgressFunc func(done, total int)

// Options tunes one analyzer instance. Zero values fall back to defaults.
type Options struct {
	FrameInterval  float64       // requested seconds between samples
	MaxFrames      int           // cap on sampled frames per video
	Workers        int           // classifier pool size
	Timeout        time.Duration // per-frame classification timeout
	RequestsPerSec float64       // classifier pacing budget
	MergeThreshold float64       // same-type gap coalescing threshold
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.FrameInterval <= 0 {
		out.FrameInterval = 1
	}
	if out.MaxFrames <= 0 {
		out.MaxFrames = 100
	}
	if out.Workers <= 0 {
		out.Workers = 4
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	if out.RequestsPerSec <= 0 {
		out.RequestsPerSec = 2
	}
	if out.MergeThreshold <= 0 {
		out.MergeThreshold = DefaultMergeThreshold
	}
	return out
}

// Result is the outcome of one analysis run. Segments carry no IDs yet;
// the store assigns them when the run is committed.
type Result struct {
	Segments []models.Segment
	Summary  *models.AnalysisSummary
	Duration float64
}

// Analyzer drives sample → classify → build for one video at a time.
// Classification fans out over a bounded worker pool paced by a rate
// limiter; individual frame failures become gaps, never run failures.
type Analyzer struct {
	sampler    FrameSampler
	classifier classifier.FrameClassifier
	limiter    *rate.Limiter
	opts       Options
}

func NewAnalyzer(sampler FrameSampler, fc classifier.FrameClassifier, opts Options) *Analyzer {
	opts = opts.withDefaults()
	return &Analyzer{
		sampler:    sampler,
		classifier: fc,
		limiter:    rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Workers),
		opts:       opts,
	}
}

// Analyze runs the full pipeline for one video. Cancelling ctx abandons
// in-flight classifications and removes the sampled frames before returning.
func (a *Analyzer) Analyze(ctx context.Context, videoID uuid.UUID, videoPath string, progress ProgressFunc) (*Result, error) {
	frameSet, err := a.sampler.Sample(ctx, videoPath, a.opts.FrameInterval, a.opts.MaxFrames)
	if err != nil {
		return nil, fmt.Errorf("sample frames: %w", err)
	}
	defer frameSet.Close()

	total := len(frameSet.Frames)
	results := make([]*models.ClassificationResult, total)
	var failed atomic.Int64
	var done atomic.Int64

	// Workers report completion concurrently; progressMu serializes the
	// callback so callers may keep unguarded state in their closure.
	var progressMu sync.Mutex

	workCh := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < a.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				results[idx] = a.classifyFrame(ctx, frameSet.Frames[idx], &failed)
				n := int(done.Add(1))
				if progress != nil {
					progressMu.Lock()
					progress(n, total)
					progressMu.Unlock()
				}
			}
		}()
	}

	for idx := range frameSet.Frames {
		select {
		case workCh <- idx:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(workCh)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := BuildSegments(videoID, results, frameSet.Interval, frameSet.Duration)
	merged := CoalesceSegments(raw, a.opts.MergeThreshold)
	nFailed := int(failed.Load())

	return &Result{
		Segments: merged,
		Summary:  Summarize(merged, total-nFailed, nFailed),
		Duration: frameSet.Duration,
	}, nil
}

// classifyFrame runs one rate-limited, deadline-bounded classification.
// Any failure — read, transport, parse, timeout — is recorded as a gap.
func (a *Analyzer) classifyFrame(ctx context.Context, frame ffmpeg.Frame, failed *atomic.Int64) *models.ClassificationResult {
	if err := a.limiter.Wait(ctx); err != nil {
		failed.Add(1)
		return nil
	}

	data, err := os.ReadFile(frame.Path)
	if err != nil {
		log.Printf("Analysis: read frame %d: %v", frame.Index, err)
		failed.Add(1)
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	result, err := a.classifier.Classify(cctx, classifier.Frame{
		Data:      data,
		MIMEType:  "image/jpeg",
		Timestamp: frame.Timestamp,
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Analysis: frame %d at %.1fs failed: %v", frame.Index, frame.Timestamp, err)
		}
		failed.Add(1)
		return nil
	}
	return result
}
