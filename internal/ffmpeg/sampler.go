package ffmpeg

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Frame is one still extracted from a video. The image lives under the
// owning FrameSet's temp dir and disappears when the set is closed.
type Frame struct {
	Index     int
	Timestamp float64 // seconds from video start
	Path      string
}

// FrameSet holds the frames of one sampling run plus their backing temp dir.
// Callers must Close it when done, success or failure.
type FrameSet struct {
	Frames   []Frame
	Duration float64 // probed source duration, seconds
	Interval float64 // effective seconds between frames
	dir      string
}

// Close removes every extracted frame. Cleanup failures are logged, not fatal.
func (fs *FrameSet) Close() {
	if fs.dir == "" {
		return
	}
	if err := os.RemoveAll(fs.dir); err != nil {
		log.Printf("Sampler: temp cleanup failed for %s: %v", fs.dir, err)
	}
	fs.dir = ""
}

// Sampler extracts evenly spaced still frames from a video.
type Sampler struct {
	ffmpegPath string
	probe      *FFprobe
	tempDir    string
}

func NewSampler(ffmpegPath string, probe *FFprobe, tempDir string) *Sampler {
	return &Sampler{ffmpegPath: ffmpegPath, probe: probe, tempDir: tempDir}
}

// EffectiveInterval widens the requested interval so a video of the given
// duration never yields more than maxFrames samples.
func EffectiveInterval(requested, duration float64, maxFrames int) float64 {
	if requested <= 0 {
		requested = 1
	}
	if maxFrames <= 0 || duration <= 0 {
		return requested
	}
	if floor := duration / float64(maxFrames); floor > requested {
		return floor
	}
	return requested
}

// Sample probes the video and extracts one frame per effective interval,
// starting at timestamp 0, in increasing order. Each call re-extracts into a
// fresh temp dir; the returned set owns it.
func (s *Sampler) Sample(ctx context.Context, videoPath string, interval float64, maxFrames int) (*FrameSet, error) {
	duration, err := s.probe.Duration(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	effective := EffectiveInterval(interval, duration, maxFrames)

	dir, err := os.MkdirTemp(s.tempDir, "frames-")
	if err != nil {
		return nil, fmt.Errorf("create frame dir: %w", err)
	}

	pattern := filepath.Join(dir, "frame-%04d.jpg")
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=1/%g", effective),
		"-q:v", "2",
		"-y",
		pattern)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.RemoveAll(dir)
		return nil, &ExtractError{Path: videoPath, Output: tail(output, 512), Err: err}
	}

	frames, err := collectFrames(dir, effective)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	if len(frames) == 0 {
		os.RemoveAll(dir)
		return nil, &ExtractError{Path: videoPath, Err: fmt.Errorf("no frames extracted")}
	}

	return &FrameSet{Frames: frames, Duration: duration, Interval: effective, dir: dir}, nil
}

// collectFrames lists the numbered jpg outputs and assigns timestamps.
// ffmpeg numbers frames from 1; frame N sits at (N-1)*interval.
func collectFrames(dir string, interval float64) ([]Frame, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var frames []Frame
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "frame-") || !strings.HasSuffix(name, ".jpg") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ".jpg")
		num, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		frames = append(frames, Frame{
			Index:     num - 1,
			Timestamp: float64(num-1) * interval,
			Path:      filepath.Join(dir, name),
		})
	}

	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}
