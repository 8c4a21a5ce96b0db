package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// ProbeError means the container metadata could not be read at all —
// usually a missing file or a format ffprobe does not understand.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string { return fmt.Sprintf("probe %s: %v", e.Path, e.Err) }
func (e *ProbeError) Unwrap() error { return e.Err }

// ExtractError wraps a failed ffmpeg decode/encode invocation. Output holds
// the tail of ffmpeg's stderr for diagnostics.
type ExtractError struct {
	Path   string
	Output string
	Err    error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("ffmpeg %s: %v: %s", e.Path, e.Err, e.Output)
}
func (e *ExtractError) Unwrap() error { return e.Err }

type FFprobe struct{ Path string }

func NewFFprobe(path string) *FFprobe { return &FFprobe{Path: path} }

type probeFormat struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		Bitrate  string `json:"bit_rate"`
	} `json:"format"`
}

// Duration returns the container duration in seconds.
func (f *FFprobe) Duration(ctx context.Context, filePath string) (float64, error) {
	cmd := exec.CommandContext(ctx, f.Path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		filePath)
	output, err := cmd.Output()
	if err != nil {
		return 0, &ProbeError{Path: filePath, Err: err}
	}

	var result probeFormat
	if err := json.Unmarshal(output, &result); err != nil {
		return 0, &ProbeError{Path: filePath, Err: fmt.Errorf("parse ffprobe output: %w", err)}
	}

	duration, err := strconv.ParseFloat(result.Format.Duration, 64)
	if err != nil || duration <= 0 {
		return 0, &ProbeError{Path: filePath, Err: fmt.Errorf("no usable duration in probe output")}
	}
	return duration, nil
}

// tail returns at most n trailing bytes of combined command output, enough
// for error reporting without dumping full transcode logs.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[len(b)-n:])
}
