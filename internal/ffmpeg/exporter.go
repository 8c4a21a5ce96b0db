package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Preset is a video/audio bitrate pair for export encoding.
type Preset struct {
	Name         string
	VideoBitrate string
	AudioBitrate string
}

var Presets = map[string]Preset{
	"high":   {Name: "high", VideoBitrate: "2000k", AudioBitrate: "192k"},
	"medium": {Name: "medium", VideoBitrate: "1000k", AudioBitrate: "128k"},
	"low":    {Name: "low", VideoBitrate: "500k", AudioBitrate: "96k"},
}

// Exporter runs the ffmpeg clip/concat invocations for segment export.
type Exporter struct {
	ffmpegPath string
	exportDir  string
}

func NewExporter(ffmpegPath, exportDir string) *Exporter {
	return &Exporter{ffmpegPath: ffmpegPath, exportDir: exportDir}
}

func (e *Exporter) ensureDir() error {
	return os.MkdirAll(e.exportDir, 0755)
}

// ExtractClip re-encodes [start, start+duration) of src into a new file in
// the export dir and returns its path. The partial output is removed on error.
func (e *Exporter) ExtractClip(ctx context.Context, src string, start, duration float64, format string, preset Preset) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	outPath := filepath.Join(e.exportDir, fmt.Sprintf("segment-%s.%s", uuid.New(), format))
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-ss", fmt.Sprintf("%g", start),
		"-i", src,
		"-t", fmt.Sprintf("%g", duration),
		"-b:v", preset.VideoBitrate,
		"-b:a", preset.AudioBitrate,
		"-y",
		outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outPath)
		return "", &ExtractError{Path: src, Output: tail(output, 512), Err: err}
	}
	return outPath, nil
}

// Concat joins the given files in order into one output using ffmpeg's
// concat demuxer. The list manifest is always removed; the partial output is
// removed on error.
func (e *Exporter) Concat(ctx context.Context, files []string, format string, preset Preset) (string, error) {
	if err := e.ensureDir(); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	listPath := filepath.Join(e.exportDir, fmt.Sprintf("concat-%s.txt", uuid.New()))
	var list string
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", f, err)
		}
		list += fmt.Sprintf("file '%s'\n", abs)
	}
	if err := os.WriteFile(listPath, []byte(list), 0644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	outPath := filepath.Join(e.exportDir, fmt.Sprintf("merged-%s.%s", uuid.New(), format))
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-b:v", preset.VideoBitrate,
		"-b:a", preset.AudioBitrate,
		"-y",
		outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outPath)
		return "", &ExtractError{Path: listPath, Output: tail(output, 512), Err: err}
	}
	return outPath, nil
}
