package ffmpeg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEffectiveInterval(t *testing.T) {
	tests := []struct {
		name      string
		requested float64
		duration  float64
		maxFrames int
		want      float64
	}{
		{"shortVideoKeepsRequested", 1, 30, 100, 1},
		{"longVideoWidens", 1, 600, 100, 6},
		{"exactBoundary", 1, 100, 100, 1},
		{"zeroRequestedDefaults", 0, 30, 100, 1},
		{"noCapKeepsRequested", 5, 10000, 0, 5},
		{"unknownDuration", 2, 0, 100, 2},
		{"fractionalWiden", 0.5, 90, 60, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EffectiveInterval(tt.requested, tt.duration, tt.maxFrames); got != tt.want {
				t.Errorf("EffectiveInterval(%v, %v, %d) = %v, want %v",
					tt.requested, tt.duration, tt.maxFrames, got, tt.want)
			}
		})
	}
}

func TestCollectFrames(t *testing.T) {
	dir := t.TempDir()
	// Deliberately created out of order; collectFrames must sort by index.
	for _, name := range []string{"frame-0003.jpg", "frame-0001.jpg", "frame-0002.jpg", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	frames, err := collectFrames(dir, 2.5)
	if err != nil {
		t.Fatalf("collectFrames: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	for i, f := range frames {
		if f.Index != i {
			t.Errorf("frame %d has index %d", i, f.Index)
		}
		if want := float64(i) * 2.5; f.Timestamp != want {
			t.Errorf("frame %d timestamp = %v, want %v", i, f.Timestamp, want)
		}
	}
}

func TestFrameSetCloseRemovesDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "frames-run")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}

	fs := &FrameSet{dir: sub}
	fs.Close()
	if _, err := os.Stat(sub); !os.IsNotExist(err) {
		t.Errorf("frame dir still exists after Close")
	}
	// Second close is a no-op.
	fs.Close()
}
