package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
	"github.com/yukawasensei/visual-ai-agent/internal/repository"
)

type fakeVideos struct {
	video *models.VideoAsset
}

func (f *fakeVideos) GetByID(id uuid.UUID) (*models.VideoAsset, error) {
	if f.video == nil || f.video.ID != id {
		return nil, repository.ErrVideoNotFound
	}
	return f.video, nil
}

type fakeSegments struct {
	segments []*models.Segment
}

func (f *fakeSegments) ListByVideo(videoID uuid.UUID) ([]*models.Segment, error) {
	return f.segments, nil
}

// fakeClips writes real files so the pipeline's stat/cleanup paths run.
type fakeClips struct {
	dir       string
	mu        sync.Mutex
	extracted []float64 // start times in extraction completion order
	concatted []string
	failAt    float64 // extraction at this start time fails (0 disables)
}

func (f *fakeClips) ExtractClip(ctx context.Context, src string, start, duration float64, format string, preset ffmpeg.Preset) (string, error) {
	if f.failAt != 0 && start == f.failAt {
		return "", errors.New("encode failed")
	}
	path := filepath.Join(f.dir, fmt.Sprintf("clip-%v.%s", start, format))
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 100)), 0644); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.extracted = append(f.extracted, start)
	f.mu.Unlock()
	return path, nil
}

func (f *fakeClips) Concat(ctx context.Context, files []string, format string, preset ffmpeg.Preset) (string, error) {
	f.mu.Lock()
	f.concatted = append([]string{}, files...)
	f.mu.Unlock()
	path := filepath.Join(f.dir, "merged."+format)
	return path, os.WriteFile(path, []byte("merged"), 0644)
}

func fixture(t *testing.T) (*Pipeline, *fakeClips, *models.VideoAsset, []*models.Segment) {
	t.Helper()
	videoID := uuid.New()
	video := &models.VideoAsset{ID: videoID, FilePath: "source.mp4", DurationSeconds: 30}
	segments := []*models.Segment{
		{ID: uuid.New(), VideoID: videoID, StartTime: 0, EndTime: 10, Type: models.SegmentProductShowcase},
		{ID: uuid.New(), VideoID: videoID, StartTime: 15, EndTime: 25, Type: models.SegmentProductExplanation},
	}
	clips := &fakeClips{dir: t.TempDir()}
	p := NewPipeline(&fakeVideos{video: video}, &fakeSegments{segments: segments}, clips, 2)
	return p, clips, video, segments
}

func TestExportMergeAscendingTimeOrder(t *testing.T) {
	p, clips, video, segments := fixture(t)

	// Request order is reversed; the merge must still follow timeline order.
	res, err := p.Export(context.Background(), Request{
		VideoID:       video.ID,
		SegmentIDs:    []uuid.UUID{segments[1].ID, segments[0].ID},
		MergeSegments: true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	if len(res.Segments) != 2 {
		t.Fatalf("got %d exported segments, want 2", len(res.Segments))
	}
	if res.TotalDuration != 20 {
		t.Errorf("total duration = %v, want 20", res.TotalDuration)
	}
	if res.TotalSize != 200 {
		t.Errorf("total size = %d, want 200", res.TotalSize)
	}
	if res.Segments[0].OriginalSegmentID != segments[0].ID {
		t.Errorf("exported segments not in ascending time order")
	}
	if len(clips.concatted) != 2 || !strings.Contains(clips.concatted[0], "clip-0") {
		t.Errorf("concat order = %v, want earliest clip first", clips.concatted)
	}
	if res.DownloadURL != "/downloads/merged.mp4" {
		t.Errorf("download URL = %q", res.DownloadURL)
	}
}

func TestExportNoMergeForSingleSegment(t *testing.T) {
	p, clips, video, segments := fixture(t)

	res, err := p.Export(context.Background(), Request{
		VideoID:       video.ID,
		SegmentIDs:    []uuid.UUID{segments[0].ID},
		MergeSegments: true,
	})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.DownloadURL != "" {
		t.Errorf("single-segment export produced a merge artifact: %q", res.DownloadURL)
	}
	if len(clips.concatted) != 0 {
		t.Errorf("concat was called for a single segment")
	}
}

func TestExportUnknownIDsDropped(t *testing.T) {
	p, _, video, segments := fixture(t)

	res, err := p.Export(context.Background(), Request{
		VideoID:    video.ID,
		SegmentIDs: []uuid.UUID{uuid.New(), segments[0].ID, uuid.New()},
	})
	if err != nil {
		t.Fatalf("a valid id mixed with unknown ids must still export: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].OriginalSegmentID != segments[0].ID {
		t.Errorf("exported = %v, want only the known segment", res.Segments)
	}
}

func TestExportAllUnknownFails(t *testing.T) {
	p, _, video, _ := fixture(t)

	_, err := p.Export(context.Background(), Request{
		VideoID:    video.ID,
		SegmentIDs: []uuid.UUID{uuid.New(), uuid.New()},
	})
	if !errors.Is(err, ErrNoSegments) {
		t.Errorf("error = %v, want ErrNoSegments", err)
	}
}

func TestExportVideoNotFound(t *testing.T) {
	p, _, _, segments := fixture(t)

	_, err := p.Export(context.Background(), Request{
		VideoID:    uuid.New(),
		SegmentIDs: []uuid.UUID{segments[0].ID},
	})
	if !errors.Is(err, repository.ErrVideoNotFound) {
		t.Errorf("error = %v, want ErrVideoNotFound", err)
	}
}

func TestExportValidation(t *testing.T) {
	p, _, video, segments := fixture(t)
	ids := []uuid.UUID{segments[0].ID}

	if _, err := p.Export(context.Background(), Request{VideoID: video.ID, SegmentIDs: ids, Format: "webm"}); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("format error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := p.Export(context.Background(), Request{VideoID: video.ID, SegmentIDs: ids, Quality: "ultra"}); !errors.Is(err, ErrInvalidQuality) {
		t.Errorf("quality error = %v, want ErrInvalidQuality", err)
	}
}

func TestExportFailureAbortsAndCleansUp(t *testing.T) {
	p, clips, video, segments := fixture(t)
	clips.failAt = 15 // second segment fails

	_, err := p.Export(context.Background(), Request{
		VideoID:    video.ID,
		SegmentIDs: []uuid.UUID{segments[0].ID, segments[1].ID},
	})
	if err == nil {
		t.Fatal("expected export failure")
	}

	// No partial outputs may survive.
	entries, readErr := os.ReadDir(clips.dir)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("partial outputs left behind: %v", names)
	}
}
