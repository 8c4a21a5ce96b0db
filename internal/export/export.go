// Package export extracts stored segments from their source video,
// re-encodes them under a quality preset, and optionally concatenates the
// results into one deliverable.
package export

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/ffmpeg"
	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

var (
	ErrNoSegments        = errors.New("no matching segments to export")
	ErrUnsupportedFormat = errors.New("unsupported export format")
	ErrInvalidQuality    = errors.New("invalid export quality")
)

var supportedFormats = map[string]bool{"mp4": true, "mov": true, "avi": true}

// VideoGetter resolves the source video; satisfied by
// *repository.VideoRepository.
type VideoGetter interface {
	GetByID(id uuid.UUID) (*models.VideoAsset, error)
}

// SegmentLister returns a video's segments sorted ascending by start time;
// satisfied by *repository.SegmentRepository.
type SegmentLister interface {
	ListByVideo(videoID uuid.UUID) ([]*models.Segment, error)
}

// ClipMaker runs the actual ffmpeg work; satisfied by *ffmpeg.Exporter.
type ClipMaker interface {
	ExtractClip(ctx context.Context, src string, start, duration float64, format string, preset ffmpeg.Preset) (string, error)
	Concat(ctx context.Context, files []string, format string, preset ffmpeg.Preset) (string, error)
}

// Request describes one export run.
type Request struct {
	VideoID       uuid.UUID            `json:"videoId"`
	SegmentIDs    []uuid.UUID          `json:"segmentIds"`
	Format        string               `json:"format"`
	Quality       models.ExportQuality `json:"quality"`
	MergeSegments bool                 `json:"mergeSegments"`
}

// Pipeline coordinates per-segment extraction under a bounded transcode pool
// and the optional merge step.
type Pipeline struct {
	videos     VideoGetter
	segments   SegmentLister
	clips      ClipMaker
	maxWorkers int
}

func NewPipeline(videos VideoGetter, segments SegmentLister, clips ClipMaker, maxWorkers int) *Pipeline {
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	return &Pipeline{videos: videos, segments: segments, clips: clips, maxWorkers: maxWorkers}
}

// Export resolves the requested segments and extracts each one. Unknown
// segment ids are dropped; only a fully empty result set fails. Any single
// extraction failure aborts the whole export and removes everything already
// written.
func (p *Pipeline) Export(ctx context.Context, req Request) (*models.ExportResult, error) {
	format := req.Format
	if format == "" {
		format = "mp4"
	}
	if !supportedFormats[format] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, req.Format)
	}
	quality := req.Quality
	if quality == "" {
		quality = models.ExportQualityHigh
	}
	if !quality.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidQuality, req.Quality)
	}
	preset := ffmpeg.Presets[string(quality)]

	video, err := p.videos.GetByID(req.VideoID)
	if err != nil {
		return nil, err
	}

	stored, err := p.segments.ListByVideo(req.VideoID)
	if err != nil {
		return nil, err
	}

	// Keep store order: stored lists come back ascending by start time, so
	// extraction and merge follow timeline order regardless of request order.
	wanted := make(map[uuid.UUID]bool, len(req.SegmentIDs))
	for _, id := range req.SegmentIDs {
		wanted[id] = true
	}
	var selected []*models.Segment
	for _, seg := range stored {
		if wanted[seg.ID] {
			selected = append(selected, seg)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoSegments
	}

	exported, err := p.extractAll(ctx, video.FilePath, selected, format, preset)
	if err != nil {
		return nil, err
	}

	result := &models.ExportResult{
		VideoID:  req.VideoID,
		Segments: exported,
		Format:   format,
		Quality:  quality,
	}
	for _, e := range exported {
		result.TotalSize += e.FileSize
		result.TotalDuration += e.DurationSeconds
	}

	if req.MergeSegments && len(exported) > 1 {
		files := make([]string, len(exported))
		for i, e := range exported {
			files[i] = e.FilePath
		}
		mergedPath, err := p.clips.Concat(ctx, files, format, preset)
		if err != nil {
			removeFiles(files)
			return nil, fmt.Errorf("merge segments: %w", err)
		}
		result.DownloadURL = "/downloads/" + filepath.Base(mergedPath)
	}

	return result, nil
}

// extractAll runs the per-segment extractions over a bounded worker pool.
// The first failure cancels the rest; partial outputs are removed.
func (p *Pipeline) extractAll(ctx context.Context, src string, segments []*models.Segment, format string, preset ffmpeg.Preset) ([]*models.ExportedSegment, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exported := make([]*models.ExportedSegment, len(segments))
	errs := make([]error, len(segments))

	workCh := make(chan int)
	var wg sync.WaitGroup
	workers := p.maxWorkers
	if workers > len(segments) {
		workers = len(segments)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workCh {
				rec, err := p.extractOne(ctx, src, segments[idx], format, preset)
				if err != nil {
					errs[idx] = err
					cancel()
					continue
				}
				exported[idx] = rec
			}
		}()
	}
	for idx := range segments {
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

	for idx, err := range errs {
		if err != nil {
			p.cleanup(exported)
			return nil, fmt.Errorf("extract segment %s: %w", segments[idx].ID, err)
		}
	}
	if err := ctx.Err(); err != nil {
		p.cleanup(exported)
		return nil, err
	}
	return exported, nil
}

func (p *Pipeline) extractOne(ctx context.Context, src string, seg *models.Segment, format string, preset ffmpeg.Preset) (*models.ExportedSegment, error) {
	path, err := p.clips.ExtractClip(ctx, src, seg.StartTime, seg.Duration(), format, preset)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("stat exported clip: %w", err)
	}

	return &models.ExportedSegment{
		ID:                uuid.New(),
		OriginalSegmentID: seg.ID,
		FileName:          filepath.Base(path),
		FilePath:          path,
		FileSize:          info.Size(),
		DurationSeconds:   seg.Duration(),
		CreatedAt:         time.Now().UTC(),
	}, nil
}

func (p *Pipeline) cleanup(exported []*models.ExportedSegment) {
	for _, e := range exported {
		if e != nil {
			if err := os.Remove(e.FilePath); err != nil && !os.IsNotExist(err) {
				log.Printf("Export: cleanup %s: %v", e.FilePath, err)
			}
		}
	}
}

func removeFiles(files []string) {
	for _, f := range files {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) {
			log.Printf("Export: cleanup %s: %v", f, err)
		}
	}
}
