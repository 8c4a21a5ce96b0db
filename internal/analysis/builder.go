// Package analysis turns per-frame classifications into stable, tagged time
// segments. The builder is a pure function pair: a run state machine over the
// ordered classification stream, then a gap-coalescing merge pass.
package analysis

import (
	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

// DefaultMergeThreshold is the maximum gap (seconds) between same-type
// segments that still triggers coalescing.
const DefaultMergeThreshold = 2.0

// BuildSegments collapses an ordered classification stream into raw segments.
// A nil entry is a classification gap: it neither extends nor closes the
// current run. A type change always closes the current run at the new frame's
// start time. step is the effective sampling interval; a run covering one
// frame still spans [t, t+step). The final segment is clamped to duration
// when duration is known.
//
// Deterministic: the same stream yields the same segments.
func BuildSegments(videoID uuid.UUID, results []*models.ClassificationResult, step, duration float64) []models.Segment {
	var segments []models.Segment
	var current *models.Segment

	flush := func() {
		if current != nil {
			segments = append(segments, *current)
			current = nil
		}
	}

	for _, r := range results {
		if r == nil {
			continue // gap: no signal, not a type change
		}

		switch {
		case current == nil:
			current = openSegment(videoID, r, step)
		case r.Type == current.Type:
			current.EndTime = r.Timestamp + step
			current.Products = unionProducts(current.Products, r.Products)
			if r.Confidence > current.Confidence {
				current.Confidence = r.Confidence
			}
		default:
			current.EndTime = r.Timestamp
			flush()
			current = openSegment(videoID, r, step)
		}
	}
	flush()

	if duration > 0 && len(segments) > 0 {
		last := &segments[len(segments)-1]
		if last.EndTime > duration {
			last.EndTime = duration
		}
	}
	return segments
}

// openSegment starts a new run. IDs are left unassigned so the builder stays
// deterministic; the store assigns them on insert.
func openSegment(videoID uuid.UUID, r *models.ClassificationResult, step float64) *models.Segment {
	return &models.Segment{
		VideoID:    videoID,
		StartTime:  r.Timestamp,
		EndTime:    r.Timestamp + step,
		Type:       r.Type,
		Products:   unionProducts(nil, r.Products),
		Confidence: r.Confidence,
		Source:     models.SegmentSourceAnalysis,
	}
}

// CoalesceSegments merges adjacent same-type segments separated by a gap of
// at most threshold seconds, absorbing classifier jitter. Only already-closed
// neighbors merge; a different-type segment sandwiched between two same-type
// runs is never swallowed. Input must be sorted by start time; output stays
// sorted and non-overlapping.
func CoalesceSegments(segments []models.Segment, threshold float64) []models.Segment {
	if len(segments) == 0 {
		return nil
	}

	out := make([]models.Segment, 0, len(segments))
	out = append(out, segments[0])

	for _, seg := range segments[1:] {
		last := &out[len(out)-1]
		if seg.Type == last.Type && seg.StartTime-last.EndTime <= threshold {
			last.EndTime = seg.EndTime
			last.Products = unionProducts(last.Products, seg.Products)
			if seg.Confidence > last.Confidence {
				last.Confidence = seg.Confidence
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}

// unionProducts merges b into a, keyed by product name, keeping first-seen
// order and the highest confidence per name.
func unionProducts(a, b []models.Product) []models.Product {
	out := make([]models.Product, len(a))
	copy(out, a)

	idx := make(map[string]int, len(out))
	for i, p := range out {
		idx[p.Name] = i
	}
	for _, p := range b {
		if i, ok := idx[p.Name]; ok {
			if p.Confidence > out[i].Confidence {
				out[i].Confidence = p.Confidence
			}
			continue
		}
		idx[p.Name] = len(out)
		out = append(out, p)
	}
	return out
}

// Summarize builds the per-category rollup stored on the video record.
func Summarize(segments []models.Segment, analyzed, failed int) *models.AnalysisSummary {
	summary := &models.AnalysisSummary{
		FramesAnalyzed: analyzed,
		FramesFailed:   failed,
		Categories:     make(map[string]models.CategorySummary),
	}
	for _, seg := range segments {
		cat := summary.Categories[string(seg.Type)]
		cat.Count++
		cat.DurationSeconds += seg.Duration()
		summary.Categories[string(seg.Type)] = cat
	}
	return summary
}
