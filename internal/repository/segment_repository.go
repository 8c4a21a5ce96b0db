package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

// SegmentRepository owns the authoritative segment list per video. Every
// mutation runs in a transaction that locks the owning video row, so writers
// for one video are serialized and the no-overlap invariant holds under
// concurrent calls. Reads need no lock.
type SegmentRepository struct {
	db *sql.DB
}

func NewSegmentRepository(db *sql.DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

const segmentColumns = `id, video_id, start_time, end_time, segment_type,
	products, confidence, notes, source, created_at, updated_at`

func scanSegment(row interface{ Scan(dest ...interface{}) error }) (*models.Segment, error) {
	seg := &models.Segment{}
	var products []byte
	err := row.Scan(&seg.ID, &seg.VideoID, &seg.StartTime, &seg.EndTime, &seg.Type,
		&products, &seg.Confidence, &seg.Notes, &seg.Source, &seg.CreatedAt, &seg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &seg.Products); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
	}
	return seg, nil
}

// lockVideo serializes writers on one video for the length of the
// transaction.
func lockVideo(tx *sql.Tx, videoID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(`SELECT id FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&id)
	if err == sql.ErrNoRows {
		return ErrVideoNotFound
	}
	return err
}

// otherRanges loads the [start, end) intervals of every segment of the video
// except exclude (pass uuid.Nil to keep all).
func otherRanges(tx *sql.Tx, videoID, exclude uuid.UUID) ([][2]float64, error) {
	rows, err := tx.Query(`
		SELECT start_time, end_time FROM segments
		WHERE video_id = $1 AND id <> $2
		ORDER BY start_time`, videoID, exclude)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ranges [][2]float64
	for rows.Next() {
		var r [2]float64
		if err := rows.Scan(&r[0], &r[1]); err != nil {
			return nil, err
		}
		ranges = append(ranges, r)
	}
	return ranges, rows.Err()
}

func checkNoOverlap(ranges [][2]float64, start, end float64) error {
	for _, r := range ranges {
		if models.Overlaps(start, end, r[0], r[1]) {
			return ErrOverlap
		}
	}
	return nil
}

func insertSegment(tx *sql.Tx, seg *models.Segment) error {
	if seg.ID == uuid.Nil {
		seg.ID = uuid.New()
	}
	products, err := json.Marshal(seg.Products)
	if err != nil {
		return fmt.Errorf("encode products: %w", err)
	}
	if seg.Products == nil {
		products = []byte(`[]`)
	}
	return tx.QueryRow(`
		INSERT INTO segments (id, video_id, start_time, end_time, segment_type,
		                      products, confidence, notes, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		seg.ID, seg.VideoID, seg.StartTime, seg.EndTime, seg.Type,
		products, seg.Confidence, seg.Notes, seg.Source).
		Scan(&seg.CreatedAt, &seg.UpdatedAt)
}

// Create validates and inserts one manual segment. Fails with
// ErrVideoNotFound, ErrInvalidRange or ErrOverlap; on any failure nothing is
// written.
func (r *SegmentRepository) Create(videoID uuid.UUID, start, end float64, segType models.SegmentType, products []models.Product, notes string) (*models.Segment, error) {
	if !models.ValidRange(start, end) {
		return nil, ErrInvalidRange
	}

	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if err := lockVideo(tx, videoID); err != nil {
		return nil, err
	}
	ranges, err := otherRanges(tx, videoID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if err := checkNoOverlap(ranges, start, end); err != nil {
		return nil, err
	}

	seg := &models.Segment{
		VideoID:   videoID,
		StartTime: start,
		EndTime:   end,
		Type:      segType,
		Products:  products,
		Notes:     notes,
		Source:    models.SegmentSourceManual,
	}
	if err := insertSegment(tx, seg); err != nil {
		return nil, err
	}
	return seg, tx.Commit()
}

// SegmentUpdate carries the optional fields of a partial update; nil means
// "leave unchanged".
type SegmentUpdate struct {
	StartTime *float64
	EndTime   *float64
	Type      *models.SegmentType
	Products  *[]models.Product
	Notes     *string
}

// apply merges the set fields onto seg.
func (u SegmentUpdate) apply(seg *models.Segment) {
	if u.StartTime != nil {
		seg.StartTime = *u.StartTime
	}
	if u.EndTime != nil {
		seg.EndTime = *u.EndTime
	}
	if u.Type != nil {
		seg.Type = *u.Type
	}
	if u.Products != nil {
		seg.Products = *u.Products
	}
	if u.Notes != nil {
		seg.Notes = *u.Notes
	}
}

// Update applies a partial update, re-validating range and overlap against
// the video's other segments before committing. The merge base is read only
// after the video lock is held, so a concurrent committed update can never be
// overwritten by stale fields.
func (r *SegmentRepository) Update(id uuid.UUID, update SegmentUpdate) (*models.Segment, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var videoID uuid.UUID
	err = tx.QueryRow(`SELECT video_id FROM segments WHERE id = $1`, id).Scan(&videoID)
	if err == sql.ErrNoRows {
		return nil, ErrSegmentNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := lockVideo(tx, videoID); err != nil {
		return nil, err
	}

	row := tx.QueryRow(`SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id)
	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		// Deleted between the id lookup and taking the lock.
		return nil, ErrSegmentNotFound
	}
	if err != nil {
		return nil, err
	}

	update.apply(seg)

	if !models.ValidRange(seg.StartTime, seg.EndTime) {
		return nil, ErrInvalidRange
	}
	ranges, err := otherRanges(tx, seg.VideoID, seg.ID)
	if err != nil {
		return nil, err
	}
	if err := checkNoOverlap(ranges, seg.StartTime, seg.EndTime); err != nil {
		return nil, err
	}

	products, err := json.Marshal(seg.Products)
	if err != nil {
		return nil, fmt.Errorf("encode products: %w", err)
	}
	if seg.Products == nil {
		products = []byte(`[]`)
	}
	err = tx.QueryRow(`
		UPDATE segments SET start_time = $2, end_time = $3, segment_type = $4,
		       products = $5, notes = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		seg.ID, seg.StartTime, seg.EndTime, seg.Type, products, seg.Notes).
		Scan(&seg.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return seg, tx.Commit()
}

func (r *SegmentRepository) Delete(id uuid.UUID) error {
	res, err := r.db.Exec(`DELETE FROM segments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSegmentNotFound
	}
	return nil
}

// ListByVideo returns the video's segments sorted by start time. An empty
// list is valid; an unknown video is not.
func (r *SegmentRepository) ListByVideo(videoID uuid.UUID) ([]*models.Segment, error) {
	var exists bool
	if err := r.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM videos WHERE id = $1)`, videoID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrVideoNotFound
	}

	rows, err := r.db.Query(`
		SELECT `+segmentColumns+` FROM segments
		WHERE video_id = $1
		ORDER BY start_time`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	segments := []*models.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

func (r *SegmentRepository) GetByID(id uuid.UUID) (*models.Segment, error) {
	row := r.db.QueryRow(`SELECT `+segmentColumns+` FROM segments WHERE id = $1`, id)
	seg, err := scanSegment(row)
	if err == sql.ErrNoRows {
		return nil, ErrSegmentNotFound
	}
	return seg, err
}

// ReplaceGenerated swaps the video's analysis-sourced segments for a fresh
// set in one transaction. Manual segments are kept; a generated segment that
// would overlap a manual one is dropped with a log line rather than failing
// the run.
func (r *SegmentRepository) ReplaceGenerated(videoID uuid.UUID, segments []models.Segment) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockVideo(tx, videoID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM segments WHERE video_id = $1 AND source = $2`,
		videoID, models.SegmentSourceAnalysis); err != nil {
		return err
	}

	manual, err := otherRanges(tx, videoID, uuid.Nil)
	if err != nil {
		return err
	}

	for i := range segments {
		seg := segments[i]
		seg.VideoID = videoID
		seg.Source = models.SegmentSourceAnalysis
		if err := checkNoOverlap(manual, seg.StartTime, seg.EndTime); err != nil {
			log.Printf("Segments: dropping generated [%.1f, %.1f) %s: conflicts with a manual segment",
				seg.StartTime, seg.EndTime, seg.Type)
			continue
		}
		if err := insertSegment(tx, &seg); err != nil {
			return fmt.Errorf("insert generated segment: %w", err)
		}
	}
	return tx.Commit()
}
