package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/yukawasensei/visual-ai-agent/internal/models"
)

type VideoRepository struct {
	db *sql.DB
}

func NewVideoRepository(db *sql.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, file_name, original_name, mime_type, file_size, file_path,
	duration_seconds, status, error, summary, uploaded_at, updated_at`

func scanVideo(row interface{ Scan(dest ...interface{}) error }) (*models.VideoAsset, error) {
	v := &models.VideoAsset{}
	var summary []byte
	err := row.Scan(&v.ID, &v.FileName, &v.OriginalName, &v.MimeType, &v.FileSize,
		&v.FilePath, &v.DurationSeconds, &v.Status, &v.Error, &summary,
		&v.UploadedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if len(summary) > 0 {
		if err := json.Unmarshal(summary, &v.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
	}
	return v, nil
}

func (r *VideoRepository) Create(v *models.VideoAsset) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	if v.Status == "" {
		v.Status = models.VideoStatusPending
	}
	query := `
		INSERT INTO videos (id, file_name, original_name, mime_type, file_size, file_path,
		                    duration_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING uploaded_at, updated_at`
	return r.db.QueryRow(query, v.ID, v.FileName, v.OriginalName, v.MimeType,
		v.FileSize, v.FilePath, v.DurationSeconds, v.Status).
		Scan(&v.UploadedAt, &v.UpdatedAt)
}

func (r *VideoRepository) GetByID(id uuid.UUID) (*models.VideoAsset, error) {
	row := r.db.QueryRow(`SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	v, err := scanVideo(row)
	if err == sql.ErrNoRows {
		return nil, ErrVideoNotFound
	}
	return v, err
}

// List returns videos newest-first with optional status filtering. limit <= 0
// means no paging.
func (r *VideoRepository) List(status models.VideoStatus, limit, offset int) ([]*models.VideoAsset, error) {
	query := `SELECT ` + videoColumns + ` FROM videos`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY uploaded_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*models.VideoAsset
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (r *VideoRepository) Count(status models.VideoStatus) (int, error) {
	query := `SELECT COUNT(*) FROM videos`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	var count int
	err := r.db.QueryRow(query, args...).Scan(&count)
	return count, err
}

// UpdateStatus transitions a video's analysis state. errMsg and summary are
// written as given (empty/nil clears them).
func (r *VideoRepository) UpdateStatus(id uuid.UUID, status models.VideoStatus, errMsg string, summary *models.AnalysisSummary) error {
	var summaryJSON interface{}
	if summary != nil {
		data, err := json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("encode summary: %w", err)
		}
		summaryJSON = data
	}

	res, err := r.db.Exec(`
		UPDATE videos SET status = $2, error = $3, summary = $4, updated_at = NOW()
		WHERE id = $1`, id, status, errMsg, summaryJSON)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

func (r *VideoRepository) UpdateDuration(id uuid.UUID, seconds float64) error {
	res, err := r.db.Exec(`
		UPDATE videos SET duration_seconds = $2, updated_at = NOW()
		WHERE id = $1`, id, seconds)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVideoNotFound
	}
	return nil
}
