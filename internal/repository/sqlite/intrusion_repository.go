package sqlite

import (
	"fmt"

	"smartsurveil/internal/model"
)

// IntrusionRepository implements repository.IntrusionRepository for SQLite.
type IntrusionRepository struct {
	db *DB
}

// NewIntrusionRepository creates a new SQLite intrusion log repository.
func NewIntrusionRepository(db *DB) *IntrusionRepository {
	return &IntrusionRepository{db: db}
}

// RecordIntrusion inserts an intrusion log and returns its ID.
func (r *IntrusionRepository) RecordIntrusion(log *model.IntrusionLog) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO intrusion_logs (camera_id, image_path, detection_count, timestamp)
		VALUES (?, ?, ?, ?)
	`, log.CameraID, log.ImagePath, log.PersonCount, log.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert intrusion log: %w", err)
	}

	return result.LastInsertId()
}

// GetRecent returns the newest intrusion logs across all cameras.
func (r *IntrusionRepository) GetRecent(limit int) ([]model.IntrusionLog, error) {
	return r.query(`
		SELECT il.id, il.camera_id, c.name, il.image_path, il.detection_count, il.timestamp
		FROM intrusion_logs il
		JOIN cameras c ON il.camera_id = c.id
		ORDER BY il.timestamp DESC, il.id DESC
		LIMIT ?
	`, normalizeLimit(limit))
}

// GetByCamera returns the newest intrusion logs of a single camera.
func (r *IntrusionRepository) GetByCamera(cameraID int64, limit int) ([]model.IntrusionLog, error) {
	return r.query(`
		SELECT il.id, il.camera_id, c.name, il.image_path, il.detection_count, il.timestamp
		FROM intrusion_logs il
		JOIN cameras c ON il.camera_id = c.id
		WHERE il.camera_id = ?
		ORDER BY il.timestamp DESC, il.id DESC
		LIMIT ?
	`, cameraID, normalizeLimit(limit))
}

// GetImagePathsByCamera lists the alert images referenced by a camera's logs.
func (r *IntrusionRepository) GetImagePathsByCamera(cameraID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT image_path FROM intrusion_logs WHERE camera_id = ?`, cameraID)
	if err != nil {
		return nil, fmt.Errorf("failed to query image paths: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

func (r *IntrusionRepository) query(query string, args ...interface{}) ([]model.IntrusionLog, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query intrusion logs: %w", err)
	}
	defer rows.Close()

	var logs []model.IntrusionLog
	for rows.Next() {
		var l model.IntrusionLog
		if err := rows.Scan(&l.ID, &l.CameraID, &l.CameraName, &l.ImagePath, &l.PersonCount, &l.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan intrusion log: %w", err)
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}
