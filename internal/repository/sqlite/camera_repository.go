package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"smartsurveil/internal/model"
	"smartsurveil/internal/repository"
)

const cameraColumns = `id, name, url, is_active, detection_enabled, roi_x, roi_y, roi_width, roi_height,
	confidence_threshold, alert_interval, created_at`

// CameraRepository implements repository.CameraRepository for SQLite.
type CameraRepository struct {
	db *DB
}

// NewCameraRepository creates a new SQLite camera repository.
func NewCameraRepository(db *DB) *CameraRepository {
	return &CameraRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCamera(row rowScanner) (*model.Camera, error) {
	var cam model.Camera
	err := row.Scan(&cam.ID, &cam.Name, &cam.URL, &cam.Active, &cam.DetectionEnabled,
		&cam.ROI.X, &cam.ROI.Y, &cam.ROI.Width, &cam.ROI.Height,
		&cam.ConfidenceThreshold, &cam.AlertInterval, &cam.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cam, nil
}

// Insert adds a new camera and returns its ID.
func (r *CameraRepository) Insert(cam *model.Camera) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO cameras (name, url, is_active, detection_enabled, roi_x, roi_y, roi_width, roi_height,
			confidence_threshold, alert_interval)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, cam.Name, cam.URL, cam.Active, cam.DetectionEnabled, cam.ROI.X, cam.ROI.Y, cam.ROI.Width, cam.ROI.Height,
		cam.ConfidenceThreshold, cam.AlertInterval)
	if err != nil {
		return 0, fmt.Errorf("failed to insert camera: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a camera by its ID.
func (r *CameraRepository) GetByID(id int64) (*model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	cam, err := scanCamera(r.db.Conn().QueryRow(`SELECT `+cameraColumns+` FROM cameras WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("camera %d: %w", id, repository.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get camera: %w", err)
	}
	return cam, nil
}

// GetAll returns all cameras ordered by ID.
func (r *CameraRepository) GetAll() ([]model.Camera, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`SELECT ` + cameraColumns + ` FROM cameras ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cameras: %w", err)
	}
	defer rows.Close()

	var cameras []model.Camera
	for rows.Next() {
		cam, err := scanCamera(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan camera: %w", err)
		}
		cameras = append(cameras, *cam)
	}

	return cameras, rows.Err()
}

// UpdateStatus sets the active flag of a camera.
func (r *CameraRepository) UpdateStatus(id int64, active bool) error {
	return r.update(id, "status", `UPDATE cameras SET is_active = ? WHERE id = ?`, active, id)
}

// UpdateDetection enables or disables person detection for a camera.
func (r *CameraRepository) UpdateDetection(id int64, enabled bool) error {
	return r.update(id, "detection", `UPDATE cameras SET detection_enabled = ? WHERE id = ?`, enabled, id)
}

// UpdateROI replaces the region of interest of a camera.
func (r *CameraRepository) UpdateROI(id int64, roi model.ROI) error {
	return r.update(id, "roi", `
		UPDATE cameras SET roi_x = ?, roi_y = ?, roi_width = ?, roi_height = ?
		WHERE id = ?
	`, roi.X, roi.Y, roi.Width, roi.Height, id)
}

// UpdateSettings changes the confidence threshold and alert interval of a camera.
func (r *CameraRepository) UpdateSettings(id int64, threshold float64, alertInterval int) error {
	return r.update(id, "settings", `
		UPDATE cameras SET confidence_threshold = ?, alert_interval = ?
		WHERE id = ?
	`, threshold, alertInterval, id)
}

func (r *CameraRepository) update(id int64, what, query string, args ...interface{}) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(query, args...)
	if err != nil {
		return fmt.Errorf("failed to update camera %s: %w", what, err)
	}
	return checkAffected(result, fmt.Sprintf("camera %d", id))
}

// Delete removes a camera and its intrusion logs in a single transaction.
func (r *CameraRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Logs first, they reference the camera.
	if _, err := tx.Exec(`DELETE FROM intrusion_logs WHERE camera_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete intrusion logs: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM cameras WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete camera: %w", err)
	}
	if err := checkAffected(result, fmt.Sprintf("camera %d", id)); err != nil {
		return err
	}

	return tx.Commit()
}
