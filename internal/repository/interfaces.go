package repository

import (
	"errors"

	"smartsurveil/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CameraRepository defines the interface for camera configuration storage.
type CameraRepository interface {
	// Create operations
	Insert(cam *model.Camera) (int64, error)

	// Read operations
	GetByID(id int64) (*model.Camera, error)
	GetAll() ([]model.Camera, error)

	// Update operations
	UpdateStatus(id int64, active bool) error
	UpdateDetection(id int64, enabled bool) error
	UpdateROI(id int64, roi model.ROI) error
	UpdateSettings(id int64, threshold float64, alertInterval int) error

	// Delete removes the camera together with its intrusion logs.
	Delete(id int64) error
}

// IntrusionRepository defines the interface for intrusion log storage.
type IntrusionRepository interface {
	RecordIntrusion(log *model.IntrusionLog) (int64, error)
	GetRecent(limit int) ([]model.IntrusionLog, error)
	GetByCamera(cameraID int64, limit int) ([]model.IntrusionLog, error)
	GetImagePathsByCamera(cameraID int64) ([]string, error)
}
