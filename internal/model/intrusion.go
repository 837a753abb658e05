package model

import "time"

// IntrusionLog is a persisted alert. It is never modified after insertion.
type IntrusionLog struct {
	ID          int64     `json:"id"`
	CameraID    int64     `json:"camera_id"`
	CameraName  string    `json:"camera_name,omitempty"`
	ImagePath   string    `json:"image_path"`
	PersonCount int       `json:"detection_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// AlertEvent is the live notification sent after an intrusion has been logged.
type AlertEvent struct {
	CameraID    int64     `json:"camera_id"`
	CameraName  string    `json:"camera_name"`
	PersonCount int       `json:"person_count"`
	Timestamp   time.Time `json:"timestamp"`
	LogID       int64     `json:"log_id"`
}
