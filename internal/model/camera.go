package model

import "time"

const (
	DefaultConfidenceThreshold = 0.5
	DefaultAlertInterval       = 300
)

// Camera represents a camera record together with its detection settings.
type Camera struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	URL                 string    `json:"url"`
	Active              bool      `json:"is_active"`
	DetectionEnabled    bool      `json:"detection_enabled"`
	ROI                 ROI       `json:"roi"`
	ConfidenceThreshold float64   `json:"confidence_threshold"`
	AlertInterval       int       `json:"alert_interval"` // seconds
	CreatedAt           time.Time `json:"created_at"`
}

// AlertIntervalDuration returns the configured minimum time between emitted alerts.
func (c *Camera) AlertIntervalDuration() time.Duration {
	if c.AlertInterval < 0 {
		return 0
	}
	return time.Duration(c.AlertInterval) * time.Second
}

// Threshold returns the confidence threshold clamped to [0,1].
func (c *Camera) Threshold() float64 {
	switch {
	case c.ConfidenceThreshold < 0:
		return 0
	case c.ConfidenceThreshold > 1:
		return 1
	}
	return c.ConfidenceThreshold
}
