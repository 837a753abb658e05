package stream

import (
	"errors"

	"smartsurveil/internal/repository"
)

var (
	// ErrCameraNotFound means the camera was deleted from the store.
	ErrCameraNotFound = repository.ErrNotFound
	// ErrConnect means the capture source could not be opened.
	ErrConnect = errors.New("capture source unreachable")
	// ErrNoFrame means no frame was ready this tick.
	ErrNoFrame = errors.New("no frame available")
	// ErrDetection wraps detector failures, panics included.
	ErrDetection = errors.New("detection failed")
	// ErrAlert wraps failures while saving or logging an alert.
	ErrAlert = errors.New("alert not recorded")

	errRetired = errors.New("worker retired")
)

// shouldContinue decides whether the worker loop survives err.
func shouldContinue(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, errRetired), errors.Is(err, ErrCameraNotFound):
		return false
	default:
		return true
	}
}
