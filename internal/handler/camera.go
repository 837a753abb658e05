package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/repository"
)

// StopTimeout bounds how long deleting a camera waits for its capture to be released.
const StopTimeout = 5 * time.Second

// CameraView is a camera together with the state of its worker.
type CameraView struct {
	model.Camera
	Running bool   `json:"running"`
	State   string `json:"state"`
}

type cameraRequest struct {
	Name                string     `json:"name"`
	URL                 string     `json:"url"`
	Active              *bool      `json:"is_active"`
	DetectionEnabled    *bool      `json:"detection_enabled"`
	ROI                 *model.ROI `json:"roi"`
	ConfidenceThreshold *float64   `json:"confidence_threshold"`
	AlertInterval       *int       `json:"alert_interval"`
}

type settingsRequest struct {
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	AlertInterval       int     `json:"alert_interval"`
}

func view(cam model.Camera, streams StreamController) CameraView {
	return CameraView{
		Camera:  cam,
		Running: streams.IsRunning(cam.ID),
		State:   streams.State(cam.ID).String(),
	}
}

func validROI(roi model.ROI) bool {
	return roi.X >= 0 && roi.Y >= 0 && roi.Width > 0 && roi.Height > 0
}

func validSettings(threshold float64, interval int) bool {
	return threshold >= 0 && threshold <= 1 && interval >= 0
}

// ListCamerasHandler returns every camera with its worker state.
func ListCamerasHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := cameras.GetAll()
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}

		views := make([]CameraView, 0, len(all))
		for _, cam := range all {
			views = append(views, view(cam, streams))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

// GetCameraHandler returns a single camera.
func GetCameraHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view(*cam, streams))
	}
}

// AddCameraHandler stores a camera and starts streaming it when active.
func AddCameraHandler(cameras repository.CameraRepository, streams StreamController, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cameraRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		req.URL = strings.TrimSpace(req.URL)
		if req.Name == "" || req.URL == "" {
			writeError(w, http.StatusBadRequest, "name and url are required")
			return
		}

		cam := model.Camera{
			Name:                req.Name,
			URL:                 req.URL,
			Active:              true,
			DetectionEnabled:    true,
			ROI:                 model.DefaultROI,
			ConfidenceThreshold: cfg.DefaultConfidenceThreshold,
			AlertInterval:       cfg.DefaultAlertInterval,
		}
		if req.Active != nil {
			cam.Active = *req.Active
		}
		if req.DetectionEnabled != nil {
			cam.DetectionEnabled = *req.DetectionEnabled
		}
		if req.ROI != nil {
			cam.ROI = *req.ROI
		}
		if req.ConfidenceThreshold != nil {
			cam.ConfidenceThreshold = *req.ConfidenceThreshold
		}
		if req.AlertInterval != nil {
			cam.AlertInterval = *req.AlertInterval
		}
		if !validROI(cam.ROI) {
			writeError(w, http.StatusBadRequest, "invalid roi")
			return
		}
		if !validSettings(cam.ConfidenceThreshold, cam.AlertInterval) {
			writeError(w, http.StatusBadRequest, "confidence_threshold must be within [0,1] and alert_interval >= 0")
			return
		}

		id, err := cameras.Insert(&cam)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}
		cam.ID = id
		logger.Info("Camera %d (%s) added", id, cam.Name)

		if cam.Active {
			streams.Start(id)
		}
		writeJSON(w, http.StatusCreated, view(cam, streams))
	}
}

// StartCameraHandler starts the worker of an existing camera. Starting a
// running camera is a no-op.
func StartCameraHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}

		started := streams.Start(id)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"started": started,
			"camera":  view(*cam, streams),
		})
	}
}

// ToggleCameraHandler flips the active flag. An inactive camera keeps its
// worker, which pauses until the camera is activated again.
func ToggleCameraHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}

		cam.Active = !cam.Active
		if err := cameras.UpdateStatus(id, cam.Active); err != nil {
			writeRepoError(w, logger, err)
			return
		}
		if cam.Active {
			streams.Start(id)
		}
		logger.Info("Camera %d active=%v", id, cam.Active)
		writeJSON(w, http.StatusOK, view(*cam, streams))
	}
}

// ToggleDetectionHandler flips person detection for a camera.
func ToggleDetectionHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}

		cam.DetectionEnabled = !cam.DetectionEnabled
		if err := cameras.UpdateDetection(id, cam.DetectionEnabled); err != nil {
			writeRepoError(w, logger, err)
			return
		}
		logger.Info("Camera %d detection=%v", id, cam.DetectionEnabled)
		writeJSON(w, http.StatusOK, view(*cam, streams))
	}
}

// UpdateROIHandler replaces the region of interest.
func UpdateROIHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		var roi model.ROI
		if err := json.NewDecoder(r.Body).Decode(&roi); err != nil || !validROI(roi) {
			writeError(w, http.StatusBadRequest, "invalid roi")
			return
		}

		if err := cameras.UpdateROI(id, roi); err != nil {
			writeRepoError(w, logger, err)
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view(*cam, streams))
	}
}

// UpdateSettingsHandler sets the confidence threshold and alert interval.
func UpdateSettingsHandler(cameras repository.CameraRepository, streams StreamController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		var req settingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if !validSettings(req.ConfidenceThreshold, req.AlertInterval) {
			writeError(w, http.StatusBadRequest, "confidence_threshold must be within [0,1] and alert_interval >= 0")
			return
		}

		if err := cameras.UpdateSettings(id, req.ConfidenceThreshold, req.AlertInterval); err != nil {
			writeRepoError(w, logger, err)
			return
		}
		cam, err := cameras.GetByID(id)
		if err != nil {
			writeRepoError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view(*cam, streams))
	}
}

// DeleteCameraHandler stops the worker, waits for the capture to be
// released, then deletes the camera, its logs and its alert images.
func DeleteCameraHandler(cameras repository.CameraRepository, intrusions repository.IntrusionRepository,
	streams StreamController, images AlertImages, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := cameraID(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid camera id")
			return
		}
		if _, err := cameras.GetByID(id); err != nil {
			writeRepoError(w, logger, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), StopTimeout)
		defer cancel()
		if err := streams.StopAndWait(ctx, id); err != nil {
			logger.Error("Camera %d: capture not released, delete aborted: %v", id, err)
			writeError(w, http.StatusServiceUnavailable, "camera stream did not stop in time, try again")
			return
		}

		paths, err := intrusions.GetImagePathsByCamera(id)
		if err != nil {
			logger.Error("Error listing alert images of camera %d: %v", id, err)
		}

		if err := cameras.Delete(id); err != nil {
			writeRepoError(w, logger, err)
			return
		}
		removed := images.Remove(paths...)
		logger.Info("Camera %d deleted, %d alert image(s) removed", id, removed)

		w.WriteHeader(http.StatusNoContent)
	}
}
