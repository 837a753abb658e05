package handler

import (
	"net/http"
	"strconv"

	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/repository"
)

// IntrusionLogsHandler lists recent intrusion logs, optionally for one camera.
func IntrusionLogsHandler(intrusions repository.IntrusionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := atoiDefault(q.Get("limit"), 50)

		var logs []model.IntrusionLog
		var err error
		if raw := q.Get("camera_id"); raw != "" {
			id, perr := strconv.ParseInt(raw, 10, 64)
			if perr != nil {
				writeError(w, http.StatusBadRequest, "invalid camera_id")
				return
			}
			logs, err = intrusions.GetByCamera(id, limit)
		} else {
			logs, err = intrusions.GetRecent(limit)
		}
		if err != nil {
			logger.Error("Error querying intrusion logs: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if logs == nil {
			logs = []model.IntrusionLog{}
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

// AlertImageHandler serves a stored alert image by file name.
func AlertImageHandler(images AlertImages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, err := images.Resolve(r.PathValue("name"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}
