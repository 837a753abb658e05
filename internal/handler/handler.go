package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"smartsurveil/internal/logger"
	"smartsurveil/internal/repository"
	"smartsurveil/internal/stream"
)

// StreamController is the control surface of the stream registry.
type StreamController interface {
	Start(cameraID int64) bool
	Stop(cameraID int64) bool
	StopAndWait(ctx context.Context, cameraID int64) error
	IsRunning(cameraID int64) bool
	State(cameraID int64) stream.WorkerState
}

// AlertImages gives access to stored alert images.
type AlertImages interface {
	Resolve(name string) (string, error)
	Remove(paths ...string) int
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeRepoError maps repository errors to HTTP statuses.
func writeRepoError(w http.ResponseWriter, logger *logger.Logger, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "camera not found")
		return
	}
	logger.Error("Database error: %v", err)
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

// cameraID parses the {id} path value.
func cameraID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// atoiDefault parses a positive integer, falling back to def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
