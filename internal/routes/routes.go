package routes

import (
	"net/http"

	"smartsurveil/internal/config"
	"smartsurveil/internal/handler"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/repository"
	"smartsurveil/internal/service/websocket"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Cameras    repository.CameraRepository
	Intrusions repository.IntrusionRepository
	Streams    handler.StreamController
	Images     handler.AlertImages
	Hub        *websocket.HubService
}

// SetupRoutes registers the camera control API, intrusion logs, alert
// images, the live viewer websocket and the log endpoints.
func SetupRoutes(d Dependencies) http.Handler {
	mux := http.NewServeMux()

	// Cameras
	mux.HandleFunc("GET /api/cameras", handler.ListCamerasHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("POST /api/cameras", handler.AddCameraHandler(d.Cameras, d.Streams, d.Config, d.Logger))
	mux.HandleFunc("GET /api/cameras/{id}", handler.GetCameraHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("DELETE /api/cameras/{id}", handler.DeleteCameraHandler(d.Cameras, d.Intrusions, d.Streams, d.Images, d.Logger))
	mux.HandleFunc("POST /api/cameras/{id}/start", handler.StartCameraHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("POST /api/cameras/{id}/toggle", handler.ToggleCameraHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("POST /api/cameras/{id}/detection", handler.ToggleDetectionHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("PUT /api/cameras/{id}/roi", handler.UpdateROIHandler(d.Cameras, d.Streams, d.Logger))
	mux.HandleFunc("PUT /api/cameras/{id}/settings", handler.UpdateSettingsHandler(d.Cameras, d.Streams, d.Logger))

	// Intrusions
	mux.HandleFunc("GET /api/intrusions", handler.IntrusionLogsHandler(d.Intrusions, d.Logger))
	mux.HandleFunc("GET /api/alerts/{name}", handler.AlertImageHandler(d.Images))

	// Live view
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(d.Hub, d.Logger))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(d.Logger))
	mux.HandleFunc("POST /logs/{level}/clear", handler.ClearLogsHandler(d.Logger))

	return mux
}
