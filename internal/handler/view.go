package handler

import (
	"net/http"
	"strconv"

	"smartsurveil/internal/logger"
	"smartsurveil/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ViewWebsocketHandler subscribes a viewer to live frames and alerts.
// The optional camera_id query limits frames to one camera.
func ViewWebsocketHandler(hub *websocket.HubService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cameraID int64
		if raw := r.URL.Query().Get("camera_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id < 0 {
				writeError(w, http.StatusBadRequest, "invalid camera_id")
				return
			}
			cameraID = id
		}

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		logger.Info("Viewer connected (camera %d)", cameraID)
		hub.ServeClient(connection, cameraID)
	}
}
