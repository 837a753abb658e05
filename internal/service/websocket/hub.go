package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/stream"

	"github.com/gorilla/websocket"
)

const (
	MessageCameraFrame       = "camera_frame"
	MessageIntrusionDetected = "intrusion_detected"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	clientSendSize = 16
)

type FrameMessage struct {
	Type      string    `json:"type"`
	CameraID  int64     `json:"camera_id"`
	Frame     string    `json:"frame"`
	Timestamp time.Time `json:"timestamp"`
}

type AlertMessage struct {
	Type        string    `json:"type"`
	CameraID    int64     `json:"camera_id"`
	CameraName  string    `json:"camera_name"`
	PersonCount int       `json:"person_count"`
	Timestamp   time.Time `json:"timestamp"`
	LogID       int64     `json:"log_id"`
}

// envelope is a serialized message plus the camera it belongs to.
// Alerts go to every viewer regardless of their camera filter.
type envelope struct {
	cameraID int64
	alert    bool
	data     []byte
}

// Client is one connected viewer. A zero cameraID receives all cameras.
type Client struct {
	conn     *websocket.Conn
	cameraID int64
	send     chan []byte
}

// HubService fans live frames and alerts out to websocket viewers.
type HubService struct {
	clients    map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

var _ stream.Publisher = (*HubService)(nil)

func NewHubService(cfg *config.Config, logger *logger.Logger) *HubService {
	size := cfg.PublishQueueSize
	if size <= 0 {
		size = 64
	}
	return &HubService{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan envelope, size),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run dispatches messages until ctx is done, then disconnects every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Client disconnected. Total: %d", count)

		case msg := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if !msg.alert && client.cameraID != 0 && client.cameraID != msg.cameraID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow viewer: drop this frame for it.
				}
			}
			h.mutex.Unlock()
		}
	}
}

// PublishFrame queues a JPEG frame for viewers. Frames are dropped when the queue is full.
func (h *HubService) PublishFrame(cameraID int64, frame []byte, ts time.Time) {
	data, err := json.Marshal(FrameMessage{
		Type:      MessageCameraFrame,
		CameraID:  cameraID,
		Frame:     base64.StdEncoding.EncodeToString(frame),
		Timestamp: ts,
	})
	if err != nil {
		h.logger.Error("Error encoding frame message: %v", err)
		return
	}
	h.enqueue(envelope{cameraID: cameraID, data: data})
}

// PublishAlert queues an intrusion event for all viewers.
func (h *HubService) PublishAlert(event model.AlertEvent) {
	data, err := json.Marshal(AlertMessage{
		Type:        MessageIntrusionDetected,
		CameraID:    event.CameraID,
		CameraName:  event.CameraName,
		PersonCount: event.PersonCount,
		Timestamp:   event.Timestamp,
		LogID:       event.LogID,
	})
	if err != nil {
		h.logger.Error("Error encoding alert message: %v", err)
		return
	}
	if !h.enqueue(envelope{cameraID: event.CameraID, alert: true, data: data}) {
		h.logger.Warning("Broadcast queue full, alert for camera %d not delivered live", event.CameraID)
	}
}

func (h *HubService) enqueue(msg envelope) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		return false
	}
}

// ServeClient registers conn and pumps messages to it until it disconnects.
// It blocks for the lifetime of the connection.
func (h *HubService) ServeClient(conn *websocket.Conn, cameraID int64) {
	client := &Client{conn: conn, cameraID: cameraID, send: make(chan []byte, clientSendSize)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	h.readPump(client)
}

// readPump discards incoming messages and detects disconnects.
func (h *HubService) readPump(client *Client) {
	defer func() {
		select {
		case h.unregister <- client:
		case <-h.done:
		}
		client.conn.Close()
	}()

	client.conn.SetReadLimit(512)
	client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warning("Websocket read error: %v", err)
			}
			return
		}
	}
}

func (h *HubService) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("Error sending message: %v", err)
				return
			}
		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
