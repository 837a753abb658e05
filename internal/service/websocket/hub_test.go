package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()
	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	hub := NewHubService(&config.Config{PublishQueueSize: 8}, l)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		id, _ := strconv.ParseInt(r.URL.Query().Get("camera_id"), 10, 64)
		hub.ServeClient(conn, id)
	}))

	t.Cleanup(func() {
		cancel()
		srv.Close()
		l.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients, have %d", n, hub.GetClientCount())
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Invalid JSON %q: %v", data, err)
	}
	return msg
}

func TestHub_PublishFrame(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "")
	waitForClients(t, hub, 1)

	hub.PublishFrame(4, []byte("jpeg"), time.Now())

	msg := readMessage(t, conn)
	if msg["type"] != MessageCameraFrame {
		t.Errorf("Expected %s, got %v", MessageCameraFrame, msg["type"])
	}
	if msg["camera_id"] != float64(4) {
		t.Errorf("Expected camera_id 4, got %v", msg["camera_id"])
	}
	if msg["frame"] != base64.StdEncoding.EncodeToString([]byte("jpeg")) {
		t.Errorf("Unexpected frame payload %v", msg["frame"])
	}
}

func TestHub_CameraFilter(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "?camera_id=2")
	waitForClients(t, hub, 1)

	hub.PublishFrame(1, []byte("other"), time.Now())
	hub.PublishAlert(model.AlertEvent{CameraID: 1, CameraName: "gate", PersonCount: 2, Timestamp: time.Now(), LogID: 9})
	hub.PublishFrame(2, []byte("mine"), time.Now())

	msg := readMessage(t, conn)
	if msg["type"] != MessageIntrusionDetected {
		t.Fatalf("Expected alert first, got %v", msg["type"])
	}
	if msg["camera_name"] != "gate" || msg["person_count"] != float64(2) || msg["log_id"] != float64(9) {
		t.Errorf("Unexpected alert payload %v", msg)
	}

	msg = readMessage(t, conn)
	if msg["type"] != MessageCameraFrame || msg["camera_id"] != float64(2) {
		t.Errorf("Expected frame of camera 2, got %v", msg)
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv, "")
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Close()

	// Run is not started, so nothing drains the queue.
	hub := NewHubService(&config.Config{PublishQueueSize: 2}, l)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.PublishFrame(1, []byte("x"), time.Now())
		}
		hub.PublishAlert(model.AlertEvent{CameraID: 1})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publishing blocked on a full queue")
	}
}
