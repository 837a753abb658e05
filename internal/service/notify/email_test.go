package notify

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wneessen/go-mail"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
)

type recorder struct {
	mu   sync.Mutex
	sent []string
}

func (r *recorder) send(ctx context.Context, msg *mail.Msg) error {
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, buf.String())
	return nil
}

func (r *recorder) first() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent[0]
}

func render(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	if _, err := msg.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to render message: %v", err)
	}
	return buf.String()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func enabledConfig() *config.Config {
	return &config.Config{
		SMTPServer:     "smtp.example.com",
		SMTPPort:       587,
		EmailAddress:   "alerts@example.com",
		EmailPassword:  "secret",
		EmailQueueSize: 4,
	}
}

func TestEmailService_SendsQueuedAlert(t *testing.T) {
	rec := &recorder{}
	svc := NewEmailService(enabledConfig(), newTestLogger(t)).WithSender(rec.send)

	img := filepath.Join(t.TempDir(), "camera_1_x.jpg")
	if err := os.WriteFile(img, []byte("jpegdata"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	svc.SendAlert(model.Camera{ID: 1, Name: "Front door"}, img, 2)

	deadline := time.Now().Add(2 * time.Second)
	for rec.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.count() != 1 {
		t.Fatalf("Expected 1 mail, got %d", rec.count())
	}

	sent := rec.first()
	for _, want := range []string{
		"Subject: SmartSurveil Alert - Front door",
		"alerts@example.com",
		"Persons: 2",
		"camera_1_x.jpg",
		"anBlZ2RhdGE=",
	} {
		if !strings.Contains(sent, want) {
			t.Errorf("Expected message to contain %q", want)
		}
	}
}

func TestEmailService_DisabledWithoutCredentials(t *testing.T) {
	rec := &recorder{}
	svc := NewEmailService(&config.Config{}, newTestLogger(t)).WithSender(rec.send)

	if svc.Enabled() {
		t.Fatal("Expected email to be disabled")
	}
	svc.SendAlert(model.Camera{ID: 1}, "", 1)
	if len(svc.queue) != 0 {
		t.Error("Disabled service must not queue alerts")
	}
}

func TestEmailService_SendAlertNeverBlocks(t *testing.T) {
	svc := NewEmailService(enabledConfig(), newTestLogger(t))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			svc.SendAlert(model.Camera{ID: 1}, "", 1)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendAlert blocked on a full queue")
	}
	if len(svc.queue) != 4 {
		t.Errorf("Expected a full queue of 4, got %d", len(svc.queue))
	}
}

func TestEmailService_MissingImageStillSends(t *testing.T) {
	svc := NewEmailService(enabledConfig(), newTestLogger(t))

	msg, err := svc.buildMessage(alert{camera: model.Camera{Name: "yard"}, imagePath: "/nonexistent.jpg", personCount: 1, timestamp: time.Now()})
	if err != nil {
		t.Fatalf("buildMessage failed: %v", err)
	}
	rendered := render(t, msg)
	if strings.Contains(rendered, "attachment") {
		t.Error("Missing image must not be attached")
	}
	if !strings.Contains(rendered, "SmartSurveil Alert - yard") {
		t.Error("Expected the alert subject")
	}
}

func TestEmailService_SendFailureKeepsRunning(t *testing.T) {
	var calls sync.WaitGroup
	calls.Add(2)
	var mu sync.Mutex
	attempts := 0
	send := func(ctx context.Context, msg *mail.Msg) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		calls.Done()
		if n == 1 {
			return context.DeadlineExceeded
		}
		return nil
	}
	svc := NewEmailService(enabledConfig(), newTestLogger(t)).WithSender(send)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	svc.SendAlert(model.Camera{ID: 1, Name: "a"}, "", 1)
	svc.SendAlert(model.Camera{ID: 2, Name: "b"}, "", 1)

	done := make(chan struct{})
	go func() {
		calls.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the second alert to be sent after a failure")
	}
}
