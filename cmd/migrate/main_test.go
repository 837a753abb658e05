package main

import (
	"testing"

	"smartsurveil/internal/model"
)

func TestParseCameras(t *testing.T) {
	data := []byte(`[
		{"name": "Front", "url": "rtsp://10.0.0.2/live"},
		{"name": "Webcam", "url": "0", "detection_enabled": false, "alert_interval": 60,
		 "roi": {"x": 10, "y": 10, "width": 200, "height": 100}},
		{"name": "", "url": "rtsp://nameless"},
		{"name": "No url"}
	]`)

	cameras, skipped, err := parseCameras(data)
	if err != nil {
		t.Fatalf("parseCameras failed: %v", err)
	}
	if skipped != 2 {
		t.Errorf("Expected 2 skipped entries, got %d", skipped)
	}
	if len(cameras) != 2 {
		t.Fatalf("Expected 2 cameras, got %d", len(cameras))
	}

	front := cameras[0]
	if !front.Active || !front.DetectionEnabled || front.ROI != model.DefaultROI || front.AlertInterval != model.DefaultAlertInterval {
		t.Errorf("Expected defaults for Front, got %+v", front)
	}

	webcam := cameras[1]
	if webcam.DetectionEnabled || webcam.AlertInterval != 60 || webcam.ROI.Width != 200 {
		t.Errorf("Overrides not applied: %+v", webcam)
	}
}

func TestParseCameras_InvalidJSON(t *testing.T) {
	if _, _, err := parseCameras([]byte(`{not json`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
