package handler

import (
	"net/http/httptest"
	"testing"

	"smartsurveil/internal/model"
)

func TestCameraID(t *testing.T) {
	tests := []struct {
		value string
		id    int64
		ok    bool
	}{
		{"7", 7, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/api/cameras/x", nil)
		r.SetPathValue("id", tt.value)
		id, ok := cameraID(r)
		if id != tt.id || ok != tt.ok {
			t.Errorf("cameraID(%q) = %d, %v; expected %d, %v", tt.value, id, ok, tt.id, tt.ok)
		}
	}
}

func TestValidROI(t *testing.T) {
	tests := []struct {
		roi   model.ROI
		valid bool
	}{
		{model.DefaultROI, true},
		{model.ROI{X: 2000, Y: 2000, Width: 10, Height: 10}, true},
		{model.ROI{X: -1, Y: 0, Width: 10, Height: 10}, false},
		{model.ROI{X: 0, Y: 0, Width: 0, Height: 10}, false},
		{model.ROI{X: 0, Y: 0, Width: 10, Height: -5}, false},
	}

	for _, tt := range tests {
		if got := validROI(tt.roi); got != tt.valid {
			t.Errorf("validROI(%+v) = %v, expected %v", tt.roi, got, tt.valid)
		}
	}
}

func TestValidSettings(t *testing.T) {
	if !validSettings(0, 0) || !validSettings(1, 3600) {
		t.Error("Boundary settings should be valid")
	}
	if validSettings(1.01, 10) || validSettings(0.5, -1) {
		t.Error("Out of range settings should be invalid")
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if result := atoiDefault(tt.input, tt.def); result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}
