package capture

import (
	"fmt"
	"sync"

	"smartsurveil/internal/service/ai"
	"smartsurveil/internal/stream"

	"gocv.io/x/gocv"
)

// Opener opens cameras through OpenCV. Numeric locators are device
// indexes, anything else is handed to the backend as a file or URL.
type Opener struct{}

var _ stream.SourceOpener = Opener{}

func (Opener) Open(locator string) (stream.CaptureSource, error) {
	vc, err := gocv.OpenVideoCapture(locator)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("video capture is not opened")
	}
	// Keep latency low on network streams.
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	return &GocvSource{capture: vc}, nil
}

// GocvSource is an open OpenCV capture.
type GocvSource struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	closed  bool
}

// Read grabs the next frame. An empty read is reported as no frame.
func (s *GocvSource) Read() (stream.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, false
	}
	return ai.NewMatFrame(mat), true
}

// Close releases the capture. Safe to call more than once.
func (s *GocvSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.capture.Close()
}
