package stream

import (
	"time"

	"smartsurveil/internal/model"
)

// Frame is a decoded video frame. The worker that obtained a frame owns it
// and closes it once the iteration is done.
type Frame interface {
	Size() (width, height int)
	// Encode returns the frame as JPEG bytes.
	Encode() ([]byte, error)
	Close() error
}

// CaptureSource is an open video source.
type CaptureSource interface {
	// Read returns the next frame, or false when no frame is ready.
	Read() (Frame, bool)
	Close() error
}

// SourceOpener opens capture sources by locator (device index, file, rtsp/http url).
type SourceOpener interface {
	Open(locator string) (CaptureSource, error)
}

// Detection is the outcome of a person detection on a single frame.
// AlertCrop is nil when PersonCount is 0.
type Detection struct {
	PersonCount int
	Annotated   Frame
	AlertCrop   Frame
}

// Detector finds persons within a region of interest.
type Detector interface {
	// Preprocess bounds the frame width to maxWidth keeping the aspect ratio.
	// It may return the input frame unchanged.
	Preprocess(frame Frame, maxWidth int) (Frame, error)
	Detect(frame Frame, roi model.ROI, threshold float64) (Detection, error)
}

// CameraStore loads the current configuration of a camera.
type CameraStore interface {
	GetByID(id int64) (*model.Camera, error)
}

// Persistence records intrusion logs and returns the new row id.
type Persistence interface {
	RecordIntrusion(log *model.IntrusionLog) (int64, error)
}

// ImageStore saves alert images and returns the saved path.
type ImageStore interface {
	SaveAlertImage(cameraID int64, image []byte, ts time.Time) (string, error)
}

// Publisher delivers live events. Implementations must not block.
type Publisher interface {
	PublishFrame(cameraID int64, frame []byte, ts time.Time)
	PublishAlert(event model.AlertEvent)
}

// Notifier dispatches out-of-band alerts. Implementations must not block.
type Notifier interface {
	SendAlert(camera model.Camera, imagePath string, personCount int)
}
