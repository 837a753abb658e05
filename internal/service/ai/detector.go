package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"sync"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/stream"

	"gocv.io/x/gocv"
)

// personClassID is the COCO class id of "person" in SSD MobileNet.
const personClassID = 1

var (
	roiColor    = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	personColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	alertColor  = color.RGBA{R: 0, G: 0, B: 255, A: 0}
)

// Box is a detected person in frame coordinates.
type Box struct {
	Rect       image.Rectangle
	Confidence float64
}

// DetectorService finds persons with an SSD MobileNet network.
type DetectorService struct {
	mu         sync.Mutex // gocv.Net is not safe for concurrent use
	net        gocv.Net
	ready      bool
	modelPath  string
	configPath string
	logger     *logger.Logger
}

var _ stream.Detector = (*DetectorService)(nil)

// NewDetectorService loads the network. If the model files are missing the
// service still works but never reports persons.
func NewDetectorService(cfg *config.Config, logger *logger.Logger) *DetectorService {
	service := &DetectorService{
		modelPath:  cfg.ModelPath,
		configPath: cfg.ConfigPath,
		logger:     logger,
	}

	if err := service.initializeNet(); err != nil {
		service.logger.Warning("Could not initialize detection network, person detection disabled: %v", err)
	}
	return service
}

func (s *DetectorService) initializeNet() error {
	if _, err := os.Stat(s.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", s.modelPath)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s", s.configPath)
	}

	net := gocv.ReadNet(s.modelPath, s.configPath)
	if net.Empty() {
		return fmt.Errorf("failed to load network")
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return fmt.Errorf("failed to set backend: %v", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return fmt.Errorf("failed to set target: %v", err)
	}

	s.net = net
	s.ready = true
	s.logger.Info("Detection network initialized successfully")
	return nil
}

// Ready reports whether the network was loaded.
func (s *DetectorService) Ready() bool {
	return s.ready
}

// Preprocess scales the frame down to maxWidth.
func (s *DetectorService) Preprocess(frame stream.Frame, maxWidth int) (stream.Frame, error) {
	mf, ok := frame.(*MatFrame)
	if !ok {
		return nil, fmt.Errorf("unsupported frame type %T", frame)
	}

	w, h := mf.Size()
	nw, nh := model.FitWidth(w, h, maxWidth)
	if nw == w && nh == h {
		return frame, nil
	}

	resized := gocv.NewMat()
	gocv.Resize(mf.Mat(), &resized, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)
	if resized.Empty() {
		resized.Close()
		return nil, fmt.Errorf("resize to %dx%d failed", nw, nh)
	}
	return NewMatFrame(resized), nil
}

// Detect counts persons inside roi. The annotated frame carries the ROI and
// person boxes; the alert crop is the annotated ROI and is only set when a
// person was found.
func (s *DetectorService) Detect(frame stream.Frame, roi model.ROI, threshold float64) (stream.Detection, error) {
	mf, ok := frame.(*MatFrame)
	if !ok {
		return stream.Detection{}, fmt.Errorf("unsupported frame type %T", frame)
	}

	src := mf.Mat()
	w, h := mf.Size()
	area := roi.Clamp(w, h)

	var boxes []Box
	if !area.Empty() && s.ready {
		var err error
		boxes, err = s.detectPersons(src, area, threshold)
		if err != nil {
			return stream.Detection{}, err
		}
	}

	annotated := src.Clone()
	if err := drawAnnotations(&annotated, area, boxes); err != nil {
		annotated.Close()
		return stream.Detection{}, err
	}

	det := stream.Detection{PersonCount: len(boxes), Annotated: NewMatFrame(annotated)}
	if len(boxes) > 0 {
		crop, err := alertCrop(annotated, area, len(boxes))
		if err != nil {
			det.Annotated.Close()
			return stream.Detection{}, err
		}
		det.AlertCrop = NewMatFrame(crop)
	}
	return det, nil
}

// detectPersons runs the network on the ROI and returns person boxes in
// frame coordinates.
func (s *DetectorService) detectPersons(mat gocv.Mat, area image.Rectangle, threshold float64) ([]Box, error) {
	region := mat.Region(area)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	s.mu.Lock()
	s.net.SetInput(blob, "")
	output := s.net.Forward("")
	s.mu.Unlock()
	defer output.Close()

	if output.Empty() {
		return nil, fmt.Errorf("network returned no output")
	}

	cols, rows := float32(region.Cols()), float32(region.Rows())
	detections := output.Reshape(1, output.Total()/7)
	defer detections.Close()

	var boxes []Box
	for i := 0; i < detections.Rows(); i++ {
		confidence := detections.GetFloatAt(i, 2)
		if float64(confidence) < threshold {
			continue
		}
		if int(detections.GetFloatAt(i, 1)) != personClassID {
			continue
		}

		rect := image.Rect(
			int(detections.GetFloatAt(i, 3)*cols),
			int(detections.GetFloatAt(i, 4)*rows),
			int(detections.GetFloatAt(i, 5)*cols),
			int(detections.GetFloatAt(i, 6)*rows),
		).Add(area.Min).Intersect(area)
		if rect.Empty() {
			continue
		}
		boxes = append(boxes, Box{Rect: rect, Confidence: float64(confidence)})
	}
	return boxes, nil
}

func drawAnnotations(mat *gocv.Mat, area image.Rectangle, boxes []Box) error {
	if !area.Empty() {
		if err := gocv.Rectangle(mat, area, roiColor, 2); err != nil {
			return fmt.Errorf("failed to draw ROI: %v", err)
		}
		if err := gocv.PutText(mat, "ROI", image.Pt(area.Min.X+5, area.Min.Y+20), gocv.FontHersheySimplex, 0.6, roiColor, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}

	for _, box := range boxes {
		if err := gocv.Rectangle(mat, box.Rect, personColor, 2); err != nil {
			return fmt.Errorf("failed to draw rectangle: %v", err)
		}
		label := fmt.Sprintf("person (%.2f)", box.Confidence)
		if err := gocv.PutText(mat, label, image.Pt(box.Rect.Min.X, box.Rect.Min.Y-5), gocv.FontHersheySimplex, 0.5, personColor, 1); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}

	if len(boxes) > 0 {
		if err := gocv.PutText(mat, "INTRUSION DETECTED", image.Pt(10, 30), gocv.FontHersheySimplex, 0.8, alertColor, 2); err != nil {
			return fmt.Errorf("failed to draw text: %v", err)
		}
	}
	return nil
}

// alertCrop copies the ROI out of the annotated frame and stamps it.
func alertCrop(annotated gocv.Mat, area image.Rectangle, count int) (gocv.Mat, error) {
	region := annotated.Region(area)
	crop := region.Clone()
	region.Close()

	label := fmt.Sprintf("INTRUSION: %d person(s)", count)
	if err := gocv.PutText(&crop, label, image.Pt(5, 20), gocv.FontHersheySimplex, 0.5, alertColor, 1); err != nil {
		crop.Close()
		return gocv.Mat{}, fmt.Errorf("failed to draw text: %v", err)
	}
	stamp := time.Now().Format("2006-01-02 15:04:05")
	if err := gocv.PutText(&crop, stamp, image.Pt(5, crop.Rows()-8), gocv.FontHersheySimplex, 0.4, alertColor, 1); err != nil {
		crop.Close()
		return gocv.Mat{}, fmt.Errorf("failed to draw text: %v", err)
	}
	return crop, nil
}

// Close releases the network.
func (s *DetectorService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return nil
	}
	s.ready = false
	return s.net.Close()
}
