package stream

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"smartsurveil/internal/model"
)

// WorkerState is the lifecycle state of a camera worker.
type WorkerState int32

const (
	StateStopped WorkerState = iota
	StateConnecting
	StateStreaming
	StatePaused
)

func (s WorkerState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StatePaused:
		return "paused"
	default:
		return "stopped"
	}
}

// worker runs the capture/detect/publish loop of one camera.
type worker struct {
	registry   *Registry
	cameraID   int64
	generation uint64

	ctx    context.Context
	cancel context.CancelFunc

	// prev is the previous worker of the same camera; its capture must be
	// released before this worker opens one.
	prev *worker
	done chan struct{}

	state    atomic.Int32
	throttle Throttle
}

func (w *worker) setState(s WorkerState) {
	w.state.Store(int32(s))
}

func (w *worker) getState() WorkerState {
	return WorkerState(w.state.Load())
}

func (w *worker) run() {
	log := w.registry.deps.Logger
	defer w.registry.finish(w)
	defer w.setState(StateStopped)

	source, err := w.connect()
	if err != nil {
		switch {
		case errors.Is(err, errRetired):
		case errors.Is(err, ErrCameraNotFound):
			log.Info("Camera %d: removed before connecting", w.cameraID)
		default:
			log.Error("Camera %d: %v", w.cameraID, err)
		}
		return
	}
	defer w.release(source)

	log.Info("Camera %d: streaming (generation %d)", w.cameraID, w.generation)

	for {
		wait, err := w.step(source)
		if !shouldContinue(err) {
			if errors.Is(err, ErrCameraNotFound) {
				log.Info("Camera %d: deleted, stopping stream", w.cameraID)
			} else {
				log.Info("Camera %d: stream stopped", w.cameraID)
			}
			return
		}
		if err != nil && !errors.Is(err, ErrNoFrame) {
			log.Error("Camera %d: %v", w.cameraID, err)
		}
		if !w.sleep(wait) {
			log.Info("Camera %d: stream stopped", w.cameraID)
			return
		}
	}
}

// connect opens the capture source, retrying with a doubling delay.
func (w *worker) connect() (CaptureSource, error) {
	deps := w.registry.deps
	opts := w.registry.opts

	// Wait even when cancelled; the next worker in line waits on our done.
	if w.prev != nil {
		<-w.prev.done
		w.prev = nil
	}
	if w.ctx.Err() != nil {
		return nil, errRetired
	}

	cam, err := deps.Cameras.GetByID(w.cameraID)
	if err != nil {
		return nil, err
	}

	delay := opts.ReconnectDelay
	var lastErr error
	for attempt := 1; attempt <= opts.ReconnectAttempts; attempt++ {
		if !w.registry.isCurrent(w) {
			return nil, errRetired
		}

		source, err := deps.Sources.Open(cam.URL)
		if err == nil {
			return source, nil
		}
		lastErr = err

		if attempt < opts.ReconnectAttempts {
			deps.Logger.Warning("Camera %d: connect attempt %d/%d failed: %v, retrying in %v",
				w.cameraID, attempt, opts.ReconnectAttempts, err, delay)
			if !w.sleep(delay) {
				return nil, errRetired
			}
			delay *= 2
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempt(s): %v", ErrConnect, cam.URL, opts.ReconnectAttempts, lastErr)
}

func (w *worker) release(source CaptureSource) {
	if err := source.Close(); err != nil {
		w.registry.deps.Logger.Warning("Camera %d: failed to release capture: %v", w.cameraID, err)
	}
}

// sleep waits for d and reports false when the worker was cancelled meanwhile.
func (w *worker) sleep(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-w.ctx.Done():
			return false
		default:
			return true
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// step runs one loop iteration and returns how long to wait before the next.
func (w *worker) step(source CaptureSource) (time.Duration, error) {
	deps := w.registry.deps
	opts := w.registry.opts

	if !w.registry.isCurrent(w) {
		return 0, errRetired
	}

	cam, err := deps.Cameras.GetByID(w.cameraID)
	if err != nil {
		if errors.Is(err, ErrCameraNotFound) {
			return 0, err
		}
		return opts.PausePoll, fmt.Errorf("failed to load camera config: %w", err)
	}

	if !cam.Active {
		w.setState(StatePaused)
		return opts.PausePoll, nil
	}
	w.setState(StateStreaming)

	frame, ok := source.Read()
	if !ok {
		return opts.EmptyFrameBackoff, ErrNoFrame
	}
	defer frame.Close()

	return opts.FramePacing, w.process(cam, frame)
}

// process runs detection and alerting on a frame and publishes the result.
func (w *worker) process(cam *model.Camera, frame Frame) error {
	deps := w.registry.deps
	now := w.registry.opts.Now()

	var errs []error
	current := frame

	var prepared Frame
	err := guard(func() (err error) {
		prepared, err = deps.Detector.Preprocess(frame, w.registry.opts.MaxFrameWidth)
		return err
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: preprocess: %v", ErrDetection, err))
	} else if prepared != nil && prepared != frame {
		defer prepared.Close()
		current = prepared
	}

	if cam.DetectionEnabled && err == nil {
		det, err := w.detect(current, cam)
		if err != nil {
			errs = append(errs, err)
		} else {
			if det.Annotated != nil {
				if det.Annotated != current {
					defer det.Annotated.Close()
				}
				current = det.Annotated
			}
			if det.AlertCrop != nil && det.AlertCrop != current {
				defer det.AlertCrop.Close()
			}

			if det.PersonCount > 0 && w.throttle.Ready(now, cam.AlertIntervalDuration()) {
				if err := w.raiseAlert(cam, det, current, now); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}

	if err := w.publishFrame(current, now); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// detect calls the detector, turning errors and panics into ErrDetection.
func (w *worker) detect(frame Frame, cam *model.Camera) (det Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			det = Detection{}
			err = fmt.Errorf("%w: detector panic: %v", ErrDetection, r)
		}
	}()

	det, err = w.registry.deps.Detector.Detect(frame, cam.ROI, cam.Threshold())
	if err != nil {
		return Detection{}, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	if det.PersonCount < 0 {
		det.PersonCount = 0
	}
	return det, nil
}

// raiseAlert saves and logs the alert, then hands it to the notifier and
// publisher. Nothing is published unless the log row exists.
func (w *worker) raiseAlert(cam *model.Camera, det Detection, annotated Frame, now time.Time) error {
	deps := w.registry.deps

	img := det.AlertCrop
	if img == nil {
		img = annotated
	}
	var data []byte
	err := guard(func() (err error) {
		data, err = img.Encode()
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: encode alert image: %v", ErrAlert, err)
	}

	imagePath, err := deps.Images.SaveAlertImage(cam.ID, data, now)
	if err != nil {
		return fmt.Errorf("%w: save alert image: %v", ErrAlert, err)
	}

	logID, err := deps.Persistence.RecordIntrusion(&model.IntrusionLog{
		CameraID:    cam.ID,
		ImagePath:   imagePath,
		PersonCount: det.PersonCount,
		Timestamp:   now,
	})
	if err != nil {
		return fmt.Errorf("%w: record intrusion: %v", ErrAlert, err)
	}
	w.throttle.Mark(now)

	deps.Logger.Info("Camera %d (%s): intrusion logged, %d person(s), log %d", cam.ID, cam.Name, det.PersonCount, logID)

	// The log row exists; notify and publish failures are reported but do
	// not undo the alert.
	var errs []error
	if err := guard(func() error {
		deps.Notifier.SendAlert(*cam, imagePath, det.PersonCount)
		return nil
	}); err != nil {
		errs = append(errs, fmt.Errorf("%w: notify: %v", ErrAlert, err))
	}
	if err := guard(func() error {
		deps.Publisher.PublishAlert(model.AlertEvent{
			CameraID:    cam.ID,
			CameraName:  cam.Name,
			PersonCount: det.PersonCount,
			Timestamp:   now,
			LogID:       logID,
		})
		return nil
	}); err != nil {
		errs = append(errs, fmt.Errorf("%w: publish alert: %v", ErrAlert, err))
	}
	return errors.Join(errs...)
}

func (w *worker) publishFrame(frame Frame, now time.Time) error {
	var data []byte
	err := guard(func() (err error) {
		data, err = frame.Encode()
		return err
	})
	if err != nil {
		w.registry.deps.Logger.Warning("Camera %d: failed to encode frame: %v", w.cameraID, err)
		return nil
	}
	if err := guard(func() error {
		w.registry.deps.Publisher.PublishFrame(w.cameraID, data, now)
		return nil
	}); err != nil {
		return fmt.Errorf("publish frame: %w", err)
	}
	return nil
}
