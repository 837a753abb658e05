package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
	"smartsurveil/internal/repository"
)

// ========================================
// Frames and capture sources
// ========================================

type fakeFrame struct {
	width, height int
	tag           string
	closed        atomic.Bool
}

func newFakeFrame(tag string) *fakeFrame {
	return &fakeFrame{width: 640, height: 480, tag: tag}
}

func (f *fakeFrame) Size() (int, int) { return f.width, f.height }

func (f *fakeFrame) Encode() ([]byte, error) { return []byte(f.tag), nil }

func (f *fakeFrame) Close() error {
	f.closed.Store(true)
	return nil
}

// openTracker counts concurrently open capture handles per camera locator.
type openTracker struct {
	mu      sync.Mutex
	open    map[string]int
	maxOpen map[string]int
	opens   map[string]int
}

func newOpenTracker() *openTracker {
	return &openTracker{open: map[string]int{}, maxOpen: map[string]int{}, opens: map[string]int{}}
}

func (t *openTracker) acquire(locator string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[locator]++
	t.opens[locator]++
	if t.open[locator] > t.maxOpen[locator] {
		t.maxOpen[locator] = t.open[locator]
	}
}

func (t *openTracker) release(locator string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[locator]--
}

func (t *openTracker) stats(locator string) (open, maxOpen, opens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open[locator], t.maxOpen[locator], t.opens[locator]
}

type fakeSource struct {
	locator string
	tracker *openTracker
	// next returns the frame for read number n (0-based), or nil for no frame.
	next   func(n int) Frame
	reads  atomic.Int64
	closed atomic.Bool
}

func (s *fakeSource) Read() (Frame, bool) {
	n := int(s.reads.Add(1) - 1)
	if s.next == nil {
		return newFakeFrame("raw"), true
	}
	f := s.next(n)
	if f == nil {
		return nil, false
	}
	return f, true
}

func (s *fakeSource) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.tracker.release(s.locator)
	}
	return nil
}

type fakeOpener struct {
	tracker  *openTracker
	failures atomic.Int64 // remaining failing opens
	openErr  error
	next     func(n int) Frame
	attempts atomic.Int64
	// delay simulates a slow connect.
	delay time.Duration

	mu      sync.Mutex
	sources []*fakeSource
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{tracker: newOpenTracker()}
}

func (o *fakeOpener) Open(locator string) (CaptureSource, error) {
	o.attempts.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if o.openErr != nil {
		return nil, o.openErr
	}
	if o.failures.Load() > 0 {
		o.failures.Add(-1)
		return nil, errors.New("connection refused")
	}

	o.tracker.acquire(locator)
	s := &fakeSource{locator: locator, tracker: o.tracker, next: o.next}

	o.mu.Lock()
	o.sources = append(o.sources, s)
	o.mu.Unlock()
	return s, nil
}

func (o *fakeOpener) lastSource() *fakeSource {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sources) == 0 {
		return nil
	}
	return o.sources[len(o.sources)-1]
}

func (o *fakeOpener) sourceCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sources)
}

// ========================================
// Detector
// ========================================

type fakeDetector struct {
	persons          atomic.Int64
	fail             atomic.Bool
	panics           atomic.Bool
	preprocessPanics atomic.Bool
	calls            atomic.Int64
}

func (d *fakeDetector) Preprocess(frame Frame, maxWidth int) (Frame, error) {
	if d.preprocessPanics.Load() {
		panic("resize failed")
	}
	return frame, nil
}

func (d *fakeDetector) Detect(frame Frame, roi model.ROI, threshold float64) (Detection, error) {
	d.calls.Add(1)
	if d.panics.Load() {
		panic("model exploded")
	}
	if d.fail.Load() {
		return Detection{}, errors.New("inference error")
	}

	w, h := frame.Size()
	if roi.Clamp(w, h).Empty() {
		return Detection{Annotated: newFakeFrame("annotated")}, nil
	}

	n := int(d.persons.Load())
	det := Detection{PersonCount: n, Annotated: newFakeFrame("annotated")}
	if n > 0 {
		det.AlertCrop = newFakeFrame("crop")
	}
	return det, nil
}

// ========================================
// Stores, publisher, notifier
// ========================================

type memCameraStore struct {
	mu      sync.Mutex
	cameras map[int64]model.Camera
}

func newMemCameraStore(cams ...model.Camera) *memCameraStore {
	s := &memCameraStore{cameras: map[int64]model.Camera{}}
	for _, c := range cams {
		s.cameras[c.ID] = c
	}
	return s
}

func (s *memCameraStore) GetByID(id int64) (*model.Camera, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cameras[id]
	if !ok {
		return nil, fmt.Errorf("camera %d: %w", id, repository.ErrNotFound)
	}
	return &c, nil
}

func (s *memCameraStore) update(id int64, fn func(c *model.Camera)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cameras[id]
	fn(&c)
	s.cameras[id] = c
}

func (s *memCameraStore) delete(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cameras, id)
}

// eventLog records side effects in the order they happened.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type fakeImages struct {
	events *eventLog
	count  atomic.Int64
}

func (f *fakeImages) SaveAlertImage(cameraID int64, image []byte, ts time.Time) (string, error) {
	n := f.count.Add(1)
	f.events.add("image")
	return fmt.Sprintf("alerts/camera_%d_%d.jpg", cameraID, n), nil
}

type fakePersistence struct {
	events *eventLog
	fail   atomic.Bool

	mu   sync.Mutex
	logs []model.IntrusionLog
}

func (p *fakePersistence) RecordIntrusion(log *model.IntrusionLog) (int64, error) {
	if p.fail.Load() {
		return 0, errors.New("database is locked")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	l := *log
	l.ID = int64(len(p.logs) + 1)
	p.logs = append(p.logs, l)
	p.events.add("persist")
	return l.ID, nil
}

func (p *fakePersistence) recorded() []model.IntrusionLog {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.IntrusionLog(nil), p.logs...)
}

type fakePublisher struct {
	events      *eventLog
	framePanics atomic.Bool

	mu     sync.Mutex
	frames map[int64][]string
	alerts []model.AlertEvent
}

func (p *fakePublisher) PublishFrame(cameraID int64, frame []byte, ts time.Time) {
	if p.framePanics.Load() {
		panic("hub closed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frames == nil {
		p.frames = map[int64][]string{}
	}
	p.frames[cameraID] = append(p.frames[cameraID], string(frame))
}

func (p *fakePublisher) PublishAlert(event model.AlertEvent) {
	p.mu.Lock()
	p.alerts = append(p.alerts, event)
	p.mu.Unlock()
	p.events.add("publish")
}

func (p *fakePublisher) frameCount(cameraID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.frames[cameraID])
}

func (p *fakePublisher) lastFrame(cameraID int64) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	frames := p.frames[cameraID]
	if len(frames) == 0 {
		return ""
	}
	return frames[len(frames)-1]
}

func (p *fakePublisher) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

type fakeNotifier struct {
	events *eventLog
	sent   atomic.Int64
	panics atomic.Bool
}

func (n *fakeNotifier) SendAlert(camera model.Camera, imagePath string, personCount int) {
	if n.panics.Load() {
		panic("smtp client crashed")
	}
	n.sent.Add(1)
	n.events.add("notify")
}

// ========================================
// Harness
// ========================================

type harness struct {
	registry  *Registry
	cameras   *memCameraStore
	opener    *fakeOpener
	detector  *fakeDetector
	images    *fakeImages
	persist   *fakePersistence
	publisher *fakePublisher
	notifier  *fakeNotifier
	events    *eventLog
}

func testCamera(id int64) model.Camera {
	return model.Camera{
		ID:                  id,
		Name:                fmt.Sprintf("cam%d", id),
		URL:                 fmt.Sprintf("rtsp://cam%d/stream", id),
		Active:              true,
		DetectionEnabled:    true,
		ROI:                 model.ROI{X: 0, Y: 0, Width: 640, Height: 480},
		ConfidenceThreshold: 0.5,
		AlertInterval:       300,
	}
}

func testOptions() Options {
	return Options{
		MaxFrameWidth:     640,
		FramePacing:       time.Millisecond,
		PausePoll:         5 * time.Millisecond,
		EmptyFrameBackoff: time.Millisecond,
		ReconnectAttempts: 1,
		ReconnectDelay:    time.Millisecond,
	}
}

func newHarness(t *testing.T, opts Options, cams ...model.Camera) *harness {
	t.Helper()

	l, err := logger.NewLogger(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	events := &eventLog{}
	h := &harness{
		cameras:   newMemCameraStore(cams...),
		opener:    newFakeOpener(),
		detector:  &fakeDetector{},
		images:    &fakeImages{events: events},
		persist:   &fakePersistence{events: events},
		publisher: &fakePublisher{events: events},
		notifier:  &fakeNotifier{events: events},
		events:    events,
	}
	h.registry = NewRegistry(Dependencies{
		Cameras:     h.cameras,
		Sources:     h.opener,
		Detector:    h.detector,
		Images:      h.images,
		Persistence: h.persist,
		Publisher:   h.publisher,
		Notifier:    h.notifier,
		Logger:      l,
	}, opts)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := h.registry.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		l.Close()
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
