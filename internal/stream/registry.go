package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"smartsurveil/internal/logger"
	"smartsurveil/internal/model"
)

// Options tunes worker timing.
type Options struct {
	MaxFrameWidth     int
	FramePacing       time.Duration
	PausePoll         time.Duration
	EmptyFrameBackoff time.Duration

	// ReconnectAttempts bounds how often opening the source is tried.
	ReconnectAttempts int
	// ReconnectDelay is the wait before the second attempt; it doubles afterwards.
	ReconnectDelay time.Duration

	// Now is the alert clock. Defaults to time.Now.
	Now func() time.Time
}

// Dependencies are the collaborators shared by all workers.
type Dependencies struct {
	Cameras     CameraStore
	Sources     SourceOpener
	Detector    Detector
	Images      ImageStore
	Persistence Persistence
	Publisher   Publisher
	Notifier    Notifier
	Logger      *logger.Logger
}

// Registry owns the running camera workers, at most one per camera id.
type Registry struct {
	deps Dependencies
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	workers  map[int64]*worker
	retiring map[int64]*worker // last stopped worker that has not released its capture yet
	nextGen  uint64
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry creates an empty registry.
func NewRegistry(deps Dependencies, opts Options) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReconnectAttempts < 1 {
		opts.ReconnectAttempts = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:     deps,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		workers:  make(map[int64]*worker),
		retiring: make(map[int64]*worker),
	}
}

// Start launches a worker for cameraID unless one is already registered.
// It reports whether a new worker was started. A camera that no longer
// exists is logged and ignored.
func (r *Registry) Start(cameraID int64) bool {
	if _, err := r.deps.Cameras.GetByID(cameraID); err != nil {
		if errors.Is(err, ErrCameraNotFound) {
			r.deps.Logger.Warning("Camera %d not found, not starting stream", cameraID)
		} else {
			r.deps.Logger.Error("Failed to load camera %d: %v", cameraID, err)
		}
		return false
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	if _, exists := r.workers[cameraID]; exists {
		r.mu.Unlock()
		return false
	}

	r.nextGen++
	ctx, cancel := context.WithCancel(r.ctx)
	w := &worker{
		registry:   r,
		cameraID:   cameraID,
		generation: r.nextGen,
		ctx:        ctx,
		cancel:     cancel,
		prev:       r.retiring[cameraID],
		done:       make(chan struct{}),
	}
	w.setState(StateConnecting)
	r.workers[cameraID] = w
	r.wg.Add(1)
	r.mu.Unlock()

	go w.run()
	return true
}

// Stop removes the worker of cameraID from the registry without waiting
// for it to exit. It reports whether a worker was registered.
func (r *Registry) Stop(cameraID int64) bool {
	return r.detach(cameraID) != nil
}

// StopAndWait stops the worker of cameraID and blocks until its capture
// handle has been released or ctx is done.
func (r *Registry) StopAndWait(ctx context.Context, cameraID int64) error {
	w := r.detach(cameraID)
	if w == nil {
		r.mu.Lock()
		w = r.retiring[cameraID]
		r.mu.Unlock()
	}
	if w == nil {
		return nil
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) detach(cameraID int64) *worker {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, exists := r.workers[cameraID]
	if !exists {
		return nil
	}
	delete(r.workers, cameraID)
	r.retiring[cameraID] = w
	w.cancel()
	return w
}

// StartAll starts a worker for every active camera and returns how many were started.
func (r *Registry) StartAll(cameras []model.Camera) int {
	started := 0
	for _, cam := range cameras {
		if !cam.Active {
			continue
		}
		if r.Start(cam.ID) {
			started++
		}
	}
	r.deps.Logger.Info("Started %d of %d camera stream(s)", started, len(cameras))
	return started
}

// IsRunning reports whether a worker is registered for cameraID.
func (r *Registry) IsRunning(cameraID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.workers[cameraID]
	return exists
}

// State returns the state of the registered worker, or StateStopped.
func (r *Registry) State(cameraID int64) WorkerState {
	r.mu.Lock()
	w, exists := r.workers[cameraID]
	r.mu.Unlock()
	if !exists {
		return StateStopped
	}
	return w.getState()
}

// Shutdown stops every worker and waits for all of them to exit.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	for id, w := range r.workers {
		delete(r.workers, id)
		r.retiring[id] = w
	}
	r.mu.Unlock()
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isCurrent reports whether w still owns its camera slot.
func (r *Registry) isCurrent(w *worker) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, exists := r.workers[w.cameraID]
	return exists && current.generation == w.generation
}

// finish drops every registry reference to w. The capture handle is
// already released when this runs.
func (r *Registry) finish(w *worker) {
	r.mu.Lock()
	if current, exists := r.workers[w.cameraID]; exists && current == w {
		delete(r.workers, w.cameraID)
	}
	if retiring, exists := r.retiring[w.cameraID]; exists && retiring == w {
		delete(r.retiring, w.cameraID)
	}
	r.mu.Unlock()

	w.cancel()
	close(w.done)
	r.wg.Done()
}
