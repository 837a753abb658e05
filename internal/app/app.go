package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"
	"smartsurveil/internal/repository/sqlite"
	"smartsurveil/internal/routes"
	"smartsurveil/internal/service/ai"
	"smartsurveil/internal/service/capture"
	"smartsurveil/internal/service/notify"
	"smartsurveil/internal/service/storage"
	"smartsurveil/internal/service/websocket"
	"smartsurveil/internal/stream"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server and workers.
const ShutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	cameras    *sqlite.CameraRepository
	intrusions *sqlite.IntrusionRepository
	images     *storage.ImageStore
	detector   *ai.DetectorService
	hub        *websocket.HubService
	email      *notify.EmailService
	registry   *stream.Registry
	server     *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()

	l, err := logger.NewLogger(cfg.LogDirectory)
	if err != nil {
		return nil, err
	}

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	images, err := storage.NewImageStore(cfg, l)
	if err != nil {
		db.Close()
		l.Close()
		return nil, err
	}

	a := &App{
		config:     cfg,
		logger:     l,
		db:         db,
		cameras:    sqlite.NewCameraRepository(db),
		intrusions: sqlite.NewIntrusionRepository(db),
		images:     images,
		detector:   ai.NewDetectorService(cfg, l),
		hub:        websocket.NewHubService(cfg, l),
		email:      notify.NewEmailService(cfg, l),
	}

	a.registry = stream.NewRegistry(stream.Dependencies{
		Cameras:     a.cameras,
		Sources:     capture.Opener{},
		Detector:    a.detector,
		Images:      a.images,
		Persistence: a.intrusions,
		Publisher:   a.hub,
		Notifier:    a.email,
		Logger:      l,
	}, stream.Options{
		MaxFrameWidth:     cfg.MaxFrameWidth,
		FramePacing:       cfg.FramePacing,
		PausePoll:         cfg.PausePoll,
		EmptyFrameBackoff: cfg.EmptyFrameBackoff,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	})

	a.server = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: routes.SetupRoutes(routes.Dependencies{
			Config:     cfg,
			Logger:     l,
			Cameras:    a.cameras,
			Intrusions: a.intrusions,
			Streams:    a.registry,
			Images:     a.images,
			Hub:        a.hub,
		}),
	}
	return a, nil
}

// Run starts the background services and every active camera, then serves
// HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	bg, stopBackground := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, run := range []func(context.Context){a.hub.Run, a.email.Run, a.images.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(bg)
		}(run)
	}

	cams, err := a.cameras.GetAll()
	if err != nil {
		a.logger.Error("Failed to load cameras: %v", err)
	} else {
		a.registry.StartAll(cams)
	}

	a.logger.Info("SmartSurveil server")
	a.logger.Info("URL: http://localhost:%d", a.config.Port)
	a.logger.Info("Database: %s", a.config.DatabasePath)
	a.logger.Info("Alert images: %s", a.config.AlertImageDir)
	a.logger.Info("AI model: %s (ready: %v)", filepath.Base(a.config.ModelPath), a.detector.Ready())
	a.logger.Info("Email alerts: %v", a.email.Enabled())

	serveErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	case err = <-serveErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	if serr := a.server.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("HTTP shutdown: %v", serr)
	}
	if serr := a.registry.Shutdown(shutdownCtx); serr != nil {
		a.logger.Error("Camera workers did not stop in time: %v", serr)
	}
	stopBackground()
	wg.Wait()

	a.close()
	return err
}

func (a *App) close() {
	if err := a.detector.Close(); err != nil {
		a.logger.Error("Closing detector: %v", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Closing database: %v", err)
	}
	a.logger.Close()
}
