package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"smartsurveil/internal/config"
	"smartsurveil/internal/logger"

	"github.com/google/uuid"
)

const timestampLayout = "20060102_150405"

// ImageStore keeps alert images on disk and caps the directory size.
type ImageStore struct {
	dir      string
	maxBytes int64
	interval time.Duration
	mu       sync.Mutex
	logger   *logger.Logger
}

// NewImageStore creates the image directory if needed.
func NewImageStore(cfg *config.Config, logger *logger.Logger) (*ImageStore, error) {
	if err := os.MkdirAll(cfg.AlertImageDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{
		dir:      cfg.AlertImageDir,
		maxBytes: cfg.MaxImageDirectorySize * 1024 * 1024,
		interval: cfg.ImagePruneInterval,
		logger:   logger,
	}, nil
}

// Dir returns the directory images are written to.
func (s *ImageStore) Dir() string {
	return s.dir
}

// SaveAlertImage writes a JPEG and returns its path.
func (s *ImageStore) SaveAlertImage(cameraID int64, image []byte, ts time.Time) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty alert image for camera %d", cameraID)
	}

	filename := fmt.Sprintf("camera_%d_%s_%s.jpg", cameraID, ts.Format(timestampLayout), uuid.New().String()[:8])
	fullpath := filepath.Join(s.dir, filename)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(fullpath, image, 0644); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return fullpath, nil
}

// Resolve maps an image file name to its path inside the store.
func (s *ImageStore) Resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid image name: %q", name)
	}
	fullpath := filepath.Join(s.dir, name)
	if _, err := os.Stat(fullpath); err != nil {
		return "", err
	}
	return fullpath, nil
}

// Remove deletes images that live in the store. Paths outside it are ignored.
func (s *ImageStore) Remove(paths ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, p := range paths {
		if filepath.Dir(filepath.Clean(p)) != filepath.Clean(s.dir) {
			s.logger.Warning("Refusing to remove %s outside image directory", p)
			continue
		}
		if err := os.Remove(p); err != nil {
			if !os.IsNotExist(err) {
				s.logger.Error("Error removing image %s: %v", p, err)
			}
			continue
		}
		removed++
	}
	return removed
}

// Run prunes the directory periodically until ctx is done.
func (s *ImageStore) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Prune(); err != nil {
				s.logger.Error("Error pruning alert images: %v", err)
			}
		}
	}
}

// Prune deletes the oldest images until the directory fits the size limit.
// It returns the number of deleted files.
func (s *ImageStore) Prune() (int, error) {
	if s.maxBytes <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read image directory: %w", err)
	}

	type file struct {
		path    string
		size    int64
		modTime time.Time
	}
	var files []file
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".jpg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{filepath.Join(s.dir, e.Name()), info.Size(), info.ModTime()})
		total += info.Size()
	}
	if total <= s.maxBytes {
		return 0, nil
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	deleted := 0
	for _, f := range files {
		if total <= s.maxBytes {
			break
		}
		if err := os.Remove(f.path); err != nil {
			s.logger.Error("Error removing image %s: %v", f.path, err)
			continue
		}
		total -= f.size
		deleted++
	}

	s.logger.Info("Pruned %d alert image(s), directory now %d bytes", deleted, total)
	return deleted, nil
}
