package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"smartsurveil/internal/model"
	"smartsurveil/internal/repository/sqlite"
)

// cameraEntry is one camera of the import file. Omitted settings get defaults.
type cameraEntry struct {
	Name                string     `json:"name"`
	URL                 string     `json:"url"`
	Active              *bool      `json:"is_active"`
	DetectionEnabled    *bool      `json:"detection_enabled"`
	ROI                 *model.ROI `json:"roi"`
	ConfidenceThreshold *float64   `json:"confidence_threshold"`
	AlertInterval       *int       `json:"alert_interval"`
}

func main() {
	dbPath := flag.String("db", "data/smartsurveil.db", "Database path")
	camerasFile := flag.String("cameras", "", "JSON file with cameras to import")
	flag.Parse()

	fmt.Printf("Migrating database %s\n", *dbPath)

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewCameraRepository(db)

	if *camerasFile != "" {
		data, err := os.ReadFile(*camerasFile)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *camerasFile, err)
		}
		cameras, skipped, err := parseCameras(data)
		if err != nil {
			log.Fatalf("Failed to parse %s: %v", *camerasFile, err)
		}

		existing, err := repo.GetAll()
		if err != nil {
			log.Fatalf("Failed to list cameras: %v", err)
		}
		known := make(map[string]bool, len(existing))
		for _, c := range existing {
			known[c.URL] = true
		}

		imported := 0
		for i := range cameras {
			if known[cameras[i].URL] {
				fmt.Printf("Skipping %s: %s already registered\n", cameras[i].Name, cameras[i].URL)
				skipped++
				continue
			}
			if _, err := repo.Insert(&cameras[i]); err != nil {
				log.Fatalf("Failed to insert camera %s: %v", cameras[i].Name, err)
			}
			known[cameras[i].URL] = true
			imported++
		}
		fmt.Printf("Imported %d camera(s), skipped %d\n", imported, skipped)
	}

	all, err := repo.GetAll()
	if err != nil {
		log.Fatalf("Failed to list cameras: %v", err)
	}
	fmt.Printf("\nCameras (%d):\n", len(all))
	for _, c := range all {
		fmt.Printf("   - #%d %s (%s) active=%v detection=%v\n", c.ID, c.Name, c.URL, c.Active, c.DetectionEnabled)
	}
}

// parseCameras decodes the import file. Entries without name or url are
// skipped and counted.
func parseCameras(data []byte) ([]model.Camera, int, error) {
	var entries []cameraEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, 0, err
	}

	var cameras []model.Camera
	skipped := 0
	for _, e := range entries {
		name, url := strings.TrimSpace(e.Name), strings.TrimSpace(e.URL)
		if name == "" || url == "" {
			skipped++
			continue
		}

		cam := model.Camera{
			Name:                name,
			URL:                 url,
			Active:              true,
			DetectionEnabled:    true,
			ROI:                 model.DefaultROI,
			ConfidenceThreshold: model.DefaultConfidenceThreshold,
			AlertInterval:       model.DefaultAlertInterval,
		}
		if e.Active != nil {
			cam.Active = *e.Active
		}
		if e.DetectionEnabled != nil {
			cam.DetectionEnabled = *e.DetectionEnabled
		}
		if e.ROI != nil {
			cam.ROI = *e.ROI
		}
		if e.ConfidenceThreshold != nil {
			cam.ConfidenceThreshold = *e.ConfidenceThreshold
		}
		if e.AlertInterval != nil {
			cam.AlertInterval = *e.AlertInterval
		}
		cameras = append(cameras, cam)
	}
	return cameras, skipped, nil
}
