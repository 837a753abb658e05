package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          int
	DatabasePath  string
	LogDirectory  string
	AlertImageDir string
	// Maksymalny rozmiar katalogu z alertami w MB (0 = bez limitu)
	MaxImageDirectorySize int64
	ImagePruneInterval    time.Duration

	ModelPath  string
	ConfigPath string

	MaxFrameWidth     int
	FramePacing       time.Duration
	PausePoll         time.Duration
	EmptyFrameBackoff time.Duration

	ReconnectAttempts int
	ReconnectDelay    time.Duration

	DefaultConfidenceThreshold float64
	DefaultAlertInterval       int

	SMTPServer     string
	SMTPPort       int
	EmailAddress   string
	EmailPassword  string
	EmailQueueSize int

	PublishQueueSize int
}

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnvAsInt("PORT", 5000),
		DatabasePath:          getEnv("DATABASE_PATH", filepath.Join(".", "data", "smartsurveil.db")),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		AlertImageDir:         getEnv("ALERT_IMAGES_DIR", filepath.Join(".", "alerts")),
		MaxImageDirectorySize: getEnvAsInt64("MAX_IMAGE_DIRECTORY_SIZE", 4096),
		ImagePruneInterval:    time.Duration(getEnvAsInt("IMAGE_PRUNE_INTERVAL", 300)) * time.Second,

		ModelPath:  getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath: getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),

		MaxFrameWidth:     getEnvAsInt("FRAME_WIDTH", 640),
		FramePacing:       time.Duration(getEnvAsInt("FRAME_PACING_MS", 33)) * time.Millisecond,
		PausePoll:         time.Duration(getEnvAsInt("PAUSE_POLL_MS", 1000)) * time.Millisecond,
		EmptyFrameBackoff: time.Duration(getEnvAsInt("EMPTY_FRAME_BACKOFF_MS", 100)) * time.Millisecond,

		ReconnectAttempts: getEnvAsInt("CAMERA_RECONNECT_ATTEMPTS", 3),
		ReconnectDelay:    time.Duration(getEnvAsInt("CAMERA_RECONNECT_DELAY", 2)) * time.Second,

		DefaultConfidenceThreshold: getEnvAsFloat("DEFAULT_CONFIDENCE_THRESHOLD", 0.5),
		DefaultAlertInterval:       getEnvAsInt("DEFAULT_ALERT_INTERVAL", 300),

		SMTPServer:     getEnv("SMTP_SERVER", "smtp.gmail.com"),
		SMTPPort:       getEnvAsInt("SMTP_PORT", 587),
		EmailAddress:   getEnv("EMAIL_ADDRESS", ""),
		EmailPassword:  getEnv("EMAIL_PASSWORD", ""),
		EmailQueueSize: getEnvAsInt("EMAIL_QUEUE_SIZE", 16),

		PublishQueueSize: getEnvAsInt("PUBLISH_QUEUE_SIZE", 64),
	}
}

// EmailEnabled reports whether SMTP credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPServer != "" && c.EmailAddress != "" && c.EmailPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
