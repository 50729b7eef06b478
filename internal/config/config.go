package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App            AppConfig
	Services       ServicesConfig
	Storage        StorageConfig
	Camera         CameraConfig
	Catalog        CatalogConfig
	Recommendation RecommendationConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	ServiceName        string
	LogFilePath        string
	AuditLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	SignupPolicy       string // "auto_login" or "require_login"
}

type ServicesConfig struct {
	IdentityURL    string // POST /upload
	RecommenderURL string // POST /predict
	Timeout        time.Duration
}

type StorageConfig struct {
	Driver        string // "disk" or "http"
	DiskDir       string
	PublicBaseURL string
	HTTPEndpoint  string
}

type CameraConfig struct {
	Driver       string // "file"
	StillPath    string
	PreviewDelay time.Duration
}

type CatalogConfig struct {
	Source string // local path or http(s) URL
}

type RecommendationConfig struct {
	DefaultCount int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "8080"),
			Environment:        getEnv("GO_ENV", "development"),
			ServiceName:        getEnv("SERVICE_NAME", "smart-supermarket-kiosk"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/kiosk.log"),
			AuditLogFilePath:   getEnv("AUDIT_LOG_FILE_PATH", "logs/journey.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			SignupPolicy:       getEnv("SIGNUP_POLICY", "auto_login"),
		},
		Services: ServicesConfig{
			IdentityURL:    getEnv("IDENTITY_SERVICE_URL", "http://127.0.0.1:5001/upload"),
			RecommenderURL: getEnv("RECOMMENDER_SERVICE_URL", "http://127.0.0.1:5525/predict"),
			Timeout:        getEnvAsDuration("SERVICE_TIMEOUT", 60*time.Second),
		},
		Storage: StorageConfig{
			Driver:        getEnv("STORAGE_DRIVER", "disk"),
			DiskDir:       getEnv("STORAGE_DISK_DIR", "./uploads"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", "http://localhost:8080/uploads"),
			HTTPEndpoint:  getEnv("STORAGE_HTTP_ENDPOINT", ""),
		},
		Camera: CameraConfig{
			Driver:       getEnv("CAMERA_DRIVER", "file"),
			StillPath:    getEnv("CAMERA_STILL_PATH", "./camera/still.jpg"),
			PreviewDelay: getEnvAsDuration("CAMERA_PREVIEW_DELAY", 500*time.Millisecond),
		},
		Catalog: CatalogConfig{
			Source: getEnv("CATALOG_SOURCE", "./data/top_50_aisles.csv"),
		},
		Recommendation: RecommendationConfig{
			DefaultCount: getEnvAsInt("RECOMMENDATION_DEFAULT_N", 10),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
