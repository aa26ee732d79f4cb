package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	Gemini  GeminiConfig
	Archive ArchiveConfig
	Media   MediaConfig

	TurnTimeout  time.Duration
	SceneTimeout time.Duration
	ImageTimeout time.Duration
}

type GeminiConfig struct {
	APIKey     string
	TurnModel  string
	ImageModel string
}

type ArchiveConfig struct {
	Path        string
	PostgresDSN string
}

type MediaConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Offline reports whether the server should run against fake clients
// instead of the Gemini API.
func (c *Config) Offline() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), "offline")
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8082", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: *port,
		Env:  env,
		Gemini: GeminiConfig{
			APIKey:     strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			TurnModel:  strings.TrimSpace(os.Getenv("TURN_MODEL")),
			ImageModel: strings.TrimSpace(os.Getenv("IMAGE_MODEL")),
		},
		Archive: ArchiveConfig{
			Path:        firstNonEmpty(strings.TrimSpace(os.Getenv("ARCHIVE_PATH")), "data/archive.json"),
			PostgresDSN: strings.TrimSpace(os.Getenv("ARCHIVE_PG_DSN")),
		},
		Media:        loadMediaConfig(env),
		TurnTimeout:  durationEnv("TURN_TIMEOUT", 12*time.Second),
		SceneTimeout: durationEnv("SCENE_TIMEOUT", 12*time.Second),
		ImageTimeout: durationEnv("IMAGE_TIMEOUT", 20*time.Second),
	}, nil
}

func loadMediaConfig(env string) MediaConfig {
	endpoint := resolveMediaEndpoint(env)
	return MediaConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("MEDIA_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("MEDIA_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("MEDIA_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("MEDIA_S3_BUCKET")), "simulearn-media"),
		UseSSL:    resolveMediaUseSSL(env),
	}
}

func resolveMediaEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return strings.TrimSpace(os.Getenv("MEDIA_MINIO_ENDPOINT"))
	}
	return strings.TrimSpace(os.Getenv("MEDIA_S3_ENDPOINT"))
}

func resolveMediaUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv("MEDIA_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
