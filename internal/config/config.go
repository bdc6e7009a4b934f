package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Pollination cloud API configuration.
	PollinationURL     string
	PollinationAPIKey  string
	PollinationTimeout time.Duration
	ProjectOwner       string
	ProjectName        string
	RecipeCacheSize    int
	ArtifactFileMatch  string

	// Optional overrides for the bundled JSON defaults.
	DefaultRecipeFile string
	DefaultInputsFile string

	EPWCacheSize int
	SessionTTL   time.Duration

	// Scratch storage for uploads and derived files.
	ScratchDriver      string
	ScratchDir         string
	ScratchS3Bucket    string
	ScratchS3Region    string
	ScratchS3Endpoint  string
	ScratchS3PathStyle bool

	// Activity events.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaActivityTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollinationTimeout, err := parsePositiveDuration("POLLINATION_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	sessionTTL, err := parsePositiveDuration("SESSION_TTL", "2h")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollinationURL:     strings.TrimRight(sharedcfg.EnvOrDefault("POLLINATION_API_URL", "https://api.pollination.cloud"), "/"),
		PollinationAPIKey:  os.Getenv("POLLINATION_API_KEY"),
		PollinationTimeout: pollinationTimeout,
		ProjectOwner:       sharedcfg.EnvOrDefault("PROJECT_OWNER", "ladybug-tools"),
		ProjectName:        sharedcfg.EnvOrDefault("PROJECT_NAME", "demo"),
		RecipeCacheSize:    parsePositiveInt("RECIPE_CACHE_SIZE", 64),
		ArtifactFileMatch:  sharedcfg.EnvOrDefault("ARTIFACT_FILE_MATCH", ".*"),

		DefaultRecipeFile: os.Getenv("DEFAULT_RECIPE_FILE"),
		DefaultInputsFile: os.Getenv("DEFAULT_INPUTS_FILE"),

		EPWCacheSize: parsePositiveInt("EPW_CACHE_SIZE", 16),
		SessionTTL:   sessionTTL,

		ScratchDriver:      strings.ToLower(sharedcfg.EnvOrDefault("SCRATCH_DRIVER", "fs")),
		ScratchDir:         sharedcfg.EnvOrDefault("SCRATCH_DIR", "temp"),
		ScratchS3Bucket:    os.Getenv("SCRATCH_S3_BUCKET"),
		ScratchS3Region:    sharedcfg.EnvOrDefault("SCRATCH_S3_REGION", "us-east-1"),
		ScratchS3Endpoint:  os.Getenv("SCRATCH_S3_ENDPOINT"),
		ScratchS3PathStyle: strings.EqualFold(os.Getenv("SCRATCH_S3_PATH_STYLE"), "true"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaActivityTopic: sharedcfg.EnvOrDefault("KAFKA_ACTIVITY_TOPIC", "early-design-activity"),
	}

	if cfg.ProjectOwner == "" || cfg.ProjectName == "" {
		return nil, errors.New("PROJECT_OWNER and PROJECT_NAME are required")
	}
	switch cfg.ScratchDriver {
	case "fs":
		if cfg.ScratchDir == "" {
			return nil, errors.New("SCRATCH_DIR is required for the fs scratch driver")
		}
	case "s3":
		if cfg.ScratchS3Bucket == "" {
			return nil, errors.New("SCRATCH_S3_BUCKET is required for the s3 scratch driver")
		}
	case "memory":
	default:
		return nil, errors.New("invalid SCRATCH_DRIVER: must be fs, s3 or memory")
	}
	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
		}
		if cfg.KafkaActivityTopic == "" {
			return nil, errors.New("KAFKA_ACTIVITY_TOPIC is required")
		}
	}

	return cfg, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parsePositiveInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
