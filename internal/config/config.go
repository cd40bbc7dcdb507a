// Package config resolves runtime settings from an optional YAML file, .env,
// environment variables and flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	// DatabaseURL points at the shared seed pool; empty means the in-memory
	// pool (local development, tests).
	DatabaseURL string `yaml:"database_url"`

	// SeedFile optionally preloads the pool from a YAML file at startup.
	SeedFile string `yaml:"seed_file"`

	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Generator GeneratorConfig `yaml:"generator"`
	Queue     QueueConfig     `yaml:"queue"`
}

// SnapshotConfig selects where per-user snapshots live. Backend is one of
// "file", "sqlite" or "s3"; empty falls back to "file".
type SnapshotConfig struct {
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	SQLitePath string `yaml:"sqlite_path"`

	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type GeneratorConfig struct {
	Model string  `yaml:"model"`
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type QueueConfig struct {
	MinQueue        int      `yaml:"min_queue"`
	SeedBatch       int      `yaml:"seed_batch"`
	SeenCapacity    int      `yaml:"seen_capacity"`
	GenerateTimeout Duration `yaml:"generate_timeout"`
	Debounce        Duration `yaml:"debounce"`
}

// Duration reads YAML durations written as Go duration strings ("45s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("config: bad duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	configPath := flag.String("config", "", "optional YAML config file")
	seedFile := flag.String("seed-file", "", "optional YAML file of scenarios to preload into the pool")
	flag.Parse()

	cfg := &Config{Port: *port}
	if path := firstNonEmpty(*configPath, strings.TrimSpace(os.Getenv("ASK_CONFIG"))); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if envPort := strings.TrimSpace(os.Getenv("PORT")); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			cfg.Port = envPort
		} else {
			cfg.Port = ":" + envPort
		}
	}
	if cfg.Port == "" {
		cfg.Port = *port
	}

	cfg.Env = firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), cfg.Env, "local")
	cfg.DatabaseURL = firstNonEmpty(strings.TrimSpace(os.Getenv("DATABASE_URL")), cfg.DatabaseURL)
	cfg.SeedFile = firstNonEmpty(*seedFile, strings.TrimSpace(os.Getenv("ASK_SEED_FILE")), cfg.SeedFile)

	loadSnapshotEnv(&cfg.Snapshot, cfg.Env)
	loadGeneratorEnv(&cfg.Generator)
	loadQueueEnv(&cfg.Queue)
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func loadSnapshotEnv(sc *SnapshotConfig, env string) {
	sc.Backend = strings.ToLower(firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_BACKEND")), sc.Backend, "file"))
	sc.Dir = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_DIR")), sc.Dir, "data/snapshots")
	sc.SQLitePath = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_SQLITE_PATH")), sc.SQLitePath, "data/snapshots.db")

	sc.S3.Endpoint = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ENDPOINT")), sc.S3.Endpoint)
	sc.S3.Region = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_REGION")), sc.S3.Region, "us-east-1")
	sc.S3.AccessKey = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER")), sc.S3.AccessKey)
	sc.S3.SecretKey = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD")), sc.S3.SecretKey)
	sc.S3.Bucket = firstNonEmpty(strings.TrimSpace(os.Getenv("SNAPSHOT_S3_BUCKET")), sc.S3.Bucket, "askpurposely-snapshots")
	if raw := strings.TrimSpace(os.Getenv("SNAPSHOT_S3_USE_SSL")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			sc.S3.UseSSL = v
		}
	} else if !strings.EqualFold(env, "local") && sc.S3.Endpoint != "" {
		sc.S3.UseSSL = true
	}
}

func loadGeneratorEnv(gc *GeneratorConfig) {
	gc.Model = firstNonEmpty(strings.TrimSpace(os.Getenv("GEMINI_MODEL")), gc.Model)
	if raw := strings.TrimSpace(os.Getenv("GENERATOR_RPS")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			gc.RPS = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("GENERATOR_BURST")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			gc.Burst = v
		}
	}
}

func loadQueueEnv(qc *QueueConfig) {
	if raw := strings.TrimSpace(os.Getenv("QUEUE_MIN")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			qc.MinQueue = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("QUEUE_SEED_BATCH")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			qc.SeedBatch = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("QUEUE_SEEN_CAPACITY")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			qc.SeenCapacity = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("QUEUE_GENERATE_TIMEOUT")); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			qc.GenerateTimeout = Duration(v)
		}
	}
	if raw := strings.TrimSpace(os.Getenv("QUEUE_DEBOUNCE")); raw != "" {
		if v, err := time.ParseDuration(raw); err == nil {
			qc.Debounce = Duration(v)
		}
	}
}

// GeminiEnabled reports whether a real generator can be constructed.
func GeminiEnabled() bool {
	return strings.TrimSpace(os.Getenv("GEMINI_API_KEY")) != "" ||
		strings.TrimSpace(os.Getenv("GOOGLE_API_KEY")) != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
