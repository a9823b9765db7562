package config

import (
	_ "embed"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/constants"
)

//go:embed models.yaml
var modelsYAML []byte

// DefaultTolerance is the match tolerance used when neither the environment nor
// the model table provides one.
const DefaultTolerance = 0.6

// DefaultModel is the extraction model used when FACE_RECOGNITION_MODEL is unset.
const DefaultModel = "face_recognition"

type Config struct {
	Face     FaceConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Web      WebConfig
	Notify   NotifyConfig
	Models   ModelsConfig
	LogMode  string
}

type FaceConfig struct {
	Model      string  // extraction model name, see models.yaml
	Backend    string  // remote or dlib, derived from the model unless EMBEDDING_BACKEND is set
	URL        string  // embedding server URL for the remote backend
	ModelsDir  string  // dlib model files for the dlib backend
	Tolerance  float64 // maximum Euclidean distance counted as a match
	Policy     string  // first or closest
	Workers    int     // concurrent extractions
	IndexPath  string  // optional path to persist the guardian lookalike index
	MaxImagePx int     // images are scaled down to fit this size before extraction
}

type DatabaseConfig struct {
	URL          string // postgres://... or redis://...
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type StorageConfig struct {
	Backend   string // local or gcs
	UploadDir string // root of the local blob store
	Bucket    string // GCS bucket name
}

type WebConfig struct {
	Host        string
	Port        int
	CORSOrigins []string // "*" allows every origin, entries may contain * wildcards
}

type NotifyConfig struct {
	RedisURL string // when set, notification intents are published to Redis
	Channel  string
}

type ModelsConfig struct {
	Models map[string]ModelDefaults `yaml:"models"`
}

type ModelDefaults struct {
	Backend   string  `yaml:"backend"`
	Dim       int     `yaml:"dim"`
	Tolerance float64 `yaml:"tolerance"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := strings.TrimSpace(os.Getenv(key)); s != "" {
		return s
	}
	return defaultVal
}

// splitList splits a comma-separated list, dropping blank entries.
func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	model := strings.ToLower(envString("FACE_RECOGNITION_MODEL", DefaultModel))
	defaults := models.Lookup(model)

	return &Config{
		Face: FaceConfig{
			Model:      model,
			Backend:    strings.ToLower(envString("EMBEDDING_BACKEND", defaults.Backend)),
			URL:        os.Getenv("EMBEDDING_URL"),
			ModelsDir:  envString("FACE_MODELS_DIR", "models"),
			Tolerance:  envFloat("FACE_RECOGNITION_TOLERANCE", defaults.Tolerance),
			Policy:     strings.ToLower(envString("FACE_MATCH_POLICY", "first")),
			Workers:    envInt("FACE_WORKERS", runtime.NumCPU()),
			IndexPath:  os.Getenv("GUARDIAN_INDEX_PATH"),
			MaxImagePx: envInt("FACE_MAX_IMAGE_PX", constants.MaxImageSize),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(envString("STORAGE_BACKEND", "local")),
			UploadDir: envString("UPLOAD_FOLDER", "uploads"),
			Bucket:    os.Getenv("GCS_BUCKET"),
		},
		Web: WebConfig{
			Host:        envString("WEB_HOST", "0.0.0.0"),
			Port:        envInt("WEB_PORT", 5000),
			CORSOrigins: splitList(envString("CORS_ORIGINS", "*")),
		},
		Notify: NotifyConfig{
			RedisURL: os.Getenv("NOTIFY_REDIS_URL"),
			Channel:  envString("NOTIFY_CHANNEL", "safekids:pickups"),
		},
		Models:  models,
		LogMode: envString("LOG_MODE", "dev"),
	}
}

// Lookup returns the defaults for a model. Unknown models fall back to the
// remote backend with DefaultTolerance.
func (m ModelsConfig) Lookup(name string) ModelDefaults {
	if d, ok := m.Models[name]; ok {
		if d.Tolerance <= 0 {
			d.Tolerance = DefaultTolerance
		}
		return d
	}
	return ModelDefaults{Backend: "remote", Tolerance: DefaultTolerance}
}
