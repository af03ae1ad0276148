package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/lumeo/lumeo/internal/database"
)

//go:embed tuning.yaml
var tuningYAML []byte

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Faces     FacesConfig
	Organizer OrganizerConfig
	Tuning    TuningConfig
}

type ServerConfig struct {
	Addr string // listen address, defaults to :8080
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type FacesConfig struct {
	EmbeddingDim int // defaults to 128
}

type OrganizerConfig struct {
	DestRoot string // root folder for organized output, defaults to ./organized
}

// TuningConfig holds the clustering and search parameters shipped with the
// binary. Values come from the embedded tuning.yaml.
type TuningConfig struct {
	Clustering ClusteringTuning `yaml:"clustering"`
	Search     SearchTuning     `yaml:"search"`
}

type ClusteringTuning struct {
	Eps        float64 `yaml:"eps"`
	MinSamples int     `yaml:"min_samples"`
}

type SearchTuning struct {
	DefaultK    int     `yaml:"default_k"`
	MaxDistance float64 `yaml:"max_distance"`
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

// envString reads an environment variable with a fallback default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var tuning TuningConfig
	if err := yaml.Unmarshal(tuningYAML, &tuning); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded tuning.yaml: " + err.Error())
	}

	return &Config{
		Server: ServerConfig{
			Addr: envString("HTTP_ADDR", ":8080"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Faces: FacesConfig{
			EmbeddingDim: envInt("FACE_EMBEDDING_DIM", database.FaceEmbeddingDim),
		},
		Organizer: OrganizerConfig{
			DestRoot: envString("ORGANIZE_DEST", "./organized"),
		},
		Tuning: tuning,
	}
}
