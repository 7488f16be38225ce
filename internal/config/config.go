package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"medreport/internal/auth"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// ChunkerConfig configures how report text is split into chunks.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// OllamaConfig holds connection details for the embedding and generation
// models.
type OllamaConfig struct {
	Host          string `yaml:"host"`
	EmbedModel    string `yaml:"embed_model"`
	GenerateModel string `yaml:"generate_model"`
	TimeoutSecs   int    `yaml:"timeout_secs"`
}

// QdrantConfig holds connection details for the vector index.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
	Dimension  int    `yaml:"dimension"`
	ReadyPolls int    `yaml:"ready_polls"`
}

// MongoConfig holds connection details for the metadata store.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server       ServerConfig  `yaml:"server"`
	UploadDir    string        `yaml:"upload_dir"`
	TopK         int           `yaml:"top_k"`
	IndexBackend string        `yaml:"index_backend"` // qdrant | memory
	StoreBackend string        `yaml:"store_backend"` // mongo | memory
	Chunker      ChunkerConfig `yaml:"chunker"`
	Ollama       OllamaConfig  `yaml:"ollama"`
	Qdrant       QdrantConfig  `yaml:"qdrant"`
	Mongo        MongoConfig   `yaml:"mongo"`
	Users        []auth.User   `yaml:"users"`
}

// Load reads a config from the given path. A missing file yields the
// defaults; environment variables override connection details afterwards.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:       ServerConfig{Addr: ":8000"},
		UploadDir:    "./uploaded_reports",
		TopK:         5,
		IndexBackend: "qdrant",
		StoreBackend: "mongo",
		Chunker:      ChunkerConfig{Size: 500, Overlap: 100},
		Ollama: OllamaConfig{
			Host:          "http://localhost:11434",
			EmbedModel:    "nomic-embed-text",
			GenerateModel: "llama3.2",
			TimeoutSecs:   30,
		},
		Qdrant: QdrantConfig{
			Addr:       "localhost:6334",
			Collection: "medical-reports",
			Dimension:  768,
			ReadyPolls: 30,
		},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "medreport",
		},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = def.UploadDir
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.IndexBackend == "" {
		cfg.IndexBackend = def.IndexBackend
	}
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = def.StoreBackend
	}
	if cfg.Chunker.Size <= 0 {
		cfg.Chunker.Size = def.Chunker.Size
	}
	if cfg.Chunker.Overlap < 0 || cfg.Chunker.Overlap >= cfg.Chunker.Size {
		// An overlap at or above the window size never terminates; clamp
		// to a fifth of the window.
		cfg.Chunker.Overlap = cfg.Chunker.Size / 5
	}
	if cfg.Ollama.Host == "" {
		cfg.Ollama.Host = def.Ollama.Host
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = def.Ollama.EmbedModel
	}
	if cfg.Ollama.GenerateModel == "" {
		cfg.Ollama.GenerateModel = def.Ollama.GenerateModel
	}
	if cfg.Ollama.TimeoutSecs <= 0 {
		cfg.Ollama.TimeoutSecs = def.Ollama.TimeoutSecs
	}
	if cfg.Qdrant.Addr == "" {
		cfg.Qdrant.Addr = def.Qdrant.Addr
	}
	if cfg.Qdrant.Collection == "" {
		cfg.Qdrant.Collection = def.Qdrant.Collection
	}
	if cfg.Qdrant.Dimension <= 0 {
		cfg.Qdrant.Dimension = def.Qdrant.Dimension
	}
	if cfg.Qdrant.ReadyPolls <= 0 {
		cfg.Qdrant.ReadyPolls = def.Qdrant.ReadyPolls
	}
	if cfg.Mongo.URI == "" {
		cfg.Mongo.URI = def.Mongo.URI
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = def.Mongo.Database
	}
}

// applyEnvOverrides lets deployment environments inject connection
// details without editing the config file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("MEDREPORT_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Ollama.Host = v
	}
	if v := os.Getenv("QDRANT_ADDR"); v != "" {
		cfg.Qdrant.Addr = v
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		cfg.Mongo.URI = v
	}
}
