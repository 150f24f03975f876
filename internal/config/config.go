// Package config handles attachmcp configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level attachmcp configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Chunker ChunkerConfig `yaml:"chunker"`
	Index   IndexConfig   `yaml:"index"`
	Limits  LimitsConfig  `yaml:"limits"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the MCP server.
type ServerConfig struct {
	// Transport selects the MCP transport. Only "stdio" is supported.
	Transport string `yaml:"transport"`
}

// StorageConfig controls the SQLite metadata store.
type StorageConfig struct {
	// DBPath is the SQLite database file. Empty means the default
	// ~/.attachmcp/attachmcp.db.
	DBPath string `yaml:"db_path"`
}

// ChunkerConfig controls text chunking.
type ChunkerConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `yaml:"chunk_size"`
	// MinChunkSize is the minimum size before a boundary is honored.
	MinChunkSize int `yaml:"min_chunk_size"`
	// OverlapSize is the number of tail characters carried into the next chunk.
	OverlapSize int `yaml:"overlap_size"`
}

// IndexConfig controls the BM25 index manager.
type IndexConfig struct {
	// CacheCapacity bounds the number of per-store indexes kept in memory.
	CacheCapacity int `yaml:"cache_capacity"`
	// K1 is the BM25 term-frequency saturation parameter.
	K1 float64 `yaml:"k1"`
	// B is the BM25 length-normalization parameter.
	B float64 `yaml:"b"`
}

// LimitsConfig bounds payload sizes and pagination.
type LimitsConfig struct {
	// MaxFetchBytes caps files fetched via fileUrl (default 50 MB).
	MaxFetchBytes int64 `yaml:"max_fetch_bytes"`
	// MaxContentBytes caps decoded text accepted for ingestion.
	MaxContentBytes int64 `yaml:"max_content_bytes"`
	// ListDefaultLimit is the page size when the caller omits one.
	ListDefaultLimit int `yaml:"list_default_limit"`
	// ListMaxLimit is the hard page-size cap.
	ListMaxLimit int `yaml:"list_max_limit"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "stdio",
		},
		Storage: StorageConfig{
			DBPath: "",
		},
		Chunker: ChunkerConfig{
			ChunkSize:    500,
			MinChunkSize: 100,
			OverlapSize:  50,
		},
		Index: IndexConfig{
			CacheCapacity: 10,
			K1:            1.2,
			B:             0.75,
		},
		Limits: LimitsConfig{
			MaxFetchBytes:    50 * 1024 * 1024,
			MaxContentBytes:  10 * 1024 * 1024,
			ListDefaultLimit: 50,
			ListMaxLimit:     100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDBPath returns the default database location (~/.attachmcp/attachmcp.db).
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".attachmcp", "attachmcp.db")
	}
	return filepath.Join(home, ".attachmcp", "attachmcp.db")
}

// Load reads configuration from path, falling back to defaults when the file
// is absent, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Missing file is fine, defaults apply
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %q", c.Server.Transport)
	}
	if c.Chunker.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.Chunker.ChunkSize)
	}
	if c.Chunker.MinChunkSize <= 0 || c.Chunker.MinChunkSize > c.Chunker.ChunkSize {
		return fmt.Errorf("min_chunk_size must be in (0, chunk_size], got %d", c.Chunker.MinChunkSize)
	}
	if c.Chunker.OverlapSize < 0 || c.Chunker.OverlapSize >= c.Chunker.ChunkSize {
		return fmt.Errorf("overlap_size must be in [0, chunk_size), got %d", c.Chunker.OverlapSize)
	}
	if c.Index.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", c.Index.CacheCapacity)
	}
	if c.Index.K1 <= 0 {
		return fmt.Errorf("k1 must be positive, got %f", c.Index.K1)
	}
	if c.Index.B < 0 || c.Index.B > 1 {
		return fmt.Errorf("b must be in [0, 1], got %f", c.Index.B)
	}
	if c.Limits.MaxFetchBytes <= 0 {
		return fmt.Errorf("max_fetch_bytes must be positive, got %d", c.Limits.MaxFetchBytes)
	}
	if c.Limits.MaxContentBytes <= 0 {
		return fmt.Errorf("max_content_bytes must be positive, got %d", c.Limits.MaxContentBytes)
	}
	if c.Limits.ListDefaultLimit <= 0 || c.Limits.ListDefaultLimit > c.Limits.ListMaxLimit {
		return fmt.Errorf("list_default_limit must be in (0, list_max_limit], got %d", c.Limits.ListDefaultLimit)
	}
	return nil
}

// applyEnvOverrides lets ATTACHMCP_* variables override file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ATTACHMCP_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("ATTACHMCP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ATTACHMCP_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("ATTACHMCP_INDEX_CACHE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.CacheCapacity = n
		}
	}
	if v := os.Getenv("ATTACHMCP_MAX_FETCH_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Limits.MaxFetchBytes = n
		}
	}
}
