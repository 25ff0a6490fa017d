package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	tutorerrors "github.com/Aman-CERP/tutor/internal/errors"
)

// ProjectConfigName is the per-project configuration file name.
const ProjectConfigName = ".tutor.yaml"

// Config is the complete tutor configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" json:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" json:"retrieval"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Generation GenerationConfig `yaml:"generation" json:"generation"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig locates the source documents and the index data.
// Relative paths are resolved against the project root.
type PathsConfig struct {
	SourceDir string   `yaml:"source_dir" json:"source_dir"`
	DataDir   string   `yaml:"data_dir" json:"data_dir"`
	Exclude   []string `yaml:"exclude" json:"exclude"`
}

// ChunkingConfig configures word-window chunking.
type ChunkingConfig struct {
	ChunkSizeWords int `yaml:"chunk_size_words" json:"chunk_size_words"`
	OverlapWords   int `yaml:"overlap_words" json:"overlap_words"`
}

// RetrievalConfig configures query-time retrieval.
type RetrievalConfig struct {
	TopK            int `yaml:"top_k" json:"top_k"`
	MaxContextChars int `yaml:"max_context_chars" json:"max_context_chars"`
}

// EmbeddingsConfig selects and tunes the embedder.
type EmbeddingsConfig struct {
	// Provider is "static" (offline hash features) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// FileTimeout bounds extraction plus embedding of a single file.
	FileTimeout time.Duration `yaml:"file_timeout" json:"file_timeout"`

	// CacheSize is the number of query embeddings kept in the LRU cache.
	// Zero disables the cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// IndexConfig tunes the index builder.
type IndexConfig struct {
	Workers int `yaml:"workers" json:"workers"`

	// ContentHash adds a content hash to file fingerprints so that same-size
	// rewrites within the mtime resolution are detected.
	ContentHash bool `yaml:"content_hash" json:"content_hash"`

	// PruneDeleted removes fingerprints and caches of files no longer present.
	PruneDeleted bool `yaml:"prune_deleted" json:"prune_deleted"`

	MaxFileSizeMB int `yaml:"max_file_size_mb" json:"max_file_size_mb"`
}

// GenerationConfig configures answer generation. Provider "none" disables it.
type GenerationConfig struct {
	Provider     string        `yaml:"provider" json:"provider"`
	Model        string        `yaml:"model" json:"model"`
	OllamaHost   string        `yaml:"ollama_host" json:"ollama_host"`
	MaxNewTokens int           `yaml:"max_new_tokens" json:"max_new_tokens"`
	Temperature  float64       `yaml:"temperature" json:"temperature"`
	TopP         float64       `yaml:"top_p" json:"top_p"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	File      string `yaml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

var defaultExcludePatterns = []string{
	".*",
	"~$*",
	"*.tmp",
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			SourceDir: filepath.Join("data", "textbooks"),
			DataDir:   filepath.Join("data", "index"),
			Exclude:   append([]string(nil), defaultExcludePatterns...),
		},
		Chunking: ChunkingConfig{
			ChunkSizeWords: 500,
			OverlapWords:   50,
		},
		Retrieval: RetrievalConfig{
			TopK:            5,
			MaxContextChars: 6000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:    "static",
			Model:       "nomic-embed-text",
			OllamaHost:  "", // Empty uses http://localhost:11434
			BatchSize:   32,
			FileTimeout: 2 * time.Minute,
			CacheSize:   1000,
		},
		Index: IndexConfig{
			Workers:       runtime.NumCPU(),
			ContentHash:   false,
			PruneDeleted:  false,
			MaxFileSizeMB: 50,
		},
		Generation: GenerationConfig{
			Provider:     "none",
			Model:        "tinyllama",
			MaxNewTokens: 256,
			Temperature:  0.3,
			TopP:         0.9,
			Timeout:      2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/tutor/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/tutor/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tutor", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "tutor", "config.yaml")
	}
	return filepath.Join(home, ".config", "tutor", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load builds the configuration for the project rooted at dir.
// Layers, lowest precedence first:
//  1. Defaults
//  2. User config (~/.config/tutor/config.yaml)
//  3. Project config (.tutor.yaml in dir)
//  4. Environment variables (TUTOR_*), with the project's .env file
//     supplying variables the process environment leaves unset
//
// Relative source and data directories are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if projectPath := filepath.Join(dir, ProjectConfigName); fileExists(projectPath) {
		if err := cfg.loadYAML(projectPath); err != nil {
			return nil, err
		}
	}

	env, err := projectEnv(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnvOverrides(env); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := cfg.ResolvePaths(dir); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadYAML overlays the keys present in path onto c.
// Keys absent from the file keep their current value, so explicit zero and
// false values in a later layer win over an earlier layer.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return tutorerrors.New(tutorerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err).
			WithSuggestion("check the YAML syntax or run 'tutor config init' to regenerate it")
	}
	return nil
}

// EnvFileName holds TUTOR_* variables for one project. Variables set in the
// process environment take precedence over it.
const EnvFileName = ".env"

// projectEnv returns a lookup over the process environment backed by the
// project's .env file, if any.
func projectEnv(dir string) (func(string) string, error) {
	path := filepath.Join(dir, EnvFileName)
	if !fileExists(path) {
		return os.Getenv, nil
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, tutorerrors.ConfigError(fmt.Sprintf("failed to parse %s", path), err)
	}
	return func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return vars[key]
	}, nil
}

// applyEnvOverrides applies TUTOR_* variables read through getenv.
func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	strs := map[string]*string{
		"TUTOR_SOURCE_DIR":          &c.Paths.SourceDir,
		"TUTOR_DATA_DIR":            &c.Paths.DataDir,
		"TUTOR_EMBEDDINGS_PROVIDER": &c.Embeddings.Provider,
		"TUTOR_EMBEDDINGS_MODEL":    &c.Embeddings.Model,
		"TUTOR_OLLAMA_HOST":         &c.Embeddings.OllamaHost,
		"TUTOR_GENERATION_PROVIDER": &c.Generation.Provider,
		"TUTOR_GENERATION_MODEL":    &c.Generation.Model,
		"TUTOR_LOG_LEVEL":           &c.Logging.Level,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TUTOR_CHUNK_SIZE":        &c.Chunking.ChunkSizeWords,
		"TUTOR_CHUNK_OVERLAP":     &c.Chunking.OverlapWords,
		"TUTOR_TOP_K":             &c.Retrieval.TopK,
		"TUTOR_MAX_CONTEXT_CHARS": &c.Retrieval.MaxContextChars,
		"TUTOR_INDEX_WORKERS":     &c.Index.Workers,
	}
	for key, dst := range ints {
		v := getenv(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return tutorerrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", key, v), err)
		}
		*dst = n
	}

	bools := map[string]*bool{
		"TUTOR_CONTENT_HASH":  &c.Index.ContentHash,
		"TUTOR_PRUNE_DELETED": &c.Index.PruneDeleted,
	}
	for key, dst := range bools {
		v := getenv(key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return tutorerrors.ConfigError(fmt.Sprintf("%s must be a boolean, got %q", key, v), err)
		}
		*dst = b
	}

	if v := getenv("TUTOR_FILE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return tutorerrors.ConfigError(fmt.Sprintf("TUTOR_FILE_TIMEOUT must be a duration, got %q", v), err)
		}
		c.Embeddings.FileTimeout = d
	}

	return nil
}

// ResolvePaths makes the source and data directories and the log file
// absolute relative to root.
func (c *Config) ResolvePaths(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	if !filepath.IsAbs(c.Paths.SourceDir) {
		c.Paths.SourceDir = filepath.Join(absRoot, c.Paths.SourceDir)
	}
	if !filepath.IsAbs(c.Paths.DataDir) {
		c.Paths.DataDir = filepath.Join(absRoot, c.Paths.DataDir)
	}
	if c.Logging.File != "" && !filepath.IsAbs(c.Logging.File) {
		c.Logging.File = filepath.Join(absRoot, c.Logging.File)
	}
	return nil
}

// Validate checks the configuration and returns a coded error if invalid.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return tutorerrors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	if c.Paths.SourceDir == "" {
		return invalid("paths.source_dir must not be empty")
	}
	if c.Paths.DataDir == "" {
		return invalid("paths.data_dir must not be empty")
	}
	for _, p := range c.Paths.Exclude {
		if _, err := filepath.Match(p, ""); err != nil {
			return invalid("paths.exclude pattern %q is malformed", p)
		}
	}

	if c.Chunking.ChunkSizeWords <= 0 {
		return invalid("chunking.chunk_size_words must be positive, got %d", c.Chunking.ChunkSizeWords)
	}
	if c.Chunking.OverlapWords < 0 {
		return invalid("chunking.overlap_words must be non-negative, got %d", c.Chunking.OverlapWords)
	}
	if c.Chunking.OverlapWords >= c.Chunking.ChunkSizeWords {
		return invalid("chunking.overlap_words (%d) must be smaller than chunk_size_words (%d)",
			c.Chunking.OverlapWords, c.Chunking.ChunkSizeWords)
	}

	if c.Retrieval.TopK <= 0 {
		return invalid("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Retrieval.MaxContextChars <= 0 {
		return invalid("retrieval.max_context_chars must be positive, got %d", c.Retrieval.MaxContextChars)
	}

	validEmbedders := map[string]bool{"static": true, "ollama": true}
	if !validEmbedders[strings.ToLower(c.Embeddings.Provider)] {
		return invalid("embeddings.provider must be 'static' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return invalid("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.FileTimeout <= 0 {
		return invalid("embeddings.file_timeout must be positive, got %s", c.Embeddings.FileTimeout)
	}
	if c.Embeddings.CacheSize < 0 {
		return invalid("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}

	if c.Index.Workers <= 0 {
		return invalid("index.workers must be positive, got %d", c.Index.Workers)
	}
	if c.Index.MaxFileSizeMB <= 0 {
		return invalid("index.max_file_size_mb must be positive, got %d", c.Index.MaxFileSizeMB)
	}

	validGenerators := map[string]bool{"none": true, "ollama": true}
	if !validGenerators[strings.ToLower(c.Generation.Provider)] {
		return invalid("generation.provider must be 'none' or 'ollama', got %s", c.Generation.Provider)
	}
	if c.Generation.MaxNewTokens <= 0 {
		return invalid("generation.max_new_tokens must be positive, got %d", c.Generation.MaxNewTokens)
	}
	if c.Generation.Temperature < 0 {
		return invalid("generation.temperature must be non-negative, got %f", c.Generation.Temperature)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		return invalid("generation.top_p must be in (0, 1], got %f", c.Generation.TopP)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return invalid("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// FindProjectRoot walks up from startDir looking for .tutor.yaml or .git.
// It returns startDir (absolute) when neither is found.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	current := absDir
	for {
		if fileExists(filepath.Join(current, ProjectConfigName)) ||
			dirExists(filepath.Join(current, ".git")) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return absDir, nil
		}
		current = parent
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}
