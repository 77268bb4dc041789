package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"retrospec/internal/paths"
)

// CurrentVersion is the config schema version written by `retrospec init`.
const CurrentVersion = 1

// DefaultPatterns is used when a directory config lists no patterns.
var DefaultPatterns = []string{"**/*.js"}

// Config is a retrospec run configuration.
type Config struct {
	Version       int              `json:"version" yaml:"version" toml:"version" mapstructure:"version"`
	Src           SourceConfig     `json:"src" yaml:"src" toml:"src" mapstructure:"src"`
	Test          TestConfig       `json:"test" yaml:"test" toml:"test" mapstructure:"test"`
	HashAlgorithm string           `json:"hashAlgorithm" yaml:"hashAlgorithm" toml:"hashAlgorithm" mapstructure:"hashAlgorithm" validate:"omitempty,oneof=sha1 sha256 blake2b"`
	Snapshot      SnapshotConfig   `json:"snapshot" yaml:"snapshot" toml:"snapshot" mapstructure:"snapshot"`
	Extraction    ExtractionConfig `json:"extraction" yaml:"extraction" toml:"extraction" mapstructure:"extraction"`
	Logging       LoggingConfig    `json:"logging" yaml:"logging" toml:"logging" mapstructure:"logging"`

	file string
}

// SourceConfig describes where modules are extracted from.
type SourceConfig struct {
	Path      string          `json:"path" yaml:"path" toml:"path" mapstructure:"path" validate:"required"`
	Patterns  []string        `json:"patterns,omitempty" yaml:"patterns,omitempty" toml:"patterns,omitempty" mapstructure:"patterns"`
	Blobs     []string        `json:"blobs,omitempty" yaml:"blobs,omitempty" toml:"blobs,omitempty" mapstructure:"blobs"`
	Exclude   []string        `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty" mapstructure:"exclude"`
	Extractor string          `json:"extractor" yaml:"extractor" toml:"extractor" mapstructure:"extractor" validate:"required"`
	RequireJS RequireJSConfig `json:"requirejs" yaml:"requirejs" toml:"requirejs" mapstructure:"requirejs"`
}

// RequireJSConfig mirrors the loader settings needed to resolve module ids.
type RequireJSConfig struct {
	BaseURL    string            `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty" toml:"baseUrl,omitempty" mapstructure:"baseUrl"`
	Paths      map[string]string `json:"paths,omitempty" yaml:"paths,omitempty" toml:"paths,omitempty" mapstructure:"paths"`
	ConfigFile string            `json:"configFile,omitempty" yaml:"configFile,omitempty" toml:"configFile,omitempty" mapstructure:"configFile"`
}

// TestConfig describes where test suites are extracted from and how they run.
type TestConfig struct {
	Path          string   `json:"path" yaml:"path" toml:"path" mapstructure:"path" validate:"required"`
	Patterns      []string `json:"patterns,omitempty" yaml:"patterns,omitempty" toml:"patterns,omitempty" mapstructure:"patterns"`
	Blobs         []string `json:"blobs,omitempty" yaml:"blobs,omitempty" toml:"blobs,omitempty" mapstructure:"blobs"`
	Exclude       []string `json:"exclude,omitempty" yaml:"exclude,omitempty" toml:"exclude,omitempty" mapstructure:"exclude"`
	Extractor     string   `json:"extractor" yaml:"extractor" toml:"extractor" mapstructure:"extractor" validate:"required"`
	Executor      string   `json:"executor" yaml:"executor" toml:"executor" mapstructure:"executor" validate:"required"`
	Command       []string `json:"command,omitempty" yaml:"command,omitempty" toml:"command,omitempty" mapstructure:"command" validate:"required_if=Executor command"`
	WorkDir       string   `json:"workDir,omitempty" yaml:"workDir,omitempty" toml:"workDir,omitempty" mapstructure:"workDir"`
	KarmaTemplate string   `json:"karmaTemplate,omitempty" yaml:"karmaTemplate,omitempty" toml:"karmaTemplate,omitempty" mapstructure:"karmaTemplate"`
}

// SnapshotConfig selects the persistence backend.
type SnapshotConfig struct {
	Backend      string `json:"backend" yaml:"backend" toml:"backend" mapstructure:"backend" validate:"oneof=json sqlite"`
	Compress     bool   `json:"compress" yaml:"compress" toml:"compress" mapstructure:"compress"`
	HistoryLimit int    `json:"historyLimit" yaml:"historyLimit" toml:"historyLimit" mapstructure:"historyLimit" validate:"gte=0"`
}

// ExtractionConfig bounds the extraction worker pool.
type ExtractionConfig struct {
	Workers     int   `json:"workers" yaml:"workers" toml:"workers" mapstructure:"workers" validate:"gte=0"`
	MaxFileSize int64 `json:"maxFileSize" yaml:"maxFileSize" toml:"maxFileSize" mapstructure:"maxFileSize" validate:"gte=0"`
	CacheSize   int   `json:"cacheSize" yaml:"cacheSize" toml:"cacheSize" mapstructure:"cacheSize" validate:"gte=0"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty" toml:"level,omitempty" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error silent off"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty" toml:"format,omitempty" mapstructure:"format" validate:"omitempty,oneof=text human json"`
	File       string `json:"file,omitempty" yaml:"file,omitempty" toml:"file,omitempty" mapstructure:"file"`
	MaxSize    string `json:"maxSize,omitempty" yaml:"maxSize,omitempty" toml:"maxSize,omitempty" mapstructure:"maxSize"`
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty" toml:"maxBackups,omitempty" mapstructure:"maxBackups" validate:"gte=0"`
}

// DefaultConfig returns the defaults every loaded config starts from.
// It does not validate: src/test directories and collaborators have no
// sensible default.
func DefaultConfig() *Config {
	return &Config{
		Version:       CurrentVersion,
		HashAlgorithm: "sha1",
		Snapshot: SnapshotConfig{
			Backend:      "json",
			HistoryLimit: 50,
		},
		Extraction: ExtractionConfig{
			MaxFileSize: 5 << 20,
			CacheSize:   4096,
		},
	}
}

// Starter returns the config written by `retrospec init`.
func Starter() *Config {
	cfg := DefaultConfig()
	cfg.Src = SourceConfig{
		Path:      "src",
		Patterns:  []string{"**/*.js"},
		Extractor: "requirejs-module",
	}
	cfg.Test = TestConfig{
		Path:      "test",
		Patterns:  []string{"**/*.js"},
		Extractor: "inline-comment",
		Executor:  "list",
	}
	return cfg
}

// File returns the config file the values were read from, or "".
func (c *Config) File() string {
	return c.file
}

// Load reads the run configuration for root. An explicit path must exist;
// otherwise .retrospec/config.{json,yaml,toml} is used when present, and
// DefaultConfig when not. A .env file in root is loaded first so
// RETROSPEC_* variables can come from it.
func Load(root, explicit string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(root, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RETROSPEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit != "" {
		path := paths.Resolve(root, explicit)
		if _, err := os.Stat(path); err != nil {
			return nil, &NotFoundError{Path: path, Err: err}
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(paths.DataDirPath(root))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()
	cfg.normalize()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("hashAlgorithm", d.HashAlgorithm)
	v.SetDefault("src.path", "")
	v.SetDefault("src.extractor", "")
	v.SetDefault("src.patterns", []string{})
	v.SetDefault("test.path", "")
	v.SetDefault("test.extractor", "")
	v.SetDefault("test.executor", "")
	v.SetDefault("test.patterns", []string{})
	v.SetDefault("test.workDir", "")
	v.SetDefault("snapshot.backend", d.Snapshot.Backend)
	v.SetDefault("snapshot.compress", d.Snapshot.Compress)
	v.SetDefault("snapshot.historyLimit", d.Snapshot.HistoryLimit)
	v.SetDefault("extraction.workers", d.Extraction.Workers)
	v.SetDefault("extraction.maxFileSize", d.Extraction.MaxFileSize)
	v.SetDefault("extraction.cacheSize", d.Extraction.CacheSize)
	v.SetDefault("logging.level", "")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.file", "")
}

// normalize folds legacy keys into their current names.
func (c *Config) normalize() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if len(c.Src.Patterns) == 0 {
		c.Src.Patterns = c.Src.Blobs
	}
	if len(c.Src.Patterns) == 0 {
		c.Src.Patterns = append([]string(nil), DefaultPatterns...)
	}
	c.Src.Blobs = nil
	if len(c.Test.Patterns) == 0 {
		c.Test.Patterns = c.Test.Blobs
	}
	if len(c.Test.Patterns) == 0 {
		c.Test.Patterns = append([]string(nil), DefaultPatterns...)
	}
	c.Test.Blobs = nil
}

// Save writes the configuration; the encoding follows the file extension
// (.json, .yaml/.yml or .toml).
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(c)
		data = []byte(sb.String())
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks required fields and enumerations. It does not know which
// extractors or executors exist; those ids are resolved by the engine.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fieldError(verrs[0])
		}
		return &ConfigError{Field: "", Message: err.Error()}
	}

	for _, p := range append(append([]string{}, c.Src.Patterns...), c.Test.Patterns...) {
		if strings.TrimSpace(p) == "" {
			return &ConfigError{Field: "patterns", Message: "patterns must not be empty strings"}
		}
	}
	return nil
}

func fieldError(fe validator.FieldError) *ConfigError {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}

	var msg string
	switch fe.Tag() {
	case "required", "required_if":
		msg = "is required"
	case "oneof":
		msg = "must be one of: " + fe.Param()
	case "gte":
		msg = "must be at least " + fe.Param()
	default:
		msg = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return &ConfigError{Field: field, Message: msg}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config error: " + e.Message
	}
	return "config error in field '" + e.Field + "': " + e.Message
}

// NotFoundError is returned when an explicitly named config file is missing.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return "config file not found: " + e.Path
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}
