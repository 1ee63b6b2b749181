// Package config loads the server configuration.
//
// Sources, later ones winning:
//
//	defaults → config.yaml (or CONFIG_PATH) → environment (.env is loaded first)
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	ImageBackendLocal = "local"
	ImageBackendS3    = "s3"
)

// Config is the full server configuration.
type Config struct {
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
	DBPath  string `yaml:"db_path"`

	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	PageSize    int      `yaml:"page_size"`
	CORSOrigins []string `yaml:"cors_origins"`

	Log    LogConfig    `yaml:"log"`
	Media  MediaConfig  `yaml:"media"`
	GitHub GitHubConfig `yaml:"github"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// MediaConfig selects where uploaded recipe images and avatars are stored.
type MediaConfig struct {
	Backend string   `yaml:"backend"` // local, s3
	Dir     string   `yaml:"dir"`
	URL     string   `yaml:"url"` // public prefix for locally stored files
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Endpoint  string `yaml:"endpoint"`   // S3-compatible stores (MinIO, R2)
	PublicURL string `yaml:"public_url"` // defaults to the bucket's virtual-hosted URL
}

// GitHubConfig enables social login when ClientID is set.
type GitHubConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether GitHub login is configured.
func (g GitHubConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Default returns the configuration used when nothing else is set.
func Default() Config {
	return Config{
		Port:     8080,
		BaseURL:  "http://localhost:8080",
		DBPath:   "data/foodgram.db",
		TokenTTL: 24 * time.Hour,
		PageSize: 10,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Media: MediaConfig{
			Backend: ImageBackendLocal,
			Dir:     "media",
			URL:     "/media/",
		},
	}
}

// Load reads the configuration and validates it for the API server.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read builds the configuration from defaults, the YAML file at path and the
// environment without validating it. A missing file is not an error; a
// malformed one is. Tools that need only part of the configuration call Read
// and then the matching check, e.g. ValidateDatabase.
func Read(path string) (Config, error) {
	// .env is optional; real environment variables take precedence over it.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.GitHub.CallbackURL == "" {
		cfg.GitHub.CallbackURL = strings.TrimSuffix(cfg.BaseURL, "/") + "/auth/github/callback"
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	strs := map[string]*string{
		"BASE_URL":             &cfg.BaseURL,
		"DB_PATH":              &cfg.DBPath,
		"JWT_SECRET":           &cfg.JWTSecret,
		"LOG_LEVEL":            &cfg.Log.Level,
		"LOG_FORMAT":           &cfg.Log.Format,
		"IMAGE_BACKEND":        &cfg.Media.Backend,
		"MEDIA_DIR":            &cfg.Media.Dir,
		"MEDIA_URL":            &cfg.Media.URL,
		"S3_BUCKET":            &cfg.Media.S3.Bucket,
		"S3_REGION":            &cfg.Media.S3.Region,
		"S3_ACCESS_KEY":        &cfg.Media.S3.AccessKey,
		"S3_SECRET_KEY":        &cfg.Media.S3.SecretKey,
		"S3_ENDPOINT":          &cfg.Media.S3.Endpoint,
		"S3_PUBLIC_URL":        &cfg.Media.S3.PublicURL,
		"GITHUB_CLIENT_ID":     &cfg.GitHub.ClientID,
		"GITHUB_CLIENT_SECRET": &cfg.GitHub.ClientSecret,
		"GITHUB_CALLBACK_URL":  &cfg.GitHub.CallbackURL,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"PORT":      &cfg.Port,
		"PAGE_SIZE": &cfg.PageSize,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: invalid %s value %q", key, v)
			}
			*dst = n
		}
	}

	if v := os.Getenv("TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: invalid TOKEN_TTL value %q", v)
		}
		cfg.TokenTTL = d
	}

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}

	return nil
}

// Validate checks the values that would otherwise fail later at startup.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters (set JWT_SECRET)"))
	}
	if c.PageSize < 1 {
		errs = append(errs, fmt.Errorf("page_size must be positive, got %d", c.PageSize))
	}
	errs = append(errs, c.databaseErrors()...)

	switch c.Media.Backend {
	case ImageBackendLocal:
		if c.Media.Dir == "" {
			errs = append(errs, errors.New("media.dir is required for the local backend"))
		}
	case ImageBackendS3:
		if c.Media.S3.Bucket == "" || c.Media.S3.Region == "" {
			errs = append(errs, errors.New("media.s3.bucket and media.s3.region are required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown media backend %q", c.Media.Backend))
	}

	return joinErrors(errs)
}

// ValidateDatabase checks only what offline database tools need: the
// database path and the logging setup.
func (c Config) ValidateDatabase() error {
	return joinErrors(c.databaseErrors())
}

func (c Config) databaseErrors() []error {
	var errs []error
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errs
}

func joinErrors(errs []error) error {
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
