// Package config holds the hourlyimage configuration file model.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/weiland/HourlyImage/pkg/credentials"
	"github.com/weiland/HourlyImage/pkg/twitter"
	"github.com/weiland/HourlyImage/pkg/utils/errors"
)

// Environment overrides, looked up with credentials.EnvPrefix.
const (
	EnvImageDirectory  = "IMAGE_DIR"
	EnvCredentialsFile = "CREDENTIALS_FILE"
)

// Config is the application's configuration model.
type Config struct {
	Images    ImagesConfig      `yaml:"images"`
	Twitter   TwitterConfig     `yaml:"twitter"`
	Endpoints twitter.Endpoints `yaml:"endpoints"`
	Client    ClientConfig      `yaml:"client"`
}

type ImagesConfig struct {
	// Directory holding the snapshots and, by default, the credentials file.
	Directory string `yaml:"directory"`
	Extension string `yaml:"extension"`
}

type TwitterConfig struct {
	// Enabled gates posting; upload and sign still work when disabled.
	Enabled bool `yaml:"enabled"`
	// DateLayout is a Go time layout for the status text.
	DateLayout string `yaml:"dateLayout"`
	// IncludeLocation is off by default so an unset location never posts 0,0.
	IncludeLocation bool `yaml:"includeLocation"`
	// Location is attached when IncludeLocation is set.
	Location LocationConfig `yaml:"location"`
	// AdditionalOwners are user ids that may reuse uploaded media.
	AdditionalOwners []string `yaml:"additionalOwners,omitempty"`
	// CredentialsFile is relative to Images.Directory unless absolute.
	CredentialsFile string `yaml:"credentialsFile"`
	MediaCategory   string `yaml:"mediaCategory"`
}

type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type ClientConfig struct {
	// RequestsPerMinute paces API calls; 0 disables pacing.
	RequestsPerMinute float64       `yaml:"requestsPerMinute"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	UploadConcurrency int           `yaml:"uploadConcurrency"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Images: ImagesConfig{
			Directory: "~/Pictures/Webcam",
			Extension: "jpg",
		},
		Twitter: TwitterConfig{
			Enabled:         true,
			DateLayout:      "Mon Jan 02 2006 15:04:05 MST",
			CredentialsFile: credentials.DefaultFilename,
			MediaCategory:   twitter.DefaultMediaCategory,
		},
		Endpoints: twitter.DefaultEndpoints(),
		Client: ClientConfig{
			RequestsPerMinute: 30,
			Burst:             4,
			Timeout:           twitter.DefaultTimeout,
			UploadConcurrency: 4,
		},
	}
}

// Load reads a YAML file from fs over the defaults, applies environment overrides
// and validates the result.
func Load(fs afero.Fs, path string, lookuper envconfig.Lookuper) (Config, error) {
	cfg := Default()
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Configuration(fmt.Sprintf("read config %s", path), err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Configuration(fmt.Sprintf("parse config %s", path), err)
	}
	cfg.ResolveEnv(lookuper)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg as YAML to path, creating directories as needed.
func Save(fs afero.Fs, path string, cfg Config) error {
	if path == "" {
		return errors.Configuration("empty config path", nil)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Configuration("create config directory", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Configuration("encode config", err)
	}
	if err := afero.WriteFile(fs, path, b, 0o644); err != nil {
		return errors.Configuration(fmt.Sprintf("write config %s", path), err)
	}
	return nil
}

// ResolveEnv applies HOURLYIMAGE_IMAGE_DIR and HOURLYIMAGE_CREDENTIALS_FILE.
// A nil lookuper reads the process environment.
func (c *Config) ResolveEnv(lookuper envconfig.Lookuper) {
	if lookuper == nil {
		lookuper = envconfig.OsLookuper()
	}
	lookuper = envconfig.PrefixLookuper(credentials.EnvPrefix, lookuper)
	if v, ok := lookuper.Lookup(EnvImageDirectory); ok && v != "" {
		c.Images.Directory = v
	}
	if v, ok := lookuper.Lookup(EnvCredentialsFile); ok && v != "" {
		c.Twitter.CredentialsFile = v
	}
}

// Validate rejects values that would only fail later, at request time.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Twitter.DateLayout) == "" {
		return errors.Configuration("twitter.dateLayout is empty", nil)
	}
	if c.Twitter.CredentialsFile == "" {
		return errors.Configuration("twitter.credentialsFile is empty", nil)
	}
	if c.Twitter.IncludeLocation {
		loc := c.Twitter.Location
		if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
			return errors.Configuration(fmt.Sprintf("twitter.location %v,%v out of range", loc.Latitude, loc.Longitude), nil)
		}
	}
	if err := c.Endpoints.WithDefaults().Validate(); err != nil {
		return errors.Configuration("endpoints", err)
	}
	if c.Client.RequestsPerMinute < 0 {
		return errors.Configuration("client.requestsPerMinute is negative", nil)
	}
	if c.Client.RequestsPerMinute > 0 && c.Client.Burst < 1 {
		return errors.Configuration("client.burst must be at least 1 when pacing is enabled", nil)
	}
	if c.Client.UploadConcurrency < 1 {
		return errors.Configuration("client.uploadConcurrency must be at least 1", nil)
	}
	if c.Client.Timeout < 0 {
		return errors.Configuration("client.timeout is negative", nil)
	}
	return nil
}

// ImageDirectory returns Images.Directory with a leading ~ expanded.
func (c Config) ImageDirectory() string {
	return expandHome(c.Images.Directory)
}

// CredentialsPath resolves Twitter.CredentialsFile against the image directory.
func (c Config) CredentialsPath() string {
	path := expandHome(c.Twitter.CredentialsFile)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.ImageDirectory(), path)
}

// Coordinates returns the configured location, or nil when it is not included.
func (c Config) Coordinates() *twitter.Coordinates {
	if !c.Twitter.IncludeLocation {
		return nil
	}
	return &twitter.Coordinates{
		Latitude:  c.Twitter.Location.Latitude,
		Longitude: c.Twitter.Location.Longitude,
	}
}

// Limiter returns the client pacing limiter, or nil when pacing is disabled.
func (c Config) Limiter() *rate.Limiter {
	if c.Client.RequestsPerMinute <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(c.Client.RequestsPerMinute/60), c.Client.Burst)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
