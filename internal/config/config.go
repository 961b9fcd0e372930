package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"tubetag/internal/provider"
)

// Config contains the program configuration
type Config struct {
	URL                 string        `yaml:"-"`
	Verbose             bool          `yaml:"verbose"`
	DryRun              bool          `yaml:"dry_run"`
	ParallelJobs        int           `yaml:"parallel_jobs"`
	CookiesBrowser      string        `yaml:"cookies_browser"`
	AudioBitrate        string        `yaml:"audio_bitrate"`
	OutputDir           string        `yaml:"output_dir"`
	Catalogs            []string      `yaml:"catalogs"`
	Exact               bool          `yaml:"exact"`
	AcoustIDKey         string        `yaml:"acoustid_key"`
	FpcalcPath          string        `yaml:"fpcalc_path"`
	SpotifyClientID     string        `yaml:"spotify_client_id"`
	SpotifyClientSecret string        `yaml:"spotify_client_secret"`
	ToleranceDivisor    float64       `yaml:"tolerance_divisor"`
	PreferFingerprint   bool          `yaml:"prefer_fingerprint"`
	TagUnresolved       bool          `yaml:"tag_unresolved"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		ParallelJobs:      4,
		AudioBitrate:      "320K",
		OutputDir:         filepath.Join(homeDir(), "Music"),
		Catalogs:          []string{"deezer", "itunes", "musicbrainz"},
		FpcalcPath:        "fpcalc",
		ToleranceDivisor:  10,
		PreferFingerprint: true,
		TagUnresolved:     true,
		HTTPTimeout:       10 * time.Second,
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.OutputDir = ExpandHome(cfg.OutputDir)

	return cfg, nil
}

// ApplyOverrides copies every key that was explicitly set through v (a bound
// flag that changed, or a TUBETAG_ environment variable) over cfg.
func ApplyOverrides(cfg *Config, v *viper.Viper) {
	if v.IsSet("verbose") {
		cfg.Verbose = v.GetBool("verbose")
	}
	if v.IsSet("dry_run") {
		cfg.DryRun = v.GetBool("dry_run")
	}
	if v.IsSet("parallel_jobs") {
		cfg.ParallelJobs = v.GetInt("parallel_jobs")
	}
	if v.IsSet("cookies_browser") {
		cfg.CookiesBrowser = v.GetString("cookies_browser")
	}
	if v.IsSet("audio_bitrate") {
		cfg.AudioBitrate = v.GetString("audio_bitrate")
	}
	if v.IsSet("output_dir") {
		cfg.OutputDir = ExpandHome(v.GetString("output_dir"))
	}
	if v.IsSet("catalogs") {
		cfg.Catalogs = splitList(v.GetStringSlice("catalogs"))
	}
	if v.IsSet("exact") {
		cfg.Exact = v.GetBool("exact")
	}
	if v.IsSet("acoustid_key") {
		cfg.AcoustIDKey = v.GetString("acoustid_key")
	}
	if v.IsSet("fpcalc_path") {
		cfg.FpcalcPath = v.GetString("fpcalc_path")
	}
	if v.IsSet("spotify_client_id") {
		cfg.SpotifyClientID = v.GetString("spotify_client_id")
	}
	if v.IsSet("spotify_client_secret") {
		cfg.SpotifyClientSecret = v.GetString("spotify_client_secret")
	}
	if v.IsSet("tolerance_divisor") {
		cfg.ToleranceDivisor = v.GetFloat64("tolerance_divisor")
	}
	if v.IsSet("prefer_fingerprint") {
		cfg.PreferFingerprint = v.GetBool("prefer_fingerprint")
	}
	if v.IsSet("tag_unresolved") {
		cfg.TagUnresolved = v.GetBool("tag_unresolved")
	}
	if v.IsSet("http_timeout") {
		cfg.HTTPTimeout = v.GetDuration("http_timeout")
	}
}

// NewViper returns a viper instance reading TUBETAG_* environment variables.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TUBETAG")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// splitList accepts both repeated values and a single comma separated value.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// searchPaths are the config file locations, in lookup order.
var searchPaths = []string{
	"./tubetag.yaml",
	"./tubetag.yml",
	"~/.config/tubetag/config.yaml",
	"~/.config/tubetag/config.yml",
	"~/.tubetag.yaml",
	"~/.tubetag.yml",
}

// SearchPaths returns the locations FindConfigFile checks, in order.
func SearchPaths() []string {
	return slices.Clone(searchPaths)
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	for _, path := range searchPaths {
		path = ExpandHome(path)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "tubetag", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "tubetag", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("URL must start with http:// or https://")
	}

	if c.ParallelJobs < 1 {
		return fmt.Errorf("parallel jobs must be at least 1, got %d", c.ParallelJobs)
	}
	if c.ParallelJobs > 10 {
		return fmt.Errorf("parallel jobs cannot exceed 10 (to avoid rate limiting), got %d", c.ParallelJobs)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.ToleranceDivisor <= 0 {
		return fmt.Errorf("tolerance_divisor must be positive, got %g", c.ToleranceDivisor)
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http_timeout cannot be negative, got %s", c.HTTPTimeout)
	}

	if len(c.Catalogs) == 0 {
		return fmt.Errorf("catalogs cannot be empty, available: %s", strings.Join(provider.Names, ", "))
	}
	for _, name := range c.Catalogs {
		if !slices.Contains(provider.Names, strings.ToLower(name)) {
			return fmt.Errorf("unknown catalog %q, available: %s", name, strings.Join(provider.Names, ", "))
		}
	}

	if c.hasCatalog("spotify") {
		if c.SpotifyClientID == "" {
			return fmt.Errorf("spotify_client_id is required when spotify is in catalogs")
		}
		if c.SpotifyClientSecret == "" {
			return fmt.Errorf("spotify_client_secret is required when spotify is in catalogs")
		}
	}

	return nil
}

func (c *Config) hasCatalog(name string) bool {
	for _, p := range c.Catalogs {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

// ProviderOptions returns what provider.Build needs from the configuration.
func (c *Config) ProviderOptions() provider.Options {
	return provider.Options{
		Timeout:             c.HTTPTimeout,
		SpotifyClientID:     c.SpotifyClientID,
		SpotifyClientSecret: c.SpotifyClientSecret,
	}
}
