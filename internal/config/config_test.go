package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.URL = "https://youtube.com/playlist?list=abc"
		cfg.OutputDir = "/tmp/music"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name:    "parallel jobs 0",
			modify:  func(c *Config) { c.ParallelJobs = 0 },
			wantErr: true,
		},
		{
			name:    "parallel jobs 11",
			modify:  func(c *Config) { c.ParallelJobs = 11 },
			wantErr: true,
		},
		{
			name:   "parallel jobs 10",
			modify: func(c *Config) { c.ParallelJobs = 10 },
		},
		{
			name:    "empty URL",
			modify:  func(c *Config) { c.URL = "" },
			wantErr: true,
		},
		{
			name:    "URL without scheme",
			modify:  func(c *Config) { c.URL = "youtube.com/playlist" },
			wantErr: true,
		},
		{
			name:   "http URL",
			modify: func(c *Config) { c.URL = "http://youtube.com/watch?v=x" },
		},
		{
			name:    "empty output dir",
			modify:  func(c *Config) { c.OutputDir = "" },
			wantErr: true,
		},
		{
			name:    "zero tolerance divisor",
			modify:  func(c *Config) { c.ToleranceDivisor = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.HTTPTimeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "no catalogs",
			modify:  func(c *Config) { c.Catalogs = nil },
			wantErr: true,
		},
		{
			name:    "unknown catalog",
			modify:  func(c *Config) { c.Catalogs = []string{"deezer", "echonest"} },
			wantErr: true,
		},
		{
			name:   "catalog names are case insensitive",
			modify: func(c *Config) { c.Catalogs = []string{"MusicBrainz"} },
		},
		{
			name:    "spotify without credentials",
			modify:  func(c *Config) { c.Catalogs = []string{"spotify"} },
			wantErr: true,
		},
		{
			name: "spotify without secret",
			modify: func(c *Config) {
				c.Catalogs = []string{"spotify"}
				c.SpotifyClientID = "id"
			},
			wantErr: true,
		},
		{
			name: "spotify with credentials",
			modify: func(c *Config) {
				c.Catalogs = []string{"deezer", "spotify"}
				c.SpotifyClientID = "id"
				c.SpotifyClientSecret = "secret"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `parallel_jobs: 8
audio_bitrate: 192K
output_dir: /tmp/test-music
catalogs: [musicbrainz, deezer]
tolerance_divisor: 5
prefer_fingerprint: false
http_timeout: 3s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}

	if cfg.ParallelJobs != 8 {
		t.Errorf("ParallelJobs = %d, want 8", cfg.ParallelJobs)
	}
	if cfg.AudioBitrate != "192K" {
		t.Errorf("AudioBitrate = %q, want %q", cfg.AudioBitrate, "192K")
	}
	if cfg.OutputDir != "/tmp/test-music" {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, "/tmp/test-music")
	}
	if strings.Join(cfg.Catalogs, ",") != "musicbrainz,deezer" {
		t.Errorf("Catalogs = %v", cfg.Catalogs)
	}
	if cfg.ToleranceDivisor != 5 {
		t.Errorf("ToleranceDivisor = %g, want 5", cfg.ToleranceDivisor)
	}
	if cfg.PreferFingerprint {
		t.Error("PreferFingerprint should be false")
	}
	if cfg.HTTPTimeout != 3*time.Second {
		t.Errorf("HTTPTimeout = %s, want 3s", cfg.HTTPTimeout)
	}
	// keys absent from the file keep their defaults
	if !cfg.TagUnresolved {
		t.Error("TagUnresolved should keep its default")
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	cfg, err := LoadConfigFile("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("LoadConfigFile() should return defaults for missing file, got error: %v", err)
	}
	if cfg.ParallelJobs != 4 {
		t.Errorf("expected default ParallelJobs=4, got %d", cfg.ParallelJobs)
	}
	if cfg.ToleranceDivisor != 10 || !cfg.PreferFingerprint {
		t.Errorf("unexpected arbitration defaults: %g %v", cfg.ToleranceDivisor, cfg.PreferFingerprint)
	}
}

func TestSaveConfigFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Catalogs = []string{"itunes"}
	cfg.HTTPTimeout = 7 * time.Second

	if err := SaveConfigFile(cfg, path); err != nil {
		t.Fatalf("SaveConfigFile() error: %v", err)
	}
	got, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile() error: %v", err)
	}
	if len(got.Catalogs) != 1 || got.Catalogs[0] != "itunes" || got.HTTPTimeout != 7*time.Second {
		t.Errorf("round trip lost values: %+v", got)
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Setenv("TUBETAG_PARALLEL_JOBS", "2")
	t.Setenv("TUBETAG_CATALOGS", "itunes, deezer")

	v := NewViper()
	v.Set("exact", true)

	cfg := DefaultConfig()
	cfg.AudioBitrate = "128K"
	ApplyOverrides(&cfg, v)

	if cfg.ParallelJobs != 2 {
		t.Errorf("ParallelJobs = %d, want 2 from env", cfg.ParallelJobs)
	}
	if strings.Join(cfg.Catalogs, ",") != "itunes,deezer" {
		t.Errorf("Catalogs = %v", cfg.Catalogs)
	}
	if !cfg.Exact {
		t.Error("Exact should be overridden")
	}
	if cfg.AudioBitrate != "128K" {
		t.Errorf("unset key was overridden: AudioBitrate = %q", cfg.AudioBitrate)
	}
}

func TestExpandHome(t *testing.T) {
	home := homeDir()
	tests := []struct {
		input string
		want  string
	}{
		{"~/Music", filepath.Join(home, "Music")},
		{"/absolute/path", "/absolute/path"},
		{"relative/path", "relative/path"},
		{"~notslash", "~notslash"},
	}

	for _, tt := range tests {
		got := ExpandHome(tt.input)
		if got != tt.want {
			t.Errorf("ExpandHome(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if got := FindConfigFile(); got != "" {
		t.Fatalf("FindConfigFile() = %q, want none", got)
	}

	if err := os.WriteFile("tubetag.yml", []byte("verbose: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != "./tubetag.yml" {
		t.Errorf("FindConfigFile() = %q, want ./tubetag.yml", got)
	}

	if err := os.WriteFile("tubetag.yaml", []byte("verbose: true\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != "./tubetag.yaml" {
		t.Errorf("FindConfigFile() = %q, want ./tubetag.yaml first", got)
	}

	if paths := SearchPaths(); len(paths) != 6 || paths[1] != "./tubetag.yml" {
		t.Errorf("SearchPaths() = %v", paths)
	}
}
