package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tubetag/internal/config"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"verbose":               "verbose",
	"dry-run":               "dry_run",
	"parallel":              "parallel_jobs",
	"browser":               "cookies_browser",
	"bitrate":               "audio_bitrate",
	"output":                "output_dir",
	"catalogs":              "catalogs",
	"exact":                 "exact",
	"acoustid-key":          "acoustid_key",
	"fpcalc":                "fpcalc_path",
	"spotify-client-id":     "spotify_client_id",
	"spotify-client-secret": "spotify_client_secret",
	"tolerance-divisor":     "tolerance_divisor",
	"prefer-fingerprint":    "prefer_fingerprint",
	"tag-unresolved":        "tag_unresolved",
	"timeout":               "http_timeout",
}

func addConfigFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	f := cmd.Flags()

	f.StringP("config", "c", "", "Path to config file")
	f.Bool("init-config", false, "Create a default config file and exit")

	f.BoolP("verbose", "v", false, "Show detailed output")
	f.BoolP("dry-run", "n", false, "Identify only: nothing is downloaded, tagged or moved")
	f.IntP("parallel", "p", def.ParallelJobs, "Number of videos processed in parallel (1-10)")
	f.StringP("browser", "b", def.CookiesBrowser, "Browser to extract cookies from")
	f.String("bitrate", def.AudioBitrate, "MP3 bitrate passed to yt-dlp")
	f.StringP("output", "o", def.OutputDir, "Directory the tagged files are moved to")
	f.StringSlice("catalogs", def.Catalogs, "Catalogs in priority order (deezer, itunes, musicbrainz, spotify)")
	f.BoolP("exact", "e", false, "Match titles exactly, without removing noise")
	f.String("acoustid-key", "", "AcoustID application key (enables fingerprinting)")
	f.String("fpcalc", def.FpcalcPath, "Path to the fpcalc binary")
	f.String("spotify-client-id", "", "Spotify client ID")
	f.String("spotify-client-secret", "", "Spotify client secret")
	f.Float64("tolerance-divisor", def.ToleranceDivisor, "Fingerprint tolerance is ceil(title length / divisor)")
	f.Bool("prefer-fingerprint", def.PreferFingerprint, "Give the fingerprint candidate a tolerance when arbitrating")
	f.Bool("tag-unresolved", def.TagUnresolved, "Tag unidentified videos with the video title and uploader")
	f.Duration("timeout", def.HTTPTimeout, "Catalog HTTP timeout")
}

// loadConfig builds the configuration.
// Priority: CLI flags > TUBETAG_* environment > config file > defaults
func loadConfig(cmd *cobra.Command, args []string) (config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("failed to load config: %w", err)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	v := config.NewViper()
	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return config.Config{}, "", fmt.Errorf("failed to bind --%s: %w", flag, err)
		}
	}
	config.ApplyOverrides(&cfg, v)

	if len(args) > 0 {
		cfg.URL = args[0]
	}
	return cfg, configPath, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		return nil
	}

	if err := config.SaveConfigFile(config.DefaultConfig(), path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  parallel_jobs: 1-10 (number of videos processed in parallel)")
	fmt.Println("  catalogs: deezer, itunes, musicbrainz, spotify (priority order)")
	fmt.Println("  acoustid_key: AcoustID key, enables audio fingerprinting")
	fmt.Println("  tolerance_divisor / prefer_fingerprint: fingerprint vs. title arbitration")
	fmt.Println("  cookies_browser: brave, chrome, firefox, etc.")
	fmt.Println("  verbose: true/false (enable detailed logging)")
	return nil
}
