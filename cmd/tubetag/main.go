package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tubetag/internal/config"
	"tubetag/internal/logger"
	"tubetag/internal/pipeline"
	"tubetag/internal/progress"
	"tubetag/internal/shutdown"
	"tubetag/pkg/utils"
)

var errUsage = errors.New("a video or playlist URL is required")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tubetag [flags] <video_or_playlist_url>",
		Short: "Download YouTube videos as MP3 and tag them with their real identity",
		Long:  longHelp(),
		Example: `  # Preview which songs a playlist contains
  tubetag --dry-run https://www.youtube.com/playlist?list=...

  # Identify with audio fingerprints, 8 videos at a time
  tubetag --acoustid-key KEY -p 8 https://www.youtube.com/playlist?list=...

  # Create a config file to persist settings
  tubetag --init-config`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runRoot,
	}
	addConfigFlags(cmd)
	return cmd
}

func longHelp() string {
	var b strings.Builder
	b.WriteString(`tubetag downloads the audio of a YouTube video or playlist, works out which
song each video really is from its title and its audio fingerprint, and writes
title, artist, album, track number, year, genre and cover art into the MP3.

Config file locations (checked in order):
`)
	for _, path := range config.SearchPaths() {
		b.WriteString("  " + path + "\n")
	}
	b.WriteString(`
Every option can also be set through a TUBETAG_<KEY> environment variable,
e.g. TUBETAG_ACOUSTID_KEY.

Logging:
  Normal mode: progress bar shown, detailed logs saved to
    ~/.local/share/tubetag/logs/
  Verbose mode: all output to stdout, no progress bar, no file logging`)
	return b.String()
}

func runRoot(cmd *cobra.Command, args []string) error {
	if initCfg, _ := cmd.Flags().GetBool("init-config"); initCfg {
		return initConfigFile()
	}
	if len(args) == 0 {
		cmd.Usage()
		return errUsage
	}

	cfg, configPath, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	sh := shutdown.New()

	log := logger.New(cfg.Verbose)
	defer log.Close()

	sh.Listen(func(os.Signal) {
		log.Warn("Interrupted, finishing active videos (press Ctrl+C again to quit)")
	})
	defer sh.Stop()

	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Warn("Failed to create log directory: %v", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("tubetag_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				log.Warn("Failed to setup file logging: %v", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if configPath != "" {
		log.Debug("Loaded configuration from: %s", configPath)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	defer sh.Shutdown()
	return run(sh, cfg, log)
}

func run(sh *shutdown.Handler, cfg config.Config, log *logger.Logger) error {
	log.Debug("Checking dependencies...")
	if err := utils.CheckDependencies(); err != nil {
		return fmt.Errorf("dependency check failed: %w", err)
	}

	tmpDir, err := utils.CreateTempDir()
	if err != nil {
		return fmt.Errorf("error creating temporary folder: %w", err)
	}
	log.Debug("Temporary folder: %s", tmpDir)

	sh.AddCleanup(func() {
		log.Debug("Cleaning up...")
		if err := utils.Cleanup(tmpDir); err != nil {
			log.Warn("Error during cleanup: %v", err)
		}
	})

	var bar *progress.Bar
	hooks := pipeline.Hooks{
		OnURLsExtracted: func(total int) {
			if !cfg.Verbose && total > 1 {
				bar = progress.New(total)
				log.SetProgressBar(true)
			}
		},
		OnProgress: func() {
			if bar != nil {
				bar.Increment()
			}
		},
	}

	results, err := pipeline.Run(sh.Context(), cfg, log, tmpDir, hooks)

	if bar != nil {
		bar.Finish()
		log.SetProgressBar(false)
	}

	if cfg.DryRun {
		printDryRun(results)
	}

	if err != nil {
		return err
	}

	log.Info("=== Process completed successfully ===")
	return nil
}

func printDryRun(results []pipeline.Result) {
	for i, r := range results {
		if r.Err != nil {
			fmt.Printf("[%d/%d] %s: %v\n", i+1, len(results), r.URL, r.Err)
			continue
		}
		fmt.Printf("[%d/%d] %s\n      -> %s - %s (%s)\n", i+1, len(results), r.Video.Title, r.Track.Artist, r.Track.Title, r.Decision.Source)
	}
}
