package downloader

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"tubetag/internal/config"
	"tubetag/internal/logger"
	"tubetag/internal/metadata"
)

// Downloader fetches video metadata and audio from YouTube using yt-dlp
type Downloader struct {
	Bitrate        string
	CookiesBrowser string
	Verbose        bool
	Logger         *logger.Logger
	TmpDir         string
	binary         string
}

// New creates a new Downloader instance
func New(cfg config.Config, log *logger.Logger, tmpDir string) *Downloader {
	return &Downloader{
		Bitrate:        cfg.AudioBitrate,
		CookiesBrowser: cfg.CookiesBrowser,
		Verbose:        cfg.Verbose,
		Logger:         log,
		TmpDir:         tmpDir,
		binary:         "yt-dlp",
	}
}

// ExtractURLs expands a playlist URL into its video URLs. A single video URL
// yields itself.
func (d *Downloader) ExtractURLs(ctx context.Context, url string) ([]string, error) {
	d.Logger.Debug("Extracting URLs from: %s", url)

	stdout, err := d.run(ctx, d.playlistArgs(url))
	if err != nil {
		return nil, fmt.Errorf("yt-dlp failed to extract URLs: %w", err)
	}

	urls, err := parseURLList(stdout)
	if err != nil {
		return nil, fmt.Errorf("error reading yt-dlp output: %w", err)
	}

	d.Logger.Info("Found %d videos", len(urls))
	return urls, nil
}

// FetchInfo returns the title, uploader and thumbnail of a video without
// downloading it.
func (d *Downloader) FetchInfo(ctx context.Context, url string) (metadata.VideoInfo, error) {
	stdout, err := d.run(ctx, d.infoArgs(url))
	if err != nil {
		return metadata.VideoInfo{}, fmt.Errorf("yt-dlp failed to fetch video info: %w", err)
	}
	return parseVideoInfo(stdout, url)
}

// DownloadAudio extracts the audio of a video as MP3 into TmpDir and returns
// the file path. The file name is derived from the URL.
func (d *Downloader) DownloadAudio(ctx context.Context, url string) (string, error) {
	base := filepath.Join(d.TmpDir, TempName(url))
	cmd := exec.CommandContext(ctx, d.binary, d.downloadArgs(url, base+".%(ext)s")...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if d.Verbose {
		cmd.Stdout = os.Stdout
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("download cancelled")
		}
		return "", fmt.Errorf("yt-dlp download failed: %w\nDetails: %s", err, stderr.String())
	}

	path := base + ".mp3"
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("yt-dlp did not produce %s: %w", path, err)
	}
	return path, nil
}

// TempName returns the temporary file name (without extension) for a URL.
func TempName(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (d *Downloader) run(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("cancelled")
		}
		return nil, fmt.Errorf("%w\nDetails: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (d *Downloader) withCookies(args []string) []string {
	// If empty yt-dlp will go to default (--no-cookies-from-browser)
	if d.CookiesBrowser != "" {
		args = append(args, "--cookies-from-browser", d.CookiesBrowser)
	}
	return args
}

func (d *Downloader) playlistArgs(url string) []string {
	args := []string{
		"--flat-playlist",
		"--print", "%(webpage_url,url)s",
	}
	return append(d.withCookies(args), url)
}

func (d *Downloader) infoArgs(url string) []string {
	args := []string{
		"--dump-single-json",
		"--no-download",
		"--no-playlist",
	}
	return append(d.withCookies(args), url)
}

// downloadArgs constructs command-line arguments for yt-dlp
func (d *Downloader) downloadArgs(url, outputTemplate string) []string {
	bitrate := d.Bitrate
	if bitrate == "" {
		bitrate = "320K"
	}

	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", bitrate,
		"-f", "bestaudio[ext=m4a]/bestaudio/best",
		"--retries", "10",
		"--fragment-retries", "10",
		"--no-playlist",
	}
	args = d.withCookies(args)

	return append(args, "-o", outputTemplate, url)
}

func parseURLList(out []byte) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		url := strings.TrimSpace(scanner.Text())
		if url != "" && url != "NA" {
			urls = append(urls, url)
		}
	}
	return urls, scanner.Err()
}

type ytdlpInfo struct {
	Title     string `json:"title"`
	Uploader  string `json:"uploader"`
	Channel   string `json:"channel"`
	Thumbnail string `json:"thumbnail"`
}

func parseVideoInfo(out []byte, url string) (metadata.VideoInfo, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return metadata.VideoInfo{}, fmt.Errorf("failed to parse yt-dlp output: %w", err)
	}
	if info.Title == "" {
		return metadata.VideoInfo{}, fmt.Errorf("yt-dlp returned no title for %s", url)
	}

	author := info.Uploader
	if author == "" {
		author = info.Channel
	}
	// Auto-generated "Artist - Topic" channels carry the artist name
	author = strings.TrimSuffix(author, " - Topic")

	return metadata.VideoInfo{
		URL:       url,
		Title:     info.Title,
		Author:    author,
		Thumbnail: info.Thumbnail,
	}, nil
}
