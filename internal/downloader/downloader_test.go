package downloader

import (
	"context"
	"slices"
	"strings"
	"testing"

	"tubetag/internal/config"
	"tubetag/internal/logger"
)

func TestParseVideoInfo(t *testing.T) {
	tests := []struct {
		name       string
		json       string
		wantTitle  string
		wantAuthor string
		wantErr    bool
	}{
		{
			name:       "uploader",
			json:       `{"title":"Artist - Song (Official Video)","uploader":"ArtistVEVO","thumbnail":"https://i.ytimg.com/vi/x/maxres.jpg"}`,
			wantTitle:  "Artist - Song (Official Video)",
			wantAuthor: "ArtistVEVO",
		},
		{
			name:       "channel fallback",
			json:       `{"title":"Song","channel":"Some Channel"}`,
			wantTitle:  "Song",
			wantAuthor: "Some Channel",
		},
		{
			name:       "topic channel",
			json:       `{"title":"Song","uploader":"Artist - Topic"}`,
			wantTitle:  "Song",
			wantAuthor: "Artist",
		},
		{
			name:    "missing title",
			json:    `{"uploader":"x"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			json:    `ERROR: video unavailable`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := parseVideoInfo([]byte(tt.json), "https://youtu.be/x")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVideoInfo() error: %v", err)
			}
			if info.Title != tt.wantTitle || info.Author != tt.wantAuthor {
				t.Errorf("got %q / %q, want %q / %q", info.Title, info.Author, tt.wantTitle, tt.wantAuthor)
			}
			if info.URL != "https://youtu.be/x" {
				t.Errorf("URL = %q", info.URL)
			}
		})
	}
}

func TestParseURLList(t *testing.T) {
	out := "https://www.youtube.com/watch?v=a\n\nNA\nhttps://www.youtube.com/watch?v=b\n"
	urls, err := parseURLList([]byte(out))
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 2 || urls[1] != "https://www.youtube.com/watch?v=b" {
		t.Errorf("urls = %v", urls)
	}
}

func TestTempName(t *testing.T) {
	a := TempName("https://youtu.be/a")
	if len(a) != 64 {
		t.Errorf("expected a hex sha256, got %q", a)
	}
	if a != TempName("https://youtu.be/a") {
		t.Error("TempName is not deterministic")
	}
	if a == TempName("https://youtu.be/b") {
		t.Error("different URLs share a temp name")
	}
}

func TestDownloadArgs(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AudioBitrate = "192K"
	cfg.CookiesBrowser = "firefox"
	d := New(cfg, logger.New(false), t.TempDir())

	args := d.downloadArgs("https://youtu.be/x", "/tmp/abc.%(ext)s")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"--audio-format mp3",
		"--audio-quality 192K",
		"--cookies-from-browser firefox",
		"-o /tmp/abc.%(ext)s",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "https://youtu.be/x" {
		t.Errorf("URL should be the last argument: %v", args)
	}
	if strings.Count(joined, "https://youtu.be/x") != 1 {
		t.Errorf("URL appears more than once: %v", args)
	}
}

func TestArgsWithoutCookies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.CookiesBrowser = ""
	d := New(cfg, logger.New(false), t.TempDir())

	for _, args := range [][]string{
		d.downloadArgs("u", "o"),
		d.infoArgs("u"),
		d.playlistArgs("u"),
	} {
		if slices.Contains(args, "--cookies-from-browser") {
			t.Errorf("unexpected cookies flag: %v", args)
		}
	}

	if !slices.Contains(d.infoArgs("u"), "--dump-single-json") {
		t.Error("info args should dump json")
	}
	if !slices.Contains(d.playlistArgs("u"), "--flat-playlist") {
		t.Error("playlist args should be flat")
	}
}

func TestMissingBinary(t *testing.T) {
	d := New(config.DefaultConfig(), logger.New(false), t.TempDir())
	d.binary = "/nonexistent/yt-dlp"

	if _, err := d.FetchInfo(context.Background(), "https://youtu.be/x"); err == nil {
		t.Error("FetchInfo should fail without yt-dlp")
	}
	if _, err := d.DownloadAudio(context.Background(), "https://youtu.be/x"); err == nil {
		t.Error("DownloadAudio should fail without yt-dlp")
	}
}
