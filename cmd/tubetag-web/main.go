package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tubetag/internal/config"
	"tubetag/internal/logger"
	"tubetag/internal/metrics"
	"tubetag/internal/shutdown"
	"tubetag/internal/web"
)

func main() {
	var (
		port       int
		configPath string
	)

	cmd := &cobra.Command{
		Use:           "tubetag-web",
		Short:         "Run tubetag identification jobs through an HTTP and WebSocket API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(port, configPath)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file path")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
}

func serve(port int, configPath string) error {
	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	config.ApplyOverrides(&cfg, config.NewViper())

	// Setup logger with file logging
	l := logger.New(false)
	logDir := config.GetDefaultLogPath()
	if err := os.MkdirAll(logDir, 0755); err == nil {
		logPath := filepath.Join(logDir, fmt.Sprintf("tubetag-web-%d.log", time.Now().Unix()))
		if err := l.SetFileLog(logPath); err != nil {
			l.Warn("Failed to setup file logging: %v", err)
		}
	}
	defer l.Close()

	sh := shutdown.New()
	sh.Listen(func(os.Signal) { l.Info("Shutting down server...") })
	defer sh.Stop()

	jobMgr := web.NewJobManager()
	jobMgr.StartCleanup(sh.Context())
	server := web.NewServer(sh.Context(), jobMgr, cfg, l, metrics.New())

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info("Starting web server on port %d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-sh.Context().Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		l.Error("Server shutdown error: %v", err)
	}

	l.Info("Server stopped")
	return nil
}
