package web

import (
	"context"
	"net/http"

	"tubetag/internal/config"
	"tubetag/internal/logger"
	"tubetag/internal/metrics"
	"tubetag/internal/pipeline"
)

// runFunc runs the identification pipeline for one job.
type runFunc func(ctx context.Context, cfg config.Config, log *logger.Logger, tmpDir string, hooks pipeline.Hooks) ([]pipeline.Result, error)

type Server struct {
	ctx     context.Context
	jobMgr  *JobManager
	config  config.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	run     runFunc
}

func NewServer(ctx context.Context, jobMgr *JobManager, cfg config.Config, log *logger.Logger, m *metrics.Metrics) *Server {
	s := &Server{
		ctx:     ctx,
		jobMgr:  jobMgr,
		config:  cfg,
		logger:  log,
		metrics: m,
	}
	s.run = func(ctx context.Context, cfg config.Config, log *logger.Logger, tmpDir string, hooks pipeline.Hooks) ([]pipeline.Result, error) {
		return pipeline.Run(ctx, cfg, log, tmpDir, hooks, pipeline.WithMetrics(s.metrics))
	}
	return s
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("POST /api/identify", s.handleIdentify)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
