package web

import (
	"context"
	"encoding/json"
	"net/http"

	"tubetag/internal/pipeline"
	"tubetag/pkg/utils"
)

type IdentifyRequest struct {
	URL    string `json:"url"`
	DryRun bool   `json:"dry_run,omitempty"`
	Exact  bool   `json:"exact,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "tubetag"})
}

func (s *Server) handleIdentify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.URL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}

	// Create job config with URL
	jobConfig := s.config
	jobConfig.URL = req.URL
	jobConfig.DryRun = jobConfig.DryRun || req.DryRun
	jobConfig.Exact = jobConfig.Exact || req.Exact
	jobConfig.Verbose = false
	if err := jobConfig.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobMgr.CreateJob(req.URL, jobConfig)
	s.logger.Info("Created job %s for URL: %s", job.ID, req.URL)

	go s.processJob(job.ID)

	writeJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.jobMgr.ListJobs())
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.GetJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobMgr.CancelJob(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) processJob(id string) {
	cfg, err := s.jobMgr.jobConfig(id)
	if err != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Store cancel function in job; a job cancelled while pending never starts
	cancelled := false
	s.jobMgr.UpdateJob(id, func(j *Job) {
		if j.Status.Done() {
			cancelled = true
			return
		}
		j.Cancel = cancel
		j.Status = StatusRunning
	})
	if cancelled {
		return
	}

	s.logger.Info("Starting job %s", id)

	fail := func(err error) {
		s.jobMgr.UpdateJob(id, func(j *Job) {
			if j.Status == StatusCancelled {
				return
			}
			j.Status = StatusFailed
			j.Error = err.Error()
		})
	}

	tempDir, err := utils.CreateTempDir()
	if err != nil {
		s.logger.Error("Failed to create temp dir: %v", err)
		fail(err)
		return
	}
	defer utils.Cleanup(tempDir)

	hooks := pipeline.Hooks{
		OnURLsExtracted: func(total int) {
			s.jobMgr.UpdateJob(id, func(j *Job) { j.Total = total })
		},
		OnResult: func(res pipeline.Result) {
			s.jobMgr.UpdateJob(id, func(j *Job) {
				j.Progress++
				j.Results = append(j.Results, trackResult(res))
			})
		},
	}

	if _, err := s.run(ctx, cfg, s.logger, tempDir, hooks); err != nil {
		s.logger.Error("Job %s failed: %v", id, err)
		fail(err)
		return
	}

	s.jobMgr.UpdateJob(id, func(j *Job) {
		if j.Status == StatusRunning {
			j.Status = StatusCompleted
		}
	})
	s.logger.Info("Job %s completed", id)
}

func trackResult(res pipeline.Result) TrackResult {
	tr := TrackResult{
		URL:    res.URL,
		Title:  res.Track.Title,
		Artist: res.Track.Artist,
		Album:  res.Track.Album,
		Source: string(res.Decision.Source),
		Path:   res.Path,
	}
	if res.Err != nil {
		tr.Error = res.Err.Error()
	}
	return tr
}
