package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"tubetag/internal/config"
	"tubetag/internal/logger"
	"tubetag/internal/metadata"
	"tubetag/internal/metrics"
	"tubetag/internal/pipeline"
)

func newTestServer(t *testing.T, run runFunc) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := config.DefaultConfig()
	cfg.OutputDir = t.TempDir()
	s := NewServer(ctx, NewJobManager(), cfg, logger.New(false), metrics.New())
	s.run = run

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return s, srv
}

func fakeRun(results ...pipeline.Result) runFunc {
	return func(ctx context.Context, cfg config.Config, log *logger.Logger, tmpDir string, hooks pipeline.Hooks) ([]pipeline.Result, error) {
		hooks.OnURLsExtracted(len(results))
		for _, r := range results {
			hooks.OnResult(r)
		}
		return results, nil
	}
}

func waitForStatus(t *testing.T, s *Server, id string, want JobStatus) *JobResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.jobMgr.GetJob(id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func postIdentify(t *testing.T, srv *httptest.Server, body string) (*http.Response, JobResponse) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/identify", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var job JobResponse
	if resp.StatusCode == http.StatusAccepted {
		if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
			t.Fatal(err)
		}
	}
	return resp, job
}

func TestIdentifyRunsJob(t *testing.T) {
	s, srv := newTestServer(t, fakeRun(pipeline.Result{
		URL:      "https://youtu.be/omt",
		Track:    metadata.TrackInfo{Title: "One More Time", Artist: "Daft Punk"},
		Decision: metadata.Decision{Source: metadata.SourceFingerprint},
	}))

	resp, job := postIdentify(t, srv, `{"url":"https://youtu.be/omt"}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	done := waitForStatus(t, s, job.ID, StatusCompleted)
	if done.Progress != 1 || done.Total != 1 || len(done.Results) != 1 {
		t.Fatalf("job = %+v", done)
	}
	if r := done.Results[0]; r.Artist != "Daft Punk" || r.Source != "fingerprint" {
		t.Errorf("result = %+v", r)
	}

	getResp, err := http.Get(srv.URL + "/api/jobs/" + job.ID)
	if err != nil {
		t.Fatal(err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Errorf("GET job status = %d", getResp.StatusCode)
	}
}

func TestIdentifyValidation(t *testing.T) {
	_, srv := newTestServer(t, fakeRun())

	for _, body := range []string{`not json`, `{}`, `{"url":"youtube.com/watch"}`} {
		resp, _ := postIdentify(t, srv, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, resp.StatusCode)
		}
	}
}

func TestJobFailure(t *testing.T) {
	s, srv := newTestServer(t, func(context.Context, config.Config, *logger.Logger, string, pipeline.Hooks) ([]pipeline.Result, error) {
		return nil, errors.New("all 2 videos failed")
	})

	_, job := postIdentify(t, srv, `{"url":"https://youtu.be/x"}`)
	failed := waitForStatus(t, s, job.ID, StatusFailed)
	if failed.Error == "" {
		t.Error("failed job should carry the error")
	}
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	s, srv := newTestServer(t, func(ctx context.Context, _ config.Config, _ *logger.Logger, _ string, _ pipeline.Hooks) ([]pipeline.Result, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	_, job := postIdentify(t, srv, `{"url":"https://youtu.be/x"}`)
	<-started

	resp, err := http.Post(srv.URL+"/api/jobs/"+job.ID+"/cancel", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}

	// the cancelled status survives the pipeline returning an error
	time.Sleep(50 * time.Millisecond)
	waitForStatus(t, s, job.ID, StatusCancelled)
}

func TestUnknownJob(t *testing.T) {
	_, srv := newTestServer(t, fakeRun())

	resp, err := http.Get(srv.URL + "/api/jobs/job_missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocketStreamsUntilDone(t *testing.T) {
	release := make(chan struct{})
	s, srv := newTestServer(t, func(ctx context.Context, _ config.Config, _ *logger.Logger, _ string, hooks pipeline.Hooks) ([]pipeline.Result, error) {
		<-release
		hooks.OnURLsExtracted(1)
		hooks.OnResult(pipeline.Result{URL: "https://youtu.be/x", Decision: metadata.Decision{Source: metadata.SourceText}})
		return nil, nil
	})

	job := s.jobMgr.CreateJob("https://youtu.be/x", s.config)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?job_id=" + job.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	go s.processJob(job.ID)
	close(release)

	var last JobResponse
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var snap JobResponse
		if err := conn.ReadJSON(&snap); err != nil {
			break
		}
		last = snap
	}

	if last.Status != StatusCompleted {
		t.Fatalf("last snapshot status = %q, want completed", last.Status)
	}
	if len(last.Results) != 1 || last.Results[0].Source != "text" {
		t.Errorf("results = %+v", last.Results)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	_, srv := newTestServer(t, fakeRun())

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "tubetag_resolve_duration_seconds") {
		t.Errorf("metrics output missing histogram:\n%s", body)
	}
}
