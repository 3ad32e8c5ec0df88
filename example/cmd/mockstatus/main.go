// Standalone mock clip application for trying clipwatch locally.
//
// It accepts form submissions, issues a session id per job and fakes the job
// moving through its stages over roughly twenty seconds. Submitting a URL
// containing "fail" produces a job that reports failure halfway through.
//
// Usage:
//
//	go run ./example/cmd/mockstatus
//
// Then in another terminal:
//
//	go run ./cmd/clipwatch serve -c example/config.yaml
//
// and open http://localhost:8080 to submit a video.
package main

import (
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const (
	addr        = ":5000"
	jobDuration = 20 * time.Second
)

// stage is one step of a fake job; a job is in the last stage whose start
// fraction it has passed.
type stage struct {
	status  string
	message string
	start   float64
}

var stages = []stage{
	{"pending", "Queued", 0},
	{"downloading", "Downloading video", 0.05},
	{"transcribing", "Transcribing audio", 0.30},
	{"analyzing", "Finding highlights", 0.60},
	{"processing", "Cutting clips", 0.85},
}

type job struct {
	url      string
	started  time.Time
	failing  bool
	finished bool
}

type statusPayload struct {
	Status   string  `json:"status"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

// progress derives a job's status from its age.
func (j *job) progress(now time.Time) statusPayload {
	frac := float64(now.Sub(j.started)) / float64(jobDuration)
	if j.failing && frac >= 0.5 {
		return statusPayload{Status: "failed", Message: "Transcription failed", Progress: 50}
	}
	if frac >= 1 {
		return statusPayload{Status: "completed", Message: "Done", Progress: 100}
	}

	current := stages[0]
	for _, s := range stages {
		if frac >= s.start {
			current = s
		}
	}
	return statusPayload{
		Status:   current.status,
		Message:  current.message,
		Progress: float64(int(frac * 100)),
	}
}

type app struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func main() {
	a := &app{jobs: make(map[string]*job)}

	r := chi.NewRouter()
	r.Post("/process", a.handleProcess)
	r.Get("/status/{sessionID}", a.handleStatus)
	r.Get("/result/{sessionID}", a.handleResult)

	fmt.Printf("Mock clip application starting on %s\n", addr)
	fmt.Println("Jobs move through: pending → downloading → transcribing → analyzing → processing → completed")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}

func (a *app) handleProcess(w http.ResponseWriter, r *http.Request) {
	videoURL := r.PostFormValue("youtube_url")
	id := uuid.NewString()

	a.mu.Lock()
	a.jobs[id] = &job{
		url:     videoURL,
		started: time.Now(),
		failing: strings.Contains(videoURL, "fail"),
	}
	a.mu.Unlock()

	slog.Info("job accepted", "session_id", id, "url", videoURL)
	http.Redirect(w, r, "/result/"+id, http.StatusFound)
}

func (a *app) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	// simulate some backend latency
	time.Sleep(50 * time.Millisecond)

	a.mu.Lock()
	j, ok := a.jobs[id]
	var p statusPayload
	if ok {
		p = j.progress(time.Now())
		if p.Status == "completed" && !j.finished {
			j.finished = true
			slog.Info("job completed", "session_id", id)
		}
	}
	a.mu.Unlock()

	if !ok {
		http.Error(w, `{"error":"session not found"}`, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// handleResult sends unfinished jobs to the progress page and shows the
// outcome of finished ones.
func (a *app) handleResult(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")

	a.mu.Lock()
	j, ok := a.jobs[id]
	var p statusPayload
	if ok {
		p = j.progress(time.Now())
	}
	a.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if p.Status != "completed" {
		http.Redirect(w, r, "/?session="+id, http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><h1>Clips ready</h1><p>Source: %s</p>", html.EscapeString(j.url))
}
