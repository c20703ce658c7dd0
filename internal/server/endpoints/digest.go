package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/digest"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
)

// DigestTracker records the digest run started through the API. Runs
// outlive the request, so the server holds one tracker for all requests.
type DigestTracker struct {
	mu      sync.Mutex
	running bool
	started time.Time
	last    *digest.Report
	lastErr string
}

// begin marks a run as started. It returns false if one is in flight.
func (t *DigestTracker) begin(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return false
	}
	t.running = true
	t.started = now
	return true
}

func (t *DigestTracker) finish(report *digest.Report, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	if report != nil {
		t.last = report
	}
	t.lastErr = ""
	if err != nil {
		t.lastErr = err.Error()
	}
}

// Status returns a snapshot of the tracker.
func (t *DigestTracker) Status() DigestStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := DigestStatus{Running: t.running, Last: t.last, LastError: t.lastErr}
	if t.running {
		started := t.started
		st.StartedAt = &started
	}
	return st
}

// DigestRunRequest is the request body for POST /api/digest/run.
type DigestRunRequest struct {
	DryRun bool `json:"dry_run"`
}

// DigestRunResponse acknowledges a started run.
type DigestRunResponse struct {
	Started bool `json:"started"`
	DryRun  bool `json:"dry_run"`
}

// DigestStatus is the response for GET /api/digest/status.
type DigestStatus struct {
	Running   bool           `json:"running"`
	StartedAt *time.Time     `json:"started_at,omitempty"`
	Last      *digest.Report `json:"last,omitempty"`
	LastError string         `json:"last_error,omitempty"`
}

// Table renders the per-subscriber results of the last run.
func (s DigestStatus) Table() ([]string, [][]string) {
	if s.Last == nil {
		return []string{"Running", "Last Error"}, [][]string{{strconv.FormatBool(s.Running), s.LastError}}
	}
	return ReportRows(s.Last)
}

// ReportRows renders per-subscriber results for table output.
func ReportRows(r *digest.Report) ([]string, [][]string) {
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		status := "sent"
		if !res.Success {
			status = "failed"
		} else if res.PapersCount == 0 {
			status = "skipped"
		}
		rows = append(rows, []string{res.Email, strconv.Itoa(res.PapersCount), status, res.Error})
	}
	return []string{"Email", "Papers", "Status", "Error"}, rows
}

// RunDigestEndpoint handles POST /api/digest/run.
type RunDigestEndpoint struct {
	Tracker *DigestTracker
}

func (e *RunDigestEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/digest/run", e.handler
}

func (e *RunDigestEndpoint) RequiresInit() bool { return true }

func (e *RunDigestEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DigestRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	runner := svcctx.RunnerFrom(r.Context())
	if runner == nil || e.Tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "digest runner not initialized")
		return
	}
	if !e.Tracker.begin(time.Now()) {
		writeError(w, http.StatusConflict, digest.ErrRunInProgress.Error())
		return
	}

	logger := svcctx.LoggerFrom(r.Context())
	// The run continues after the response is written.
	ctx := context.WithoutCancel(r.Context())
	go func() {
		report, err := runner.Run(ctx, req.DryRun)
		if err != nil {
			logger.Error("digest run failed", "error", err)
		}
		e.Tracker.finish(report, err)
	}()

	writeJSON(w, http.StatusAccepted, DigestRunResponse{Started: true, DryRun: req.DryRun})
}

func (e *RunDigestEndpoint) Command(getServerURL func() string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a digest run on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DigestRunResponse
			if err := client.Post(cmd.Context(), "/api/digest/run", DigestRunRequest{DryRun: dryRun}, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Println("Digest run started. Check progress with: paperpulse api digest status")
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Search only, send and save nothing")
	return cmd
}

// DigestStatusEndpoint handles GET /api/digest/status.
type DigestStatusEndpoint struct {
	Tracker *DigestTracker
}

func (e *DigestStatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/digest/status", e.handler
}

func (e *DigestStatusEndpoint) RequiresInit() bool { return false }

func (e *DigestStatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if e.Tracker == nil {
		writeJSON(w, http.StatusOK, DigestStatus{})
		return
	}
	writeJSON(w, http.StatusOK, e.Tracker.Status())
}

func (e *DigestStatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last digest run started on the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DigestStatus
			if err := client.Get(cmd.Context(), "/api/digest/status", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
