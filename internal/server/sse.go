package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/deal-tracker/internal/pipeline"
)

var errStreamingUnsupported = errors.New("streaming not supported")

// cycleStream writes pipeline progress to the client as Server-Sent Events.
type cycleStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newCycleStream(w http.ResponseWriter) (*cycleStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	return &cycleStream{w: w, flusher: flusher}, nil
}

func (s *cycleStream) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// stage forwards one progress event.
func (s *cycleStream) stage(event pipeline.ProgressEvent) error {
	return s.send("stage", event)
}

// finish emits the terminal events for a cycle. A cycle that produced a
// report but had failing stages still completes, flagged with errors.
func (s *cycleStream) finish(report *pipeline.CycleReport, runErr error) {
	if runErr != nil {
		_ = s.send("error", map[string]string{"error": runErr.Error()})
	}
	if report == nil {
		return
	}
	status := "completed"
	if runErr != nil {
		status = "completed_with_errors"
	}
	_ = s.send("complete", map[string]string{"cycle_id": report.CycleID, "status": status})
}
