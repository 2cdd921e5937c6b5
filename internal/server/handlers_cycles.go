package server

import (
	"net/http"

	"github.com/jonathan/deal-tracker/internal/pipeline"
	"github.com/jonathan/deal-tracker/internal/scheduler"
	"go.uber.org/zap"
)

// CycleResponse reports an on-demand cycle.
type CycleResponse struct {
	Report *pipeline.CycleReport `json:"report,omitempty"`
	Errors []string              `json:"errors,omitempty"`
}

// handleRunCycle runs one pipeline cycle and returns its report.
func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		writeError(w, &ErrFeatureDisabled{Feature: "scheduler"})
		return
	}

	report, err := s.cycles.RunNow(r.Context(), scheduler.TriggerManual, nil)
	if report == nil && err != nil {
		s.fail(w, r, err)
		return
	}

	resp := CycleResponse{Report: report}
	for _, st := range report.Stages {
		if st.Err != nil {
			resp.Errors = append(resp.Errors, st.Stage+": "+st.Err.Error())
		}
	}
	jsonResponse(w, http.StatusOK, resp)
}

// handleRunCycleStream runs one cycle and streams stage progress as SSE.
func (s *Server) handleRunCycleStream(w http.ResponseWriter, r *http.Request) {
	if s.cycles == nil {
		writeError(w, &ErrFeatureDisabled{Feature: "scheduler"})
		return
	}

	stream, err := newCycleStream(w)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	report, err := s.cycles.RunNow(r.Context(), scheduler.TriggerManual, func(event pipeline.ProgressEvent) {
		if err := stream.stage(event); err != nil {
			s.logger.Warn("failed to write SSE event", zap.Error(err))
		}
	})
	stream.finish(report, err)
}
