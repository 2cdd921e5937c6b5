package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/server/middleware"
	"github.com/jonathan/deal-tracker/internal/triage"
	"github.com/jonathan/deal-tracker/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20
)

// ListResponse wraps a listing with its length.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// SubmitResponse reports a manual submission.
type SubmitResponse struct {
	ItemID  int64  `json:"item_id"`
	URL     string `json:"url"`
	Created bool   `json:"created"`
}

// UndoResponse reports an undo_reject.
type UndoResponse struct {
	ItemID  int64 `json:"item_id"`
	Removed bool  `json:"removed"`
}

// StatsResponse combines queue and per-origin counts.
type StatsResponse struct {
	Queue   *db.QueueStats   `json:"queue"`
	Origins []db.OriginStats `json:"origins"`
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, &ErrValidation{Field: "id", Message: "must be a positive integer"}
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter.
func queryInt(r *http.Request, name string, def, max int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, &ErrValidation{Field: name, Message: "must be a non-negative integer"}
	}
	if max > 0 && n > max {
		n = max
	}
	return n, nil
}

// decodeOptional decodes a JSON body into dst. An empty body leaves dst untouched.
func decodeOptional(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

// curator names the actor for a decision: the explicit value, else the
// logged-in operator, else the default curator.
func curator(r *http.Request, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if name, ok := middleware.Operator(r.Context()); ok {
		return name
	}
	return triage.DefaultCurator
}

func (s *Server) handleListPending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", triage.DefaultPendingLimit, maxListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := s.triage.ListPending(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(items))
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	filter := db.ItemFilter{
		Status: db.ItemStatus(r.URL.Query().Get("status")),
		Origin: r.URL.Query().Get("origin"),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, &ErrValidation{Field: "status", Message: "must be new, scraped or failed"})
		return
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", defaultListLimit, maxListLimit); err != nil {
		writeError(w, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0, 0); err != nil {
		writeError(w, err)
		return
	}

	items, err := s.store.ListItems(r.Context(), filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(items))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	detail, err := s.triage.Detail(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, detail)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req types.SubmitRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	res, err := s.submitter.IngestOne(r.Context(), req.URL, req.Title, req.Summary)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	jsonResponse(w, status, SubmitResponse{ItemID: res.ItemID, URL: res.URL, Created: res.Created})
}

func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.AcceptRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}
	req.CuratedBy = curator(r, req.CuratedBy)

	res, err := s.triage.Accept(triage.WithChannel(r.Context(), triage.ChannelUI), id, req)
	if err != nil {
		s.decisionError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req types.RejectRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	res, err := s.triage.Reject(triage.WithChannel(r.Context(), triage.ChannelUI), id, req.Reason, curator(r, req.RejectedBy))
	if err != nil {
		s.decisionError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

// decisionError adds the existing outcome to conflict responses.
func (s *Server) decisionError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *triage.DecisionConflictError
	if errors.As(err, &conflict) {
		jsonResponse(w, http.StatusConflict, map[string]any{
			"error":    conflict.Error(),
			"item_id":  conflict.ItemID,
			"existing": conflict.Existing,
		})
		return
	}
	s.fail(w, r, err)
}

func (s *Server) handleUndoReject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	removed, err := s.triage.UndoReject(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, UndoResponse{ItemID: id, Removed: removed})
}

func (s *Server) handleListApproved(w http.ResponseWriter, r *http.Request) {
	records, err := s.triage.ListApproved(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(records))
}

func (s *Server) handleListRejected(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0, maxListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := s.triage.ListRejected(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, newList(records))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	queue, err := s.store.QueueStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	origins, err := s.store.OriginStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if origins == nil {
		origins = []db.OriginStats{}
	}
	jsonResponse(w, http.StatusOK, StatsResponse{Queue: queue, Origins: origins})
}
