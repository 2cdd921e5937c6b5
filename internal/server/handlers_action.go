package server

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/db"
	"github.com/jonathan/deal-tracker/internal/triage"
	"go.uber.org/zap"
)

var actionPage = template.Must(template.New("action").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

// actionView is what the action page shows.
type actionView struct {
	Title   string
	Message string
}

// handleAction applies a signed approve/reject link and answers with a
// human-readable page.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		renderAction(w, http.StatusBadRequest, actionView{"Missing token", "This link is incomplete. Use the full link from the digest."})
		return
	}

	out, err := s.triage.ApplyAction(r.Context(), token)
	if err != nil {
		status, view := describeActionError(out, err)
		if status == http.StatusInternalServerError {
			s.fail(w, r, err)
			return
		}
		s.logger.Info("action link refused", zap.Int("status", status), zap.Error(err))
		renderAction(w, status, view)
		return
	}

	renderAction(w, http.StatusOK, describeActionOutcome(out))
}

func describeActionOutcome(out *triage.ActionOutcome) actionView {
	verb := "approved"
	if out.Action == actiontoken.ActionReject {
		verb = "rejected"
	}
	if !out.Applied {
		return actionView{"Already processed", fmt.Sprintf("Item #%d was already %s. Nothing changed.", out.ItemID, verb)}
	}
	return actionView{"Done", fmt.Sprintf("Item #%d %s.", out.ItemID, verb)}
}

func describeActionError(out *triage.ActionOutcome, err error) (int, actionView) {
	var (
		expired  *actiontoken.ExpiredError
		conflict *triage.DecisionConflictError
	)

	switch {
	case errors.As(err, &expired):
		return http.StatusGone, actionView{"Link expired", fmt.Sprintf(
			"This %s link for item #%d has expired. Open the triage queue to decide it.",
			expired.Claims.Action, expired.Claims.ItemID)}
	case errors.Is(err, actiontoken.ErrInvalidSignature):
		return http.StatusBadRequest, actionView{"Invalid link", "This link's signature is not valid."}
	case errors.Is(err, actiontoken.ErrInvalidFormat):
		return http.StatusBadRequest, actionView{"Invalid link", "This link is malformed."}
	case errors.Is(err, actiontoken.ErrInvalidAction):
		return http.StatusBadRequest, actionView{"Invalid link", "This link carries an unknown action."}
	case errors.As(err, &conflict):
		existing := "approved"
		if conflict.Existing == db.OutcomeRejected {
			existing = "rejected"
		}
		return http.StatusConflict, actionView{"Already decided", fmt.Sprintf(
			"Item #%d was already %s. Use the triage queue to change it.", conflict.ItemID, existing)}
	case errors.Is(err, db.ErrItemNotFound):
		id := int64(0)
		if out != nil {
			id = out.ItemID
		}
		return http.StatusNotFound, actionView{"Not found", fmt.Sprintf("Item #%d no longer exists.", id)}
	case errors.Is(err, triage.ErrActionsDisabled):
		return http.StatusServiceUnavailable, actionView{"Unavailable", "Action links are not enabled on this server."}
	default:
		return http.StatusInternalServerError, actionView{"Error", "Something went wrong."}
	}
}

func renderAction(w http.ResponseWriter, status int, view actionView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = actionPage.Execute(w, view)
}
