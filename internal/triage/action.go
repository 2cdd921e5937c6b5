package triage

import (
	"context"
	"errors"

	"github.com/jonathan/deal-tracker/internal/actiontoken"
	"github.com/jonathan/deal-tracker/internal/types"
)

// ErrActionsDisabled is returned by ApplyAction when no verifier is configured.
var ErrActionsDisabled = errors.New("signed actions are not enabled")

// ActionOutcome reports what a signed action did. Applied is false when the
// item had already been decided the same way.
type ActionOutcome struct {
	ItemID  int64              `json:"item_id"`
	Action  actiontoken.Action `json:"action"`
	Applied bool               `json:"applied"`
}

// ApplyAction verifies a signed token and performs the transition it carries.
// Approvals take every field from the extraction. Token errors are returned
// unchanged so callers can tell expired links from forged ones.
func (e *Engine) ApplyAction(ctx context.Context, token string) (*ActionOutcome, error) {
	if e.verifier == nil {
		return nil, ErrActionsDisabled
	}
	claims, err := e.verifier.Verify(token)
	if err != nil {
		return nil, err
	}

	ctx = WithChannel(ctx, ChannelLink)
	out := &ActionOutcome{ItemID: claims.ItemID, Action: claims.Action}

	var res Result
	switch claims.Action {
	case actiontoken.ActionApprove:
		res, err = e.Accept(ctx, claims.ItemID, types.AcceptRequest{CuratedBy: LinkActor})
	case actiontoken.ActionReject:
		reason := LinkRejectNote
		res, err = e.Reject(ctx, claims.ItemID, &reason, LinkActor)
	default:
		return nil, actiontoken.ErrInvalidAction
	}
	if err != nil {
		return out, err
	}
	out.Applied = res.Applied
	return out, nil
}
