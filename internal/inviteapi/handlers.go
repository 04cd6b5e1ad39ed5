package inviteapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/scille-labs/invite-conduit/internal/appctx"
	"github.com/scille-labs/invite-conduit/internal/conduit"
	"github.com/scille-labs/invite-conduit/internal/eventbus"
	"github.com/scille-labs/invite-conduit/internal/store"
)

func orgFromPath(r *http.Request) string {
	return chi.URLParam(r, "org")
}

func tokenFromPath(r *http.Request) ([16]byte, error) {
	return store.TokenFromString(chi.URLParam(r, "token"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toView(inv *store.Invitation) invitationView {
	v := invitationView{
		Token:              inv.TokenString(),
		Kind:               string(inv.Kind),
		GreeterUserID:      inv.GreeterUserID,
		GreeterHumanHandle: inv.GreeterHumanHandle,
		ClaimerEmail:       inv.ClaimerEmail,
		CreatedOn:          inv.CreatedOn,
		Status:             string(inv.Status),
	}
	if inv.Status == store.StatusDeleted {
		v.DeletedOn = inv.DeletedOn
		v.DeletedReason = string(inv.DeletedReason)
	}
	return v
}

// handleInviteNew implements invite_new (§4.E). USER-kind invitations
// require an ADMIN profile.
func (s *Server) handleInviteNew(w http.ResponseWriter, r *http.Request) {
	member, ok := GreeterFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, simpleStatusResponse{Status: "not_allowed"})
		return
	}

	var req newInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
		return
	}

	kind := store.Kind(req.Kind)
	if kind != store.KindUser && kind != store.KindDevice {
		writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
		return
	}
	if kind == store.KindUser && !member.IsAdmin() {
		writeJSON(w, http.StatusForbidden, simpleStatusResponse{Status: "not_allowed"})
		return
	}
	if req.SendEmail {
		writeJSON(w, http.StatusNotImplemented, simpleStatusResponse{Status: "not_implemented"})
		return
	}

	org := orgFromPath(r)
	inv, err := s.invitations.Create(r.Context(), org, kind, member.UserID, member.DisplayName, req.ClaimerEmail)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("invite_new failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, simpleStatusResponse{Status: "internal_error"})
		return
	}

	writeJSON(w, http.StatusOK, newInvitationResponse{Status: "ok", Invitation: toView(inv)})
}

// handleInviteDelete implements invite_delete (§4.A).
func (s *Server) handleInviteDelete(w http.ResponseWriter, r *http.Request) {
	member, ok := GreeterFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, simpleStatusResponse{Status: "not_allowed"})
		return
	}
	token, err := tokenFromPath(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
		return
	}

	var req deleteInvitationRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // reason defaults to "" -> CANCELLED below
	reason := store.DeletedReason(req.Reason)
	if reason == "" {
		reason = store.ReasonCancelled
	}

	org := orgFromPath(r)
	err = s.invitations.Delete(r.Context(), org, member.UserID, token, time.Now(), reason)
	switch {
	case err == nil:
		_ = s.bus.Publish(r.Context(), eventbus.Event{Kind: eventbus.KindStatusChanged, OrganizationID: org, Token: token, Status: string(store.StatusDeleted)})
		writeJSON(w, http.StatusOK, simpleStatusResponse{Status: "ok"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, simpleStatusResponse{Status: "not_found"})
	case errors.Is(err, store.ErrAlreadyDeleted):
		writeJSON(w, http.StatusGone, simpleStatusResponse{Status: "already_deleted"})
	default:
		appctx.GetLogger(r.Context()).Error("invite_delete failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, simpleStatusResponse{Status: "internal_error"})
	}
}

// handleInviteList implements invite_list (§4.A), annotating READY status
// from the presence tracker.
func (s *Server) handleInviteList(w http.ResponseWriter, r *http.Request) {
	member, ok := GreeterFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, simpleStatusResponse{Status: "not_allowed"})
		return
	}

	org := orgFromPath(r)
	list, err := s.invitations.List(r.Context(), org, member.UserID)
	if err != nil {
		appctx.GetLogger(r.Context()).Error("invite_list failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, simpleStatusResponse{Status: "internal_error"})
		return
	}

	views := make([]invitationView, 0, len(list))
	for _, inv := range list {
		v := toView(inv)
		if inv.Status != store.StatusDeleted && s.presence != nil && s.presence.IsReady(org, inv.Token) {
			v.Status = string(store.StatusReady)
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, listInvitationsResponse{Status: "ok", Invitations: views})
}

// handleInviteInfo implements invite_info (§4.A). Both greeters and
// claimers may call it; this router only mounts it under the greeter
// group, matching AUTHENTICATED access in the handshake abstraction (§6).
func (s *Server) handleInviteInfo(w http.ResponseWriter, r *http.Request) {
	token, err := tokenFromPath(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
		return
	}

	org := orgFromPath(r)
	inv, err := s.invitations.Get(r.Context(), org, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, simpleStatusResponse{Status: "not_found"})
			return
		}
		appctx.GetLogger(r.Context()).Error("invite_info failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, simpleStatusResponse{Status: "internal_error"})
		return
	}
	if inv.Status == store.StatusDeleted {
		writeJSON(w, http.StatusGone, infoInvitationResponse{Status: "already_deleted", Invitation: toView(inv)})
		return
	}

	writeJSON(w, http.StatusOK, infoInvitationResponse{Status: "ok", Invitation: toView(inv)})
}

// rpcSpec describes one conduit RPC's side and the ordered conduit states it
// drives (two entries for the chained 2a/2b RPCs, §4.E).
type rpcSpec struct {
	side   conduit.Side
	states []conduit.State
}

var rpcTable = map[string]rpcSpec{
	"invite_1_claimer_wait_peer":          {conduit.SideClaimer, []conduit.State{conduit.State1WaitPeers}},
	"invite_1_greeter_wait_peer":          {conduit.SideGreeter, []conduit.State{conduit.State1WaitPeers}},
	"invite_2a_claimer_send_hashed_nonce": {conduit.SideClaimer, []conduit.State{conduit.State21ClaimerHashedNonce, conduit.State22GreeterNonce}},
	"invite_2a_greeter_get_hashed_nonce":  {conduit.SideGreeter, []conduit.State{conduit.State21ClaimerHashedNonce}},
	"invite_2b_greeter_send_nonce":        {conduit.SideGreeter, []conduit.State{conduit.State22GreeterNonce, conduit.State23ClaimerNonce}},
	"invite_2b_claimer_send_nonce":        {conduit.SideClaimer, []conduit.State{conduit.State23ClaimerNonce}},
	"invite_3a_claimer_signify_trust":     {conduit.SideClaimer, []conduit.State{conduit.State31ClaimerTrust}},
	"invite_3a_greeter_wait_peer_trust":   {conduit.SideGreeter, []conduit.State{conduit.State31ClaimerTrust}},
	"invite_3b_greeter_signify_trust":     {conduit.SideGreeter, []conduit.State{conduit.State32GreeterTrust}},
	"invite_3b_claimer_wait_peer_trust":   {conduit.SideClaimer, []conduit.State{conduit.State32GreeterTrust}},
	"invite_4_greeter_communicate":        {conduit.SideGreeter, []conduit.State{conduit.State4Communicate}},
	"invite_4_claimer_communicate":        {conduit.SideClaimer, []conduit.State{conduit.State4Communicate}},
}

// handleConduitStep returns an http.HandlerFunc driving the given RPC's
// conduit_exchange chain (§4.D, §4.E).
func (s *Server) handleConduitStep(rpc string) http.HandlerFunc {
	spec := rpcTable[rpc]

	return func(w http.ResponseWriter, r *http.Request) {
		org := orgFromPath(r)
		token, err := tokenFromPath(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
			return
		}

		var req conduitStepRequest
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
				return
			}
		}

		var payload []byte
		if req.Payload != "" {
			payload, err = base64.StdEncoding.DecodeString(req.Payload)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, simpleStatusResponse{Status: "bad_request"})
				return
			}
		}

		// A claimer's conduit call is the connection presence signal the
		// claimer presence tracker (§4.F) watches for: READY while the
		// call is blocked inside the state machine, back to IDLE once it
		// returns, whatever the outcome.
		if spec.side == conduit.SideClaimer {
			s.markClaimerPresence(r.Context(), org, token, true)
			defer s.markClaimerPresence(r.Context(), org, token, false)
		}

		var result []byte
		for i, state := range spec.states {
			p := payload
			if i > 0 {
				p = nil // chained states beyond the first carry no payload (§4.E table)
			}
			result, err = s.engine.ConduitExchange(r.Context(), org, spec.side, token, state, p)
			if err != nil {
				writeConduitError(w, r.Context(), err)
				return
			}
		}

		writeJSON(w, http.StatusOK, conduitStepResponse{Status: "ok", Payload: base64.StdEncoding.EncodeToString(result)})
	}
}

// markClaimerPresence updates the invitation's soft READY status and
// publishes status_changed so the claimer presence tracker (§4.F) observes
// it, mirroring what invite_delete already does for DELETED (§4.A).
func (s *Server) markClaimerPresence(ctx context.Context, org string, token [16]byte, ready bool) {
	if err := s.invitations.SetReady(ctx, org, token, ready); err != nil {
		appctx.GetLogger(ctx).Error("SetReady failed", "error", err)
	}
	status := store.StatusIdle
	if ready {
		status = store.StatusReady
	}
	if err := s.bus.Publish(ctx, eventbus.Event{Kind: eventbus.KindStatusChanged, OrganizationID: org, Token: token, Status: string(status)}); err != nil {
		appctx.GetLogger(ctx).Error("status_changed publish failed", "error", err)
	}
}

func writeConduitError(w http.ResponseWriter, ctx context.Context, err error) {
	switch {
	case errors.Is(err, conduit.ErrNotFound):
		writeJSON(w, http.StatusNotFound, simpleStatusResponse{Status: "not_found"})
	case errors.Is(err, conduit.ErrAlreadyDeleted):
		writeJSON(w, http.StatusGone, simpleStatusResponse{Status: "already_deleted"})
	case errors.Is(err, conduit.ErrInvalidState):
		writeJSON(w, http.StatusConflict, simpleStatusResponse{Status: "invalid_state"})
	case errors.Is(err, conduit.ErrPeerEventTimeout):
		// Transport-level failure, not a conduit taxonomy status (§5, §7).
		http.Error(w, "timed out waiting for peer", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	default:
		appctx.GetLogger(ctx).Error("conduit_exchange failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, simpleStatusResponse{Status: "internal_error"})
	}
}
