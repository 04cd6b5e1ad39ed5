package inviteapi

import "time"

// newInvitationRequest is the body of invite_new.
type newInvitationRequest struct {
	Kind         string `json:"kind"` // "USER" or "DEVICE"
	ClaimerEmail string `json:"claimer_email,omitempty"`
	SendEmail    bool   `json:"send_email,omitempty"`
}

type invitationView struct {
	Token              string    `json:"token"`
	Kind               string    `json:"kind"`
	GreeterUserID      string    `json:"greeter_user_id"`
	GreeterHumanHandle string    `json:"greeter_human_handle,omitempty"`
	ClaimerEmail       string    `json:"claimer_email,omitempty"`
	CreatedOn          time.Time `json:"created_on"`
	Status             string    `json:"status"`
	DeletedOn          time.Time `json:"deleted_on,omitempty"`
	DeletedReason      string    `json:"deleted_reason,omitempty"`
}

type newInvitationResponse struct {
	Status     string         `json:"status"`
	Invitation invitationView `json:"invitation,omitempty"`
}

type deleteInvitationRequest struct {
	Reason string `json:"reason"` // FINISHED, CANCELLED, ROTTEN
}

type simpleStatusResponse struct {
	Status string `json:"status"`
}

type listInvitationsResponse struct {
	Status      string           `json:"status"`
	Invitations []invitationView `json:"invitations,omitempty"`
}

type infoInvitationResponse struct {
	Status     string         `json:"status"`
	Invitation invitationView `json:"invitation,omitempty"`
}

// conduitStepRequest carries the payload for one conduit RPC. Payload is
// base64-encoded per the wire convention for opaque byte strings (§6).
type conduitStepRequest struct {
	Payload string `json:"payload,omitempty"`
}

type conduitStepResponse struct {
	Status  string `json:"status"`
	Payload string `json:"payload,omitempty"`
}
