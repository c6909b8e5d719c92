// Package event defines the outbound events pushed to connections.
package event

import "relay/internal/domain"

type Type string

const (
	CodeSent           Type = "codeSent"
	CodeVerified       Type = "codeVerified"
	CodeInvalid        Type = "codeInvalid"
	Registered         Type = "registered"
	InviteSent         Type = "inviteSent"
	InviteReceived     Type = "inviteReceived"
	InviteAccepted     Type = "inviteAccepted"
	RelationshipFormed Type = "relationshipFormed"
	MessageAccepted    Type = "messageAccepted"
	MessageDelivered   Type = "messageDelivered"
	Error              Type = "error"
)

type Event struct {
	Type      Type   `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Payload   any    `json:"payload"`
}

type CodeSentPayload struct {
	Address string `json:"address"`
}

type CodeVerifiedPayload struct {
	Identity domain.Identity `json:"identity"`
	Token    string          `json:"token,omitempty"`
}

type CodeInvalidPayload struct {
	Reason string `json:"reason"`
}

type RegisteredPayload struct {
	Identity domain.Identity `json:"identity"`
}

type InviteSentPayload struct {
	ToCode string `json:"toCode"`
}

type InvitePayload struct {
	FromCode string `json:"fromCode"`
	ToCode   string `json:"toCode"`
}

type RelationshipFormedPayload struct {
	PeerCode string `json:"peerCode"`
}

type MessageAcceptedPayload struct {
	ToCode    string `json:"toCode"`
	Content   string `json:"content"`
	MessageID string `json:"messageId"`
}

type MessageDeliveredPayload struct {
	FromCode  string `json:"fromCode"`
	Content   string `json:"content"`
	TTL       int    `json:"ttl"`
	MessageID string `json:"messageId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
