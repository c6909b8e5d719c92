package ws

import (
	"encoding/json"

	"relay/internal/accesscode"

	"github.com/go-playground/validator/v10"
)

// Inbound action names.
const (
	actionRequestCode  = "requestCode"
	actionVerifyCode   = "verifyCode"
	actionRegister     = "register"
	actionInvite       = "invite"
	actionAcceptInvite = "acceptInvite"
	actionSendMessage  = "sendMessage"
	actionDisconnect   = "disconnect"
)

type frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type requestCodePayload struct {
	Address string `json:"address" validate:"required,max=254"`
}

type verifyCodePayload struct {
	Address string `json:"address" validate:"required,max=254"`
	Code    string `json:"code" validate:"required,max=16"`
}

type registerPayload struct {
	Code  string  `json:"code" validate:"required,accesscode"`
	Name  *string `json:"name" validate:"omitempty,max=64"`
	Bio   *string `json:"bio" validate:"omitempty,max=1024"`
	Token string  `json:"token"`
}

type pairPayload struct {
	FromCode string `json:"fromCode" validate:"required,accesscode"`
	ToCode   string `json:"toCode" validate:"required,accesscode,nefield=FromCode"`
}

type sendMessagePayload struct {
	FromCode string `json:"fromCode" validate:"required,accesscode"`
	ToCode   string `json:"toCode" validate:"required,accesscode"`
	Content  string `json:"content" validate:"required"`
	TTL      int    `json:"ttl" validate:"gte=0,max=31536000"`
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("accesscode", func(fl validator.FieldLevel) bool {
		return accesscode.Valid(fl.Field().String())
	})
	return v
}
