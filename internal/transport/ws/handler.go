// Package ws serves the relay's action protocol over websocket. Each frame is
// JSON {"type", "request_id", "payload"}; replies and pushed events use the
// same envelope.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"relay/internal/domain"
	"relay/internal/event"
	"relay/internal/observability/metrics"
	"relay/internal/observability/middleware"
	"relay/internal/presence"
	"relay/internal/service"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/websocket"
)

const maxDecodeErrors = 5

type CodeIssuer interface {
	RequestCode(ctx context.Context, address string) error
	VerifyCode(ctx context.Context, address, code string) (*domain.Identity, error)
}

type RelationshipManager interface {
	Invite(ctx context.Context, from, to string) error
	Accept(ctx context.Context, from, to string) error
}

type MessageRouter interface {
	Send(ctx context.Context, in service.SendInput) (*domain.Message, error)
}

type SessionManager interface {
	Register(ctx context.Context, conn presence.Conn, in service.RegisterInput) (*domain.Identity, error)
	Disconnect(conn presence.Conn)
	Authorize(conn presence.Conn, actingCode string) error
}

type TokenSigner interface {
	Sign(sub string, ttl time.Duration) (string, error)
}

type Deps struct {
	OTP           CodeIssuer
	Relationships RelationshipManager
	Router        MessageRouter
	Sessions      SessionManager
	Tokens        TokenSigner // optional
	Logger        *slog.Logger
}

type Config struct {
	StoreTimeout   time.Duration
	OutboxSize     int
	MaxFrameBytes  int
	WriteTimeout   time.Duration
	TokenTTL       time.Duration
	AllowedOrigins []string // empty or "*" accepts any origin
}

type Handler struct {
	deps     Deps
	cfg      Config
	validate *validator.Validate
	log      *slog.Logger
	server   websocket.Server
}

func NewHandler(deps Deps, cfg Config) *Handler {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.OutboxSize <= 0 {
		cfg.OutboxSize = 64
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 720 * time.Hour
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{deps: deps, cfg: cfg, validate: newValidator(), log: log}
	h.server = websocket.Server{Handshake: h.handshake, Handler: h.serve}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.server.ServeHTTP(w, r)
}

func (h *Handler) handshake(cfg *websocket.Config, r *http.Request) error {
	if len(h.cfg.AllowedOrigins) == 0 || slices.Contains(h.cfg.AllowedOrigins, "*") {
		return nil
	}
	origin, err := websocket.Origin(cfg, r)
	if err != nil || origin == nil {
		return fmt.Errorf("ws: missing origin")
	}
	if !slices.Contains(h.cfg.AllowedOrigins, originString(origin)) {
		return fmt.Errorf("ws: origin %s not allowed", origin)
	}
	return nil
}

func originString(u *url.URL) string { return u.Scheme + "://" + u.Host }

func (h *Handler) serve(wsc *websocket.Conn) {
	if h.cfg.MaxFrameBytes > 0 {
		wsc.MaxPayloadBytes = h.cfg.MaxFrameBytes
	}
	c := newConn(wsc, h.cfg.OutboxSize, h.cfg.WriteTimeout, h.log)
	ctx := wsc.Request().Context()
	log := h.log.With(
		"remote", wsc.Request().RemoteAddr,
		"request_id", middleware.RequestIDFromContext(ctx),
		"trace_id", middleware.TraceIDFromContext(ctx),
	)
	log.Debug("ws connected")

	defer func() {
		h.deps.Sessions.Disconnect(c)
		c.stop()
		c.wait()
		_ = wsc.Close()
		log.Debug("ws disconnected")
	}()

	decodeErrors := 0
	for {
		var f frame
		err := websocket.JSON.Receive(wsc, &f)
		if err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) || isDecodeError(err) {
				decodeErrors++
				msg := "invalid frame payload"
				if errors.Is(err, websocket.ErrFrameTooLarge) {
					msg = "frame too large"
				}
				c.reply(errorEvent("", msg))
				if decodeErrors >= maxDecodeErrors {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.Debug("ws read failed", "error", err)
			}
			return
		}
		decodeErrors = 0

		if f.Type == actionDisconnect {
			return
		}
		h.dispatch(ctx, c, f)
	}
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}

// dispatch runs one action under its own deadline and answers the requesting
// connection. A panicking action is reported to the client and the
// connection carries on.
func (h *Handler) dispatch(parent context.Context, c *conn, f frame) {
	start := time.Now()
	action := f.Type
	result := "ok"
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("ws action panicked", "action", action, "panic", rec)
			c.reply(errorEvent(f.RequestID, "internal error"))
			result = "panic"
		}
		metrics.ActionsTotal.WithLabelValues(metricAction(action), result).Inc()
		metrics.ActionDurationSeconds.WithLabelValues(metricAction(action)).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(parent, h.cfg.StoreTimeout)
	defer cancel()

	var (
		ev  event.Event
		err error
	)
	switch action {
	case actionRequestCode:
		ev, err = h.requestCode(ctx, f.Payload)
	case actionVerifyCode:
		ev, err = h.verifyCode(ctx, f.Payload)
	case actionRegister:
		ev, err = h.register(ctx, c, f.Payload)
	case actionInvite:
		ev, err = h.invite(ctx, c, f.Payload)
	case actionAcceptInvite:
		ev, err = h.acceptInvite(ctx, c, f.Payload)
	case actionSendMessage:
		ev, err = h.sendMessage(ctx, c, f.Payload)
	default:
		err = fmt.Errorf("%w: unsupported action %q", domain.ErrInvalidRequest, action)
	}
	if err != nil {
		result = "error"
		ev = h.failure(action, err)
	}
	ev.RequestID = f.RequestID
	c.reply(ev)
}

func metricAction(action string) string {
	switch action {
	case actionRequestCode, actionVerifyCode, actionRegister, actionInvite, actionAcceptInvite, actionSendMessage:
		return action
	default:
		return "unknown"
	}
}

// failure turns an action error into the event sent back to the requester.
// Store and unexpected errors are logged and reported generically.
func (h *Handler) failure(action string, err error) event.Event {
	switch {
	case errors.Is(err, domain.ErrInvalidCode):
		return event.Event{Type: event.CodeInvalid, Payload: event.CodeInvalidPayload{Reason: "invalid or expired code"}}
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotRelated),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrUnauthorized):
		return errorEvent("", err.Error())
	default:
		h.log.Error("ws action failed", "action", action, "error", err)
		return errorEvent("", "service unavailable")
	}
}

func errorEvent(requestID, msg string) event.Event {
	return event.Event{Type: event.Error, RequestID: requestID, Payload: event.ErrorPayload{Message: msg}}
}

func (h *Handler) decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: payload is required", domain.ErrInvalidRequest)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: malformed payload", domain.ErrInvalidRequest)
	}
	if err := h.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (h *Handler) requestCode(ctx context.Context, raw json.RawMessage) (event.Event, error) {
	var p requestCodePayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.OTP.RequestCode(ctx, p.Address); err != nil {
		return event.Event{}, err
	}
	return event.Event{Type: event.CodeSent, Payload: event.CodeSentPayload{Address: service.NormalizeAddress(p.Address)}}, nil
}

func (h *Handler) verifyCode(ctx context.Context, raw json.RawMessage) (event.Event, error) {
	var p verifyCodePayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, domain.ErrInvalidCode
	}
	id, err := h.deps.OTP.VerifyCode(ctx, p.Address, p.Code)
	if err != nil {
		return event.Event{}, err
	}
	payload := event.CodeVerifiedPayload{Identity: *id}
	if h.deps.Tokens != nil {
		tok, err := h.deps.Tokens.Sign(id.AccessCode, h.cfg.TokenTTL)
		if err != nil {
			return event.Event{}, err
		}
		payload.Token = tok
	}
	return event.Event{Type: event.CodeVerified, Payload: payload}, nil
}

func (h *Handler) register(ctx context.Context, c *conn, raw json.RawMessage) (event.Event, error) {
	var p registerPayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, err
	}
	id, err := h.deps.Sessions.Register(ctx, c, service.RegisterInput{
		Code:    p.Code,
		Profile: domain.ProfileUpdate{Name: p.Name, Bio: p.Bio},
		Token:   p.Token,
	})
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{Type: event.Registered, Payload: event.RegisteredPayload{Identity: *id}}, nil
}

func (h *Handler) invite(ctx context.Context, c *conn, raw json.RawMessage) (event.Event, error) {
	var p pairPayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.Sessions.Authorize(c, p.FromCode); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.Relationships.Invite(ctx, p.FromCode, p.ToCode); err != nil {
		return event.Event{}, err
	}
	return event.Event{Type: event.InviteSent, Payload: event.InviteSentPayload{ToCode: p.ToCode}}, nil
}

func (h *Handler) acceptInvite(ctx context.Context, c *conn, raw json.RawMessage) (event.Event, error) {
	var p pairPayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.Sessions.Authorize(c, p.ToCode); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.Relationships.Accept(ctx, p.FromCode, p.ToCode); err != nil {
		return event.Event{}, err
	}
	return event.Event{Type: event.InviteAccepted, Payload: event.InvitePayload{FromCode: p.FromCode, ToCode: p.ToCode}}, nil
}

func (h *Handler) sendMessage(ctx context.Context, c *conn, raw json.RawMessage) (event.Event, error) {
	var p sendMessagePayload
	if err := h.decode(raw, &p); err != nil {
		return event.Event{}, err
	}
	if err := h.deps.Sessions.Authorize(c, p.FromCode); err != nil {
		return event.Event{}, err
	}
	msg, err := h.deps.Router.Send(ctx, service.SendInput{
		From:    p.FromCode,
		To:      p.ToCode,
		Content: p.Content,
		TTL:     p.TTL,
	})
	if err != nil {
		return event.Event{}, err
	}
	return event.Event{Type: event.MessageAccepted, Payload: event.MessageAcceptedPayload{
		ToCode:    msg.ToCode,
		Content:   msg.Content,
		MessageID: msg.ID.String(),
	}}, nil
}
