package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"relay/internal/domain"
	"relay/internal/event"
	"relay/internal/observability/metrics"
	"relay/internal/presence"

	"github.com/google/uuid"
)

// Authorizer decides whether two identities may exchange messages.
type Authorizer interface {
	AreRelated(ctx context.Context, a, b string) (bool, error)
}

// MaxTTL is the longest message lifetime accepted, in seconds.
const MaxTTL = 365 * 24 * 60 * 60

type SendInput struct {
	From    string
	To      string
	Content string
	TTL     int // seconds; 0 means no expiry
}

// MessageRouter persists messages between related identities and pushes them
// to the recipient when it is online.
type MessageRouter struct {
	auth       Authorizer
	messages   MessageRepository
	presence   *presence.Registry
	maxContent int
	now        func() time.Time
}

func NewMessageRouter(auth Authorizer, messages MessageRepository, reg *presence.Registry, maxContent int) *MessageRouter {
	return &MessageRouter{
		auth:       auth,
		messages:   messages,
		presence:   reg,
		maxContent: maxContent,
		now:        time.Now,
	}
}

// Send stores the message and returns it once it is durably recorded. Live
// delivery is best effort and does not affect the result.
func (r *MessageRouter) Send(ctx context.Context, in SendInput) (*domain.Message, error) {
	if in.From == "" || in.To == "" {
		return nil, fmt.Errorf("%w: fromCode and toCode are required", domain.ErrInvalidRequest)
	}
	if in.Content == "" || !utf8.ValidString(in.Content) {
		return nil, fmt.Errorf("%w: content is required", domain.ErrInvalidRequest)
	}
	if r.maxContent > 0 && len(in.Content) > r.maxContent {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", domain.ErrInvalidRequest, r.maxContent)
	}
	if in.TTL < 0 || in.TTL > MaxTTL {
		return nil, fmt.Errorf("%w: ttl must be between 0 and %d seconds", domain.ErrInvalidRequest, MaxTTL)
	}

	related, err := r.auth.AreRelated(ctx, in.From, in.To)
	if err != nil {
		return nil, err
	}
	if !related {
		return nil, domain.ErrNotRelated
	}

	now := r.now().UTC()
	msg := &domain.Message{
		ID:        uuid.New(),
		FromCode:  in.From,
		ToCode:    in.To,
		Content:   in.Content,
		TTL:       in.TTL,
		CreatedAt: now,
	}
	if in.TTL > 0 {
		exp := now.Add(time.Duration(in.TTL) * time.Second)
		msg.ExpiresAt = &exp
	}
	if err := r.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	metrics.MessagesStoredTotal.WithLabelValues().Inc()
	metrics.MessageContentBytes.WithLabelValues().Observe(float64(len(msg.Content)))

	delivered := push(r.presence, in.To, event.Event{
		Type: event.MessageDelivered,
		Payload: event.MessageDeliveredPayload{
			FromCode:  msg.FromCode,
			Content:   msg.Content,
			TTL:       msg.TTL,
			MessageID: msg.ID.String(),
		},
	})
	if delivered {
		metrics.MessagesDeliveredLiveTotal.WithLabelValues().Inc()
	}
	return msg, nil
}
