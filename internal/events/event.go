// Package events defines the domain event envelope and the
// commit-then-publish machinery that carries membership, workspace, and
// user transitions to interested consumers.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"identity-service/internal/auth"
)

// Topics are logical event types; the broker topic equals the type tag.
// Delivery is at-least-once and ordered only per partition key, so handlers
// must tolerate redelivery and cross-key reordering.
const (
	TopicWorkspaceProvisioning = "workspace.provisioning"
	TopicWorkspaceCreated      = "workspace.created"
	TopicWorkspaceDeleted      = "workspace.deleted"

	TopicMembershipCreated = "workspace.membership.created"
	TopicMembershipUpdated = "workspace.membership.updated"
	TopicMembershipDeleted = "workspace.membership.deleted"

	TopicUserCreated = "user.created"
	TopicUserUpdated = "user.updated"
	TopicUserDeleted = "user.deleted"
)

// Envelope wraps every published event with identity and tracing metadata.
type Envelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Actor         string          `json:"actor,omitempty"`
	ActorType     string          `json:"actor_type,omitempty"`
	Payload       json.RawMessage `json:"payload"`

	// Key is the partition key (not serialised); events sharing a key keep
	// their relative order on the transport.
	Key string `json:"-"`
}

// NewEnvelope builds an envelope for the given type and payload. The payload
// must marshal cleanly; a marshal failure is a programming error and panics.
func NewEnvelope(eventType, key, correlationID string, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic("events: unmarshalable payload for " + eventType + ": " + err.Error())
	}
	return Envelope{
		ID:            uuid.New().String(),
		Type:          eventType,
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID,
		Payload:       raw,
		Key:           key,
	}
}

// NewFromContext builds an envelope, taking the correlation id and actor
// metadata from the request context. Events emitted outside a request (e.g.
// by the event worker) carry a "system" actor.
func NewFromContext(ctx context.Context, eventType, key string, payload any) Envelope {
	env := NewEnvelope(eventType, key, auth.CorrelationIDFrom(ctx), payload)
	if claims, ok := auth.ClaimsFrom(ctx); ok {
		env.Actor = claims.Subject
		env.ActorType = "user"
	} else {
		env.Actor = "identity-service"
		env.ActorType = "system"
	}
	return env
}

// DecodePayload unmarshals the envelope payload into out.
func (e Envelope) DecodePayload(out any) error {
	return json.Unmarshal(e.Payload, out)
}

// MembershipPayload describes a membership transition.
type MembershipPayload struct {
	UserID      string    `json:"user_id"`
	WorkspaceID string    `json:"workspace_id"`
	Roles       []string  `json:"roles"`
	Status      string    `json:"status"`
	JoinedAt    time.Time `json:"joined_at"`
}

// WorkspacePayload describes a workspace transition.
type WorkspacePayload struct {
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name,omitempty"`
	Status      string `json:"status"`
}

// UserPayload describes a user transition. OldEmail and Invalidate let
// downstream caches evict entries keyed by the previous address.
type UserPayload struct {
	UserID             string `json:"user_id"`
	Email              string `json:"email"`
	OldEmail           string `json:"old_email,omitempty"`
	GivenName          string `json:"given_name"`
	FamilyName         string `json:"family_name"`
	Active             bool   `json:"is_active"`
	CurrentWorkspaceID string `json:"current_workspace_id,omitempty"`
	Invalidate         bool   `json:"invalidate"`
}
