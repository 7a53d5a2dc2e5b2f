package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openclinic-ke/gbvcare/internal/shared/events"
)

// Subscriber turns domain events into audit entries. It listens to
// everything on the bus, so any module that publishes is audited
// without wiring each handler to the log.
type Subscriber struct {
	repo *Repository
	log  zerolog.Logger
}

// NewSubscriber creates an audit subscriber
func NewSubscriber(repo *Repository, log zerolog.Logger) *Subscriber {
	return &Subscriber{repo: repo, log: log}
}

// Start subscribes to all domain events
func (s *Subscriber) Start(ctx context.Context, bus events.EventBus) error {
	return bus.Subscribe(ctx, "*", s.handle)
}

func (s *Subscriber) handle(ctx context.Context, event events.Event) error {
	actorType := ActorTypeStaff
	if event.ActorID == "" || event.Source == "his" {
		actorType = ActorTypeSystem
	}

	entry := NewEntry(
		actorType,
		event.ActorID.String(),
		event.ActorIP,
		event.Type,
		event.Source,
		resourceID(event.Data),
		changes(event.Data),
		"", // prev_hash is assigned by Append
	)
	// Keep the event's time, not the delivery time.
	entry.Timestamp = event.Timestamp

	if err := s.repo.Append(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("event_type", event.Type).Msg("failed to audit event")
		return err
	}

	return nil
}

// resourceID pulls the subject record's ID out of the event payload.
// Modules put it under patient_id, follow_up_id or user_id.
func resourceID(data any) string {
	m := asMap(data)
	for _, key := range []string{"follow_up_id", "patient_id", "user_id"} {
		if v, ok := m[key]; ok {
			return fmt.Sprintf("%v", v)
		}
	}
	return ""
}

func changes(data any) map[string]any {
	return asMap(data)
}

// asMap normalizes the event payload, which arrives as a typed map
// locally but as decoded JSON off the bus.
func asMap(data any) map[string]any {
	if m, ok := data.(map[string]any); ok {
		return m
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
