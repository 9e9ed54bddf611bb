package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	audit "enrolld/pkg/platform/audit"
	txcontext "enrolld/pkg/platform/tx"
)

// Store persists audit events to Postgres. When the emitting service runs
// inside a transaction the append joins it, so an audit row commits if and
// only if the domain change it describes commits.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// payload is the JSON column shape. IDs are serialized as strings; zero IDs
// are omitted.
type payload struct {
	OrgID           string `json:"org_id,omitempty"`
	RegistrationID  string `json:"registration_id,omitempty"`
	ActorID         string `json:"actor_id,omitempty"`
	Channel         string `json:"channel,omitempty"`
	MaskedRecipient string `json:"masked_recipient,omitempty"`
	Reason          string `json:"reason,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	p := payload{
		Channel:         event.Channel,
		MaskedRecipient: event.MaskedRecipient,
		Reason:          event.Reason,
		RequestID:       event.RequestID,
	}
	if !event.OrgID.IsZero() {
		p.OrgID = event.OrgID.String()
	}
	if !event.RegistrationID.IsZero() {
		p.RegistrationID = event.RegistrationID.String()
	}
	if !event.ActorID.IsZero() {
		p.ActorID = event.ActorID.String()
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	q := txcontext.Resolve(ctx, s.db)
	_, err = q.ExecContext(ctx, `
		INSERT INTO audit_events (id, category, action, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), string(event.Category), string(event.Action), event.Timestamp, body)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
