package audit

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/bastionhq/bastion/internal/models"
	"github.com/google/uuid"
)

// Event types emitted by the management layer
const (
	EventTypeUserLogin        = "user_login"
	EventTypeUserLogout       = "user_logout"
	EventTypeUserCreated      = "user_created"
	EventTypeUserUpdated      = "user_updated"
	EventTypeUserDeleted      = "user_deleted"
	EventTypeClientAuth       = "client_authentication"
	EventTypeAccountLocked    = "account_locked"
	EventTypeDomainDeleted    = "domain_deleted"
	EventTypeSystemTask       = "system_task"
	EventTypeDeviceRegistered = "device_registered"
	EventTypeDeviceRevoked    = "device_revoked"
)

// Outcome is the result of the audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Attributes holds additional structured context for a record.
type Attributes map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (a *Attributes) Scan(value interface{}) error {
	if value == nil {
		*a = make(Attributes)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return models.ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*a = Attributes(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (a Attributes) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}

// Record is an immutable structured description of a security or
// management-relevant event. Once built it is never mutated; reporters
// receive it by value.
type Record struct {
	ID         string     `db:"id" json:"id"`
	Type       string     `db:"event_type" json:"event_type"`
	Outcome    Outcome    `db:"outcome" json:"outcome"`
	Actor      string     `db:"actor" json:"actor,omitempty"`
	Target     string     `db:"target" json:"target,omitempty"`
	Domain     string     `db:"domain" json:"domain,omitempty"`
	Timestamp  time.Time  `db:"occurred_at" json:"occurred_at"`
	Attributes Attributes `db:"attributes" json:"attributes,omitempty"`
}

// Source is the closed set of event shapes that can be turned into a
// Record. Each variant owns its conversion; adding a new event kind means
// adding a variant here, not subclassing anything. The unexported method
// keeps the set closed to this package.
type Source interface {
	buildRecord(id string, now time.Time) Record
}

// UserAction describes an end-user or end-user-affecting event.
type UserAction struct {
	Type     string
	Domain   string
	ActorID  string
	TargetID string
	Outcome  Outcome
	Reason   string
}

func (a UserAction) buildRecord(id string, now time.Time) Record {
	attrs := Attributes{"affected_user_id": a.TargetID}
	if a.Reason != "" {
		attrs["reason"] = a.Reason
	}
	return Record{
		ID:         id,
		Type:       a.Type,
		Outcome:    a.Outcome,
		Actor:      a.ActorID,
		Target:     a.TargetID,
		Domain:     a.Domain,
		Timestamp:  now,
		Attributes: attrs,
	}
}

// ClientAuthAction describes an OAuth2 client authentication result.
type ClientAuthAction struct {
	Domain    string
	ClientID  string
	GrantType string
	Outcome   Outcome
	Reason    string
}

func (a ClientAuthAction) buildRecord(id string, now time.Time) Record {
	attrs := Attributes{"client_id": a.ClientID}
	if a.GrantType != "" {
		attrs["grant_type"] = a.GrantType
	}
	if a.Reason != "" {
		attrs["reason"] = a.Reason
	}
	return Record{
		ID:         id,
		Type:       EventTypeClientAuth,
		Outcome:    a.Outcome,
		Actor:      a.ClientID,
		Target:     a.ClientID,
		Domain:     a.Domain,
		Timestamp:  now,
		Attributes: attrs,
	}
}

// AdminAction describes a management-API mutation performed by an operator.
type AdminAction struct {
	Type         string
	Domain       string
	ActorID      string
	ResourceType string
	ResourceID   string
	Outcome      Outcome
	Changes      map[string]interface{}
}

func (a AdminAction) buildRecord(id string, now time.Time) Record {
	attrs := Attributes{"resource_type": a.ResourceType}
	if len(a.Changes) > 0 {
		attrs["changes"] = a.Changes
	}
	return Record{
		ID:         id,
		Type:       a.Type,
		Outcome:    a.Outcome,
		Actor:      a.ActorID,
		Target:     a.ResourceID,
		Domain:     a.Domain,
		Timestamp:  now,
		Attributes: attrs,
	}
}

// SystemTaskAction describes work performed by the platform itself, with no
// human or client actor.
type SystemTaskAction struct {
	Task    string
	Domain  string
	Outcome Outcome
	Detail  string
}

func (a SystemTaskAction) buildRecord(id string, now time.Time) Record {
	attrs := Attributes{"task": a.Task}
	if a.Detail != "" {
		attrs["detail"] = a.Detail
	}
	return Record{
		ID:         id,
		Type:       EventTypeSystemTask,
		Outcome:    a.Outcome,
		Actor:      "system",
		Target:     a.Task,
		Domain:     a.Domain,
		Timestamp:  now,
		Attributes: attrs,
	}
}

// DeviceAction describes a device registration or revocation.
type DeviceAction struct {
	Type     string
	Domain   string
	UserID   string
	DeviceID string
	Outcome  Outcome
}

func (a DeviceAction) buildRecord(id string, now time.Time) Record {
	return Record{
		ID:        id,
		Type:      a.Type,
		Outcome:   a.Outcome,
		Actor:     a.UserID,
		Target:    a.DeviceID,
		Domain:    a.Domain,
		Timestamp: now,
		Attributes: Attributes{
			"device_id": a.DeviceID,
		},
	}
}

// NewRecord builds the immutable record for a source. Pure value
// construction, no I/O.
func NewRecord(src Source) Record {
	return src.buildRecord(uuid.New().String(), time.Now().UTC())
}
