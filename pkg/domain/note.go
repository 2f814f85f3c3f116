package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OwnerKind names the record type a note is attached to.
type OwnerKind string

// Note owners.
const (
	OwnerPatient     OwnerKind = "patient"
	OwnerAppointment OwnerKind = "appointment"
)

// Owner is the record a note belongs to: either a patient or an appointment.
// Construct it with PatientOwner, AppointmentOwner or ParseOwner.
type Owner struct {
	kind OwnerKind
	id   string
}

// PatientOwner attaches a note to a patient.
func PatientOwner(id string) Owner { return Owner{kind: OwnerPatient, id: id} }

// AppointmentOwner attaches a note to an appointment.
func AppointmentOwner(id string) Owner { return Owner{kind: OwnerAppointment, id: id} }

// ParseOwner validates a stored (entity_type, entity_id) pair.
func ParseOwner(kind, id string) (Owner, error) {
	id = strings.TrimSpace(id)
	if strings.TrimSpace(kind) == "" {
		return Owner{}, Required(EntityNote, "entity_type")
	}
	if id == "" {
		return Owner{}, Required(EntityNote, "entity_id")
	}
	switch OwnerKind(strings.ToLower(strings.TrimSpace(kind))) {
	case OwnerPatient:
		return PatientOwner(id), nil
	case OwnerAppointment:
		return AppointmentOwner(id), nil
	default:
		return Owner{}, &ValidationError{Entity: EntityNote, Field: "entity_type", Reason: fmt.Sprintf("unknown owner kind %q", kind)}
	}
}

// Kind returns the owner record type.
func (o Owner) Kind() OwnerKind { return o.kind }

// ID returns the owner record identifier.
func (o Owner) ID() string { return o.id }

// IsZero reports whether the owner is unset.
func (o Owner) IsZero() bool { return o.kind == "" && o.id == "" }

// Valid reports whether the owner names a known kind and an id.
func (o Owner) Valid() bool {
	return (o.kind == OwnerPatient || o.kind == OwnerAppointment) && o.id != ""
}

// Is reports whether o is the given owner.
func (o Owner) Is(other Owner) bool { return o.kind == other.kind && o.id == other.id }

func (o Owner) String() string { return string(o.kind) + ":" + o.id }

// Note is a free-text medical note attached to a patient or an appointment.
type Note struct {
	Base
	Owner  Owner  `json:"-"`
	Text   string `json:"-"`
	Author string `json:"-"`
}

type noteJSON struct {
	Base
	EntityType OwnerKind `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Text       string    `json:"text"`
	Author     string    `json:"user"`
}

// MarshalJSON flattens the owner into entity_type/entity_id.
func (n Note) MarshalJSON() ([]byte, error) {
	return json.Marshal(noteJSON{
		Base:       n.Base,
		EntityType: n.Owner.kind,
		EntityID:   n.Owner.id,
		Text:       n.Text,
		Author:     n.Author,
	})
}

// UnmarshalJSON restores the owner from entity_type/entity_id. Unknown kinds
// are kept verbatim so a document never fails to load because of one note.
func (n *Note) UnmarshalJSON(data []byte) error {
	var raw noteJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	n.Base = raw.Base
	n.Owner = Owner{kind: OwnerKind(strings.ToLower(string(raw.EntityType))), id: raw.EntityID}
	n.Text = raw.Text
	n.Author = raw.Author
	return nil
}
