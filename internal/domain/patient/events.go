package patient

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of patient lifecycle event.
type EventType string

const (
	EventPatientCreated EventType = "PatientCreated"
	EventPatientUpdated EventType = "PatientUpdated"
	EventPatientDeleted EventType = "PatientDeleted"
)

// Event is the envelope for a patient lifecycle event. Events are written to
// the outbox in the same transaction as the mutation they describe.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates an event for the given patient.
func NewEvent(patientID uuid.UUID, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   patientID.String(),
		AggregateType: "Patient",
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// ChangeData is the payload of created and updated events: a snapshot of the
// identity-relevant fields, enough for a consumer to run match scoring
// without a read back.
type ChangeData struct {
	PatientID string     `json:"patient_id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	DOB       *time.Time `json:"dob,omitempty"`
	Gender    Gender     `json:"gender,omitempty"`
	Email     string     `json:"email,omitempty"`
	PhoneNo   string     `json:"phone_no,omitempty"`
	Status    Status     `json:"status"`
}

// DeletedData is the payload of deleted events.
type DeletedData struct {
	PatientID string    `json:"patient_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewChangeData snapshots the identity-relevant fields of p.
func NewChangeData(p *Patient) ChangeData {
	return ChangeData{
		PatientID: p.ID.String(),
		FirstName: p.FirstName,
		LastName:  p.LastName,
		DOB:       p.DOB,
		Gender:    p.Gender,
		Email:     p.Email,
		PhoneNo:   p.PhoneNo,
		Status:    p.Status,
	}
}
