// Package integration provides end-to-end tests for the patient registry.
package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/patient-registry/internal/domain/patient"
)

// TestRegistrationLifecycle walks a record through registration, a contact
// change and duplicate scoring, checking that the identifier collection
// tracks the canonical fields at every step.
func TestRegistrationLifecycle(t *testing.T) {
	n := patient.NewNormalizer("+61")

	dob := time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC)
	subject := patient.New(uuid.New(), "Jane", "Doe")
	subject.DOB = &dob
	subject.Gender = patient.GenderFemale
	subject.ApplyContact(n, "0412 345 678", "jane@example.com")

	require.Len(t, subject.Identifiers, 2)
	assert.Equal(t, "+61412345678", subject.PhoneNo)

	// A new phone retires the old synced identifier and mints a new one.
	subject.UpdateContact(n, "0498765432", "jane@example.com")
	require.Len(t, subject.Identifiers, 2)

	var phoneIdent *patient.Identifier
	for i := range subject.Identifiers {
		if subject.Identifiers[i].Type == patient.IdentifierPhone {
			phoneIdent = &subject.Identifiers[i]
		}
	}
	require.NotNil(t, phoneIdent)
	assert.Equal(t, "+61498765432", phoneIdent.Value)

	// The synced identifier cannot be deleted out from under the field.
	err := subject.RemoveIdentifier(phoneIdent.ID)
	assert.ErrorIs(t, err, patient.ErrIdentifierInUse)

	// A sibling record registered with the same identity attributes
	// scores as an automatic match; an unrelated one does not.
	twin := patient.New(uuid.New(), "Jane", "Doe")
	twin.DOB = &dob
	twin.ApplyContact(n, "0498765432", "jane@example.com")

	stranger := patient.New(uuid.New(), "Sam", "Smith")
	stranger.ApplyContact(n, "0411111111", "sam@example.com")

	outcomes := patient.ScoreAll(subject, []*patient.Patient{twin, stranger})
	assert.Equal(t, patient.MatchAuto, outcomes[twin.ID])
	assert.Equal(t, patient.MatchNone, outcomes[stranger.ID])

	// The change event carries the full identity snapshot so consumers
	// can score without reading back.
	event, err := patient.NewEvent(subject.ID, patient.EventPatientUpdated, patient.NewChangeData(subject))
	require.NoError(t, err)
	assert.Equal(t, subject.ID.String(), event.AggregateID)
	assert.Equal(t, "Patient", event.AggregateType)
	assert.NotEmpty(t, event.EventData)
}
