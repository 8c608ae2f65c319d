package patient

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNormalizer() *Normalizer {
	return NewNormalizer("+61")
}

func identifiersOfType(p *Patient, t IdentifierType) []Identifier {
	var out []Identifier
	for _, ident := range p.Identifiers {
		if ident.Type == t {
			out = append(out, ident)
		}
	}
	return out
}

func TestApplyContactCreatesSyncedIdentifiers(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "jane@example.com")

	assert.Equal(t, "+61412345678", p.PhoneNo)
	assert.Equal(t, "jane@example.com", p.Email)

	phones := identifiersOfType(p, IdentifierPhone)
	require.Len(t, phones, 1)
	assert.Equal(t, "+61412345678", phones[0].Value)

	emails := identifiersOfType(p, IdentifierEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "jane@example.com", emails[0].Value)
}

func TestApplyContactBlankValuesStoredVerbatim(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "   ", "")

	// Blank input lands in the field untouched and produces no identifier.
	assert.Equal(t, "   ", p.PhoneNo)
	assert.Equal(t, "", p.Email)
	assert.Empty(t, p.Identifiers)
}

func TestApplyContactPhoneOnly(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "")

	assert.Len(t, identifiersOfType(p, IdentifierPhone), 1)
	assert.Empty(t, identifiersOfType(p, IdentifierEmail))
}

func TestUpdateContactPhoneChangeReplacesIdentifier(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "jane@example.com")

	p.UpdateContact(newTestNormalizer(), "0498765432", "jane@example.com")

	assert.Equal(t, "+61498765432", p.PhoneNo)
	phones := identifiersOfType(p, IdentifierPhone)
	require.Len(t, phones, 1)
	assert.Equal(t, "+61498765432", phones[0].Value)
}

func TestUpdateContactUnchangedPhoneKeepsIdentifier(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "")
	original := identifiersOfType(p, IdentifierPhone)[0].ID

	// Same number in a different local format normalizes to the same value.
	p.UpdateContact(newTestNormalizer(), "412345678", "")

	phones := identifiersOfType(p, IdentifierPhone)
	require.Len(t, phones, 1)
	assert.Equal(t, original, phones[0].ID, "unchanged value must not churn the identifier")
}

func TestUpdateContactClearsPhone(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "")

	p.UpdateContact(newTestNormalizer(), "", "")

	assert.Equal(t, "", p.PhoneNo)
	assert.Empty(t, identifiersOfType(p, IdentifierPhone))
}

func TestUpdateContactEmailChangeReplacesIdentifier(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "", "jane@example.com")

	p.UpdateContact(newTestNormalizer(), "", "jane.doe@example.com")

	assert.Equal(t, "jane.doe@example.com", p.Email)
	emails := identifiersOfType(p, IdentifierEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, "jane.doe@example.com", emails[0].Value)
}

func TestUpdateContactBlankEmailLeavesFieldBlankWithoutIdentifier(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "", "jane@example.com")

	p.UpdateContact(newTestNormalizer(), "", "")

	// The email field always takes the new raw value; clearing retires
	// the synced identifier.
	assert.Equal(t, "", p.Email)
	assert.Empty(t, identifiersOfType(p, IdentifierEmail))
}

func TestUpdateContactBlankToBlankEmailNotAChange(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "", "")

	p.UpdateContact(newTestNormalizer(), "", "   ")

	// A whitespace-only email never counted as becoming set, but the raw
	// value still lands in the field.
	assert.Equal(t, "   ", p.Email)
	assert.Empty(t, identifiersOfType(p, IdentifierEmail))
}

func TestAddIdentifierStandalone(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")

	ident := p.AddIdentifier(newTestNormalizer(), IdentifierMRN, "MRN-001")
	require.NotNil(t, ident)
	assert.Equal(t, IdentifierMRN, ident.Type)
	assert.Equal(t, "MRN-001", ident.Value)
	assert.Equal(t, p.ID, ident.PatientID)
}

func TestAddIdentifierNormalizesPhone(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")

	ident := p.AddIdentifier(newTestNormalizer(), IdentifierPhone, "0412345678")
	assert.Equal(t, "+61412345678", ident.Value)
	// The canonical field is not touched by standalone adds.
	assert.Equal(t, "", p.PhoneNo)
}

func TestRemoveIdentifierNotFound(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")

	err := p.RemoveIdentifier(uuid.New())
	assert.ErrorIs(t, err, ErrIdentifierNotFound)
}

func TestRemoveIdentifierGuardsCanonicalPhone(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "0412345678", "")
	ident := identifiersOfType(p, IdentifierPhone)[0]

	err := p.RemoveIdentifier(ident.ID)
	assert.ErrorIs(t, err, ErrIdentifierInUse)
	assert.Len(t, p.Identifiers, 1, "rejected removal must not mutate")
}

func TestRemoveIdentifierGuardsCanonicalEmail(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "", "jane@example.com")
	ident := identifiersOfType(p, IdentifierEmail)[0]

	err := p.RemoveIdentifier(ident.ID)
	assert.ErrorIs(t, err, ErrIdentifierInUse)
}

func TestRemoveIdentifierAllowedAfterFieldChanged(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	p.ApplyContact(newTestNormalizer(), "", "jane@example.com")

	// A standalone identifier holding the old address survives the sync,
	// and once the field moved on it is removable.
	stale := p.AddIdentifier(newTestNormalizer(), IdentifierEmail, "old@example.com")
	require.NoError(t, p.RemoveIdentifier(stale.ID))
}

func TestRemoveIdentifierStandaloneMRN(t *testing.T) {
	p := New(uuid.New(), "Jane", "Doe")
	ident := p.AddIdentifier(newTestNormalizer(), IdentifierMRN, "MRN-001")

	require.NoError(t, p.RemoveIdentifier(ident.ID))
	assert.Empty(t, p.Identifiers)
}

func TestIdentifierTypeValid(t *testing.T) {
	assert.True(t, IdentifierMRN.Valid())
	assert.True(t, IdentifierPhone.Valid())
	assert.False(t, IdentifierType("PASSPORT").Valid())
}
