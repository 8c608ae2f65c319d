package patient

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Gender is the administrative gender of a patient.
type Gender string

const (
	GenderFemale Gender = "FEMALE"
	GenderMale   Gender = "MALE"
	GenderOther  Gender = "OTHER"
)

// Label returns the display label for the gender value.
func (g Gender) Label() string {
	switch g {
	case GenderFemale:
		return "Female"
	case GenderMale:
		return "Male"
	case GenderOther:
		return "Other"
	}
	return string(g)
}

// Genders lists all gender values in a stable order.
func Genders() []Gender {
	return []Gender{GenderFemale, GenderMale, GenderOther}
}

// Status represents the patient record lifecycle status.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// IdentifierType classifies a patient identifier.
type IdentifierType string

const (
	IdentifierMRN        IdentifierType = "MRN"
	IdentifierNationalID IdentifierType = "NATIONAL_ID"
	IdentifierPhone      IdentifierType = "PHONE"
	IdentifierEmail      IdentifierType = "EMAIL"
)

// Label returns the display label for the identifier type.
func (t IdentifierType) Label() string {
	switch t {
	case IdentifierMRN:
		return "Mrn"
	case IdentifierNationalID:
		return "National ID"
	case IdentifierPhone:
		return "Phone"
	case IdentifierEmail:
		return "Email"
	}
	return string(t)
}

// IdentifierTypes lists all identifier types in a stable order.
func IdentifierTypes() []IdentifierType {
	return []IdentifierType{IdentifierMRN, IdentifierNationalID, IdentifierPhone, IdentifierEmail}
}

// Valid reports whether t is a known identifier type.
func (t IdentifierType) Valid() bool {
	switch t {
	case IdentifierMRN, IdentifierNationalID, IdentifierPhone, IdentifierEmail:
		return true
	}
	return false
}

// Identifier is a typed key/value pair owned by exactly one patient. PHONE and
// EMAIL identifiers derived from the patient's canonical fields are kept in
// sync by the contact operations below; MRN and NATIONAL_ID identifiers are
// user-managed.
type Identifier struct {
	ID        uuid.UUID      `json:"id"`
	PatientID uuid.UUID      `json:"patient_id"`
	Type      IdentifierType `json:"id_type"`
	Value     string         `json:"id_value"`
	CreatedAt time.Time      `json:"created_at"`
}

// Address holds a structured postal address. Not used for matching.
type Address struct {
	Line     string `json:"address"`
	Suburb   string `json:"suburb"`
	State    string `json:"state"`
	Postcode string `json:"postcode"`
}

// Patient is the aggregate root of the registry. The identifier collection is
// owned by the patient: deleting the patient deletes its identifiers.
type Patient struct {
	ID          uuid.UUID    `json:"id"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	DOB         *time.Time   `json:"dob,omitempty"`
	Gender      Gender       `json:"gender,omitempty"`
	Email       string       `json:"email,omitempty"`
	PhoneNo     string       `json:"phone_no,omitempty"`
	Address     *Address     `json:"address,omitempty"`
	Status      Status       `json:"status"`
	Identifiers []Identifier `json:"identifiers"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Domain errors surfaced to callers for translation into transport responses.
var (
	ErrNotFound           = errors.New("patient not found")
	ErrIdentifierNotFound = errors.New("identifier not found")
	ErrIdentifierInUse    = errors.New("identifier mirrors the patient's current contact value")
)

// New creates an active patient with a fresh identifier collection.
func New(id uuid.UUID, firstName, lastName string) *Patient {
	now := time.Now().UTC()
	return &Patient{
		ID:          id,
		FirstName:   firstName,
		LastName:    lastName,
		Status:      StatusActive,
		Identifiers: make([]Identifier, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyContact sets the canonical phone and email from raw input on the create
// path. Fields are stored verbatim; the phone is additionally normalized when
// non-blank. A synced identifier is appended for each non-blank value. Either
// value may be absent without blocking the other.
func (p *Patient) ApplyContact(n *Normalizer, rawPhone, rawEmail string) {
	p.PhoneNo = rawPhone
	p.Email = rawEmail

	if !isBlank(rawPhone) {
		p.PhoneNo = n.Normalize(rawPhone)
		p.appendIdentifier(IdentifierPhone, p.PhoneNo)
	}
	if !isBlank(rawEmail) {
		p.appendIdentifier(IdentifierEmail, rawEmail)
	}
}

// UpdateContact reconciles the canonical phone and email with new raw input.
// A changed value replaces the synced identifier of that type, remove-old
// before add-new; an unchanged value leaves the identifier collection alone.
// Phone and email are handled independently.
//
// Email change detection compares against the current EMAIL identifier value
// and does not treat "set to blank" as becoming set, so an update can leave a
// blank string in the email field with no identifier behind it.
func (p *Patient) UpdateContact(n *Normalizer, rawPhone, rawEmail string) {
	p.Email = rawEmail

	var newPhone string
	if !isBlank(rawPhone) {
		newPhone = n.Normalize(rawPhone)
	}

	phoneChanged := (p.PhoneNo == "" && newPhone != "") ||
		(p.PhoneNo != "" && p.PhoneNo != newPhone)
	if phoneChanged {
		p.PhoneNo = newPhone
		p.replaceSyncedIdentifier(IdentifierPhone, newPhone)
	}

	oldEmail := p.syncedValue(IdentifierEmail)
	emailChanged := (oldEmail == "" && rawEmail != "" && !isBlank(rawEmail)) ||
		(oldEmail != "" && oldEmail != rawEmail)
	if emailChanged {
		newEmail := rawEmail
		if isBlank(newEmail) {
			newEmail = ""
		}
		p.replaceSyncedIdentifier(IdentifierEmail, newEmail)
	}

	p.UpdatedAt = time.Now().UTC()
}

// AddIdentifier appends a standalone identifier, one requested directly rather
// than derived from a canonical field. PHONE values are normalized first.
// The canonical fields are untouched and no existing identifier is removed.
func (p *Patient) AddIdentifier(n *Normalizer, t IdentifierType, value string) *Identifier {
	if t == IdentifierPhone && !isBlank(value) {
		value = n.Normalize(value)
	}
	return p.appendIdentifier(t, value)
}

// RemoveIdentifier deletes the identifier with the given id. Removal is
// rejected with ErrIdentifierInUse while the identifier's value is the
// patient's current canonical phone or email; the caller must change the
// canonical field first, which itself retires the stale identifier. A
// rejected call makes no mutation.
func (p *Patient) RemoveIdentifier(id uuid.UUID) error {
	idx := -1
	for i := range p.Identifiers {
		if p.Identifiers[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrIdentifierNotFound
	}

	ident := p.Identifiers[idx]
	if ident.Type == IdentifierPhone && ident.Value != "" && ident.Value == p.PhoneNo {
		return fmt.Errorf("%w: cannot delete phone identifier that matches patient's phone number", ErrIdentifierInUse)
	}
	if ident.Type == IdentifierEmail && ident.Value != "" && ident.Value == p.Email {
		return fmt.Errorf("%w: cannot delete email identifier that matches patient's email", ErrIdentifierInUse)
	}

	p.Identifiers = append(p.Identifiers[:idx], p.Identifiers[idx+1:]...)
	return nil
}

// FindIdentifier returns the identifier with the given id, if present.
func (p *Patient) FindIdentifier(id uuid.UUID) (*Identifier, bool) {
	for i := range p.Identifiers {
		if p.Identifiers[i].ID == id {
			return &p.Identifiers[i], true
		}
	}
	return nil, false
}

// replaceSyncedIdentifier is the single mutation path for field-synced
// identifier types. It removes the first identifier of type t, then appends a
// fresh one when value is non-empty. Keeping every sync here preserves the
// at-most-one PHONE / at-most-one EMAIL invariant for field-derived
// identifiers.
func (p *Patient) replaceSyncedIdentifier(t IdentifierType, value string) {
	for i := range p.Identifiers {
		if p.Identifiers[i].Type == t {
			p.Identifiers = append(p.Identifiers[:i], p.Identifiers[i+1:]...)
			break
		}
	}
	if value != "" {
		p.appendIdentifier(t, value)
	}
}

// syncedValue returns the value of the first identifier of type t, or "".
func (p *Patient) syncedValue(t IdentifierType) string {
	for i := range p.Identifiers {
		if p.Identifiers[i].Type == t {
			return p.Identifiers[i].Value
		}
	}
	return ""
}

func (p *Patient) appendIdentifier(t IdentifierType, value string) *Identifier {
	p.Identifiers = append(p.Identifiers, Identifier{
		ID:        uuid.New(),
		PatientID: p.ID,
		Type:      t,
		Value:     value,
		CreatedAt: time.Now().UTC(),
	})
	return &p.Identifiers[len(p.Identifiers)-1]
}
