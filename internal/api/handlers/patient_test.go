package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medtrack/patient-registry/internal/domain/patient"
	"github.com/medtrack/patient-registry/internal/observability/metrics"
)

// fakeStore is an in-memory PatientStore for handler tests.
type fakeStore struct {
	patients map[uuid.UUID]*patient.Patient
}

func newFakeStore() *fakeStore {
	return &fakeStore{patients: make(map[uuid.UUID]*patient.Patient)}
}

func (s *fakeStore) Create(_ context.Context, p *patient.Patient) error {
	s.patients[p.ID] = p
	return nil
}

func (s *fakeStore) Get(_ context.Context, id uuid.UUID) (*patient.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

func (s *fakeStore) Update(_ context.Context, p *patient.Patient) error {
	if _, ok := s.patients[p.ID]; !ok {
		return patient.ErrNotFound
	}
	s.patients[p.ID] = p
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := s.patients[id]; !ok {
		return patient.ErrNotFound
	}
	delete(s.patients, id)
	return nil
}

func (s *fakeStore) List(_ context.Context, filter patient.ListFilter) ([]*patient.Patient, int, error) {
	var items []*patient.Patient
	for _, p := range s.patients {
		if filter.ID != nil && p.ID != *filter.ID {
			continue
		}
		if filter.Name != "" &&
			!strings.Contains(strings.ToLower(p.FirstName), strings.ToLower(filter.Name)) &&
			!strings.Contains(strings.ToLower(p.LastName), strings.ToLower(filter.Name)) {
			continue
		}
		items = append(items, p)
	}
	return items, len(items), nil
}

func (s *fakeStore) FindCandidates(_ context.Context, subject *patient.Patient) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range s.patients {
		if p.ID != subject.ID {
			out = append(out, p)
		}
	}
	return out, nil
}

func newTestRouter(store *fakeStore) chi.Router {
	h := NewPatientHandler(store, patient.NewNormalizer("+61"), metrics.NewForTesting(), zap.NewNop())
	r := chi.NewRouter()
	r.Mount("/patients", h.Routes())
	return r
}

func doRequest(t *testing.T, r chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreatePatient(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane",
		LastName:  "Doe",
		DOB:       "1990-03-14",
		Gender:    "FEMALE",
		Email:     "jane@example.com",
		PhoneNo:   "0412345678",
	})

	require.Equal(t, http.StatusCreated, rec.Code)

	var p patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Jane", p.FirstName)
	assert.Equal(t, "+61412345678", p.PhoneNo)
	assert.Len(t, p.Identifiers, 2)
	assert.Equal(t, patient.StatusActive, p.Status)
	require.NotNil(t, p.DOB)
	assert.Equal(t, 1990, p.DOB.Year())
}

func TestCreatePatientValidation(t *testing.T) {
	r := newTestRouter(newFakeStore())

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{LastName: "Doe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane", DOB: "14/03/1990",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPatientNotFound(t *testing.T) {
	r := newTestRouter(newFakeStore())

	rec := doRequest(t, r, http.MethodGet, "/patients/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/patients/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdatePatientReplacesPhoneIdentifier(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane", PhoneNo: "0412345678",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, r, http.MethodPut, "/patients/"+created.ID.String(), PatientRequest{
		FirstName: "Jane", PhoneNo: "0498765432",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var updated patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "+61498765432", updated.PhoneNo)
	require.Len(t, updated.Identifiers, 1)
	assert.Equal(t, "+61498765432", updated.Identifiers[0].Value)
}

func TestDeletePatient(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{FirstName: "Jane"})
	var created patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, r, http.MethodDelete, "/patients/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, "/patients/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddAndRemoveIdentifier(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{FirstName: "Jane"})
	var created patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	base := "/patients/" + created.ID.String() + "/identifiers"

	rec = doRequest(t, r, http.MethodPost, base, IdentifierRequest{
		Type: patient.IdentifierMRN, Value: "MRN-001",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var ident patient.Identifier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ident))
	assert.Equal(t, "MRN-001", ident.Value)

	rec = doRequest(t, r, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var idents []patient.Identifier
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idents))
	assert.Len(t, idents, 1)

	rec = doRequest(t, r, http.MethodDelete, base+"/"+ident.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(t, r, http.MethodDelete, base+"/"+ident.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddIdentifierInvalidType(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{FirstName: "Jane"})
	var created patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, r, http.MethodPost, "/patients/"+created.ID.String()+"/identifiers", IdentifierRequest{
		Type: "PASSPORT", Value: "P1234",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveSyncedIdentifierConflicts(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane", Email: "jane@example.com",
	})
	var created patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Len(t, created.Identifiers, 1)

	rec = doRequest(t, r, http.MethodDelete,
		"/patients/"+created.ID.String()+"/identifiers/"+created.Identifiers[0].ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMatchesEndpoint(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane", LastName: "Doe", DOB: "1990-03-14", Email: "jane@example.com",
	})
	var subject patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subject))

	rec = doRequest(t, r, http.MethodPost, "/patients", PatientRequest{
		FirstName: "Jane", LastName: "Doe", DOB: "1990-03-14", Email: "jane@example.com",
	})
	var twin patient.Patient
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &twin))

	rec = doRequest(t, r, http.MethodGet, "/patients/"+subject.ID.String()+"/matches", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var results []MatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, twin.ID, results[0].PatientID)
	assert.Equal(t, patient.MatchAuto, results[0].Outcome)
}

func TestListPatients(t *testing.T) {
	store := newFakeStore()
	r := newTestRouter(store)

	for _, name := range []string{"Jane", "John", "Janet"} {
		rec := doRequest(t, r, http.MethodPost, "/patients", PatientRequest{FirstName: name, LastName: "Doe"})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doRequest(t, r, http.MethodGet, "/patients?name=jan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Items, 2)
}

func TestEnumEndpoints(t *testing.T) {
	r := chi.NewRouter()
	r.Mount("/enums", NewEnumHandler().Routes())

	rec := doRequest(t, r, http.MethodGet, "/enums/genders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var genders []EnumValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &genders))
	assert.Len(t, genders, 3)
	assert.Equal(t, "FEMALE", genders[0].Value)
	assert.Equal(t, "Female", genders[0].Label)

	rec = doRequest(t, r, http.MethodGet, "/enums/identifier-types", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var types []EnumValue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &types))
	assert.Len(t, types, 4)
	assert.Equal(t, "National ID", types[1].Label)
}
