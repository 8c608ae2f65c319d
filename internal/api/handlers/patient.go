// Package handlers provides HTTP handlers for the registry API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/medtrack/patient-registry/internal/api/middleware"
	"github.com/medtrack/patient-registry/internal/domain/patient"
	"github.com/medtrack/patient-registry/internal/observability/metrics"
)

// dateLayout is the wire format for dates of birth.
const dateLayout = "2006-01-02"

// PatientStore is the persistence surface the handler needs.
type PatientStore interface {
	Create(ctx context.Context, p *patient.Patient) error
	Get(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
	Update(ctx context.Context, p *patient.Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter patient.ListFilter) ([]*patient.Patient, int, error)
	FindCandidates(ctx context.Context, subject *patient.Patient) ([]*patient.Patient, error)
}

// PatientHandler handles patient and identifier endpoints
type PatientHandler struct {
	store      PatientStore
	normalizer *patient.Normalizer
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPatientHandler creates a new handler
func NewPatientHandler(store PatientStore, normalizer *patient.Normalizer, m *metrics.Metrics, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{
		store:      store,
		normalizer: normalizer,
		metrics:    m,
		logger:     logger,
	}
}

// Routes returns the handler routes
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Get("/{id}/identifiers", h.ListIdentifiers)
	r.Post("/{id}/identifiers", h.AddIdentifier)
	r.Delete("/{id}/identifiers/{identifierId}", h.RemoveIdentifier)
	r.Get("/{id}/matches", h.Matches)
	return r
}

// PatientRequest is the request body for creating or updating a patient
type PatientRequest struct {
	FirstName string           `json:"first_name"`
	LastName  string           `json:"last_name"`
	DOB       string           `json:"dob,omitempty"`
	Gender    string           `json:"gender,omitempty"`
	Email     string           `json:"email,omitempty"`
	PhoneNo   string           `json:"phone_no,omitempty"`
	Address   *patient.Address `json:"address,omitempty"`
}

// Create handles POST /patients
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("patient-handler")
	ctx, span := tracer.Start(ctx, "create_patient")
	defer span.End()

	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FirstName == "" {
		h.jsonError(w, "first_name is required", http.StatusBadRequest)
		return
	}

	dob, ok := h.parseDOB(w, req.DOB)
	if !ok {
		return
	}

	p := patient.New(uuid.New(), req.FirstName, req.LastName)
	p.DOB = dob
	p.Gender = patient.Gender(req.Gender)
	p.Address = req.Address
	p.ApplyContact(h.normalizer, req.PhoneNo, req.Email)

	span.SetAttributes(attribute.String("patient_id", p.ID.String()))

	if err := h.store.Create(ctx, p); err != nil {
		h.logger.Error("create failed", zap.Error(err))
		h.jsonError(w, "failed to create patient", http.StatusInternalServerError)
		return
	}
	h.metrics.PatientsCreated.Inc()

	h.logger.Info("patient created",
		zap.String("id", p.ID.String()),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	h.writeJSON(w, http.StatusCreated, p)
}

// Get handles GET /patients/{id}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p)
}

// Update handles PUT /patients/{id}
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	var req PatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	dob, ok := h.parseDOB(w, req.DOB)
	if !ok {
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	p.FirstName = req.FirstName
	p.LastName = req.LastName
	p.DOB = dob
	p.Gender = patient.Gender(req.Gender)
	p.Address = req.Address
	p.UpdateContact(h.normalizer, req.PhoneNo, req.Email)

	if err := h.store.Update(ctx, p); err != nil {
		h.storeError(w, err)
		return
	}
	h.metrics.PatientsUpdated.Inc()

	h.writeJSON(w, http.StatusOK, p)
}

// Delete handles DELETE /patients/{id}
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(ctx, id); err != nil {
		h.storeError(w, err)
		return
	}
	h.metrics.PatientsDeleted.Inc()

	h.logger.Info("patient deleted",
		zap.String("id", id.String()),
		zap.String("request_id", middleware.GetRequestID(ctx)),
	)

	w.WriteHeader(http.StatusNoContent)
}

// ListResponse is the paged response for listing patients
type ListResponse struct {
	Items []*patient.Patient `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Size  int                `json:"size"`
}

// List handles GET /patients
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := patient.ListFilter{
		Name: r.URL.Query().Get("name"),
		Page: queryInt(r, "page", 0),
		Size: queryInt(r, "size", 10),
	}
	if raw := r.URL.Query().Get("patientId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.jsonError(w, "invalid patientId", http.StatusBadRequest)
			return
		}
		filter.ID = &id
	}

	items, total, err := h.store.List(ctx, filter)
	if err != nil {
		h.logger.Error("list failed", zap.Error(err))
		h.jsonError(w, "failed to list patients", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*patient.Patient{}
	}

	h.writeJSON(w, http.StatusOK, ListResponse{
		Items: items,
		Total: total,
		Page:  filter.Page,
		Size:  filter.Size,
	})
}

// ListIdentifiers handles GET /patients/{id}/identifiers
func (h *PatientHandler) ListIdentifiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, p.Identifiers)
}

// IdentifierRequest is the request body for adding an identifier
type IdentifierRequest struct {
	Type  patient.IdentifierType `json:"id_type"`
	Value string                 `json:"id_value"`
}

// AddIdentifier handles POST /patients/{id}/identifiers
func (h *PatientHandler) AddIdentifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	var req IdentifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Type.Valid() {
		h.jsonError(w, "invalid id_type", http.StatusBadRequest)
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	ident := p.AddIdentifier(h.normalizer, req.Type, req.Value)

	if err := h.store.Update(ctx, p); err != nil {
		h.storeError(w, err)
		return
	}
	h.metrics.IdentifiersAdded.Inc()

	h.writeJSON(w, http.StatusCreated, ident)
}

// RemoveIdentifier handles DELETE /patients/{id}/identifiers/{identifierId}
func (h *PatientHandler) RemoveIdentifier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}
	identID, ok := h.parseID(w, r, "identifierId")
	if !ok {
		return
	}

	p, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	if err := p.RemoveIdentifier(identID); err != nil {
		h.storeError(w, err)
		return
	}

	if err := h.store.Update(ctx, p); err != nil {
		h.storeError(w, err)
		return
	}
	h.metrics.IdentifiersRemoved.Inc()

	w.WriteHeader(http.StatusNoContent)
}

// MatchResult is one scored candidate
type MatchResult struct {
	PatientID uuid.UUID            `json:"patient_id"`
	Outcome   patient.MatchOutcome `json:"outcome"`
}

// Matches handles GET /patients/{id}/matches
func (h *PatientHandler) Matches(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer("patient-handler")
	ctx, span := tracer.Start(ctx, "score_matches")
	defer span.End()

	id, ok := h.parseID(w, r, "id")
	if !ok {
		return
	}

	subject, err := h.store.Get(ctx, id)
	if err != nil {
		h.storeError(w, err)
		return
	}

	start := time.Now()
	candidates, err := h.store.FindCandidates(ctx, subject)
	if err != nil {
		h.logger.Error("candidate query failed", zap.Error(err))
		h.jsonError(w, "failed to find candidates", http.StatusInternalServerError)
		return
	}

	outcomes := patient.ScoreAll(subject, candidates)
	h.metrics.MatchDuration.Observe(time.Since(start).Seconds())

	results := make([]MatchResult, 0, len(candidates))
	for _, c := range candidates {
		outcome, found := outcomes[c.ID]
		if !found {
			continue
		}
		h.metrics.MatchesScored.WithLabelValues(string(outcome)).Inc()
		results = append(results, MatchResult{PatientID: c.ID, Outcome: outcome})
	}

	span.SetAttributes(
		attribute.String("patient_id", id.String()),
		attribute.Int("candidates", len(candidates)),
	)

	h.writeJSON(w, http.StatusOK, results)
}

// storeError translates domain errors into HTTP responses.
func (h *PatientHandler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, patient.ErrNotFound):
		h.jsonError(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, patient.ErrIdentifierNotFound):
		h.jsonError(w, "identifier not found", http.StatusNotFound)
	case errors.Is(err, patient.ErrIdentifierInUse):
		h.jsonError(w, err.Error(), http.StatusConflict)
	default:
		h.logger.Error("store operation failed", zap.Error(err))
		h.jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *PatientHandler) parseID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.jsonError(w, "invalid "+param, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *PatientHandler) parseDOB(w http.ResponseWriter, raw string) (*time.Time, bool) {
	if raw == "" {
		return nil, true
	}
	dob, err := time.Parse(dateLayout, raw)
	if err != nil {
		h.jsonError(w, "invalid dob, expected YYYY-MM-DD", http.StatusBadRequest)
		return nil, false
	}
	return &dob, true
}

func (h *PatientHandler) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (h *PatientHandler) jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
