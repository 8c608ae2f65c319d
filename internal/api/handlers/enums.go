package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medtrack/patient-registry/internal/domain/patient"
)

// EnumHandler serves the enumeration values clients need to populate forms.
type EnumHandler struct{}

// NewEnumHandler creates a new handler
func NewEnumHandler() *EnumHandler {
	return &EnumHandler{}
}

// Routes returns the handler routes
func (h *EnumHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/genders", h.Genders)
	r.Get("/identifier-types", h.IdentifierTypes)
	return r
}

// EnumValue pairs a stored value with its display label
type EnumValue struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Genders handles GET /enums/genders
func (h *EnumHandler) Genders(w http.ResponseWriter, r *http.Request) {
	values := make([]EnumValue, 0, 3)
	for _, g := range patient.Genders() {
		values = append(values, EnumValue{Value: string(g), Label: g.Label()})
	}
	writeEnum(w, values)
}

// IdentifierTypes handles GET /enums/identifier-types
func (h *EnumHandler) IdentifierTypes(w http.ResponseWriter, r *http.Request) {
	values := make([]EnumValue, 0, 4)
	for _, t := range patient.IdentifierTypes() {
		values = append(values, EnumValue{Value: string(t), Label: t.Label()})
	}
	writeEnum(w, values)
}

func writeEnum(w http.ResponseWriter, values []EnumValue) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(values)
}
