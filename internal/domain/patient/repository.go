// Package patient provides the patient registry repository.
package patient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/medtrack/patient-registry/internal/infrastructure/postgres"
	"github.com/medtrack/patient-registry/internal/infrastructure/redpanda"
)

// ListFilter narrows a patient listing. ID wins over Name when both are set.
type ListFilter struct {
	ID   *uuid.UUID
	Name string
	Page int
	Size int
}

// Repository persists patients and their identifier collections. Every
// mutation writes a lifecycle event to the outbox inside the same transaction.
type Repository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{pool: pool, logger: logger}
}

const patientColumns = `id, first_name, last_name, dob, gender, email, phone_no, address, status, created_at, updated_at`

// Create inserts a patient with its identifiers and a PatientCreated event.
func (r *Repository) Create(ctx context.Context, p *Patient) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	addressJSON, err := marshalAddress(p.Address)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO patient (id, first_name, last_name, dob, gender, email, phone_no, address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, query,
		p.ID, p.FirstName, p.LastName, p.DOB, nullStr(string(p.Gender)),
		nullStr(p.Email), nullStr(p.PhoneNo), addressJSON, p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}

	for i := range p.Identifiers {
		if err := insertIdentifier(ctx, tx, &p.Identifiers[i]); err != nil {
			return err
		}
	}

	if err := r.writeEvent(ctx, tx, p.ID, EventPatientCreated, NewChangeData(p)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get retrieves a patient with its identifier collection.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patient WHERE id = $1`, id)
	p, err := scanPatient(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	if err := r.loadIdentifiers(ctx, []*Patient{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// Update persists the patient's fields and reconciles the stored identifier
// rows against the in-memory collection: removed identifiers are deleted,
// new ones inserted, surviving ones left alone.
func (r *Repository) Update(ctx context.Context, p *Patient) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	addressJSON, err := marshalAddress(p.Address)
	if err != nil {
		return err
	}

	query := `
		UPDATE patient
		SET first_name = $2, last_name = $3, dob = $4, gender = $5, email = $6,
		    phone_no = $7, address = $8, status = $9, updated_at = $10
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query,
		p.ID, p.FirstName, p.LastName, p.DOB, nullStr(string(p.Gender)),
		nullStr(p.Email), nullStr(p.PhoneNo), addressJSON, p.Status, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := r.syncIdentifiers(ctx, tx, p); err != nil {
		return err
	}

	if err := r.writeEvent(ctx, tx, p.ID, EventPatientUpdated, NewChangeData(p)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete hard-deletes a patient. Identifier rows go with it via ON DELETE
// CASCADE, so no orphaned identifiers remain retrievable.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	data := DeletedData{PatientID: id.String(), DeletedAt: time.Now().UTC()}
	if err := r.writeEvent(ctx, tx, id, EventPatientDeleted, data); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns a page of patients plus the total count. An ID filter resolves
// to at most one record; a name filter matches case-insensitive substrings of
// either name; otherwise all patients are listed.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]*Patient, int, error) {
	if filter.ID != nil {
		p, err := r.Get(ctx, *filter.ID)
		if errors.Is(err, ErrNotFound) {
			return []*Patient{}, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		return []*Patient{p}, 1, nil
	}

	size := filter.Size
	if size <= 0 {
		size = 10
	}
	offset := filter.Page * size

	var (
		rows pgx.Rows
		err  error
	)
	if !isBlank(filter.Name) {
		query := `
			SELECT ` + patientColumns + `, COUNT(*) OVER() AS total
			FROM patient
			WHERE first_name ILIKE '%' || $1 || '%' OR last_name ILIKE '%' || $1 || '%'
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = r.pool.Query(ctx, query, filter.Name, size, offset)
	} else {
		query := `
			SELECT ` + patientColumns + `, COUNT(*) OVER() AS total
			FROM patient
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = r.pool.Query(ctx, query, size, offset)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var (
		patients []*Patient
		total    int
	)
	for rows.Next() {
		p, n, err := scanPatientWithTotal(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
		total = n
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := r.loadIdentifiers(ctx, patients); err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

// FindCandidates returns every record sharing at least one of {name pair,
// dob, email, phone} with the subject, excluding the subject itself. Absent
// subject values disable their clause.
func (r *Repository) FindCandidates(ctx context.Context, subject *Patient) ([]*Patient, error) {
	query := `
		SELECT ` + patientColumns + `
		FROM patient
		WHERE id <> $1
		  AND (($2::text IS NOT NULL AND $3::text IS NOT NULL AND first_name = $2 AND last_name = $3)
		    OR ($4::date IS NOT NULL AND dob = $4)
		    OR ($5::text IS NOT NULL AND email = $5)
		    OR ($6::text IS NOT NULL AND phone_no = $6))
	`
	rows, err := r.pool.Query(ctx, query,
		subject.ID, nullStr(subject.FirstName), nullStr(subject.LastName),
		subject.DOB, nullStr(subject.Email), nullStr(subject.PhoneNo),
	)
	if err != nil {
		return nil, fmt.Errorf("find candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, p)
	}
	return candidates, rows.Err()
}

// syncIdentifiers diffs the stored identifier rows against p.Identifiers.
func (r *Repository) syncIdentifiers(ctx context.Context, tx pgx.Tx, p *Patient) error {
	rows, err := tx.Query(ctx, `SELECT id FROM patient_identifier WHERE patient_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("load identifier ids: %w", err)
	}

	stored := make(map[uuid.UUID]bool)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		stored[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	kept := make(map[uuid.UUID]bool, len(p.Identifiers))
	for i := range p.Identifiers {
		kept[p.Identifiers[i].ID] = true
		if !stored[p.Identifiers[i].ID] {
			if err := insertIdentifier(ctx, tx, &p.Identifiers[i]); err != nil {
				return err
			}
		}
	}

	for id := range stored {
		if !kept[id] {
			if _, err := tx.Exec(ctx, `DELETE FROM patient_identifier WHERE id = $1`, id); err != nil {
				return fmt.Errorf("delete identifier: %w", err)
			}
		}
	}
	return nil
}

func (r *Repository) loadIdentifiers(ctx context.Context, patients []*Patient) error {
	if len(patients) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(patients))
	byID := make(map[uuid.UUID]*Patient, len(patients))
	for i, p := range patients {
		ids[i] = p.ID
		byID[p.ID] = p
		if p.Identifiers == nil {
			p.Identifiers = make([]Identifier, 0)
		}
	}

	query := `
		SELECT id, patient_id, id_type, id_value, created_at
		FROM patient_identifier
		WHERE patient_id = ANY($1)
		ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("load identifiers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ident Identifier
		if err := rows.Scan(&ident.ID, &ident.PatientID, &ident.Type, &ident.Value, &ident.CreatedAt); err != nil {
			return err
		}
		if p, ok := byID[ident.PatientID]; ok {
			p.Identifiers = append(p.Identifiers, ident)
		}
	}
	return rows.Err()
}

func (r *Repository) writeEvent(ctx context.Context, tx pgx.Tx, patientID uuid.UUID, eventType EventType, data interface{}) error {
	event, err := NewEvent(patientID, eventType, data)
	if err != nil {
		return fmt.Errorf("build event: %w", err)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	entry := &postgres.OutboxEntry{
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     string(event.EventType),
		Payload:       payload,
		KafkaTopic:    redpanda.TopicPatientEvents,
		KafkaKey:      event.AggregateID,
	}
	return postgres.WriteEntry(ctx, tx, entry)
}

func insertIdentifier(ctx context.Context, tx pgx.Tx, ident *Identifier) error {
	query := `
		INSERT INTO patient_identifier (id, patient_id, id_type, id_value, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := tx.Exec(ctx, query, ident.ID, ident.PatientID, ident.Type, ident.Value, ident.CreatedAt); err != nil {
		return fmt.Errorf("insert identifier: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var (
		p           Patient
		lastName    *string
		gender      *string
		email       *string
		phoneNo     *string
		addressJSON []byte
	)
	err := row.Scan(&p.ID, &p.FirstName, &lastName, &p.DOB, &gender, &email,
		&phoneNo, &addressJSON, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	applyNullable(&p, lastName, gender, email, phoneNo)
	if err := unmarshalAddress(&p, addressJSON); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatientWithTotal(row rowScanner) (*Patient, int, error) {
	var (
		p           Patient
		lastName    *string
		gender      *string
		email       *string
		phoneNo     *string
		addressJSON []byte
		total       int
	)
	err := row.Scan(&p.ID, &p.FirstName, &lastName, &p.DOB, &gender, &email,
		&phoneNo, &addressJSON, &p.Status, &p.CreatedAt, &p.UpdatedAt, &total)
	if err != nil {
		return nil, 0, err
	}
	applyNullable(&p, lastName, gender, email, phoneNo)
	if err := unmarshalAddress(&p, addressJSON); err != nil {
		return nil, 0, err
	}
	return &p, total, nil
}

func applyNullable(p *Patient, lastName, gender, email, phoneNo *string) {
	if lastName != nil {
		p.LastName = *lastName
	}
	if gender != nil {
		p.Gender = Gender(*gender)
	}
	if email != nil {
		p.Email = *email
	}
	if phoneNo != nil {
		p.PhoneNo = *phoneNo
	}
}

func marshalAddress(a *Address) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal address: %w", err)
	}
	return data, nil
}

func unmarshalAddress(p *Patient, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var a Address
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("unmarshal address: %w", err)
	}
	p.Address = &a
	return nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
