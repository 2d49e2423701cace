// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"visa-guru/internal/models"
)

const upsertConsultation = `
INSERT INTO consultations (consultation_id, status, request, result, payment_session_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (consultation_id) DO UPDATE SET
	status = EXCLUDED.status,
	request = EXCLUDED.request,
	result = EXCLUDED.result,
	payment_session_id = EXCLUDED.payment_session_id,
	updated_at = EXCLUDED.updated_at`

const selectConsultation = `
SELECT status, request, result, payment_session_id, created_at, updated_at
FROM consultations WHERE consultation_id = $1`

// PostgresStore keeps records in the consultations table with JSONB payloads.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Put(ctx context.Context, record *Record) error {
	touch(record)

	request, err := json.Marshal(record.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	var result interface{}
	if record.Result != nil {
		encoded, err := json.Marshal(record.Result)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		result = encoded
	}

	sessionID := sql.NullString{String: record.PaymentSessionID, Valid: record.PaymentSessionID != ""}

	_, err = s.db.ExecContext(ctx, upsertConsultation,
		record.ConsultationID, string(record.Status), request, result, sessionID,
		record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert consultation: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, consultationID string) (*Record, error) {
	record := Record{ConsultationID: consultationID}
	var (
		status    string
		request   []byte
		result    []byte
		sessionID sql.NullString
	)

	err := s.db.QueryRowContext(ctx, selectConsultation, consultationID).
		Scan(&status, &request, &result, &sessionID, &record.CreatedAt, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select consultation: %w", err)
	}

	record.Status = models.ConsultationStatus(status)
	record.PaymentSessionID = sessionID.String

	if err := json.Unmarshal(request, &record.Request); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &record.Result); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
	}
	return &record, nil
}
