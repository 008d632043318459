package store

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresStore persists call state to Postgres via database/sql with
// the pgx stdlib driver.
//
// Assumed tables:
// - calls            (call_id PK)
// - call_outcomes    (call_id PK)
// - call_transcripts (append-only, indexed by call_id)
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) UpsertCall(ctx context.Context, rec CallRecord) error {
	const q = `
INSERT INTO calls (call_id, business_id, phone_number, goal, company_name, state, started_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (call_id) DO UPDATE SET
  business_id = EXCLUDED.business_id,
  state       = EXCLUDED.state,
  updated_at  = EXCLUDED.updated_at
`
	_, err := s.db.ExecContext(ctx, q,
		rec.CallID,
		rec.BusinessID,
		rec.PhoneNumber,
		rec.Goal,
		rec.CompanyName,
		rec.State,
		rec.StartedAt,
		rec.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetCall(ctx context.Context, callID string) (CallRecord, error) {
	const q = `
SELECT call_id, business_id, phone_number, goal, company_name, state, started_at, updated_at
FROM calls
WHERE call_id = $1
`
	var rec CallRecord
	if err := s.db.QueryRowContext(ctx, q, callID).Scan(
		&rec.CallID,
		&rec.BusinessID,
		&rec.PhoneNumber,
		&rec.Goal,
		&rec.CompanyName,
		&rec.State,
		&rec.StartedAt,
		&rec.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecord{}, ErrNotFound
		}
		return CallRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) UpsertOutcome(ctx context.Context, o Outcome) error {
	const q = `
INSERT INTO call_outcomes (call_id, business_id, goal, summary, response, success, captured_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (call_id) DO UPDATE SET
  summary     = EXCLUDED.summary,
  response    = EXCLUDED.response,
  success     = EXCLUDED.success,
  captured_at = EXCLUDED.captured_at
`
	_, err := s.db.ExecContext(ctx, q,
		o.CallID,
		o.BusinessID,
		o.Goal,
		o.Summary,
		o.Response,
		o.Success,
		o.CapturedAt,
	)
	return err
}

func (s *PostgresStore) GetOutcome(ctx context.Context, callID string) (Outcome, error) {
	const q = `
SELECT call_id, business_id, goal, summary, response, success, captured_at
FROM call_outcomes
WHERE call_id = $1
`
	var o Outcome
	if err := s.db.QueryRowContext(ctx, q, callID).Scan(
		&o.CallID,
		&o.BusinessID,
		&o.Goal,
		&o.Summary,
		&o.Response,
		&o.Success,
		&o.CapturedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Outcome{}, ErrNotFound
		}
		return Outcome{}, err
	}
	return o, nil
}

func (s *PostgresStore) AppendTranscript(ctx context.Context, line TranscriptLine) error {
	const q = `
INSERT INTO call_transcripts (call_id, role, text, at)
VALUES ($1, $2, $3, $4)
`
	_, err := s.db.ExecContext(ctx, q, line.CallID, line.Role, line.Text, line.At)
	return err
}

func (s *PostgresStore) ListTranscript(ctx context.Context, callID string) ([]TranscriptLine, error) {
	const q = `
SELECT call_id, role, text, at
FROM call_transcripts
WHERE call_id = $1
ORDER BY at ASC
`
	rows, err := s.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TranscriptLine
	for rows.Next() {
		var line TranscriptLine
		if err := rows.Scan(&line.CallID, &line.Role, &line.Text, &line.At); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	return out, rows.Err()
}
