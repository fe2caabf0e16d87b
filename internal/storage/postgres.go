/**
 * PostgreSQL audit store.
 *
 * Every OCR run and document comparison is recorded for expense fraud
 * review. The store is optional; when DATABASE_URL is unset the service
 * runs without an audit trail.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Audit actions recorded by the service
const (
	ActionOCRProcessed     = "ocr_processed"
	ActionDocumentCompared = "document_compared"
	ActionOCRFailed        = "ocr_failed"
	ActionAnomalyDetected  = "anomaly_detected"
)

// AuditEntry is one row in the OCR audit log
type AuditEntry struct {
	ID               string
	ExpenseID        *int64
	EmployeeID       *int64
	CompanyID        *int64
	Action           string
	Confidence       float64
	VisualSimilarity *float64
	ResultData       map[string]interface{}
	CreatedAt        time.Time
}

// AuditStore persists audit entries in PostgreSQL
type AuditStore struct {
	db *sql.DB
}

// sanitizeScore rounds a [0, 1] score to 4 decimal places so the
// NUMERIC(5,4) column never rejects a float artifact like
// 0.9632000000000001, and clamps out-of-range values.
func sanitizeScore(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 1.0 {
		return 1.0
	}
	return float64(int(score*10000+0.5)) / 10000
}

// NewAuditStore opens the audit database and verifies connectivity
func NewAuditStore(databaseURL string) (*AuditStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &AuditStore{db: db}, nil
}

// EnsureSchema creates the audit table when it does not exist yet
func (s *AuditStore) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS expense_ocr_audit_log (
			id UUID PRIMARY KEY,
			expense_id BIGINT,
			employee_id BIGINT,
			company_id BIGINT,
			action TEXT NOT NULL,
			ocr_confidence NUMERIC(5,4),
			visual_similarity NUMERIC(5,4),
			result_data JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create audit table: %w", err)
	}
	return nil
}

// Record inserts one audit entry. A zero ID is assigned a fresh UUID.
func (s *AuditStore) Record(ctx context.Context, entry *AuditEntry) error {
	if entry.Action == "" {
		return fmt.Errorf("action is required")
	}

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	resultJSON, err := json.Marshal(entry.ResultData)
	if err != nil {
		return fmt.Errorf("failed to marshal result data: %w", err)
	}

	var similarity interface{}
	if entry.VisualSimilarity != nil {
		similarity = sanitizeScore(*entry.VisualSimilarity)
	}

	query := `
		INSERT INTO expense_ocr_audit_log (
			id, expense_id, employee_id, company_id,
			action, ocr_confidence, visual_similarity, result_data, created_at
		) VALUES (
			$1::uuid, $2, $3, $4, $5,
			$6::NUMERIC(5,4), $7::NUMERIC(5,4),
			COALESCE($8::jsonb, '{}'::jsonb), NOW()
		)
	`

	_, err = s.db.ExecContext(
		ctx,
		query,
		entry.ID,
		entry.ExpenseID,
		entry.EmployeeID,
		entry.CompanyID,
		entry.Action,
		sanitizeScore(entry.Confidence),
		similarity,
		resultJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry (action=%s): %w", entry.Action, err)
	}

	return nil
}

// RecentByExpense returns the latest audit entries for an expense,
// newest first.
func (s *AuditStore) RecentByExpense(ctx context.Context, expenseID int64, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, expense_id, employee_id, company_id,
			action, COALESCE(ocr_confidence, 0), visual_similarity,
			result_data, created_at
		FROM expense_ocr_audit_log
		WHERE expense_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, expenseID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var resultJSON []byte
		var similarity sql.NullFloat64

		err := rows.Scan(
			&e.ID, &e.ExpenseID, &e.EmployeeID, &e.CompanyID,
			&e.Action, &e.Confidence, &similarity,
			&resultJSON, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if similarity.Valid {
			v := similarity.Float64
			e.VisualSimilarity = &v
		}
		if len(resultJSON) > 0 {
			if err := json.Unmarshal(resultJSON, &e.ResultData); err != nil {
				return nil, fmt.Errorf("failed to unmarshal result data: %w", err)
			}
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Ping checks database connectivity
func (s *AuditStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *AuditStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
