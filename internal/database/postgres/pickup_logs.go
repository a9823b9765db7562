package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

// PickupLogRepository provides PostgreSQL-backed pickup log storage.
type PickupLogRepository struct {
	pool *Pool
}

// NewPickupLogRepository creates a new PostgreSQL pickup log repository.
func NewPickupLogRepository(pool *Pool) *PickupLogRepository {
	return &PickupLogRepository{pool: pool}
}

// ListPickupLogs returns logs newest first, narrowed by filter.
func (r *PickupLogRepository) ListPickupLogs(ctx context.Context, filter database.PickupLogFilter) ([]database.PickupLog, error) {
	var where []string
	var args []any
	if filter.GuardianID != "" {
		args = append(args, filter.GuardianID)
		where = append(where, fmt.Sprintf("guardian_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		where = append(where, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	query := `SELECT id, guardian_id, student_id, timestamp, verified_image_path FROM pickup_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pickup logs: %w", err)
	}
	defer rows.Close()

	var logs []database.PickupLog
	for rows.Next() {
		var l database.PickupLog
		if err := rows.Scan(&l.ID, &l.GuardianID, &l.StudentID, &l.Timestamp, &l.VerifiedImagePath); err != nil {
			return nil, fmt.Errorf("scan pickup log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pickup logs: %w", err)
	}
	return logs, nil
}

// InsertPickupLogs writes every log in one transaction.
func (r *PickupLogRepository) InsertPickupLogs(ctx context.Context, logs []database.PickupLog) error {
	if len(logs) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pickup_logs (id, guardian_id, student_id, timestamp, verified_image_path)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare pickup log insert: %w", err)
	}
	defer stmt.Close()

	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
		l := logs[i]
		if _, err := stmt.ExecContext(ctx, l.ID, l.GuardianID, l.StudentID, l.Timestamp, l.VerifiedImagePath); err != nil {
			return fmt.Errorf("insert pickup log for student %s: %w", l.StudentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pickup logs: %w", err)
	}
	return nil
}
