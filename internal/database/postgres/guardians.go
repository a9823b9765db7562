package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

// GuardianRepository provides PostgreSQL-backed guardian storage.
type GuardianRepository struct {
	pool *Pool
}

// NewGuardianRepository creates a new PostgreSQL guardian repository.
func NewGuardianRepository(pool *Pool) *GuardianRepository {
	return &GuardianRepository{pool: pool}
}

// nullVector scans a nullable vector column; pgvector.Vector rejects NULL.
type nullVector struct {
	pgvector.Vector
	Valid bool
}

func (n *nullVector) Scan(src any) error {
	if src == nil {
		n.Valid = false
		return nil
	}
	n.Valid = true
	return n.Vector.Scan(src)
}

// vectorArg converts an embedding to a query argument, NULL when empty.
func vectorArg(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

const guardianColumns = `id, name, reference_image_path, embedding, student_ids, created_at`

func scanGuardianRow(scanner interface{ Scan(...any) error }) (database.Guardian, error) {
	var g database.Guardian
	var vec nullVector
	var studentIDs pq.StringArray

	if err := scanner.Scan(&g.ID, &g.Name, &g.ReferenceImagePath, &vec, &studentIDs, &g.CreatedAt); err != nil {
		return g, fmt.Errorf("scan guardian: %w", err)
	}
	if vec.Valid {
		g.Embedding = vec.Slice()
	}
	g.StudentIDs = []string(studentIDs)
	return g, nil
}

// GetGuardian returns the guardian with the given id.
func (r *GuardianRepository) GetGuardian(ctx context.Context, id string) (*database.Guardian, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+guardianColumns+` FROM guardians WHERE id = $1`, id)
	g, err := scanGuardianRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("guardian %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// FindGuardianByImagePath returns the guardian owning path, or nil.
func (r *GuardianRepository) FindGuardianByImagePath(ctx context.Context, path string) (*database.Guardian, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+guardianColumns+` FROM guardians WHERE reference_image_path = $1`, path)
	g, err := scanGuardianRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGuardians returns all guardians in gallery order.
func (r *GuardianRepository) ListGuardians(ctx context.Context) ([]database.Guardian, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+guardianColumns+` FROM guardians ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query guardians: %w", err)
	}
	defer rows.Close()

	var guardians []database.Guardian
	for rows.Next() {
		g, err := scanGuardianRow(rows)
		if err != nil {
			return nil, err
		}
		guardians = append(guardians, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guardians: %w", err)
	}
	return guardians, nil
}

// ListGallery returns id and embedding of every guardian in gallery order.
func (r *GuardianRepository) ListGallery(ctx context.Context) ([]database.GalleryEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, embedding FROM guardians ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query gallery: %w", err)
	}
	defer rows.Close()

	var gallery []database.GalleryEntry
	for rows.Next() {
		var e database.GalleryEntry
		var vec nullVector
		if err := rows.Scan(&e.ID, &vec); err != nil {
			return nil, fmt.Errorf("scan gallery entry: %w", err)
		}
		if vec.Valid {
			e.Embedding = vec.Slice()
		}
		gallery = append(gallery, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gallery: %w", err)
	}
	return gallery, nil
}

// InsertGuardian stores a new guardian. The UNIQUE constraint on
// reference_image_path arbitrates concurrent registrations of the same path.
func (r *GuardianRepository) InsertGuardian(ctx context.Context, g *database.Guardian) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	studentIDs := g.StudentIDs
	if studentIDs == nil {
		studentIDs = []string{}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO guardians (id, name, reference_image_path, embedding, student_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at
	`, g.ID, g.Name, g.ReferenceImagePath, vectorArg(g.Embedding), pq.Array(studentIDs), nullTime(g.CreatedAt)).Scan(&g.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("reference image %s: %w", g.ReferenceImagePath, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert guardian: %w", err)
	}
	return nil
}

// AddStudentToGuardian appends studentID unless already present.
func (r *GuardianRepository) AddStudentToGuardian(ctx context.Context, guardianID, studentID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE guardians
		SET student_ids = CASE WHEN $2::text = ANY(student_ids) THEN student_ids ELSE array_append(student_ids, $2::text) END
		WHERE id = $1
	`, guardianID, studentID)
	if err != nil {
		return fmt.Errorf("link student to guardian: %w", err)
	}
	return requireRow(res, "guardian", guardianID)
}

// SetGuardianEmbedding replaces the stored embedding.
func (r *GuardianRepository) SetGuardianEmbedding(ctx context.Context, guardianID string, embedding []float32) error {
	res, err := r.pool.Exec(ctx, `UPDATE guardians SET embedding = $2 WHERE id = $1`, guardianID, vectorArg(embedding))
	if err != nil {
		return fmt.Errorf("update guardian embedding: %w", err)
	}
	return requireRow(res, "guardian", guardianID)
}

// requireRow turns a zero-row update into ErrNotFound.
func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, database.ErrNotFound)
	}
	return nil
}
