package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
)

// StudentRepository provides PostgreSQL-backed student storage.
type StudentRepository struct {
	pool *Pool
}

// NewStudentRepository creates a new PostgreSQL student repository.
func NewStudentRepository(pool *Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

const studentColumns = `id, name, teacher_email, guardian_ids, created_at`

func scanStudentRow(scanner interface{ Scan(...any) error }) (database.Student, error) {
	var s database.Student
	var email sql.NullString
	var guardianIDs pq.StringArray

	if err := scanner.Scan(&s.ID, &s.Name, &email, &guardianIDs, &s.CreatedAt); err != nil {
		return s, fmt.Errorf("scan student: %w", err)
	}
	if email.Valid {
		s.TeacherEmail = email.String
	}
	s.GuardianIDs = []string(guardianIDs)
	return s, nil
}

// GetStudent returns the student with the given id.
func (r *StudentRepository) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	s, err := scanStudentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("student %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindStudentByName looks a student up by normalized name. The key is computed
// in Go with facematch.NormalizePersonName and stored in name_key.
func (r *StudentRepository) FindStudentByName(ctx context.Context, name string) (*database.Student, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE name_key = $1`,
		facematch.NormalizePersonName(name))
	s, err := scanStudentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStudents returns all students ordered by creation.
func (r *StudentRepository) ListStudents(ctx context.Context) ([]database.Student, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+studentColumns+` FROM students ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []database.Student
	for rows.Next() {
		s, err := scanStudentRow(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// InsertStudent stores a new student; a duplicate normalized name is ErrConflict.
func (r *StudentRepository) InsertStudent(ctx context.Context, s *database.Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	guardianIDs := s.GuardianIDs
	if guardianIDs == nil {
		guardianIDs = []string{}
	}
	var email sql.NullString
	if s.TeacherEmail != "" {
		email = sql.NullString{String: s.TeacherEmail, Valid: true}
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO students (id, name, name_key, teacher_email, guardian_ids, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING created_at
	`, s.ID, s.Name, facematch.NormalizePersonName(s.Name), email, pq.Array(guardianIDs), nullTime(s.CreatedAt)).Scan(&s.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("student %q: %w", s.Name, database.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// AddGuardianToStudent appends guardianID unless already present.
func (r *StudentRepository) AddGuardianToStudent(ctx context.Context, studentID, guardianID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE students
		SET guardian_ids = CASE WHEN $2::text = ANY(guardian_ids) THEN guardian_ids ELSE array_append(guardian_ids, $2::text) END
		WHERE id = $1
	`, studentID, guardianID)
	if err != nil {
		return fmt.Errorf("link guardian to student: %w", err)
	}
	return requireRow(res, "student", studentID)
}
