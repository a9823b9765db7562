package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/facematch"
)

func (s *Store) studentKey(id string) string          { return s.key("student", id) }
func (s *Store) studentGuardiansKey(id string) string { return s.key("student", id, "guardians") }
func (s *Store) studentNameKey(name string) string {
	return s.key("student", "name", facematch.NormalizePersonName(name))
}
func (s *Store) studentsKey() string { return s.key("students") }

func (s *Store) loadStudent(ctx context.Context, id string) (*database.Student, error) {
	var fields *goredis.MapStringStringCmd
	var guardians *goredis.StringSliceCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.studentKey(id))
		guardians = pipe.ZRange(ctx, s.studentGuardiansKey(id), 0, -1)
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, fmt.Errorf("load student %s: %w", id, err)
	}

	h := fields.Val()
	if len(h) == 0 {
		return nil, fmt.Errorf("student %s: %w", id, database.ErrNotFound)
	}
	createdAt, err := parseTime(h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("student %s: %w", id, err)
	}
	return &database.Student{
		ID:           id,
		Name:         h["name"],
		TeacherEmail: h["teacher_email"],
		GuardianIDs:  guardians.Val(),
		CreatedAt:    createdAt,
	}, nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	return s.loadStudent(ctx, id)
}

func (s *Store) FindStudentByName(ctx context.Context, name string) (*database.Student, error) {
	id, err := s.rdb.Get(ctx, s.studentNameKey(name)).Result()
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup student name: %w", err)
	}
	st, err := s.loadStudent(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

func (s *Store) ListStudents(ctx context.Context) ([]database.Student, error) {
	ids, err := s.rdb.ZRange(ctx, s.studentsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	out := make([]database.Student, 0, len(ids))
	for _, id := range ids {
		st, err := s.loadStudent(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, nil
}

// InsertStudent claims the normalized name, then writes the record and its
// guardian set in one MULTI/EXEC.
func (s *Store) InsertStudent(ctx context.Context, st *database.Student) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.now()
	}

	nameKey := s.studentNameKey(st.Name)
	if err := s.claim(ctx, nameKey, st.ID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("student %q: %w", st.Name, err)
		}
		return err
	}

	first, err := s.reserveSeq(ctx, len(st.GuardianIDs))
	if err != nil {
		s.release(ctx, nameKey)
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.studentKey(st.ID),
			"name", st.Name,
			"teacher_email", st.TeacherEmail,
			"created_at", formatTime(st.CreatedAt),
		)
		pipe.ZAdd(ctx, s.studentsKey(), goredis.Z{Score: timeScore(st.CreatedAt), Member: st.ID})
		queueMembers(ctx, pipe, s.studentGuardiansKey(st.ID), first, st.GuardianIDs)
		return nil
	})
	if err != nil {
		s.release(ctx, nameKey)
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

func (s *Store) AddGuardianToStudent(ctx context.Context, studentID, guardianID string) error {
	if err := s.requireExists(ctx, s.studentKey(studentID), "student", studentID); err != nil {
		return err
	}
	return s.appendUnique(ctx, s.studentGuardiansKey(studentID), guardianID)
}
