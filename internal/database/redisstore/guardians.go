package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

func (s *Store) guardianKey(id string) string         { return s.key("guardian", id) }
func (s *Store) guardianStudentsKey(id string) string { return s.key("guardian", id, "students") }
func (s *Store) guardianPathKey(path string) string   { return s.key("guardian", "path", path) }
func (s *Store) guardiansKey() string                 { return s.key("guardians") }

// loadGuardian reads the hash and student set of one guardian.
func (s *Store) loadGuardian(ctx context.Context, id string) (*database.Guardian, error) {
	var fields *goredis.MapStringStringCmd
	var students *goredis.StringSliceCmd
	_, err := s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, s.guardianKey(id))
		students = pipe.ZRange(ctx, s.guardianStudentsKey(id), 0, -1)
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, fmt.Errorf("load guardian %s: %w", id, err)
	}

	h := fields.Val()
	if len(h) == 0 {
		return nil, fmt.Errorf("guardian %s: %w", id, database.ErrNotFound)
	}
	embedding, err := decodeEmbedding(h["embedding"])
	if err != nil {
		return nil, fmt.Errorf("guardian %s: %w", id, err)
	}
	createdAt, err := parseTime(h["created_at"])
	if err != nil {
		return nil, fmt.Errorf("guardian %s: %w", id, err)
	}
	return &database.Guardian{
		ID:                 id,
		Name:               h["name"],
		ReferenceImagePath: h["reference_image_path"],
		Embedding:          embedding,
		StudentIDs:         students.Val(),
		CreatedAt:          createdAt,
	}, nil
}

func (s *Store) GetGuardian(ctx context.Context, id string) (*database.Guardian, error) {
	return s.loadGuardian(ctx, id)
}

func (s *Store) FindGuardianByImagePath(ctx context.Context, path string) (*database.Guardian, error) {
	id, err := s.rdb.Get(ctx, s.guardianPathKey(path)).Result()
	if isNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup guardian path: %w", err)
	}
	g, err := s.loadGuardian(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		// Path claimed by an insert that never completed.
		return nil, nil
	}
	return g, err
}

func (s *Store) guardianIDs(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.ZRange(ctx, s.guardiansKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list guardian ids: %w", err)
	}
	return ids, nil
}

func (s *Store) ListGuardians(ctx context.Context) ([]database.Guardian, error) {
	ids, err := s.guardianIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]database.Guardian, 0, len(ids))
	for _, id := range ids {
		g, err := s.loadGuardian(ctx, id)
		if errors.Is(err, database.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *g)
	}
	return out, nil
}

func (s *Store) ListGallery(ctx context.Context) ([]database.GalleryEntry, error) {
	ids, err := s.guardianIDs(ctx)
	if err != nil {
		return nil, err
	}

	cmds := make([]*goredis.StringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGet(ctx, s.guardianKey(id), "embedding")
		}
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, fmt.Errorf("load gallery: %w", err)
	}

	out := make([]database.GalleryEntry, 0, len(ids))
	for i, id := range ids {
		raw, err := cmds[i].Result()
		if err != nil && !isNil(err) {
			return nil, fmt.Errorf("load embedding for %s: %w", id, err)
		}
		embedding, err := decodeEmbedding(raw)
		if err != nil {
			return nil, fmt.Errorf("guardian %s: %w", id, err)
		}
		out = append(out, database.GalleryEntry{ID: id, Embedding: embedding})
	}
	return out, nil
}

// InsertGuardian claims the reference image path with SETNX, then writes the
// record, its gallery entry and its student set in one MULTI/EXEC. The claim is
// released when the transaction fails.
func (s *Store) InsertGuardian(ctx context.Context, g *database.Guardian) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = s.now()
	}
	embedding, err := encodeEmbedding(g.Embedding)
	if err != nil {
		return err
	}

	pathKey := s.guardianPathKey(g.ReferenceImagePath)
	if err := s.claim(ctx, pathKey, g.ID); err != nil {
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("reference image %s: %w", g.ReferenceImagePath, err)
		}
		return err
	}

	first, err := s.reserveSeq(ctx, len(g.StudentIDs))
	if err != nil {
		s.release(ctx, pathKey)
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, s.guardianKey(g.ID),
			"name", g.Name,
			"reference_image_path", g.ReferenceImagePath,
			"embedding", embedding,
			"created_at", formatTime(g.CreatedAt),
		)
		pipe.ZAdd(ctx, s.guardiansKey(), goredis.Z{Score: timeScore(g.CreatedAt), Member: g.ID})
		queueMembers(ctx, pipe, s.guardianStudentsKey(g.ID), first, g.StudentIDs)
		return nil
	})
	if err != nil {
		s.release(ctx, pathKey)
		return fmt.Errorf("insert guardian: %w", err)
	}
	return nil
}

func (s *Store) AddStudentToGuardian(ctx context.Context, guardianID, studentID string) error {
	if err := s.requireExists(ctx, s.guardianKey(guardianID), "guardian", guardianID); err != nil {
		return err
	}
	return s.appendUnique(ctx, s.guardianStudentsKey(guardianID), studentID)
}

func (s *Store) SetGuardianEmbedding(ctx context.Context, guardianID string, embedding []float32) error {
	if err := s.requireExists(ctx, s.guardianKey(guardianID), "guardian", guardianID); err != nil {
		return err
	}
	raw, err := encodeEmbedding(embedding)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, s.guardianKey(guardianID), "embedding", raw).Err(); err != nil {
		return fmt.Errorf("update guardian embedding: %w", err)
	}
	return nil
}
