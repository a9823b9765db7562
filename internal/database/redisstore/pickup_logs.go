package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

func (s *Store) pickupLogKey(id string) string { return s.key("pickup_log", id) }
func (s *Store) pickupLogsKey() string         { return s.key("pickup_logs") }
func (s *Store) pickupLogsByGuardianKey(id string) string {
	return s.key("pickup_logs", "guardian", id)
}
func (s *Store) pickupLogsByStudentKey(id string) string {
	return s.key("pickup_logs", "student", id)
}

// ListPickupLogs reads from the narrowest index the filter allows and applies
// the remaining conditions in memory.
func (s *Store) ListPickupLogs(ctx context.Context, filter database.PickupLogFilter) ([]database.PickupLog, error) {
	index := s.pickupLogsKey()
	switch {
	case filter.StudentID != "":
		index = s.pickupLogsByStudentKey(filter.StudentID)
	case filter.GuardianID != "":
		index = s.pickupLogsByGuardianKey(filter.GuardianID)
	}

	minScore := "-inf"
	if !filter.Since.IsZero() {
		minScore = strconv.FormatInt(filter.Since.UnixMicro(), 10)
	}
	ids, err := s.rdb.ZRevRangeByScore(ctx, index, &goredis.ZRangeBy{Min: minScore, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("list pickup log ids: %w", err)
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.pickupLogKey(id))
		}
		return nil
	})
	if err != nil && !isNil(err) {
		return nil, fmt.Errorf("load pickup logs: %w", err)
	}

	logs := make([]database.PickupLog, 0, len(ids))
	for i, id := range ids {
		h := cmds[i].Val()
		if len(h) == 0 {
			continue
		}
		ts, err := parseTime(h["timestamp"])
		if err != nil {
			return nil, fmt.Errorf("pickup log %s: %w", id, err)
		}
		l := database.PickupLog{
			ID:                id,
			GuardianID:        h["guardian_id"],
			StudentID:         h["student_id"],
			Timestamp:         ts,
			VerifiedImagePath: h["verified_image_path"],
		}
		if filter.GuardianID != "" && l.GuardianID != filter.GuardianID {
			continue
		}
		logs = append(logs, l)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if !logs[i].Timestamp.Equal(logs[j].Timestamp) {
			return logs[i].Timestamp.After(logs[j].Timestamp)
		}
		return logs[i].ID < logs[j].ID
	})
	if filter.Limit > 0 && len(logs) > filter.Limit {
		logs = logs[:filter.Limit]
	}
	return logs, nil
}

// InsertPickupLogs writes every log and its index entries in one MULTI/EXEC.
func (s *Store) InsertPickupLogs(ctx context.Context, logs []database.PickupLog) error {
	if len(logs) == 0 {
		return nil
	}
	for i := range logs {
		if logs[i].ID == "" {
			logs[i].ID = uuid.NewString()
		}
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, l := range logs {
			score := timeScore(l.Timestamp)
			pipe.HSet(ctx, s.pickupLogKey(l.ID),
				"guardian_id", l.GuardianID,
				"student_id", l.StudentID,
				"timestamp", formatTime(l.Timestamp),
				"verified_image_path", l.VerifiedImagePath,
			)
			pipe.ZAdd(ctx, s.pickupLogsKey(), goredis.Z{Score: score, Member: l.ID})
			pipe.ZAdd(ctx, s.pickupLogsByGuardianKey(l.GuardianID), goredis.Z{Score: score, Member: l.ID})
			pipe.ZAdd(ctx, s.pickupLogsByStudentKey(l.StudentID), goredis.Z{Score: score, Member: l.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert pickup logs: %w", err)
	}
	return nil
}
