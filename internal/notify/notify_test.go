package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
)

func TestLogNotifier_HashesTeacherEmail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	n := NewLogNotifier(log)
	err := n.Notify(context.Background(), PickupNotice{
		StudentID:    "s1",
		StudentName:  "Ana",
		TeacherEmail: "maestra@colegio.edu",
		GuardianID:   "g1",
		Timestamp:    time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}

	entries := logs.FilterMessage("pickup notification").All()
	if len(entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	email, _ := fields["teacher_email"].(string)
	if !strings.HasPrefix(email, "hash:") {
		t.Errorf("teacher email should be hashed, got %q", email)
	}
	if fields["student_id"] != "s1" {
		t.Errorf("expected student_id s1, got %v", fields["student_id"])
	}
	if fields["service"] != "LogNotifier" {
		t.Errorf("expected service field, got %v", fields["service"])
	}
}

func TestNewRedisNotifier_Validation(t *testing.T) {
	if _, err := NewRedisNotifier(context.Background(), logger.Nop(), "redis://localhost:6379", ""); err == nil {
		t.Error("expected error for empty channel")
	}
	if _, err := NewRedisNotifier(context.Background(), logger.Nop(), "mysql://nope", "ch"); err == nil {
		t.Error("expected error for non-redis URL")
	}
}
