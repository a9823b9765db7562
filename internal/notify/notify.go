// Package notify delivers pickup notifications to teachers.
package notify

import (
	"context"
	"time"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/logger"
)

// PickupNotice tells a teacher that one of their students has been released.
type PickupNotice struct {
	StudentID    string    `json:"student_id"`
	StudentName  string    `json:"student_name"`
	TeacherEmail string    `json:"teacher_email"`
	GuardianID   string    `json:"guardian_id"`
	GuardianName string    `json:"guardian_name"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notifier delivers notices. Delivery failures are reported to the caller,
// which logs them and carries on.
type Notifier interface {
	Notify(ctx context.Context, notice PickupNotice) error
	Close() error
}

// LogNotifier writes notices to the log. It is the default when no Redis
// channel is configured.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("service", "LogNotifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, notice PickupNotice) error {
	n.log.Info("pickup notification",
		"teacher_email", notice.TeacherEmail,
		"student_id", notice.StudentID,
		"student_name", notice.StudentName,
		"guardian_id", notice.GuardianID,
		"timestamp", notice.Timestamp,
	)
	return nil
}

func (n *LogNotifier) Close() error { return nil }
