package redisstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Mikhaerys/SafeKids-Face-Recognition/internal/database"
)

// scriptedRedis answers single commands locally and fails MULTI/EXEC with
// execErr, recording everything it sees. No server is contacted.
type scriptedRedis struct {
	mu      sync.Mutex
	execErr error
	seq     int64
	single  [][]string
	tx      [][]string
}

func argStrings(cmd goredis.Cmder) []string {
	args := make([]string, 0, len(cmd.Args()))
	for _, a := range cmd.Args() {
		args = append(args, strings.ToLower(fmt.Sprint(a)))
	}
	return args
}

func (h *scriptedRedis) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, errors.New("dial disabled")
	}
}

func (h *scriptedRedis) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.single = append(h.single, argStrings(cmd))
		switch c := cmd.(type) {
		case *goredis.BoolCmd:
			c.SetVal(true)
		case *goredis.IntCmd:
			if cmd.Name() == "incrby" {
				h.seq += cmd.Args()[2].(int64)
				c.SetVal(h.seq)
			} else {
				c.SetVal(1)
			}
		}
		return nil
	}
}

func (h *scriptedRedis) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, c := range cmds {
			h.tx = append(h.tx, argStrings(c))
		}
		return h.execErr
	}
}

func (h *scriptedRedis) singleNamed(name string) [][]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out [][]string
	for _, args := range h.single {
		if args[0] == name {
			out = append(out, args)
		}
	}
	return out
}

func (h *scriptedRedis) txTouched(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, args := range h.tx {
		if len(args) > 1 && args[0] == "zadd" && args[1] == key {
			return true
		}
	}
	return false
}

func newScriptedStore(t *testing.T, execErr error) (*Store, *scriptedRedis) {
	t.Helper()
	rdb := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	h := &scriptedRedis{execErr: execErr}
	rdb.AddHook(h)
	s := New(rdb, "t:")
	s.now = func() time.Time { return time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC) }
	return s, h
}

func TestInsertFailedExecLeavesNoPartialRecord(t *testing.T) {
	execErr := errors.New("EXECABORT Transaction discarded")

	tests := []struct {
		name       string
		insert     func(ctx context.Context, s *Store) error
		claimKey   string
		membersKey string
	}{
		{
			name: "guardian",
			insert: func(ctx context.Context, s *Store) error {
				return s.InsertGuardian(ctx, &database.Guardian{
					ID:                 "g1",
					Name:               "Ana",
					ReferenceImagePath: "/refs/ana.jpg",
					StudentIDs:         []string{"s1", "s2"},
				})
			},
			claimKey:   "t:guardian:path:/refs/ana.jpg",
			membersKey: "t:guardian:g1:students",
		},
		{
			name: "student",
			insert: func(ctx context.Context, s *Store) error {
				return s.InsertStudent(ctx, &database.Student{
					ID:          "s1",
					Name:        "Sofía",
					GuardianIDs: []string{"g1", "g2"},
				})
			},
			claimKey:   "t:student:name:sofia",
			membersKey: "t:student:s1:guardians",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, h := newScriptedStore(t, execErr)

			err := tt.insert(context.Background(), s)
			if !errors.Is(err, execErr) {
				t.Fatalf("expected exec error, got %v", err)
			}

			// Set members travel with the record inside MULTI/EXEC.
			if !h.txTouched(tt.membersKey) {
				t.Errorf("expected %s to be written inside the transaction", tt.membersKey)
			}
			for _, args := range h.singleNamed("zadd") {
				t.Errorf("unexpected ZADD outside the transaction: %v", args)
			}

			dels := h.singleNamed("del")
			if len(dels) != 1 || len(dels[0]) != 2 || dels[0][1] != tt.claimKey {
				t.Errorf("expected claim %s to be released, got %v", tt.claimKey, dels)
			}
		})
	}
}

func TestInsertReleasesClaimOnCancelledContext(t *testing.T) {
	s, h := newScriptedStore(t, context.Canceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.InsertGuardian(ctx, &database.Guardian{ID: "g1", ReferenceImagePath: "/refs/x.jpg"})
	if err == nil {
		t.Fatal("expected error")
	}
	if dels := h.singleNamed("del"); len(dels) != 1 {
		t.Errorf("expected claim release despite cancellation, got %v", dels)
	}
}

func TestInsertScoresMembersInSliceOrder(t *testing.T) {
	s, h := newScriptedStore(t, nil)

	err := s.InsertGuardian(context.Background(), &database.Guardian{
		ID:                 "g1",
		ReferenceImagePath: "/refs/ana.jpg",
		StudentIDs:         []string{"s2", "s1", "s3"},
	})
	if err != nil {
		t.Fatalf("InsertGuardian failed: %v", err)
	}

	incr := h.singleNamed("incrby")
	if len(incr) != 1 || incr[0][2] != "3" {
		t.Fatalf("expected one INCRBY of 3, got %v", incr)
	}

	var got []string
	h.mu.Lock()
	for _, args := range h.tx {
		if args[0] == "zadd" && args[1] == "t:guardian:g1:students" {
			// zadd key nx score member
			got = append(got, args[3]+"="+args[4])
		}
	}
	h.mu.Unlock()

	want := []string{"1=s2", "2=s1", "3=s3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, got)
	}
}
