package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"relay/internal/domain"
	"relay/internal/event"
	"relay/internal/store"
	"relay/pkg/db"

	"golang.org/x/crypto/bcrypt"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	gdb, err := db.OpenGorm(db.Config{Driver: "sqlite", DSN: "file::memory:", MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	st := store.New(gdb)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return st
}

func seedIdentity(t *testing.T, st *store.Store, code string) {
	t.Helper()
	err := st.Identities().Create(context.Background(), &domain.Identity{
		AccessCode: code,
		Address:    code + "@relay.test",
		VerifiedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed %s: %v", code, err)
	}
}

// recordingConn keeps every event pushed to it.
type recordingConn struct {
	mu     sync.Mutex
	events []event.Event
	fail   error
}

func (c *recordingConn) Deliver(ev event.Event) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *recordingConn) Events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event(nil), c.events...)
}

func (c *recordingConn) count(t event.Type) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Type == t {
			n++
		}
	}
	return n
}

// captureNotifier remembers the last code sent per address.
type captureNotifier struct {
	mu    sync.Mutex
	codes map[string]string
	err   error
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: map[string]string{}}
}

func (n *captureNotifier) Notify(_ context.Context, address, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[address] = code
	return n.err
}

func (n *captureNotifier) code(address string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[address]
}

// sequenceGen hands out codes in order, then fails.
type sequenceGen struct {
	mu    sync.Mutex
	codes []string
}

func (g *sequenceGen) Next() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "", fmt.Errorf("sequence exhausted")
	}
	c := g.codes[0]
	g.codes = g.codes[1:]
	return c, nil
}

func testOTPConfig() OTPConfig {
	return OTPConfig{
		TTL:            10 * time.Minute,
		HashCost:       bcrypt.MinCost,
		AccessAttempts: 3,
		NotifyTimeout:  time.Second,
	}
}
