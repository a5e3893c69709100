package session

import (
	"testing"
	"time"

	"github.com/ternarybob/auspex/internal/common"
	"github.com/ternarybob/auspex/internal/interfaces"
	"github.com/ternarybob/auspex/internal/pipeline"
	"github.com/ternarybob/auspex/internal/services/events"
)

func testManager(t *testing.T, cfg *common.SessionsConfig) *Manager {
	t.Helper()
	if cfg == nil {
		cfg = &common.SessionsConfig{IdleTTL: "2h", JanitorSchedule: "*/10 * * * *", MaxSessions: 100}
	}
	factory := func() (*pipeline.Supervisor, interfaces.EventService) {
		bus := events.NewService(common.GetLogger())
		return pipeline.NewSupervisor(nil, nil, bus, &common.PipelineConfig{DefaultTicker: "NVDA"}, common.GetLogger()), bus
	}
	return NewManager(cfg, factory, nil, common.GetLogger())
}

func TestCreateAndGet(t *testing.T) {
	mgr := testManager(t, nil)

	sess, err := mgr.Create()
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if sess.ID == "" {
		t.Fatal("Expected a session ID")
	}
	if sess.Supervisor == nil {
		t.Fatal("Expected a supervisor per session")
	}

	got, ok := mgr.Get(sess.ID)
	if !ok || got.ID != sess.ID {
		t.Fatalf("Get(%q) = %v, %v", sess.ID, got, ok)
	}
	if _, ok := mgr.Get("unknown"); ok {
		t.Error("Expected unknown ID to miss")
	}
}

func TestSessionsAreIsolated(t *testing.T) {
	mgr := testManager(t, nil)
	a, _ := mgr.Create()
	b, _ := mgr.Create()

	a.Supervisor.SetTicker("AAPL")
	if got := b.Supervisor.Snapshot().InputTicker; got != "NVDA" {
		t.Errorf("Expected session b unaffected by session a, got ticker %q", got)
	}
}

func TestGetOrCreate(t *testing.T) {
	mgr := testManager(t, nil)

	first, err := mgr.GetOrCreate("")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	same, err := mgr.GetOrCreate(first.ID)
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if same.ID != first.ID {
		t.Errorf("Expected existing session reused, got %q and %q", first.ID, same.ID)
	}

	fresh, err := mgr.GetOrCreate("expired-or-bogus")
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if fresh.ID == first.ID {
		t.Error("Expected a new session for an unknown ID")
	}
}

func TestSessionLimit(t *testing.T) {
	mgr := testManager(t, &common.SessionsConfig{IdleTTL: "2h", MaxSessions: 2})

	for i := 0; i < 2; i++ {
		if _, err := mgr.Create(); err != nil {
			t.Fatalf("Create %d failed: %v", i, err)
		}
	}
	if _, err := mgr.Create(); err == nil {
		t.Error("Expected creation refused at the session limit")
	}
}

func TestEvictIdleRespectsTTLAndTouch(t *testing.T) {
	mgr := testManager(t, &common.SessionsConfig{IdleTTL: "1h", MaxSessions: 10})

	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	mgr.now = func() time.Time { return base }

	stale, _ := mgr.Create()
	active, _ := mgr.Create()

	// The active session is seen again 90 minutes later; the stale one
	// is not.
	mgr.now = func() time.Time { return base.Add(90 * time.Minute) }
	if _, ok := mgr.Get(active.ID); !ok {
		t.Fatal("Get failed for active session")
	}

	mgr.EvictIdle()

	if _, ok := mgr.Get(stale.ID); ok {
		t.Error("Expected stale session evicted")
	}
	if _, ok := mgr.Get(active.ID); !ok {
		t.Error("Expected active session retained")
	}
	if mgr.Count() != 1 {
		t.Errorf("Expected 1 session remaining, got %d", mgr.Count())
	}
}

func TestJanitorScheduleValidation(t *testing.T) {
	mgr := testManager(t, &common.SessionsConfig{IdleTTL: "1h", JanitorSchedule: "not a schedule", MaxSessions: 10})
	if err := mgr.Start(); err == nil {
		mgr.Stop()
		t.Fatal("Expected invalid cron schedule rejected")
	}

	mgr = testManager(t, nil)
	if err := mgr.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mgr.Stop()
}
