package sessions

import (
	"testing"

	"github.com/parleylabs/parley/internal/chat"
)

func newManager(t *testing.T, max int) *Manager {
	t.Helper()
	m, err := NewManager(max, "You are a helpful assistant.")
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestGetCreatesAndReuses(t *testing.T) {
	m := newManager(t, 4)

	s1 := m.Get("alice")
	if s1.ID != "alice" {
		t.Errorf("id = %q", s1.ID)
	}
	// System prompt is seeded.
	if s1.History.Len() != 1 {
		t.Errorf("history len = %d, want 1", s1.History.Len())
	}

	s1.History.Append(chat.UserTurn("hi"))
	if s2 := m.Get("alice"); s2 != s1 {
		t.Error("same id should return the same session")
	}
	if m.Len() != 1 {
		t.Errorf("len = %d, want 1", m.Len())
	}
}

func TestGetNormalizesID(t *testing.T) {
	m := newManager(t, 4)

	a := m.Get("Alice Smith")
	b := m.Get("alice-smith")
	if a != b {
		t.Error("normalized ids should share a session")
	}
	if a.ID != "alice-smith" {
		t.Errorf("id = %q", a.ID)
	}

	// Unusable ids collapse to the default session.
	d := m.Get("")
	if d.ID != "default" {
		t.Errorf("default id = %q", d.ID)
	}
}

func TestResetDiscardsHistory(t *testing.T) {
	m := newManager(t, 4)

	s := m.Get("bob")
	s.History.Append(chat.UserTurn("remember this"))
	if s.History.Len() != 2 {
		t.Fatalf("setup len = %d", s.History.Len())
	}

	fresh := m.Reset("bob")
	if fresh == s {
		t.Error("reset must produce a new session")
	}
	if fresh.History.Len() != 1 {
		t.Errorf("fresh history len = %d, want 1 (system prompt)", fresh.History.Len())
	}
	if again := m.Get("bob"); again != fresh {
		t.Error("manager should hand out the fresh session after reset")
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	m := newManager(t, 2)

	a := m.Get("a")
	m.Get("b")
	m.Get("a") // refresh a's recency
	m.Get("c") // evicts b

	if m.Len() != 2 {
		t.Fatalf("len = %d, want 2", m.Len())
	}
	if got := m.Get("a"); got != a {
		t.Error("a should have survived eviction")
	}
	// b was evicted; getting it creates a fresh session.
	b2 := m.Get("b")
	if b2.History.Len() != 1 {
		t.Errorf("recreated session should be fresh, len = %d", b2.History.Len())
	}
}

func TestBeginRunExclusive(t *testing.T) {
	m := newManager(t, 4)
	s := m.Get("x")

	if !s.BeginRun() {
		t.Fatal("first BeginRun should succeed")
	}
	if s.BeginRun() {
		t.Error("second BeginRun must fail while running")
	}
	if !s.Running() {
		t.Error("session should report running")
	}

	s.EndRun()
	if s.Running() {
		t.Error("session should be idle after EndRun")
	}
	if !s.BeginRun() {
		t.Error("BeginRun should succeed after EndRun")
	}
}

func TestListNewestFirst(t *testing.T) {
	m := newManager(t, 4)
	m.Get("one")
	m.Get("two")
	m.Get("one") // bump recency

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("infos = %d, want 2", len(infos))
	}
	if infos[0].ID != "one" || infos[1].ID != "two" {
		t.Errorf("order = %s, %s; want one, two", infos[0].ID, infos[1].ID)
	}
	if infos[0].Turns != 1 {
		t.Errorf("turns = %d, want 1", infos[0].Turns)
	}
	if infos[0].Tokens <= 0 {
		t.Errorf("tokens = %d, want > 0", infos[0].Tokens)
	}
}
