package session

import (
	"context"
	"testing"
)

func TestNewStartsAtMainMenuWithEmptyStack(t *testing.T) {
	s := New()

	if s.State != StateMainMenu {
		t.Fatalf("expected main menu, got %q", s.State)
	}
	if len(s.Stack) != 0 {
		t.Fatalf("expected empty stack, got %v", s.Stack)
	}
}

func TestPushPopMirrorEachOther(t *testing.T) {
	s := New()

	s.Push(StatePracticesMenu)
	s.Push(StatePracticeCategory)

	if s.State != StatePracticeCategory || len(s.Stack) != 2 {
		t.Fatalf("unexpected session after pushes: %+v", s)
	}

	state, ok := s.Pop()
	if !ok || state != StatePracticesMenu {
		t.Fatalf("expected to pop back to practices menu, got %q ok=%v", state, ok)
	}

	state, ok = s.Pop()
	if !ok || state != StateMainMenu {
		t.Fatalf("expected to pop back to main menu, got %q ok=%v", state, ok)
	}

	if _, ok := s.Pop(); ok {
		t.Fatalf("expected pop on empty stack to report false")
	}
	if s.State != StateMainMenu {
		t.Fatalf("expected empty-stack pop to leave state alone, got %q", s.State)
	}
}

func TestResetDropsEverything(t *testing.T) {
	s := New()
	s.Push(StatePracticesMenu)
	s.Category = "Сон"
	s.PracticeID = 4
	s.Practices = []PracticeRef{{ID: 4, Name: "Сон"}}

	s.Reset()

	if s.State != StateMainMenu || len(s.Stack) != 0 {
		t.Fatalf("expected fresh session, got %+v", s)
	}
	if s.Category != "" || s.PracticeID != 0 || s.Practices != nil {
		t.Fatalf("expected snapshots and selection dropped, got %+v", s)
	}
}

func TestMemoryStoreReturnsFreshSessionForUnknownChat(t *testing.T) {
	store := NewMemoryStore()

	s, err := store.Get(context.Background(), 42)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if s.State != StateMainMenu || len(s.Stack) != 0 {
		t.Fatalf("expected fresh session, got %+v", s)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New()
	s.Push(StateUniversityMenu)
	s.Universities = []UniversityRef{{ID: 1, Name: "KBTU"}}

	if err := store.Put(ctx, 7, s); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.State != StateUniversityMenu || len(got.Stack) != 1 || got.Stack[0] != StateMainMenu {
		t.Fatalf("unexpected session: %+v", got)
	}
	if len(got.Universities) != 1 || got.Universities[0].Name != "KBTU" {
		t.Fatalf("unexpected snapshot: %+v", got.Universities)
	}
}

func TestMemoryStoreIsolatesStoredSessions(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s := New()
	s.Universities = []UniversityRef{{ID: 1, Name: "KBTU"}}
	if err := store.Put(ctx, 7, s); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	s.Universities[0].Name = "changed"
	s.Push(StatePartnersMenu)

	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Universities[0].Name != "KBTU" {
		t.Fatalf("stored session leaked caller mutation: %+v", got.Universities)
	}
	if got.State != StateMainMenu {
		t.Fatalf("stored session leaked caller push: %+v", got)
	}
}
