package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hallfield/homehub-core/internal/auth"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry(time.Second)
	ctx := context.Background()

	if err := r.Create(ctx, "s1"); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s, err := r.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if s.Authenticated || s.HouseID != 0 {
		t.Errorf("fresh session not blank: %+v", s)
	}

	err = r.Update(ctx, "s1", func(s *Session) {
		s.Authenticated = true
		s.UserID = 7
		s.Username = "alice"
		s.HouseID = 3
		s.Role = auth.RoleAdmin
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	s, err = r.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if !s.Authenticated || s.UserID != 7 || s.HouseID != 3 || s.Role != auth.RoleAdmin {
		t.Errorf("update lost: %+v", s)
	}

	if err := r.Remove(ctx, "s1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after remove = %v, want ErrSessionNotFound", err)
	}
	// Removing again is a no-op.
	if err := r.Remove(ctx, "s1"); err != nil {
		t.Fatalf("second Remove: %v", err)
	}
}

func TestRegistryGetReturnsCopy(t *testing.T) {
	r := NewRegistry(time.Second)
	ctx := context.Background()
	if err := r.Create(ctx, "s1"); err != nil {
		t.Fatal(err)
	}

	s, err := r.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	s.HouseID = 99 // mutating the copy must not touch the registry

	fresh, err := r.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if fresh.HouseID != 0 {
		t.Error("Get returned a live reference, not a copy")
	}
}

func TestRegistryUpdateUnknownSession(t *testing.T) {
	r := NewRegistry(time.Second)
	err := r.Update(context.Background(), "ghost", func(*Session) {})
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestListByHouse(t *testing.T) {
	r := NewRegistry(time.Second)
	ctx := context.Background()

	join := func(id string, houseID int64) {
		t.Helper()
		if err := r.Create(ctx, id); err != nil {
			t.Fatal(err)
		}
		if err := r.Update(ctx, id, func(s *Session) { s.HouseID = houseID }); err != nil {
			t.Fatal(err)
		}
	}
	join("a", 1)
	join("b", 1)
	join("c", 2)
	if err := r.Create(ctx, "d"); err != nil { // never joins
		t.Fatal(err)
	}

	members, err := r.ListByHouse(ctx, 1)
	if err != nil {
		t.Fatalf("ListByHouse: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("house 1 members = %d, want 2", len(members))
	}
	for _, m := range members {
		if m.ID != "a" && m.ID != "b" {
			t.Errorf("unexpected member %s", m.ID)
		}
	}

	none, err := r.ListByHouse(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("house 42 members = %d, want 0", len(none))
	}
}
