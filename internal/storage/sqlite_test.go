package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same directory and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_things.sql")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 7 {
		t.Errorf("version = %d, want 7", v)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for filename without version prefix")
	}
}

func TestValue_GetMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetValue(context.Background(), "perks")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestValue_SetOverwriteDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SetValue(ctx, "perks", "[]"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := s.SetValue(ctx, "perks", `[{"id":"1"}]`); err != nil {
		t.Fatalf("SetValue overwrite: %v", err)
	}

	got, err := s.GetValue(ctx, "perks")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != `[{"id":"1"}]` {
		t.Errorf("value = %q", got)
	}

	if err := s.DeleteValue(ctx, "perks"); err != nil {
		t.Fatalf("DeleteValue: %v", err)
	}
	if _, err := s.GetValue(ctx, "perks"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete err = %v, want ErrNotFound", err)
	}

	// Deleting again is fine.
	if err := s.DeleteValue(ctx, "perks"); err != nil {
		t.Errorf("second DeleteValue: %v", err)
	}
}

func TestValue_PersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s1.SetValue(ctx, "demo-cleared", "true"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.GetValue(ctx, "demo-cleared")
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "true" {
		t.Errorf("value = %q, want true", got)
	}
}

func TestChatMessages_RecentInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		m := ChatMessage{
			ID:        fmt.Sprintf("m-%d", i),
			CreatedAt: base,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
		}
		if err := s.SaveChatMessage(ctx, m); err != nil {
			t.Fatalf("SaveChatMessage(%d): %v", i, err)
		}
	}

	got, err := s.RecentChatMessages(ctx, 3)
	if err != nil {
		t.Fatalf("RecentChatMessages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	for i, want := range []string{"m-2", "m-3", "m-4"} {
		if got[i].ID != want {
			t.Errorf("got[%d].ID = %q, want %q", i, got[i].ID, want)
		}
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}
	if got[1].Role != RoleAssistant {
		t.Errorf("got[1].Role = %q, want assistant", got[1].Role)
	}
}

func TestChatMessages_Clear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.SaveChatMessage(ctx, ChatMessage{ID: fmt.Sprintf("c-%d", i), Role: RoleUser, Content: "hi"}); err != nil {
			t.Fatalf("SaveChatMessage: %v", err)
		}
	}

	n, err := s.ClearChatMessages(ctx)
	if err != nil {
		t.Fatalf("ClearChatMessages: %v", err)
	}
	if n != 2 {
		t.Errorf("deleted = %d, want 2", n)
	}

	got, err := s.RecentChatMessages(ctx, 10)
	if err != nil {
		t.Fatalf("RecentChatMessages: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d messages after clear, want 0", len(got))
	}
}
