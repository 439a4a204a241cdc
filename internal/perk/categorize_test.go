package perk

import (
	"testing"
	"time"
)

// noon keeps day arithmetic away from midnight boundaries.
var noon = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func perkAt(id string, status Status, daysFromToday int) Perk {
	return Perk{
		ID:          id,
		Name:        id,
		Description: "d",
		ExpiryDate:  DateOf(noon).AddDays(daysFromToday),
		Status:      status,
		Notes:       []string{},
	}
}

func ids(perks []Perk) []string {
	out := make([]string, len(perks))
	for i, p := range perks {
		out[i] = p.ID
	}
	return out
}

func TestDaysUntil(t *testing.T) {
	today := DateOf(noon)
	tests := []struct {
		name string
		date Date
		want int
	}{
		{"today", today, 0},
		{"tomorrow", today.AddDays(1), 1},
		{"yesterday", today.AddDays(-1), -1},
		{"week", today.AddDays(7), 7},
		{"eight days", today.AddDays(8), 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DaysUntil(tt.date, noon); got != tt.want {
				t.Errorf("DaysUntil = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCategorize_Partition(t *testing.T) {
	perks := []Perk{
		perkAt("unused-far", StatusUnused, 30),
		perkAt("unused-soon", StatusUnused, 3),
		perkAt("unused-past", StatusUnused, -1),
		perkAt("unused-today", StatusUnused, 0),
		perkAt("progress-soon", StatusInProgress, 7),
		perkAt("progress-far", StatusInProgress, 8),
		perkAt("completed-soon", StatusCompleted, 1),
		perkAt("completed-far", StatusCompleted, 40),
		perkAt("expired-soon", StatusExpired, 2),
		perkAt("expired-past", StatusExpired, -20),
	}

	b := Categorize(noon, perks)

	if b.Len() != len(perks) {
		t.Fatalf("buckets hold %d perks, want %d", b.Len(), len(perks))
	}

	seen := make(map[string]int)
	for _, bucket := range [][]Perk{b.ExpiringSoon, b.Unused, b.InProgress, b.Completed, b.Expired} {
		for _, p := range bucket {
			seen[p.ID]++
		}
	}
	for _, p := range perks {
		if seen[p.ID] != 1 {
			t.Errorf("perk %s appears in %d buckets, want exactly 1", p.ID, seen[p.ID])
		}
	}

	assertIDs(t, "expiringSoon", b.ExpiringSoon, "unused-soon", "progress-soon")
	assertIDs(t, "unused", b.Unused, "unused-far", "unused-past", "unused-today")
	assertIDs(t, "inProgress", b.InProgress, "progress-far")
	assertIDs(t, "completed", b.Completed, "completed-soon", "completed-far")
	assertIDs(t, "expired", b.Expired, "expired-soon", "expired-past")
}

func TestCategorize_CompletedTomorrowIsNotUrgent(t *testing.T) {
	b := Categorize(noon, []Perk{perkAt("c", StatusCompleted, 1)})

	if len(b.ExpiringSoon) != 0 {
		t.Errorf("expiringSoon = %v, want empty", ids(b.ExpiringSoon))
	}
	assertIDs(t, "completed", b.Completed, "c")
}

func TestCategorize_PastDueUnusedIsNotUrgent(t *testing.T) {
	b := Categorize(noon, []Perk{perkAt("late", StatusUnused, -1)})

	if len(b.ExpiringSoon) != 0 {
		t.Errorf("expiringSoon = %v, want empty", ids(b.ExpiringSoon))
	}
	// Status is never derived from the date, so the perk stays unused.
	assertIDs(t, "unused", b.Unused, "late")
}

func TestCategorize_EmptyBucketsAreNonNil(t *testing.T) {
	b := Categorize(noon, nil)
	for name, bucket := range map[string][]Perk{
		"expiringSoon": b.ExpiringSoon, "unused": b.Unused, "inProgress": b.InProgress,
		"completed": b.Completed, "expired": b.Expired,
	} {
		if bucket == nil {
			t.Errorf("%s is nil, want empty slice", name)
		}
	}
}

func TestCategorize_ClockAdvanceMovesIntoExpiringSoon(t *testing.T) {
	p := perkAt("x", StatusUnused, 8)

	b := Categorize(noon, []Perk{p})
	assertIDs(t, "unused", b.Unused, "x")
	if len(b.ExpiringSoon) != 0 {
		t.Fatalf("expiringSoon = %v before clock advance", ids(b.ExpiringSoon))
	}

	later := p.ExpiryDate.Time().AddDate(0, 0, -5)
	b = Categorize(later, []Perk{p})
	assertIDs(t, "expiringSoon", b.ExpiringSoon, "x")
	if len(b.Unused) != 0 {
		t.Errorf("unused = %v after clock advance, want empty", ids(b.Unused))
	}
}

func assertIDs(t *testing.T, bucket string, got []Perk, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Errorf("%s = %v, want %v", bucket, g, want)
		return
	}
	for i := range want {
		if g[i] != want[i] {
			t.Errorf("%s = %v, want %v", bucket, g, want)
			return
		}
	}
}
