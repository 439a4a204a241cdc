package perk

import (
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$1,000", 1000},
		{"$100", 100},
		{"$20/month", 20},
		{"€12.50", 12.5},
		{"6 months free", 6},
		{"free forever", 0},
		{"", 0},
		{".", 0},
		{"1.2.3", 1.2},
		{".5 credits", 0.5},
		{"v2. release", 2},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseValue(tt.in); got != tt.want {
				t.Errorf("ParseValue(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestTotalValue_NonNumericContributesZero(t *testing.T) {
	perks := []Perk{
		{Value: "$1,000"},
		{Value: "free for a while"},
		{Value: ""},
	}
	if got := TotalValue(perks); got != 1000 {
		t.Errorf("TotalValue = %v, want 1000", got)
	}
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name  string
		perks []Perk
		want  int
	}{
		{"empty", nil, 0},
		{"none", []Perk{{Status: StatusUnused}}, 0},
		{"third", []Perk{{Status: StatusCompleted}, {Status: StatusUnused}, {Status: StatusExpired}}, 33},
		{"two thirds", []Perk{{Status: StatusCompleted}, {Status: StatusCompleted}, {Status: StatusExpired}}, 67},
		{"all", []Perk{{Status: StatusCompleted}}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompletionRate(tt.perks); got != tt.want {
				t.Errorf("CompletionRate = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExpiringCount_AnyStatus(t *testing.T) {
	perks := []Perk{
		perkAt("a", StatusCompleted, 2),
		perkAt("b", StatusExpired, 7),
		perkAt("c", StatusUnused, 8),
		perkAt("d", StatusUnused, 0),
	}
	if got := ExpiringCount(noon, perks); got != 2 {
		t.Errorf("ExpiringCount = %d, want 2", got)
	}
}

func TestByCategory(t *testing.T) {
	perks := []Perk{
		{Category: "Database", Value: "$9", Status: StatusCompleted},
		{Category: "AI Platform", Value: "$500"},
		{Category: "Database", Value: "$1"},
		{Category: "  ", Value: "$5"},
	}

	got := ByCategory(perks)
	want := []CategoryStat{
		{Category: "AI Platform", Count: 1, Value: 500},
		{Category: "Database", Count: 2, Value: 10, Completed: 1},
		{Category: "Other", Count: 1, Value: 5},
	}
	if len(got) != len(want) {
		t.Fatalf("ByCategory = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ByCategory[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildDashboard(t *testing.T) {
	perks := Demo(noon)
	d := BuildDashboard(noon, perks)

	if d.Metrics.Total != 5 {
		t.Errorf("Total = %d, want 5", d.Metrics.Total)
	}
	// 1000 + 10 + 20 + 500 + 9
	if d.Metrics.TotalValue != 1539 {
		t.Errorf("TotalValue = %v, want 1539", d.Metrics.TotalValue)
	}
	if d.Metrics.ByStatus[StatusInProgress] != 2 {
		t.Errorf("ByStatus[in-progress] = %d, want 2", d.Metrics.ByStatus[StatusInProgress])
	}
	if d.Metrics.ByStatus[StatusCompleted] != 0 {
		t.Errorf("ByStatus[completed] = %d, want 0", d.Metrics.ByStatus[StatusCompleted])
	}
	assertIDs(t, "expiringSoon", d.Buckets.ExpiringSoon, "demo-github-copilot")
	assertIDs(t, "expired", d.Buckets.Expired, "demo-mongodb-atlas")
	if !d.GeneratedAt.Equal(noon) {
		t.Errorf("GeneratedAt = %v, want %v", d.GeneratedAt, noon)
	}
}
