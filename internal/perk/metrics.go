package perk

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ParseValue extracts a number from a free-text value such as "$1,000" or
// "$20/month". Every rune that is not a digit or '.' is dropped and the
// longest numeric prefix of the rest is parsed. Unparseable input yields 0.
func ParseValue(s string) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)

	end, digits, dot := 0, 0, false
	for end < len(cleaned) {
		c := cleaned[end]
		if c == '.' {
			if dot {
				break
			}
			dot = true
		} else {
			digits++
		}
		end++
	}
	if digits == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned[:end], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// TotalValue sums ParseValue over every perk.
func TotalValue(perks []Perk) float64 {
	var total float64
	for _, p := range perks {
		total += ParseValue(p.Value)
	}
	return total
}

// CompletionRate is the share of completed perks as a rounded percentage.
func CompletionRate(perks []Perk) int {
	completed := 0
	for _, p := range perks {
		if p.Status == StatusCompleted {
			completed++
		}
	}
	return int(math.Round(float64(completed) / float64(max(len(perks), 1)) * 100))
}

// ExpiringCount counts perks of any status whose date falls within the
// expiring window.
func ExpiringCount(now time.Time, perks []Perk) int {
	n := 0
	for _, p := range perks {
		if expiresWithinWindow(p, now) {
			n++
		}
	}
	return n
}

// CategoryStat aggregates one category.
type CategoryStat struct {
	Category  string  `json:"category"`
	Count     int     `json:"count"`
	Value     float64 `json:"value"`
	Completed int     `json:"completed"`
}

// ByCategory groups perks by category, sorted by name. Blank categories are
// reported as "Other".
func ByCategory(perks []Perk) []CategoryStat {
	idx := make(map[string]*CategoryStat)
	for _, p := range perks {
		name := strings.TrimSpace(p.Category)
		if name == "" {
			name = "Other"
		}
		st, ok := idx[name]
		if !ok {
			st = &CategoryStat{Category: name}
			idx[name] = st
		}
		st.Count++
		st.Value += ParseValue(p.Value)
		if p.Status == StatusCompleted {
			st.Completed++
		}
	}

	out := make([]CategoryStat, 0, len(idx))
	for _, st := range idx {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// Metrics are the portfolio aggregates shown next to the buckets.
type Metrics struct {
	Total          int            `json:"total"`
	TotalValue     float64        `json:"totalValue"`
	CompletionRate int            `json:"completionRate"`
	ExpiringCount  int            `json:"expiringCount"`
	ByStatus       map[Status]int `json:"byStatus"`
	Categories     []CategoryStat `json:"categories"`
}

// Dashboard bundles buckets and metrics computed at one instant.
type Dashboard struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Buckets     Buckets   `json:"buckets"`
	Metrics     Metrics   `json:"metrics"`
}

// BuildDashboard computes buckets and metrics for perks as of now.
func BuildDashboard(now time.Time, perks []Perk) Dashboard {
	byStatus := make(map[Status]int, len(Statuses))
	for _, s := range Statuses {
		byStatus[s] = 0
	}
	for _, p := range perks {
		byStatus[p.Status]++
	}
	return Dashboard{
		GeneratedAt: now,
		Buckets:     Categorize(now, perks),
		Metrics: Metrics{
			Total:          len(perks),
			TotalValue:     TotalValue(perks),
			CompletionRate: CompletionRate(perks),
			ExpiringCount:  ExpiringCount(now, perks),
			ByStatus:       byStatus,
			Categories:     ByCategory(perks),
		},
	}
}
