package perk

import (
	"math"
	"time"
)

// ExpiringWindowDays is the horizon of the expiringSoon bucket.
const ExpiringWindowDays = 7

// Buckets partitions a perk collection for the dashboard. Every perk lands
// in exactly one bucket.
type Buckets struct {
	ExpiringSoon []Perk `json:"expiringSoon"`
	Unused       []Perk `json:"unused"`
	InProgress   []Perk `json:"inProgress"`
	Completed    []Perk `json:"completed"`
	Expired      []Perk `json:"expired"`
}

// Len returns the total number of perks across all buckets.
func (b Buckets) Len() int {
	return len(b.ExpiringSoon) + len(b.Unused) + len(b.InProgress) + len(b.Completed) + len(b.Expired)
}

// DaysUntil returns ceil((expiry - now) / 24h). Zero or negative means the
// date has passed.
func DaysUntil(expiry Date, now time.Time) int {
	diff := expiry.Time().Sub(now)
	return int(math.Ceil(float64(diff) / float64(24*time.Hour)))
}

func expiresWithinWindow(p Perk, now time.Time) bool {
	d := DaysUntil(p.ExpiryDate, now)
	return d > 0 && d <= ExpiringWindowDays
}

// Categorize sorts perks into buckets as of now. Only open work (unused or
// in progress) is flagged as expiring soon; completed and expired perks stay
// in their status bucket whatever the date. Past-dated open perks are not
// urgent either, since status is never derived from the date.
func Categorize(now time.Time, perks []Perk) Buckets {
	b := Buckets{
		ExpiringSoon: []Perk{},
		Unused:       []Perk{},
		InProgress:   []Perk{},
		Completed:    []Perk{},
		Expired:      []Perk{},
	}
	for _, p := range perks {
		switch p.Status {
		case StatusCompleted:
			b.Completed = append(b.Completed, p)
		case StatusExpired:
			b.Expired = append(b.Expired, p)
		case StatusInProgress:
			if expiresWithinWindow(p, now) {
				b.ExpiringSoon = append(b.ExpiringSoon, p)
			} else {
				b.InProgress = append(b.InProgress, p)
			}
		default:
			// Unknown statuses only come from hand-edited data; treat as unused.
			if expiresWithinWindow(p, now) {
				b.ExpiringSoon = append(b.ExpiringSoon, p)
			} else {
				b.Unused = append(b.Unused, p)
			}
		}
	}
	return b
}
