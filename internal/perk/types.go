package perk

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the user- or AI-set lifecycle state of a perk. It is never
// derived from the expiry date.
type Status string

const (
	StatusUnused     Status = "unused"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusExpired    Status = "expired"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusUnused, StatusInProgress, StatusCompleted, StatusExpired}

// Categories is the suggested category set. Any string is accepted.
var Categories = []string{
	"Cloud Platform",
	"AI Platform",
	"Hosting Platform",
	"Database",
	"AI Development Tool",
	"Analytics",
	"Monitoring",
	"API Service",
	"Design Tool",
	"Communication",
	"Other",
}

// Progress tracks four independent learning milestones.
type Progress struct {
	ReadDocs          bool `json:"readDocs"`
	UsedInProject     bool `json:"usedInProject"`
	CompletedTutorial bool `json:"completedTutorial"`
	SharedWithTeam    bool `json:"sharedWithTeam"`
}

// Count returns how many milestones are done.
func (p Progress) Count() int {
	n := 0
	for _, done := range []bool{p.ReadDocs, p.UsedInProject, p.CompletedTutorial, p.SharedWithTeam} {
		if done {
			n++
		}
	}
	return n
}

// Ratio returns Count()/4.
func (p Progress) Ratio() float64 {
	return float64(p.Count()) / 4
}

// Perk is one tracked offer.
type Perk struct {
	ID          string    `json:"id"`
	Name        string    `json:"name" validate:"required,notblank"`
	Description string    `json:"description" validate:"required,notblank"`
	Link        string    `json:"link,omitempty"`
	ExpiryDate  Date      `json:"expiryDate" validate:"required"`
	Category    string    `json:"category"`
	Status      Status    `json:"status" validate:"oneof=unused in-progress completed expired"`
	Value       string    `json:"value,omitempty"`
	Provider    string    `json:"provider,omitempty"`
	Notes       []string  `json:"notes"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UnmarshalJSON accepts createdAt either as an RFC 3339 timestamp or as a date.
func (p *Perk) UnmarshalJSON(data []byte) error {
	type alias Perk
	aux := struct {
		*alias
		CreatedAt string `json:"createdAt"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CreatedAt == "" {
		return nil
	}
	t, err := parseTimestamp(aux.CreatedAt)
	if err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	p.CreatedAt = t
	return nil
}

func (p Perk) clone() Perk {
	c := p
	c.Notes = append([]string{}, p.Notes...)
	return c
}

// Input is a perk before the store assigns its identity.
type Input struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Link        string   `json:"link,omitempty"`
	ExpiryDate  Date     `json:"expiryDate"`
	Category    string   `json:"category"`
	Status      Status   `json:"status,omitempty"`
	Value       string   `json:"value,omitempty"`
	Provider    string   `json:"provider,omitempty"`
	Notes       []string `json:"notes,omitempty"`
	Progress    Progress `json:"progress"`
}

// Patch is a partial update. Nil fields are left alone; a non-nil Notes or
// Progress replaces the whole sub-object.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	Link        *string   `json:"link,omitempty"`
	ExpiryDate  *Date     `json:"expiryDate,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Value       *string   `json:"value,omitempty"`
	Provider    *string   `json:"provider,omitempty"`
	Notes       *[]string `json:"notes,omitempty"`
	Progress    *Progress `json:"progress,omitempty"`
}

// Apply returns p merged with the patch. ID and CreatedAt are never touched.
func (pt Patch) Apply(p Perk) Perk {
	out := p.clone()
	if pt.Name != nil {
		out.Name = *pt.Name
	}
	if pt.Description != nil {
		out.Description = *pt.Description
	}
	if pt.Link != nil {
		out.Link = *pt.Link
	}
	if pt.ExpiryDate != nil {
		out.ExpiryDate = *pt.ExpiryDate
	}
	if pt.Category != nil {
		out.Category = *pt.Category
	}
	if pt.Status != nil {
		out.Status = *pt.Status
	}
	if pt.Value != nil {
		out.Value = *pt.Value
	}
	if pt.Provider != nil {
		out.Provider = *pt.Provider
	}
	if pt.Notes != nil {
		out.Notes = append([]string{}, (*pt.Notes)...)
	}
	if pt.Progress != nil {
		out.Progress = *pt.Progress
	}
	return out
}

// Empty reports whether the patch changes nothing.
func (pt Patch) Empty() bool {
	return pt == Patch{}
}
