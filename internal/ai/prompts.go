package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/techperks/internal/perk"
)

// PortfolioContext builds the assistant preamble that Chat prepends to every
// user message.
func PortfolioContext(perks []perk.Perk) string {
	var active int
	var unused, inProgress []string
	for _, p := range perks {
		if p.Status != perk.StatusExpired {
			active++
		}
		switch p.Status {
		case perk.StatusUnused:
			unused = append(unused, p.Name)
		case perk.StatusInProgress:
			inProgress = append(inProgress, p.Name)
		}
	}

	var b strings.Builder
	b.WriteString("You are a helpful AI learning assistant for a developer who tracks free tech perks, credits and trials, and wants to get the most out of them before they expire.\n\n")
	b.WriteString("Current user context:\n")
	fmt.Fprintf(&b, "- Total active perks: %d\n", active)
	fmt.Fprintf(&b, "- Unused perks: %s\n", joinOrNone(unused))
	fmt.Fprintf(&b, "- In-progress perks: %s\n\n", joinOrNone(inProgress))
	b.WriteString(`Your role:
- Help the user learn and apply their perks effectively
- Suggest practical project ideas based on the perks they hold
- Provide learning paths and best practices
- Ask follow-up questions to understand their goals
- Focus on hands-on learning and real-world applications

Format responses as markdown: ## for sections, ### for subsections, lists, **bold** for emphasis, and fenced code blocks with a language tag.

Be encouraging and practical.`)
	return b.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ", ")
}

func extractionPrompt(text string, today time.Time) string {
	return fmt.Sprintf(`Extract the details of a tech perk, credit, or free trial from the text below.

Return ONLY a JSON object with these fields:
- name: short name of the perk
- description: one or two sentences describing what it offers
- provider: the company offering it
- value: the monetary value or amount as written (for example "$500" or "$20/month")
- category: one of %s
- expiryDate: expiry date as YYYY-MM-DD; resolve relative dates against today (%s)
- link: URL of the offer if present
- confidence: number between 0 and 1 describing how sure you are

Use an empty string for any field you cannot find.

Text:
%s`, strings.Join(perk.Categories, ", "), today.Format(time.DateOnly), text)
}

func searchPrompt(query string) string {
	return fmt.Sprintf(`Search for current developer perks, free tiers, startup credits, and trials matching: %q

Focus on offers that are active right now.
Return ONLY a JSON array of at most 5 objects with these fields:
- title: name of the offer
- url: link to the offer page
- snippet: one sentence summary
- relevanceScore: number between 0 and 1

Order by relevance, best first.`, query)
}

type perkSummary struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	Category      string `json:"category"`
	Status        string `json:"status"`
	Value         string `json:"value"`
	ExpiryDate    string `json:"expiryDate"`
	ProgressCount int    `json:"progressCount"`
}

func suggestionsPrompt(perks []perk.Perk) (string, error) {
	summary := make([]perkSummary, 0, len(perks))
	for _, p := range perks {
		summary = append(summary, perkSummary{
			Name:          p.Name,
			Provider:      p.Provider,
			Category:      p.Category,
			Status:        string(p.Status),
			Value:         p.Value,
			ExpiryDate:    p.ExpiryDate.String(),
			ProgressCount: p.Progress.Count(),
		})
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling portfolio: %w", err)
	}
	return fmt.Sprintf(`Here is a developer's portfolio of tech perks (progressCount is how many of 4 learning milestones are done):

%s

Give exactly 5 specific, actionable suggestions to get more value from this portfolio. Consider expiry dates, unused high-value perks, and perks that combine well in one project.

Return ONLY a JSON array of strings.`, data), nil
}

func validationPrompt(p perk.Perk) string {
	return fmt.Sprintf(`Check whether this perk or offer is still valid and active:

Name: %s
Provider: %s
Description: %s
Current Value: %s
Link: %s

Search for current information about this offer and return ONLY a JSON object with:
- isValid: boolean, true if the offer is still active
- message: short explanation of the status
- updatedInfo: object with any changed fields among value, expiryDate (YYYY-MM-DD), description, link`,
		p.Name, p.Provider, p.Description, p.Value, p.Link)
}
