package api

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/techperks/internal/perk"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Perks *perk.Store
	AI    Gateway // optional; if nil, suggest returns an error
}

// NewMCPServer creates an MCP server exposing the perk portfolio to assistants.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"techperks",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("techperks tracks free developer perks, credits and trials with their expiry dates and learning progress."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_perks",
			mcp.WithDescription("List tracked perks as JSON, optionally filtered by status."),
			mcp.WithString("status", mcp.Description("One of unused, in-progress, completed, expired")),
		),
		mcpListPerks(deps),
	)

	s.AddTool(
		mcp.NewTool("add_perk",
			mcp.WithDescription("Track a new perk."),
			mcp.WithString("name", mcp.Description("Perk name"), mcp.Required()),
			mcp.WithString("description", mcp.Description("What the perk offers"), mcp.Required()),
			mcp.WithString("expiry_date", mcp.Description("Expiry date as YYYY-MM-DD"), mcp.Required()),
			mcp.WithString("provider", mcp.Description("Company offering the perk")),
			mcp.WithString("value", mcp.Description(`Value as written, e.g. "$500" or "$20/month"`)),
			mcp.WithString("category", mcp.Description("Category, e.g. Cloud Platform")),
			mcp.WithString("link", mcp.Description("URL of the offer")),
		),
		mcpAddPerk(deps),
	)

	s.AddTool(
		mcp.NewTool("update_perk_status",
			mcp.WithDescription("Change the status of a perk."),
			mcp.WithString("id", mcp.Description("Perk id"), mcp.Required()),
			mcp.WithString("status", mcp.Description("One of unused, in-progress, completed, expired"), mcp.Required()),
		),
		mcpUpdateStatus(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Append a note to a perk."),
			mcp.WithString("id", mcp.Description("Perk id"), mcp.Required()),
			mcp.WithString("note", mcp.Description("Note text"), mcp.Required()),
		),
		mcpAddNote(deps),
	)

	s.AddTool(
		mcp.NewTool("dashboard",
			mcp.WithDescription("Portfolio buckets (expiring soon, unused, in progress, completed, expired) and metrics."),
		),
		mcpDashboard(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest",
			mcp.WithDescription("Ask the AI for suggestions to get more value out of the portfolio."),
		),
		mcpSuggest(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"perks://dashboard",
			"Perk Dashboard",
			mcp.WithResourceDescription("Current buckets and metrics as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceDashboard(deps),
	)

	return s
}

func mcpListPerks(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		perks := deps.Perks.List()
		if s := req.GetString("status", ""); s != "" {
			status := perk.Status(s)
			if !slices.Contains(perk.Statuses, status) {
				return mcpError(fmt.Sprintf("unknown status %q", s)), nil
			}
			perks = slices.DeleteFunc(perks, func(p perk.Perk) bool { return p.Status != status })
		}
		return mcpJSON(perks), nil
	}
}

func mcpAddPerk(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcpError("name is required"), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcpError("description is required"), nil
		}
		rawExpiry, err := req.RequireString("expiry_date")
		if err != nil {
			return mcpError("expiry_date is required"), nil
		}
		expiry, err := perk.ParseDate(rawExpiry)
		if err != nil {
			return mcpError(fmt.Sprintf("invalid expiry_date: %v", err)), nil
		}

		p, err := deps.Perks.Add(ctx, perk.Input{
			Name:        name,
			Description: description,
			ExpiryDate:  expiry,
			Provider:    req.GetString("provider", ""),
			Value:       req.GetString("value", ""),
			Category:    req.GetString("category", "Other"),
			Link:        req.GetString("link", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add perk: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added perk %s (%s)", p.Name, p.ID)), nil
	}
}

func mcpUpdateStatus(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		raw, err := req.RequireString("status")
		if err != nil {
			return mcpError("status is required"), nil
		}

		status := perk.Status(strings.TrimSpace(raw))
		p, found, err := deps.Perks.Update(ctx, id, perk.Patch{Status: &status})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to update perk: %v", err)), nil
		}
		if !found {
			return mcpError(fmt.Sprintf("perk %s not found", id)), nil
		}
		return mcpText(fmt.Sprintf("%s is now %s", p.Name, p.Status)), nil
	}
}

func mcpAddNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		note, err := req.RequireString("note")
		if err != nil {
			return mcpError("note is required"), nil
		}

		p, found, err := deps.Perks.AddNote(ctx, id, note)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add note: %v", err)), nil
		}
		if !found {
			return mcpError(fmt.Sprintf("perk %s not found", id)), nil
		}
		return mcpText(fmt.Sprintf("%s has %d notes", p.Name, len(p.Notes))), nil
	}
}

func mcpDashboard(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(deps.Perks.Dashboard()), nil
	}
}

func mcpSuggest(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.AI == nil {
			return mcpError("suggestions not available: AI is not set up"), nil
		}
		suggestions, err := deps.AI.GenerateSuggestions(ctx, deps.Perks.List())
		if err != nil {
			return mcpError(fmt.Sprintf("suggestions failed: %v", err)), nil
		}
		var b strings.Builder
		for i, s := range suggestions {
			fmt.Fprintf(&b, "%d. %s\n", i+1, s)
		}
		return mcpText(strings.TrimRight(b.String(), "\n")), nil
	}
}

func mcpResourceDashboard(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Perks.Dashboard())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) *mcp.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err))
	}
	return mcpText(string(b))
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
