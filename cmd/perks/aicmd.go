package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/techperks/internal/ai"
	"github.com/kalambet/techperks/internal/api"
	"github.com/kalambet/techperks/internal/ingest"
	"github.com/kalambet/techperks/internal/perk"
	"github.com/kalambet/techperks/internal/storage"
)

var aiCmd = &cobra.Command{
	Use:   "ai",
	Short: "Ask Gemini about your perks",
}

var aiChatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant a question about your portfolio",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"message": strings.Join(args, " ")}
		resp, err := client.post(cmd.Context(), "/ai/chat", body)
		if err != nil {
			return err
		}
		var reply api.ChatResponse
		if err := decodeJSON(resp, &reply); err != nil {
			return err
		}
		fmt.Println(reply.Reply)
		return nil
	},
}

var aiExtractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Turn an offer's text, file or web page into perk fields",
	Long: `Turn an offer's text, file or web page into perk fields.

Examples:
  perks ai extract --text "Get $300 in Google Cloud credits, valid until 2026-12-31"
  perks ai extract --url https://example.com/startup-program --add
  perks ai extract --file ./offer.pdf`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		rawURL, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		add, _ := cmd.Flags().GetBool("add")

		if text == "" && rawURL == "" && file == "" {
			return fmt.Errorf("one of --text, --url, or --file is required")
		}

		// Files are read here; the server never sees local paths.
		if file != "" {
			var err error
			reader := ingest.NewReader(nil, ingest.DefaultMaxRunes)
			if text, err = reader.Text(cmd.Context(), ingest.Source{Path: file}); err != nil {
				return err
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai/extract", api.ExtractRequest{Text: text, URL: rawURL})
		if err != nil {
			return err
		}
		var ex api.ExtractResponse
		if err := decodeJSON(resp, &ex); err != nil {
			return err
		}
		if err := printJSON(os.Stdout, ex.Extraction); err != nil {
			return err
		}
		if ex.Confidence < 0.5 {
			printWarning("Low confidence (%.2f); check the fields before saving", ex.Confidence)
		}
		if !add {
			return nil
		}

		in, err := extractionInput(ex.Extraction, rawURL)
		if err != nil {
			return err
		}
		resp, err = client.post(cmd.Context(), "/perks", in)
		if err != nil {
			return err
		}
		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Added %s (%s)", p.Name, p.ID)
		return nil
	},
}

// extractionInput turns an extraction into a new perk. Name, description and
// a parseable expiry date are mandatory; the URL the text came from stands in
// for a missing link.
func extractionInput(ex ai.Extraction, sourceURL string) (perk.Input, error) {
	if strings.TrimSpace(ex.Name) == "" || strings.TrimSpace(ex.Description) == "" {
		return perk.Input{}, fmt.Errorf("extraction is missing a name or description; add the perk manually")
	}
	expiry, err := perk.ParseDate(ex.ExpiryDate)
	if err != nil {
		return perk.Input{}, fmt.Errorf("extraction has no usable expiry date; add the perk manually: %w", err)
	}
	link := ex.Link
	if link == "" {
		link = sourceURL
	}
	return perk.Input{
		Name:        ex.Name,
		Description: ex.Description,
		Provider:    ex.Provider,
		Value:       ex.Value,
		Category:    ex.Category,
		ExpiryDate:  expiry,
		Link:        link,
	}, nil
}

var aiSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web for developer offers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"query": strings.Join(args, " ")}
		resp, err := client.post(cmd.Context(), "/ai/search", body)
		if err != nil {
			return err
		}
		var results []ai.SearchResult
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if len(results) == 0 {
			fmt.Println("No offers found.")
			return nil
		}
		for i, r := range results {
			fmt.Printf("\n%s [relevance: %.2f]\n", colorize(colorBold, fmt.Sprintf("%d. %s", i+1, r.Title)), r.RelevanceScore)
			if r.URL != "" {
				fmt.Printf("  %s\n", colorize(colorCyan, r.URL))
			}
			fmt.Printf("  %s\n", truncateText(r.Snippet, 300))
		}
		return nil
	},
}

var aiSuggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Get suggestions for making the most of your perks",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai/suggestions", nil)
		if err != nil {
			return err
		}
		var result struct {
			Suggestions []string `json:"suggestions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		for i, s := range result.Suggestions {
			fmt.Printf("%d. %s\n", i+1, s)
		}
		return nil
	},
}

var aiValidateCmd = &cobra.Command{
	Use:   "validate [id]",
	Short: "Check whether offers are still available",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		apply, _ := cmd.Flags().GetBool("apply")

		req := api.ValidateRequest{Apply: apply}
		if len(args) == 1 {
			req.ID = args[0]
		} else {
			printStep("Checking every perk, this can take a while...")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai/validate", req)
		if err != nil {
			return err
		}
		var result api.ValidateResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, c := range result.Checks {
			mark := colorize(colorGreen, "valid  ")
			if !c.IsValid {
				mark = colorize(colorRed, "invalid")
			}
			fmt.Printf("%s  %-24s %s\n", mark, c.PerkID, c.Message)
		}
		if apply {
			printSuccess("Updated %d perks", len(result.Updated))
		}
		return nil
	},
}

var aiTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Check that the Gemini API key works",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/ai/test", nil)
		if err != nil {
			return err
		}
		var result struct {
			Message string `json:"message"`
			Model   string `json:"model"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("%s replied: %s", result.Model, result.Message)
		return nil
	},
}

var aiHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Show or clear the chat transcript",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		clearAll, _ := cmd.Flags().GetBool("clear")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if clearAll {
			resp, err := client.delete(cmd.Context(), "/ai/history")
			if err != nil {
				return err
			}
			var result map[string]int64
			if err := decodeJSON(resp, &result); err != nil {
				return err
			}
			printSuccess("Deleted %d messages", result["deleted"])
			return nil
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/ai/history?limit=%d", limit))
		if err != nil {
			return err
		}
		var messages []storage.ChatMessage
		if err := decodeJSON(resp, &messages); err != nil {
			return err
		}
		if len(messages) == 0 {
			fmt.Println("No chat history.")
			return nil
		}
		for _, m := range messages {
			who := colorize(colorCyan, "you")
			if m.Role == storage.RoleAssistant {
				who = colorize(colorGreen, "ai ")
			}
			fmt.Printf("%s %s  %s\n", colorize(colorDim, m.CreatedAt.Local().Format(time.DateTime)), who, m.Content)
		}
		return nil
	},
}

func init() {
	aiExtractCmd.Flags().String("text", "", "offer text")
	aiExtractCmd.Flags().String("url", "", "URL of the offer page")
	aiExtractCmd.Flags().String("file", "", "local text or PDF file")
	aiExtractCmd.Flags().Bool("add", false, "save the extracted perk")
	aiValidateCmd.Flags().Bool("apply", false, "mark unavailable offers expired and merge updated details")
	aiHistoryCmd.Flags().Int("limit", 50, "maximum number of messages")
	aiHistoryCmd.Flags().Bool("clear", false, "delete the whole transcript")

	aiCmd.AddCommand(aiChatCmd, aiExtractCmd, aiSearchCmd, aiSuggestCmd, aiValidateCmd, aiTestCmd, aiHistoryCmd)
}
