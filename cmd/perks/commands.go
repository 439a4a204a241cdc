package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/techperks/internal/api"
	"github.com/kalambet/techperks/internal/config"
	"github.com/kalambet/techperks/internal/perk"
	"github.com/kalambet/techperks/internal/settings"
)

// --- perks ---

var perksCmd = &cobra.Command{
	Use:   "perks",
	Short: "Manage tracked perks",
}

var perksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List perks",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/perks"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var perks []perk.Perk
		if err := decodeJSON(resp, &perks); err != nil {
			return err
		}
		if len(perks) == 0 {
			fmt.Println("No perks found.")
			return nil
		}
		writePerkTable(os.Stdout, perks)
		return nil
	},
}

func writePerkTable(w io.Writer, perks []perk.Perk) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tEXPIRES\tVALUE\tPROGRESS")
	for _, p := range perks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d/4\n",
			p.ID, truncateText(p.Name, 32), statusLabel(p.Status), p.ExpiryDate, p.Value, p.Progress.Count())
	}
	tw.Flush()
}

var perksShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a perk as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/perks/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(os.Stdout, p)
	},
}

var perksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Track a new perk",
	Long: `Track a new perk.

Examples:
  perks perks add --name "Render credits" --description "Free hosting" --expiry 2026-05-01
  perks perks add --name "Copilot" --description "Free for OSS" --expiry 2026-12-31 \
    --provider GitHub --value '$10/month' --category "AI Development Tool"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := perkInputFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/perks", in)
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

func perkInputFromFlags(cmd *cobra.Command) (perk.Input, error) {
	f := cmd.Flags()
	name, _ := f.GetString("name")
	description, _ := f.GetString("description")
	expiry, _ := f.GetString("expiry")
	if name == "" || description == "" || expiry == "" {
		return perk.Input{}, fmt.Errorf("--name, --description and --expiry are required")
	}
	date, err := perk.ParseDate(expiry)
	if err != nil {
		return perk.Input{}, err
	}

	in := perk.Input{Name: name, Description: description, ExpiryDate: date}
	in.Provider, _ = f.GetString("provider")
	in.Value, _ = f.GetString("value")
	in.Category, _ = f.GetString("category")
	in.Link, _ = f.GetString("link")
	status, _ := f.GetString("status")
	in.Status = perk.Status(status)
	return in, nil
}

var perksUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update fields of a perk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := perkPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/perks/"+url.PathEscape(args[0]), patch)
		if err != nil {
			return err
		}

		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("Updated %s", p.Name)
		return nil
	},
}

// perkPatchFromFlags builds a patch from the flags the user actually passed.
func perkPatchFromFlags(cmd *cobra.Command) (perk.Patch, error) {
	f := cmd.Flags()
	str := func(name string) *string {
		if !f.Changed(name) {
			return nil
		}
		v, _ := f.GetString(name)
		return &v
	}

	patch := perk.Patch{
		Name:        str("name"),
		Description: str("description"),
		Link:        str("link"),
		Category:    str("category"),
		Value:       str("value"),
		Provider:    str("provider"),
	}
	if s := str("status"); s != nil {
		status := perk.Status(*s)
		patch.Status = &status
	}
	if s := str("expiry"); s != nil {
		date, err := perk.ParseDate(*s)
		if err != nil {
			return perk.Patch{}, err
		}
		patch.ExpiryDate = &date
	}

	if patch == (perk.Patch{}) {
		return perk.Patch{}, fmt.Errorf("nothing to update: pass at least one field flag")
	}
	return patch, nil
}

var perksRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Delete a perk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/perks/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result map[string]bool
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if !result["deleted"] {
			printWarning("No perk with id %s", args[0])
			return nil
		}
		printSuccess("Deleted %s", args[0])
		return nil
	},
}

var perksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every perk, demo data included",
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This will delete ALL perks. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/perks")
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("All perks deleted")
		return nil
	},
}

var perksNoteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add or remove notes on a perk",
}

var perksNoteAddCmd = &cobra.Command{
	Use:   "add <id> <text>",
	Short: "Append a note",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		body := map[string]string{"note": strings.Join(args[1:], " ")}
		resp, err := client.post(cmd.Context(), "/perks/"+url.PathEscape(args[0])+"/notes", body)
		if err != nil {
			return err
		}

		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("%s has %d notes", p.Name, len(p.Notes))
		return nil
	},
}

var perksNoteRemoveCmd = &cobra.Command{
	Use:   "rm <id> <index>",
	Short: "Remove a note by its zero-based index",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("note index must be a number: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/perks/%s/notes/%d", url.PathEscape(args[0]), index))
		if err != nil {
			return err
		}

		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("%s has %d notes", p.Name, len(p.Notes))
		return nil
	},
}

var progressFlags = []struct {
	flag  string
	usage string
	field func(*perk.Progress) *bool
}{
	{"read-docs", "read the documentation", func(p *perk.Progress) *bool { return &p.ReadDocs }},
	{"used-in-project", "used it in a project", func(p *perk.Progress) *bool { return &p.UsedInProject }},
	{"completed-tutorial", "completed a tutorial", func(p *perk.Progress) *bool { return &p.CompletedTutorial }},
	{"shared-with-team", "shared it with the team", func(p *perk.Progress) *bool { return &p.SharedWithTeam }},
}

var perksProgressCmd = &cobra.Command{
	Use:   "progress <id>",
	Short: "Set learning milestones, e.g. --read-docs --used-in-project=false",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/perks/" + url.PathEscape(args[0])

		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var current perk.Perk
		if err := decodeJSON(resp, &current); err != nil {
			return err
		}

		progress := current.Progress
		for _, pf := range progressFlags {
			if cmd.Flags().Changed(pf.flag) {
				*pf.field(&progress), _ = cmd.Flags().GetBool(pf.flag)
			}
		}

		resp, err = client.put(cmd.Context(), path+"/progress", progress)
		if err != nil {
			return err
		}
		var p perk.Perk
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		printSuccess("%s progress: %d/4", p.Name, p.Progress.Count())
		return nil
	},
}

func addPerkFieldFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "perk name")
	cmd.Flags().String("description", "", "what the perk offers")
	cmd.Flags().String("expiry", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().String("provider", "", "company offering the perk")
	cmd.Flags().String("value", "", `value as written, e.g. "$500"`)
	cmd.Flags().String("category", "", "category, e.g. Cloud Platform")
	cmd.Flags().String("link", "", "URL of the offer")
	cmd.Flags().String("status", "", "unused, in-progress, completed or expired")
}

func init() {
	perksListCmd.Flags().String("status", "", "only list perks with this status")
	addPerkFieldFlags(perksAddCmd)
	addPerkFieldFlags(perksUpdateCmd)
	perksClearCmd.Flags().Bool("confirm", false, "confirm deleting every perk")
	for _, pf := range progressFlags {
		perksProgressCmd.Flags().Bool(pf.flag, false, pf.usage)
	}

	perksNoteCmd.AddCommand(perksNoteAddCmd, perksNoteRemoveCmd)
	perksCmd.AddCommand(perksListCmd, perksShowCmd, perksAddCmd, perksUpdateCmd,
		perksRemoveCmd, perksClearCmd, perksNoteCmd, perksProgressCmd)
}

// --- dashboard ---

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show perks grouped by urgency plus portfolio metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/dashboard")
		if err != nil {
			return err
		}
		var d perk.Dashboard
		if err := decodeJSON(resp, &d); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, d)
		}
		printDashboard(d)
		return nil
	},
}

func printDashboard(d perk.Dashboard) {
	m := d.Metrics
	fmt.Printf("%s  %d perks, $%.0f total value, %d%% complete\n",
		colorize(colorBold, "Portfolio"), m.Total, m.TotalValue, m.CompletionRate)

	sections := []struct {
		title string
		color string
		perks []perk.Perk
	}{
		{"Expiring soon", colorRed, d.Buckets.ExpiringSoon},
		{"Unused", colorBlue, d.Buckets.Unused},
		{"In progress", colorYellow, d.Buckets.InProgress},
		{"Completed", colorGreen, d.Buckets.Completed},
		{"Expired", colorDim, d.Buckets.Expired},
	}
	for _, s := range sections {
		if len(s.perks) == 0 {
			continue
		}
		fmt.Printf("\n%s (%d)\n", colorize(s.color, s.title), len(s.perks))
		for _, p := range s.perks {
			fmt.Printf("  %-32s %s  %s\n", truncateText(p.Name, 32), p.ExpiryDate, p.Value)
		}
	}
}

func init() {
	dashboardCmd.Flags().Bool("json", false, "print the raw dashboard JSON")
}

// --- settings ---

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change AI settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show AI settings (API key masked)",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/settings")
		if err != nil {
			return err
		}
		var st api.SettingsResponse
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}

		key := st.Settings.APIKey
		if key == "" {
			key = colorize(colorYellow, "(not set)")
		}
		printStatus("API key", "%s", key)
		printStatus("Model", "%s (%s)", st.Model.Name, st.Model.ID)
		printStatus("Temperature", "%.2f", st.Settings.Temperature)
		printStatus("Max tokens", "%d", st.Settings.MaxTokens)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update AI settings",
	Long: `Update AI settings.

Examples:
  perks settings set --api-key AIza...
  perks settings set --model gemini-2.5-flash --temperature 0.4`,
	RunE: func(cmd *cobra.Command, args []string) error {
		patch, err := settingsPatchFromFlags(cmd)
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.patch(cmd.Context(), "/settings", patch)
		if err != nil {
			return err
		}
		var st api.SettingsResponse
		if err := decodeJSON(resp, &st); err != nil {
			return err
		}
		printSuccess("Settings saved (model %s)", st.Model.ID)
		if !st.Configured {
			printWarning("No API key set; AI features stay disabled")
		}
		return nil
	},
}

func addSettingsFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-key", "", "Gemini API key (empty string clears it)")
	cmd.Flags().String("model", "", "model id, see 'perks settings models'")
	cmd.Flags().Float64("temperature", 0.7, "sampling temperature between 0 and 1")
	cmd.Flags().Int("max-tokens", 1000, "maximum output tokens for chat")
}

func settingsPatchFromFlags(cmd *cobra.Command) (settings.Patch, error) {
	f := cmd.Flags()
	var patch settings.Patch
	if f.Changed("api-key") {
		v, _ := f.GetString("api-key")
		patch.APIKey = &v
	}
	if f.Changed("model") {
		v, _ := f.GetString("model")
		patch.SelectedModel = &v
	}
	if f.Changed("temperature") {
		v, _ := f.GetFloat64("temperature")
		patch.Temperature = &v
	}
	if f.Changed("max-tokens") {
		v, _ := f.GetInt("max-tokens")
		patch.MaxTokens = &v
	}
	if patch == (settings.Patch{}) {
		return settings.Patch{}, fmt.Errorf("nothing to update: pass --api-key, --model, --temperature or --max-tokens")
	}
	return patch, nil
}

var settingsModelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List selectable Gemini models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/models")
		if err != nil {
			return err
		}
		var result struct {
			Models   []settings.Model `json:"models"`
			Selected settings.Model   `json:"selected"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		for _, m := range result.Models {
			marker := "  "
			if m.ID == result.Selected.ID {
				marker = colorize(colorGreen, "* ")
			}
			fmt.Printf("%s%-40s %s\n", marker, m.ID, colorize(colorDim, m.Description))
		}
		return nil
	},
}

func init() {
	addSettingsFlags(settingsSetCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd, settingsModelsCmd)
}

// --- data ---

var dataCmd = &cobra.Command{
	Use:   "data",
	Short: "Export or import the perk collection",
}

var dataExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all perks as a JSON document",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/export")
		if err != nil {
			return err
		}
		var doc perk.Document
		if err := decodeJSON(resp, &doc); err != nil {
			return err
		}

		if output == "" {
			return printJSON(os.Stdout, doc)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		if err := printJSON(f, doc); err != nil {
			return err
		}
		printSuccess("Exported %d perks to %s", len(doc.Perks), output)
		return nil
	},
}

var dataImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all perks with the contents of an export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := importFile(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSuccess("Imported %d perks", n)
		return nil
	},
}

// importFile checks the document locally before sending it, so a malformed
// file never reaches the server.
func importFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	perks, err := perk.DecodeImport(f)
	if err != nil {
		return 0, err
	}

	client, err := newAPIClient()
	if err != nil {
		return 0, err
	}
	resp, err := client.post(ctx, "/import", perk.Export(time.Now(), perks))
	if err != nil {
		return 0, err
	}
	var result map[string]int
	if err := decodeJSON(resp, &result); err != nil {
		return 0, err
	}
	return result["imported"], nil
}

func init() {
	dataExportCmd.Flags().String("output", "", "output file path (default: stdout)")
	dataCmd.AddCommand(dataExportCmd, dataImportCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Printf("  %s = %s  %s\n", colorize(colorBold, k.Key), k.Value, colorize(colorDim, k.EnvVar))
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) == 0 {
			return config.ValidKeys(), cobra.ShellCompDirectiveNoFileComp
		}
		return nil, cobra.ShellCompDirectiveNoFileComp
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
