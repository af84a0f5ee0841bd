package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brandflow/brandflow/internal/api"
	"github.com/brandflow/brandflow/internal/brand"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/chatbot"
	"github.com/brandflow/brandflow/internal/competitor"
	"github.com/brandflow/brandflow/internal/config"
	"github.com/brandflow/brandflow/internal/content"
	"github.com/brandflow/brandflow/internal/flow"
)

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// runFlow posts in to a flow route and decodes the output into out. It
// reports whether the server answered from cache.
func runFlow(ctx context.Context, client *apiClient, name string, in, out any) (bool, error) {
	resp, err := client.post(ctx, "/v1/flows/"+name, in)
	if err != nil {
		return false, err
	}
	hit := resp.Header.Get(api.CacheHeader) == "hit"
	if err := decodeJSON(resp, out); err != nil {
		return false, err
	}
	return hit, nil
}

func printMeta(m flow.Meta, cacheHit bool) {
	source := "generated"
	if cacheHit {
		source = "cache"
	}
	printStatus("Source", "%s", source)
	printStatus("Confidence", "%.2f", m.Confidence)
	printStatus("Generated", "%s", m.GeneratedAt)
}

// --- brand ---

var brandCmd = &cobra.Command{
	Use:   "brand",
	Short: "Generate brand positioning for a company",
	Long: `Generate brand positioning for a company. Results are cached per
company name for the flow's cache TTL.

Examples:
  brandflow brand --company "Acme Corp" --industry "B2B SaaS" --audience "operations leaders"
  brandflow brand --company Acme --industry Retail --audience Shoppers --competitors "Globex, Initech" --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := brand.Input{}
		in.CompanyName, _ = cmd.Flags().GetString("company")
		in.Industry, _ = cmd.Flags().GetString("industry")
		in.TargetAudience, _ = cmd.Flags().GetString("audience")
		in.CurrentPositioning, _ = cmd.Flags().GetString("positioning")
		in.BusinessGoals, _ = cmd.Flags().GetString("goals")
		competitors, _ := cmd.Flags().GetString("competitors")
		strengths, _ := cmd.Flags().GetString("strengths")
		in.Competitors = splitList(competitors)
		in.UniqueStrengths = splitList(strengths)
		asJSON, _ := cmd.Flags().GetBool("json")

		if in.CompanyName == "" {
			return fmt.Errorf("--company is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var out brand.Positioning
		hit, err := runFlow(cmd.Context(), client, brand.Name, in, &out)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, out)
		}

		fmt.Printf("%s\n  %s\n\n", colorize(colorBold, "Positioning"), out.PositioningStatement)
		fmt.Printf("%s\n  %s\n\n", colorize(colorBold, "Value proposition"), out.ValueProposition)
		if len(out.BrandPillars) > 0 {
			fmt.Println(colorize(colorBold, "Pillars"))
			for _, p := range out.BrandPillars {
				fmt.Printf("  - %s: %s\n", colorize(colorCyan, p.Pillar), p.Description)
			}
			fmt.Println()
		}
		if len(out.TargetPersonas) > 0 {
			fmt.Println(colorize(colorBold, "Personas"))
			for _, p := range out.TargetPersonas {
				fmt.Printf("  - %s: %s\n", colorize(colorCyan, p.Name), p.Description)
			}
			fmt.Println()
		}
		if h := out.MessagingFramework.Headline; h != "" {
			fmt.Printf("%s\n  %s\n\n", colorize(colorBold, "Headline"), h)
		}
		printMeta(out.Meta, hit)
		return nil
	},
}

func init() {
	brandCmd.Flags().String("company", "", "company name (cache key)")
	brandCmd.Flags().String("industry", "", "industry")
	brandCmd.Flags().String("audience", "", "target audience")
	brandCmd.Flags().String("positioning", "", "current positioning")
	brandCmd.Flags().String("competitors", "", "comma-separated competitor names")
	brandCmd.Flags().String("strengths", "", "comma-separated unique strengths")
	brandCmd.Flags().String("goals", "", "business goals")
	brandCmd.Flags().Bool("json", false, "print the raw JSON output")
}

// --- chat ---

var chatCmd = &cobra.Command{
	Use:   "chat <message>",
	Short: "Ask the assistant chatbot",
	Long: `Send a message to the assistant chatbot. Earlier turns can be supplied
as a JSON array of {"role","content"} objects with --history.

Examples:
  brandflow chat "How should we announce our new pricing?"
  brandflow chat --history convo.json --context "Acme sells to retailers" "What next?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		historyPath, _ := cmd.Flags().GetString("history")
		extra, _ := cmd.Flags().GetString("context")
		asJSON, _ := cmd.Flags().GetBool("json")

		var messages []chatbot.Message
		if historyPath != "" {
			data, err := os.ReadFile(historyPath)
			if err != nil {
				return fmt.Errorf("reading history: %w", err)
			}
			if err := json.Unmarshal(data, &messages); err != nil {
				return fmt.Errorf("parsing history: %w", err)
			}
		}
		messages = append(messages, chatbot.Message{Role: chatbot.RoleUser, Content: strings.Join(args, " ")})

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var out chatbot.Reply
		if _, err := runFlow(cmd.Context(), client, chatbot.Name, chatbot.Input{Messages: messages, Context: extra}, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, out)
		}
		fmt.Println(out.Reply)
		return nil
	},
}

func init() {
	chatCmd.Flags().String("history", "", "JSON file with earlier conversation turns")
	chatCmd.Flags().String("context", "", "extra system context for the assistant")
	chatCmd.Flags().Bool("json", false, "print the raw JSON output")
}

// --- draft ---

var draftCmd = &cobra.Command{
	Use:   "draft <topic>",
	Short: "Draft platform-specific content for a topic",
	Long: `Draft content for one or more platforms.

Examples:
  brandflow draft "Launching our spring collection"
  brandflow draft --platforms linkedin,email --tone playful "Customer appreciation week"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		platforms, _ := cmd.Flags().GetString("platforms")
		tone, _ := cmd.Flags().GetString("tone")
		asJSON, _ := cmd.Flags().GetBool("json")

		in := content.Input{
			Topic:     strings.Join(args, " "),
			Platforms: splitList(platforms),
			Tone:      tone,
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var out content.Drafts
		if _, err := runFlow(cmd.Context(), client, content.Name, in, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, out)
		}

		if out.Brief.Headline != "" {
			fmt.Printf("%s\n  %s\n\n", colorize(colorBold, "Brief"), out.Brief.Headline)
		}
		for _, d := range out.Drafts {
			fmt.Printf("%s (%d chars)\n", colorize(colorCyan, d.Platform), d.CharacterCount)
			fmt.Printf("%s\n", d.Content)
			if len(d.Hashtags) > 0 {
				fmt.Printf("%s\n", strings.Join(d.Hashtags, " "))
			}
			fmt.Println()
		}
		printMeta(out.Meta, false)
		return nil
	},
}

func init() {
	draftCmd.Flags().String("platforms", "", "comma-separated platforms: linkedin, twitter, email, blog, instagram")
	draftCmd.Flags().String("tone", "", "tone of voice (default professional)")
	draftCmd.Flags().Bool("json", false, "print the raw JSON output")
}

// --- watch ---

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check tracked competitors for changes",
	Long: `Check tracked competitors for changes. A full check fetches the
competitors' pages; a quick check relies on the model alone. Results are
cached per check type.

Examples:
  brandflow watch
  brandflow watch --type full --competitors "Globex,Initech"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		checkType, _ := cmd.Flags().GetString("type")
		competitors, _ := cmd.Flags().GetString("competitors")
		asJSON, _ := cmd.Flags().GetBool("json")

		in := competitor.Input{CheckType: checkType, Competitors: splitList(competitors)}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var out competitor.Report
		hit, err := runFlow(cmd.Context(), client, competitor.Name, in, &out)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, out)
		}

		fmt.Printf("%s\n  %s\n\n", colorize(colorBold, "Summary"), out.Summary)
		if len(out.Changes) == 0 {
			fmt.Println("No changes detected.")
		}
		for _, c := range out.Changes {
			sev := c.Severity
			if sev == competitor.SeverityHigh {
				sev = colorize(colorRed, sev)
			}
			fmt.Printf("  [%s] %s %s: %s\n", sev, colorize(colorCyan, c.Competitor), c.ChangeType, c.Description)
		}
		if out.ActionRequired {
			fmt.Println()
			printWarning("Action required")
		}
		printMeta(out.Meta, hit)
		return nil
	},
}

func init() {
	watchCmd.Flags().String("type", competitor.CheckQuick, "check type: quick or full")
	watchCmd.Flags().String("competitors", "", "comma-separated competitor names (default: all tracked)")
	watchCmd.Flags().Bool("json", false, "print the raw JSON output")
}

// --- lead ---

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Submit a lead to the lead-processing function",
	Long: `Submit a lead. Fields are forwarded verbatim.

Examples:
  brandflow lead --field name="Jane Doe" --field email=jane@example.com
  brandflow lead --file lead.json
  cat lead.json | brandflow lead --file -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, _ := cmd.Flags().GetStringArray("field")
		file, _ := cmd.Flags().GetString("file")

		body, err := leadBody(fields, file, cmd.InOrStdin())
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/leads", body)
		if err != nil {
			return err
		}

		var result json.RawMessage
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Lead submitted")
		return printJSON(os.Stdout, result)
	},
}

// leadBody builds the lead JSON from --field pairs or a file ("-" is stdin).
func leadBody(fields []string, file string, stdin io.Reader) (json.RawMessage, error) {
	if file != "" && len(fields) > 0 {
		return nil, fmt.Errorf("use either --field or --file, not both")
	}
	if file != "" {
		var (
			data []byte
			err  error
		)
		if file == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("reading lead: %w", err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("lead file is not valid JSON")
		}
		return json.RawMessage(data), nil
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("one of --field or --file is required")
	}
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --field %q, want key=value", f)
		}
		m[strings.TrimSpace(k)] = v
	}
	return json.Marshal(m)
}

func init() {
	leadCmd.Flags().StringArray("field", nil, "lead field as key=value (repeatable)")
	leadCmd.Flags().String("file", "", "JSON file with the lead (- for stdin)")
}

// --- runs ---

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent flow executions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/flow-runs?limit=%d", limit))
		if err != nil {
			return err
		}

		var records []flow.Record
		if err := decodeJSON(resp, &records); err != nil {
			return err
		}
		if asJSON {
			return printJSON(os.Stdout, records)
		}
		if len(records) == 0 {
			fmt.Println("No flow runs found.")
			return nil
		}
		for _, r := range records {
			fmt.Println(formatRun(r))
		}
		return nil
	},
}

func formatRun(r flow.Record) string {
	status := colorize(colorGreen, "ok")
	switch {
	case !r.Success:
		status = colorize(colorRed, "failed")
	case r.CacheHit:
		status = colorize(colorCyan, "cached")
	case r.Shared:
		status = colorize(colorCyan, "shared")
	case r.Fallback:
		status = colorize(colorYellow, "fallback")
	}
	line := fmt.Sprintf("%s  %-18s %-8s %6dms", r.Timestamp.Format("2006-01-02 15:04:05"), r.Name, status, r.DurationMs)
	if r.Error != "" {
		line += "  " + truncate(r.Error, 80)
	}
	return line
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	runsCmd.Flags().Bool("json", false, "print the raw JSON records")
}

// --- cache ---

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge cached flow results",
}

var cacheGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show a cache entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/cache/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var entry any
		if err := decodeJSON(resp, &entry); err != nil {
			return err
		}
		return printJSON(os.Stdout, entry)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Delete a cache entry so the next run regenerates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/v1/cache/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			printWarning("No cache entry %s", args[0])
			return nil
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Purged %s", args[0])
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheGetCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
}

// --- flows ---

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "List the flow catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/flows")
		if err != nil {
			return err
		}
		var entries []catalog.Entry
		if err := decodeJSON(resp, &entries); err != nil {
			return err
		}
		for _, e := range entries {
			state := colorize(colorGreen, "enabled")
			if !e.Enabled {
				state = colorize(colorYellow, "disabled")
			}
			fmt.Printf("%s  %s  model=%s", colorize(colorBold, e.Name), state, e.Model)
			if e.CacheTTL != "" {
				fmt.Printf("  ttl=%s", e.CacheTTL)
			}
			if e.Schedule != "" {
				fmt.Printf("  schedule=%q", e.Schedule)
			}
			fmt.Println()
			if e.Description != "" {
				fmt.Printf("    %s\n", e.Description)
			}
		}
		return nil
	},
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

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List configuration keys and their environment variables",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ShowAll(config.Config{}) {
			note := ""
			if k.Secret {
				note = colorize(colorYellow, " (secret, env only)")
			}
			fmt.Printf("  %-26s %-8s %s%s\n", k.Key, k.Type, k.EnvVar, note)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configKeysCmd)
}
