package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeastham1993/zettel-system/internal/config"
)

// --- note ---

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a note",
	Long: `Create a note.

Examples:
  zettel note add "Pattern languages" --content "See [[Design Patterns]] and https://example.com/pl"
  zettel note add "Reading list" --tags books,todo`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, _ := cmd.Flags().GetString("content")
		tagsStr, _ := cmd.Flags().GetString("tags")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/notes", map[string]any{
			"title":   args[0],
			"content": content,
			"tags":    splitTags(tagsStr),
		})
		if err != nil {
			return err
		}

		var note struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &note); err != nil {
			return err
		}
		printSuccess("Created note %s", note.ID)
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, most recently updated first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/notes?limit=%d", limit))
		if err != nil {
			return err
		}

		var list []struct {
			ID          string   `json:"id"`
			Title       string   `json:"title"`
			Tags        []string `json:"tags"`
			UpdatedAt   string   `json:"updated_at"`
			EmbedStatus string   `json:"embed_status"`
		}
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No notes yet.")
			return nil
		}
		for _, n := range list {
			line := fmt.Sprintf("%s  %s  %s", paint(ansiCyan, n.ID[:8]), n.UpdatedAt, n.Title)
			if len(n.Tags) > 0 {
				line += "  " + paint(ansiYellow, "#"+strings.Join(n.Tags, " #"))
			}
			if n.EmbedStatus != "completed" {
				line += "  " + paint(ansiBold, "["+n.EmbedStatus+"]")
			}
			fmt.Println(line)
		}
		return nil
	},
}

var noteShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a note as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/notes/"+args[0])
		if err != nil {
			return err
		}

		var note any
		if err := decodeJSON(resp, &note); err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(note)
	},
}

var noteDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/notes/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted note %s", args[0])
		return nil
	},
}

var noteRelatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "Show notes similar to the given note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/notes/"+args[0]+"/related")
		if err != nil {
			return err
		}

		var hits []struct {
			ID    string  `json:"id"`
			Title string  `json:"title"`
			Score float32 `json:"score"`
		}
		if err := decodeJSON(resp, &hits); err != nil {
			return err
		}

		if len(hits) == 0 {
			fmt.Println("No related notes (is the note embedded yet?).")
			return nil
		}
		for _, h := range hits {
			fmt.Printf("%s  [%.3f]  %s\n", paint(ansiCyan, h.ID[:8]), h.Score, h.Title)
		}
		return nil
	},
}

func init() {
	noteAddCmd.Flags().String("content", "", "note content (markdown)")
	noteAddCmd.Flags().String("tags", "", "comma-separated tags")
	noteListCmd.Flags().Int("limit", 50, "maximum number of notes to list")
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteShowCmd, noteDeleteCmd, noteRelatedCmd)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search notes (semantic by default)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")
		text, _ := cmd.Flags().GetBool("text")

		mode := "semantic"
		if text {
			mode = "text"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := fmt.Sprintf("/search?q=%s&mode=%s&limit=%d", url.QueryEscape(query), mode, limit)
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var hits []struct {
			ID      string  `json:"id"`
			Title   string  `json:"title"`
			Content string  `json:"content"`
			Score   float32 `json:"score"`
		}
		if err := decodeJSON(resp, &hits); err != nil {
			return err
		}

		if len(hits) == 0 {
			fmt.Println("No results found.")
			return nil
		}
		for _, h := range hits {
			header := fmt.Sprintf("%s  %s", paint(ansiCyan, h.ID[:8]), paint(ansiBold, h.Title))
			if mode == "semantic" {
				header += fmt.Sprintf("  [%.3f]", h.Score)
			}
			fmt.Println(header)
			snippet := h.Content
			if len(snippet) > 200 {
				snippet = snippet[:200] + "..."
			}
			if snippet != "" {
				fmt.Printf("  %s\n", strings.ReplaceAll(snippet, "\n", " "))
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().Bool("text", false, "substring search instead of semantic")
}

// --- generate ---

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Draft content from the note graph",
}

var generateNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Queue a content-generation run",
	Long: `Queue a content-generation run.

Examples:
  zettel generate new --kind blog --topic "pattern languages" --voice <voice-id>
  zettel generate new --kind social --seed <note-id> --at 2026-09-01T09:00:00Z`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		topic, _ := cmd.Flags().GetString("topic")
		voiceID, _ := cmd.Flags().GetString("voice")
		seedID, _ := cmd.Flags().GetString("seed")
		at, _ := cmd.Flags().GetString("at")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/generations", map[string]any{
			"kind":         kind,
			"topic":        topic,
			"voice_id":     voiceID,
			"seed_note_id": seedID,
			"scheduled_at": at,
		})
		if err != nil {
			return err
		}

		var gen struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		}
		if err := decodeJSON(resp, &gen); err != nil {
			return err
		}
		printSuccess("Queued generation %s (%s)", gen.ID, gen.Status)
		return nil
	},
}

var generateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generation runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/generations")
		if err != nil {
			return err
		}

		var gens []struct {
			ID          string `json:"id"`
			Kind        string `json:"kind"`
			Topic       string `json:"topic"`
			Status      string `json:"status"`
			ScheduledAt string `json:"scheduled_at"`
		}
		if err := decodeJSON(resp, &gens); err != nil {
			return err
		}

		if len(gens) == 0 {
			fmt.Println("No generation runs yet.")
			return nil
		}
		for _, g := range gens {
			fmt.Printf("%s  %-6s  %-10s  %s  %s\n",
				paint(ansiCyan, g.ID[:8]), g.Kind, g.Status, g.ScheduledAt, g.Topic)
		}
		return nil
	},
}

var generateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a generation run, including its drafted result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/generations/"+args[0])
		if err != nil {
			return err
		}

		var gen struct {
			Status    string `json:"status"`
			Result    string `json:"result"`
			LastError string `json:"last_error"`
		}
		if err := decodeJSON(resp, &gen); err != nil {
			return err
		}

		switch gen.Status {
		case "completed":
			fmt.Println(gen.Result)
		case "failed":
			printError("Generation failed: %s", gen.LastError)
		default:
			fmt.Printf("Status: %s\n", gen.Status)
		}
		return nil
	},
}

func init() {
	generateNewCmd.Flags().String("kind", "blog", "blog or social")
	generateNewCmd.Flags().String("topic", "", "topic to write about")
	generateNewCmd.Flags().String("voice", "", "voice id for tone and style")
	generateNewCmd.Flags().String("seed", "", "seed note id to mine the graph from")
	generateNewCmd.Flags().String("at", "", "RFC3339 time to schedule the run for")
	generateCmd.AddCommand(generateNewCmd, generateListCmd, generateShowCmd)
}

// --- voice ---

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Manage writing voices",
}

var voiceAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a voice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, _ := cmd.Flags().GetString("description")
		style, _ := cmd.Flags().GetString("style")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/voices", map[string]any{
			"name":         args[0],
			"description":  desc,
			"style_prompt": style,
		})
		if err != nil {
			return err
		}

		var voice struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &voice); err != nil {
			return err
		}
		printSuccess("Created voice %s", voice.ID)
		return nil
	},
}

var voiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List voices",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/voices")
		if err != nil {
			return err
		}

		var voices []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if err := decodeJSON(resp, &voices); err != nil {
			return err
		}

		if len(voices) == 0 {
			fmt.Println("No voices yet.")
			return nil
		}
		for _, v := range voices {
			fmt.Printf("%s  %s  %s\n", paint(ansiCyan, v.ID[:8]), paint(ansiBold, v.Name), v.Description)
		}
		return nil
	},
}

var voiceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a voice",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), "/voices/"+args[0])
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted voice %s", args[0])
		return nil
	},
}

func init() {
	voiceAddCmd.Flags().String("description", "", "what this voice is for")
	voiceAddCmd.Flags().String("style", "", "style instructions passed to the model")
	voiceCmd.AddCommand(voiceAddCmd, voiceListCmd, voiceDeleteCmd)
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a markdown or PDF file as a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tagsStr, _ := cmd.Flags().GetString("tags")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		req := map[string]any{
			"filename": filepath.Base(args[0]),
			"tags":     splitTags(tagsStr),
		}
		if strings.EqualFold(filepath.Ext(args[0]), ".pdf") {
			req["type"] = "pdf"
			req["content"] = base64.StdEncoding.EncodeToString(data)
		} else {
			req["type"] = "markdown"
			req["content"] = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/import", req)
		if err != nil {
			return err
		}

		var note struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		}
		if err := decodeJSON(resp, &note); err != nil {
			return err
		}
		printSuccess("Imported %q as note %s", note.Title, note.ID)
		return nil
	},
}

func init() {
	importCmd.Flags().String("tags", "", "comma-separated tags")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := config.WriteSample(path); err != nil {
			return err
		}
		printSuccess("Wrote %s", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		printStatus("Server", "%s:%d", cfg.Server.Host, cfg.Server.Port)
		printStatus("Data dir", "%s", cfg.Database.DataDir)
		printStatus("Ollama", "%s", cfg.Ollama.BaseURL)
		printStatus("Embed model", "%s", cfg.Embedding.Model)
		printStatus("Generation", "%s via %s", cfg.Generation.Model, cfg.Generation.Provider)
		printStatus("Log", "%s (%s)", cfg.Log.Level, cfg.Log.Format)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	tags := strings.Split(s, ",")
	for i := range tags {
		tags[i] = strings.TrimSpace(tags[i])
	}
	return tags
}
