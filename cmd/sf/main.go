package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sowforge/internal/ai"
	"sowforge/internal/config"
	"sowforge/internal/db"
	"sowforge/internal/domain"
	"sowforge/internal/engine"
	"sowforge/internal/export"
	"sowforge/internal/migrate"
	"sowforge/internal/server"
	"sowforge/internal/transcript"
)

var rootCmd = &cobra.Command{
	Use:   "sf",
	Short: "Sowforge CLI",
	Long: `Sowforge turns a discovery record or call transcript into a matched
Statement of Work and Proposal, then tracks the review that follows.
- Workspace: your .sowforge directory holding the database; settings come from sowforge.yml.
- Generate: build both documents from a discovery file or a parsed transcript.
- Sections: every document is an outline of editable sections; edits flow back into the draft fields.
- Versions: snapshots of a draft you can return to.
- Comments and changes: reviewers annotate sections and propose edits to accept or reject.
- Status: documents move Draft -> InReview -> Approved, one step at a time.
- Event log: diary of everything that happened, view with 'sf log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("SOWFORGE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(transcriptCmd())
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(documentCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(commentCmd())
	rootCmd.AddCommand(changeCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
}

func generateCmd() *cobra.Command {
	var file, transcriptFile string
	var sample bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate SOW and Proposal drafts",
		Long:  "Reads a discovery file (YAML or JSON), or extracts one from a transcript, and generates both documents into the workspace.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var d domain.Discovery
			switch {
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &d); err != nil {
					return fmt.Errorf("parse %s: %w", file, err)
				}
			case transcriptFile != "":
				data, err := os.ReadFile(transcriptFile)
				if err != nil {
					return err
				}
				d = transcript.Extract(string(data))
			case sample:
				d = transcript.Extract(transcript.SampleTranscript)
			default:
				return fmt.Errorf("--file, --transcript or --sample required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Generate(ctx, d, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Generated %q and %q (%s)\n", res.SOW.Meta.Title, res.Proposal.Meta.Title, res.Origin)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "discovery file (YAML or JSON)")
	cmd.Flags().StringVar(&transcriptFile, "transcript", "", "transcript file to extract discovery from")
	cmd.Flags().BoolVar(&sample, "sample", false, "use the built-in sample transcript")
	return cmd
}

func transcriptCmd() *cobra.Command {
	tc := &cobra.Command{
		Use:   "transcript",
		Short: "Work with call transcripts",
	}
	tc.AddCommand(transcriptParseCmd())
	return tc
}

func transcriptParseCmd() *cobra.Command {
	var file string
	var sample bool
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Extract a discovery record from a transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			var text string
			switch {
			case sample:
				text = transcript.SampleTranscript
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(data)
			default:
				return fmt.Errorf("--file or --sample required")
			}
			return printJSON(transcript.Extract(text))
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "transcript file")
	cmd.Flags().BoolVar(&sample, "sample", false, "use the built-in sample transcript")
	return cmd
}

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect or clear the workspace",
	}
	ws.AddCommand(workspaceShowCmd())
	ws.AddCommand(workspaceClearCmd())
	return ws
}

func workspaceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show workspace state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ws, err := e.Workspace(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ws)
				}
				t := newTable("Slot", "Title", "Status", "Sections")
				for slot, doc := range map[string]*domain.DocumentDraft{
					domain.SlotSOW:      ws.SOW,
					domain.SlotProposal: ws.Proposal,
				} {
					if doc == nil {
						t.AppendRow(table.Row{slot, "-", "-", "-"})
						continue
					}
					t.AppendRow(table.Row{slot, doc.Meta.Title, doc.Status, len(doc.Sections)})
				}
				fmt.Println(t.Render())
				fmt.Printf("versions: %d, comments: %d, changes: %d\n", len(ws.Versions), len(ws.Comments), len(ws.Changes))
				return nil
			})
		},
	}
	return cmd
}

func workspaceClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all documents, versions, comments and changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Clear(ctx, viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("workspace cleared")
				return nil
			})
		},
	}
	return cmd
}

func documentCmd() *cobra.Command {
	doc := &cobra.Command{
		Use:   "document",
		Short: "Inspect and edit documents",
	}
	doc.AddCommand(documentShowCmd())
	doc.AddCommand(documentStatusCmd())
	doc.AddCommand(documentSectionCmd())
	doc.AddCommand(documentRenderCmd())
	doc.AddCommand(documentExportCmd())
	return doc
}

func documentShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <slot>",
		Short: "Show a document draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Println(doc.Markdown)
				return nil
			})
		},
	}
	return cmd
}

func documentStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <slot>",
		Short: "Advance a document's review status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if status == "" {
				return fmt.Errorf("--status required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.SetStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Printf("%s is now %s\n", args[0], doc.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status (InReview, Approved)")
	return cmd
}

func documentSectionCmd() *cobra.Command {
	var text string
	var bullets []string
	cmd := &cobra.Command{
		Use:   "section <slot> <section-id>",
		Short: "Replace a section's content",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd := engine.SectionUpdate{}
			if cmd.Flags().Changed("text") {
				upd.Text = &text
			}
			if cmd.Flags().Changed("bullet") {
				upd.Bullets = bullets
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.UpdateSection(ctx, args[0], args[1], upd, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc.Section(args[1]))
				}
				fmt.Printf("updated %s/%s\n", args[0], args[1])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "replacement text for a text section")
	cmd.Flags().StringArrayVar(&bullets, "bullet", []string{}, "replacement bullets for a bullets section")
	return cmd
}

func documentRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <slot>",
		Short: "Re-render a document's markdown from its draft fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.Render(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				fmt.Println(doc.Markdown)
				return nil
			})
		},
	}
	return cmd
}

func documentExportCmd() *cobra.Command {
	var format, out string
	cmd := &cobra.Command{
		Use:   "export <slot>",
		Short: "Export a document as markdown, html or text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.GetDocument(ctx, args[0])
				if err != nil {
					return err
				}
				var content, filename string
				switch format {
				case "", "markdown":
					content = doc.Markdown
					filename = export.Filename(doc.Meta.Title, "md")
				case "html":
					content = export.Document(doc)
					filename = export.Filename(doc.Meta.Title, "html")
				case "text":
					content = export.Text(doc)
					filename = export.Filename(doc.Meta.Title, "txt")
				default:
					return fmt.Errorf("unknown format %q", format)
				}
				if out == "" {
					out = filename
				}
				if out == "-" {
					fmt.Println(content)
					return nil
				}
				if err := os.WriteFile(out, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "markdown", "export format (markdown, html, text)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, or - for stdout")
	return cmd
}

func versionCmd() *cobra.Command {
	v := &cobra.Command{
		Use:   "version",
		Short: "Snapshot and list draft versions",
	}
	v.AddCommand(versionSaveCmd())
	v.AddCommand(versionListCmd())
	return v
}

func versionSaveCmd() *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "save <slot>",
		Short: "Snapshot the current draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.SaveVersion(ctx, args[0], description, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(v)
				}
				fmt.Printf("saved %s (%s)\n", v.ID, v.Description)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "what this snapshot captures")
	return cmd
}

func versionListCmd() *cobra.Command {
	var slot string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListVersions(ctx, slot)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "Timestamp", "Description", "Document")
				for _, v := range items {
					t.AppendRow(table.Row{v.ID, v.Timestamp, v.Description, v.Draft.Meta.Title})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "", "filter by slot (sow, proposal)")
	return cmd
}

func commentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "comment",
		Short: "Comment on document sections",
	}
	c.AddCommand(commentAddCmd())
	c.AddCommand(commentListCmd())
	c.AddCommand(commentResolveCmd())
	return c
}

func commentAddCmd() *cobra.Command {
	var section, content string
	cmd := &cobra.Command{
		Use:   "add <slot>",
		Short: "Add a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if section == "" || content == "" {
				return fmt.Errorf("--section and --content required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddComment(ctx, args[0], section, content, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "section id")
	cmd.Flags().StringVar(&content, "content", "", "comment text")
	return cmd
}

func commentListCmd() *cobra.Command {
	var slot string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListComments(ctx, slot)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "Section", "Author", "Resolved", "Content")
				for _, c := range items {
					t.AppendRow(table.Row{c.ID, c.SectionID, c.Author, c.Resolved, c.Content})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "", "filter by slot (sow, proposal)")
	return cmd
}

func commentResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ResolveComment(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("resolved")
				return nil
			})
		},
	}
	return cmd
}

func changeCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "change",
		Short: "Propose, review and decide section edits",
	}
	c.AddCommand(changeProposeCmd())
	c.AddCommand(changeListCmd())
	c.AddCommand(changeDiffCmd())
	c.AddCommand(changeAcceptCmd())
	c.AddCommand(changeRejectCmd())
	return c
}

func changeProposeCmd() *cobra.Command {
	var section, after string
	cmd := &cobra.Command{
		Use:   "propose <slot>",
		Short: "Propose an edit to a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if section == "" {
				return fmt.Errorf("--section required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ProposeChange(ctx, args[0], section, after, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&section, "section", "", "section id")
	cmd.Flags().StringVar(&after, "after", "", "proposed content")
	return cmd
}

func changeListCmd() *cobra.Command {
	var slot, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposed changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListChanges(ctx, slot, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				t := newTable("ID", "Slot", "Section", "Author", "Status")
				for _, c := range items {
					t.AppendRow(table.Row{c.ID, c.Slot, c.SectionID, c.Author, c.Status})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&slot, "slot", "", "filter by slot (sow, proposal)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, accepted, rejected)")
	return cmd
}

func changeDiffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <id>",
		Short: "Show a change as a line diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetChange(ctx, args[0])
				if err != nil {
					return err
				}
				d := export.Lines(c.Before, c.After)
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Println(d.Format())
				return nil
			})
		},
	}
	return cmd
}

func changeAcceptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accept <id>",
		Short: "Accept a pending change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				doc, err := e.AcceptChange(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(doc)
				}
				fmt.Println("accepted")
				return nil
			})
		},
	}
	return cmd
}

func changeRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RejectChange(ctx, args[0], viper.GetString("actor-id")); err != nil {
					return err
				}
				fmt.Println("rejected")
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: generations, edits, reviews and exports.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.LatestEvents(ctx, n, evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				t := newTable("TS", "Type", "Entity", "Actor")
				for _, ev := range events {
					entity := ev.EntityKind
					if ev.EntityID != "" {
						entity += "/" + ev.EntityID
					}
					t.AppendRow(table.Row{ev.TS, ev.Type, entity, ev.ActorID})
				}
				fmt.Println(t.Render())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-ctx.Done()
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(sctx)
				}()
				fmt.Printf("Serving Sowforge API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect workspace config",
		Long:  "Config is the rulebook loaded from sowforge.yml: brand identity, generation backend, and default timeline and pricing model.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	var asDefault bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asDefault {
				fmt.Print(config.GenerateDefault())
				return nil
			}
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			return printJSON(cfg)
		},
	}
	cmd.Flags().BoolVar(&asDefault, "default", false, "print the default config template")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate workspace config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	backend, err := backendFor(cfg)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, backend)
	return fn(ctx, e)
}

func backendFor(cfg *config.Config) (ai.Backend, error) {
	switch cfg.Generation.Backend {
	case "", "none":
		return nil, nil
	case "openai":
		key := cfg.APIKey()
		if key == "" {
			return nil, fmt.Errorf("openai backend requires SOWFORGE_OPENAI_API_KEY or generation.api_key")
		}
		return ai.NewOpenAI(key, cfg.Generation.Model, cfg.Generation.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.Generation.Backend)
	}
}

func newTable(headers ...any) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(headers))
	return t
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
