package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"bindery/internal/config"
	"bindery/internal/errors"
	"bindery/internal/ops"
	"bindery/internal/page"
	"bindery/internal/web"
)

// maxTextBytes bounds stdin reads for extracted bundle text.
const maxTextBytes = 4 << 20

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "bindery",
		Usage:   "Study page versioning and annotation store",
		Version: Version,
		Commands: []*cli.Command{
			bindCmd(db, cfg),
			rebindCmd(db, cfg),
			fetchCmd(db),
			listCmd(db),
			versionsCmd(db),
			metaCmd(db),
			deleteCmd(db),
			bundleAddCmd(db),
			bundleVariantCmd(db),
			bundleTextCmd(db),
			bundleCmd(db),
			noteAddCmd(db, cfg),
			noteUpdateCmd(db, cfg),
			noteDeleteCmd(db),
			noteReparentCmd(db),
			noteReorderCmd(db),
			noteMoveCmd(db),
			noteTreeCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// bindCmd creates the bind command.
func bindCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "bind",
		Usage: "Create a page bound to one offset of a source bundle",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name (optional)"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Page title (defaults to name)"},
			&cli.StringFlag{Name: "bundle", Usage: "Bundle ID"},
			&cli.StringFlag{Name: "label", Usage: "Bundle label (alternative to --bundle)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Required: true, Usage: "1-based offset within the bundle"},
			&cli.IntFlag{Name: "ordinal", Usage: "Position within the binder (0 appends)"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			input := ops.BindInput{
				Binder:      c.String("binder"),
				BundleID:    c.String("bundle"),
				BundleLabel: c.String("label"),
				Offset:      c.Int("offset"),
				Ordinal:     c.Int("ordinal"),
			}

			if name := c.String("name"); name != "" {
				input.Name = &name
			}
			if title := c.String("title"); title != "" {
				input.Title = &title
			}
			if tags := c.String("tags"); tags != "" {
				input.Tags = parseTags(tags)
			}

			output, err := ops.Bind(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// rebindCmd creates the rebind command.
func rebindCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "rebind",
		Usage:     "Repoint a page at a new (bundle, offset) binding",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
			&cli.StringFlag{Name: "bundle", Usage: "Target bundle ID (omit to keep the current bundle)"},
			&cli.StringFlag{Name: "label", Usage: "Target bundle label"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Required: true, Usage: "1-based target offset"},
			&cli.StringFlag{Name: "inherit", Value: "metadata", Usage: "Inheritance preset: none|metadata|all"},
			&cli.StringFlag{Name: "base-version", Usage: "Version ID whose snapshot seeds the new version"},
		},
		Action: func(c *cli.Context) error {
			input := ops.RebindInput{
				BundleID:      c.String("bundle"),
				BundleLabel:   c.String("label"),
				Offset:        c.Int("offset"),
				Inherit:       c.String("inherit"),
				BaseVersionID: c.String("base-version"),
			}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Binder = c.String("binder")
				input.Name = c.String("name")
			}

			output, err := ops.Rebind(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// fetchCmd creates the fetch command.
func fetchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "fetch",
		Usage:     "Fetch a page by ID or name",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted pages"},
		},
		Action: func(c *cli.Context) error {
			input := ops.FetchInput{
				IncludeDeleted: c.Bool("include-deleted"),
			}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Binder = c.String("binder")
				input.Name = c.String("name")
			}

			output, err := ops.Fetch(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List pages, optionally within one binder",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Usage: "Filter by binder"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
			&cli.BoolFlag{Name: "include-deleted", Usage: "Include soft-deleted pages"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ListInput{
				Binder:         c.String("binder"),
				Limit:          c.Int("limit"),
				Offset:         c.Int("offset"),
				IncludeDeleted: c.Bool("include-deleted"),
			}

			output, err := ops.List(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// versionsCmd creates the versions command.
func versionsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "versions",
		Usage:     "List a page's version history, oldest first",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.VersionsInput{}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Binder = c.String("binder")
				input.Name = c.String("name")
			}

			output, err := ops.Versions(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// metaCmd creates the meta command.
func metaCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "meta",
		Usage:     "Update a page's live tags or title (snapshots are untouched)",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
			&cli.StringFlag{Name: "tags", Usage: "New comma-separated tags"},
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "New title"},
		},
		Action: func(c *cli.Context) error {
			input := ops.UpdateMetaInput{}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Binder = c.String("binder")
				input.Name = c.String("name")
			}

			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				input.Tags = &tags
			}
			if title := c.String("title"); title != "" {
				input.Title = &title
			}

			output, err := ops.UpdateMeta(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Soft-delete a page",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Value: "default", Usage: "Binder name"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.DeleteInput{}

			if c.NArg() > 0 {
				input.ID = c.Args().First()
			} else {
				input.Binder = c.String("binder")
				input.Name = c.String("name")
			}

			output, err := ops.Delete(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// bundleAddCmd creates the bundle-add command.
func bundleAddCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "bundle-add",
		Usage: "Register a source bundle with its known content variants",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Required: true, Usage: "Unique bundle label"},
			&cli.StringFlag{Name: "primary", Usage: "Path of the primary variant"},
			&cli.StringFlag{Name: "original", Usage: "Path of the original variant"},
			&cli.StringFlag{Name: "textsource", Usage: "Path of the text-source variant"},
		},
		Action: func(c *cli.Context) error {
			input := ops.AddBundleInput{
				Label: c.String("label"),
			}

			if p := c.String("primary"); p != "" {
				input.PrimaryPath = &p
			}
			if p := c.String("original"); p != "" {
				input.OriginalPath = &p
			}
			if p := c.String("textsource"); p != "" {
				input.TextSourcePath = &p
			}

			output, err := ops.AddBundle(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// bundleVariantCmd creates the bundle-variant command.
func bundleVariantCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "bundle-variant",
		Usage:     "Fill in a bundle's content variant",
		ArgsUsage: "[bundle-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Usage: "Bundle label (alternative to positional ID)"},
			&cli.StringFlag{Name: "kind", Required: true, Usage: "Variant kind: primary|original|textsource"},
			&cli.StringFlag{Name: "path", Required: true, Usage: "Variant file path"},
		},
		Action: func(c *cli.Context) error {
			input := ops.SetVariantInput{
				Label: c.String("label"),
				Kind:  c.String("kind"),
				Path:  c.String("path"),
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}

			output, err := ops.SetVariant(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// bundleTextCmd creates the bundle-text command.
func bundleTextCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "bundle-text",
		Usage:     "Store extracted text for one offset of a bundle (reads text from stdin)",
		ArgsUsage: "[bundle-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Usage: "Bundle label (alternative to positional ID)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Required: true, Usage: "1-based offset"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("text must be piped via stdin"))
			}

			text, err := readStdin(maxTextBytes)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}

			input := ops.SetTextInput{
				Label:  c.String("label"),
				Offset: c.Int("offset"),
				Text:   text,
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}

			output, err := ops.SetText(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// bundleCmd creates the bundle command.
func bundleCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "bundle",
		Usage:     "Fetch a bundle and, optionally, one offset's extracted text",
		ArgsUsage: "[bundle-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "label", Usage: "Bundle label (alternative to positional ID)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Include extracted text for this offset"},
		},
		Action: func(c *cli.Context) error {
			input := ops.GetBundleInput{
				Label:  c.String("label"),
				Offset: c.Int("offset"),
			}
			if c.NArg() > 0 {
				input.BundleID = c.Args().First()
			}

			output, err := ops.GetBundle(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteAddCmd creates the note-add command.
func noteAddCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "note-add",
		Usage: "Create a note on a version (reads the note body from stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "version", Usage: "Anchor version ID"},
			&cli.StringFlag{Name: "page", Usage: "Page ID whose current version anchors the note"},
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Usage: "Binder for name addressing"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
			&cli.StringFlag{Name: "parent", Usage: "Parent note ID (omit for a root note)"},
			&cli.StringFlag{Name: "rect", Usage: "Anchor rectangle as x,y,w,h in normalized coordinates"},
			&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("note body must be piped via stdin"))
			}

			body, err := readStdin(int64(cfg.NoteMaxChars) * 4)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			if body == "" {
				return outputError(errors.NewInvalidRequest("note body is required"))
			}

			input := ops.NoteAddInput{
				VersionID: c.String("version"),
				PageID:    c.String("page"),
				Binder:    c.String("binder"),
				Name:      c.String("name"),
				ParentID:  c.String("parent"),
				Body:      body,
			}

			if r := c.String("rect"); r != "" {
				rect, err := parseRect(r)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Rect = rect
			}
			if tags := c.String("tags"); tags != "" {
				input.Tags = parseTags(tags)
			}

			output, err := ops.NoteAdd(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteUpdateCmd creates the note-update command.
func noteUpdateCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "note-update",
		Usage:     "Edit a note's body, rectangle or tags (optionally reads the body from stdin)",
		ArgsUsage: "[note-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "rect", Usage: "New anchor rectangle as x,y,w,h"},
			&cli.StringFlag{Name: "tags", Usage: "New comma-separated tags"},
		},
		Action: func(c *cli.Context) error {
			input := ops.NoteUpdateInput{
				NoteID: c.Args().First(),
			}

			if stdinHasData() {
				body, err := readStdin(int64(cfg.NoteMaxChars) * 4)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				if body != "" {
					input.Body = &body
				}
			}

			if r := c.String("rect"); r != "" {
				rect, err := parseRect(r)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.Rect = &rect
			}
			if c.IsSet("tags") {
				tags := parseTags(c.String("tags"))
				input.Tags = &tags
			}

			output, err := ops.NoteUpdate(c.Context, db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteDeleteCmd creates the note-delete command.
func noteDeleteCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "note-delete",
		Usage:     "Delete a note and its entire subtree",
		ArgsUsage: "[note-id]",
		Action: func(c *cli.Context) error {
			output, err := ops.NoteDelete(c.Context, db, ops.NoteDeleteInput{
				NoteID: c.Args().First(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteReparentCmd creates the note-reparent command.
func noteReparentCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "note-reparent",
		Usage:     "Move a note under a new parent on the same anchor, or to the root",
		ArgsUsage: "[note-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "parent", Usage: "New parent note ID (omit to move to the root)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.NoteReparent(c.Context, db, ops.NoteReparentInput{
				NoteID:      c.Args().First(),
				NewParentID: c.String("parent"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteReorderCmd creates the note-reorder command.
func noteReorderCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "note-reorder",
		Usage:     "Replace a parent's child order (child IDs as arguments, in the new order)",
		ArgsUsage: "[parent-id] [child-id...]",
		Action: func(c *cli.Context) error {
			output, err := ops.NoteReorder(c.Context, db, ops.NoteReorderInput{
				ParentID: c.Args().First(),
				Order:    c.Args().Tail(),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteMoveCmd creates the note-move command.
func noteMoveCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "note-move",
		Usage:     "Move one child between positions in its parent's order",
		ArgsUsage: "[parent-id]",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "from", Required: true, Usage: "Current position (0-based)"},
			&cli.IntFlag{Name: "to", Required: true, Usage: "Target position (0-based)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.NoteMove(c.Context, db, ops.NoteMoveInput{
				ParentID: c.Args().First(),
				From:     c.Int("from"),
				To:       c.Int("to"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// noteTreeCmd creates the note-tree command.
func noteTreeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "note-tree",
		Usage:     "List a version's notes as a nested tree",
		ArgsUsage: "[page-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "version", Usage: "Anchor version ID (overrides the page address)"},
			&cli.StringFlag{Name: "binder", Aliases: []string{"b"}, Usage: "Binder for name addressing"},
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Page name"},
		},
		Action: func(c *cli.Context) error {
			input := ops.NoteTreeInput{
				VersionID: c.String("version"),
				Binder:    c.String("binder"),
				Name:      c.String("name"),
			}
			if c.NArg() > 0 {
				input.PageID = c.Args().First()
			}

			output, err := ops.NoteTree(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 7333, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if berr, ok := err.(*errors.BinderyError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", berr.Code, berr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, erroring past limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin input exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseRect parses "x,y,w,h" into a normalized rectangle.
func parseRect(s string) (page.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return page.Rect{}, fmt.Errorf("rect must be x,y,w,h")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return page.Rect{}, fmt.Errorf("invalid rect component %q", p)
		}
		vals[i] = v
	}
	return page.Rect{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}, nil
}
