package main

import (
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/unicorns/internal/backend"
	"github.com/hpungsan/unicorns/internal/config"
	"github.com/hpungsan/unicorns/internal/db"
	"github.com/hpungsan/unicorns/internal/errors"
	"github.com/hpungsan/unicorns/internal/logger"
	"github.com/hpungsan/unicorns/internal/remote"
	"github.com/hpungsan/unicorns/internal/store"
	"github.com/hpungsan/unicorns/internal/unicorn"
	"github.com/hpungsan/unicorns/internal/web"
)

// app holds what every command needs. The store is built on first use so
// that help and the backend command work without a configured collection.
type app struct {
	cfg     *config.Config
	baseDir string
	st      *store.Store
}

func (a *app) store(c *cli.Context) (*store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.FromContext(c.Context)
	client := remote.NewFromConfig(a.cfg, remote.WithLogger(log))
	a.st = store.New(client, store.WithLogger(log))
	return a.st, nil
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, baseDir string) *cli.App {
	a := &app{cfg: cfg, baseDir: baseDir}

	cliApp := &cli.App{
		Name:    "unicorns",
		Usage:   "Manage a remote unicorn collection",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug|info|warn|error|disabled"},
			&cli.BoolFlag{Name: "log-json", Usage: "Log as JSON"},
		},
		Before: func(c *cli.Context) error {
			if c.IsSet("log-level") {
				cfg.LogLevel = c.String("log-level")
			}
			if c.IsSet("log-json") {
				cfg.LogJSON = c.Bool("log-json")
			}
			log := logger.GetDefault()
			if c.IsSet("log-level") || c.IsSet("log-json") {
				log = logger.NewLogger(&logger.Config{
					Level:      logger.ParseLevel(cfg.LogLevel),
					Output:     os.Stderr,
					JSON:       cfg.LogJSON,
					TimeFormat: "15:04:05",
				})
			}
			c.Context = logger.ContextWithLogger(c.Context, log)
			return nil
		},
		Commands: []*cli.Command{
			listCmd(a),
			addCmd(a),
			updateCmd(a),
			deleteCmd(a),
			statusCmd(),
			serveCmd(a),
			mcpCmd(a),
			backendCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// item is one unicorn as printed by the CLI.
type item struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Age    *int   `json:"age"`
	Color  string `json:"color"`
	Status string `json:"status"`
}

func toItem(u unicorn.Unicorn) item {
	return item{
		ID:     u.ID,
		Name:   u.Name,
		Age:    u.AgeValue(),
		Color:  u.Color,
		Status: u.Label(),
	}
}

// listOutput is the list command result.
type listOutput struct {
	Unicorns    []item          `json:"unicorns"`
	CurrentPage int             `json:"current_page,omitempty"`
	TotalPages  int             `json:"total_pages"`
	Total       int             `json:"total"`
	SortField   store.SortField `json:"sort_field"`
	SortOrder   store.SortOrder `json:"sort_order"`
}

// listCmd creates the list command.
func listCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List unicorns, one page at a time",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sort", Aliases: []string{"s"}, Value: "name", Usage: "Sort field: name|age|color"},
			&cli.BoolFlag{Name: "desc", Usage: "Sort descending"},
			&cli.IntFlag{Name: "page", Aliases: []string{"p"}, Value: 1, Usage: "Page number (1-based)"},
			&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Print every record instead of one page"},
		},
		Action: func(c *cli.Context) error {
			field, ok := store.ParseSortField(c.String("sort"))
			if !ok {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("sort must be one of: name, age, color (got %q)", c.String("sort"))))
			}

			st, err := a.store(c)
			if err != nil {
				return outputError(err)
			}
			if err := st.Refresh(c.Context); err != nil {
				return outputError(errors.NewActionFailed(st.Err()))
			}

			order := store.Asc
			if c.Bool("desc") {
				order = store.Desc
			}
			st.SortBy(field, order)
			st.SetPage(c.Int("page"))

			state := st.Snapshot()
			records := state.Page
			out := listOutput{
				CurrentPage: state.CurrentPage,
				TotalPages:  state.TotalPages,
				Total:       len(state.Records),
				SortField:   state.SortField,
				SortOrder:   state.SortOrder,
			}
			if c.Bool("all") {
				records = st.Sorted()
				out.CurrentPage = 0
			}

			out.Unicorns = make([]item, len(records))
			for i, u := range records {
				out.Unicorns[i] = toItem(u)
			}
			return outputJSON(out)
		},
	}
}

// addCmd creates the add command.
func addCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Create a unicorn",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Name"},
			&cli.IntFlag{Name: "age", Required: true, Usage: "Age in years"},
			&cli.StringFlag{Name: "color", Aliases: []string{"c"}, Required: true, Usage: "Color"},
		},
		Action: func(c *cli.Context) error {
			u := unicorn.Unicorn{
				Name:  c.String("name"),
				Age:   unicorn.Age(c.Int("age")),
				Color: c.String("color"),
			}
			if err := validateUnicorn(u); err != nil {
				return outputError(err)
			}

			st, err := a.store(c)
			if err != nil {
				return outputError(err)
			}
			if !st.Save(c.Context, u) {
				return outputError(errors.NewActionFailed(st.Err()))
			}

			return outputJSON(map[string]any{
				"saved":  true,
				"status": u.Label(),
				"total":  len(st.Records()),
			})
		},
	}
}

// updateCmd creates the update command.
func updateCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "update",
		Usage:     "Replace fields of an existing unicorn",
		ArgsUsage: "<id> [--name N] [--age A] [--color C]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name"},
			&cli.IntFlag{Name: "age", Usage: "New age"},
			&cli.StringFlag{Name: "color", Aliases: []string{"c"}, Usage: "New color"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(errors.NewInvalidRequest("exactly one id is required"))
			}
			id := c.Args().First()

			changes := updateFlags(c)
			if err := changes.parseTrailing(c.Args().Tail()); err != nil {
				return outputError(err)
			}

			st, err := a.store(c)
			if err != nil {
				return outputError(err)
			}
			if err := st.Refresh(c.Context); err != nil {
				return outputError(errors.NewActionFailed(st.Err()))
			}

			u, ok := st.Find(id)
			if !ok {
				return outputError(errors.NewNotFound(id))
			}
			u = changes.apply(u)
			if err := validateUnicorn(u); err != nil {
				return outputError(err)
			}

			if !st.Save(c.Context, u) {
				return outputError(errors.NewActionFailed(st.Err()))
			}

			// The store re-reads the collection after a save; print the fresh copy.
			if fresh, ok := st.Find(id); ok {
				u = fresh
			}
			return outputJSON(toItem(u))
		},
	}
}

// fieldChanges holds the fields an update sets. Nil means keep the stored value.
type fieldChanges struct {
	name  *string
	age   *int
	color *string
}

// updateFlags collects the flags cli parsed, which are the ones before the id.
func updateFlags(c *cli.Context) fieldChanges {
	var ch fieldChanges
	if c.IsSet("name") {
		v := c.String("name")
		ch.name = &v
	}
	if c.IsSet("age") {
		v := c.Int("age")
		ch.age = &v
	}
	if c.IsSet("color") {
		v := c.String("color")
		ch.color = &v
	}
	return ch
}

// parseTrailing reads flags given after the id, e.g. "update <id> --age 40".
// cli stops parsing flags at the first positional argument.
func (ch *fieldChanges) parseTrailing(args []string) error {
	if len(args) == 0 {
		return nil
	}

	fs := flag.NewFlagSet("update", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "")
	fs.StringVar(name, "n", "", "")
	age := fs.Int("age", 0, "")
	color := fs.String("color", "", "")
	fs.StringVar(color, "c", "", "")

	if err := fs.Parse(args); err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("%v (usage: update <id> [--name N] [--age A] [--color C])", err))
	}
	if fs.NArg() > 0 {
		return errors.NewInvalidRequest(fmt.Sprintf("exactly one id is required, got extra %q", fs.Args()))
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name", "n":
			ch.name = name
		case "age":
			ch.age = age
		case "color", "c":
			ch.color = color
		}
	})
	return nil
}

func (ch fieldChanges) apply(u unicorn.Unicorn) unicorn.Unicorn {
	if ch.name != nil {
		u.Name = *ch.name
	}
	if ch.age != nil {
		u = u.WithAge(*ch.age)
	}
	if ch.color != nil {
		u.Color = *ch.color
	}
	return u
}

// deleteCmd creates the delete command.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete one or more unicorns by id",
		ArgsUsage: "<id> [id...]",
		Action: func(c *cli.Context) error {
			ids := c.Args().Slice()
			if len(ids) == 0 {
				return outputError(errors.NewInvalidRequest("at least one id is required"))
			}

			st, err := a.store(c)
			if err != nil {
				return outputError(err)
			}

			if len(ids) == 1 {
				if !st.Delete(c.Context, ids[0]) {
					return outputError(errors.NewActionFailed(st.Err()))
				}
				return outputJSON(map[string]any{"deleted": 1, "failed": 0})
			}

			requested := distinct(ids)
			n := st.DeleteMany(c.Context, ids)
			if n == 0 {
				return outputError(errors.NewActionFailed(errors.MsgDeleteFailed))
			}
			return outputJSON(map[string]any{"deleted": n, "failed": requested - n})
		},
	}
}

// statusCmd creates the status command.
func statusCmd() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Print the age class label for an age",
		ArgsUsage: "<age>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one age is required"))
			}
			arg := c.Args().First()
			return outputJSON(map[string]any{
				"age":    arg,
				"status": unicorn.Classify(arg),
			})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Listen address (overrides config)"},
			&cli.IntFlag{Name: "port", Usage: "Listen port (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if c.IsSet("bind") {
				a.cfg.Bind = c.String("bind")
			}
			if c.IsSet("port") {
				a.cfg.Port = c.Int("port")
			}

			st, err := a.store(c)
			if err != nil {
				return outputError(err)
			}

			log := logger.FromContext(c.Context)
			srv := web.NewServer(st, a.cfg, log, Version)
			if err := web.Run(c.Context, srv, log, "Unicorns UI"); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// mcpCmd creates the mcp command.
func mcpCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve MCP tools over stdio",
		Action: func(c *cli.Context) error {
			if err := runMCP(a.cfg, logger.FromContext(c.Context)); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// backendCmd creates the backend command.
func backendCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "backend",
		Usage: "Serve a local CRUD backend compatible with the hosted one",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Listen address"},
			&cli.IntFlag{Name: "port", Value: 3000, Usage: "Listen port"},
			&cli.StringFlag{Name: "dir", Usage: "Data directory (default: backend_path from config, or ~/.unicorns/backend)"},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("dir")
			if dir == "" {
				dir = a.cfg.BackendPath
			}
			if dir == "" {
				dir = filepath.Join(a.baseDir, "backend")
			}

			database, err := db.Init(dir)
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer database.Close()
			db.ConfigurePool(database, a.cfg)

			log := logger.FromContext(c.Context)
			addr := fmt.Sprintf("%s:%d", c.String("bind"), c.Int("port"))
			srv := backend.New(database, log).NewHTTPServer(addr)
			log.Info("point the client at this backend", "api_base_url", "http://"+addr)
			if err := web.Run(c.Context, srv, log, "Unicorns backend"); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// validateUnicorn applies the form rules to a record built from flags.
func validateUnicorn(u unicorn.Unicorn) error {
	fields := map[string]string{}
	if u.Name == "" {
		fields["name"] = "Name is required"
	}
	if u.Age < 0 {
		fields["age"] = "Age must be a whole number of 0 or more"
	}
	if u.Color == "" {
		fields["color"] = "Color is required"
	}
	if len(fields) > 0 {
		return errors.NewValidation(fields)
	}
	return nil
}

func distinct(ids []string) int {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			seen[id] = true
		}
	}
	return len(seen)
}

// outputJSON writes JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var uErr *errors.UnicornError
	if stderrors.As(err, &uErr) {
		if fields, ok := uErr.Details["fields"]; ok {
			return cli.Exit(fmt.Sprintf("[%s] %s: %s", uErr.Code, uErr.Message, formatFields(fields)), 1)
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", uErr.Code, uErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

func formatFields(fields any) string {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprint(fields)
	}
	return string(b)
}
