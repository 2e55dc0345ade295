package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sheetsql/internal/bitable"
	"sheetsql/internal/dataset"
	"sheetsql/internal/db"
	_ "sheetsql/internal/db/dialects"
	"sheetsql/internal/ddl"
	"sheetsql/internal/logger"
	"sheetsql/internal/pipeline"
	"sheetsql/internal/profile"
	"sheetsql/internal/query"
	"sheetsql/internal/schema"
	"sheetsql/internal/sheet"
	"sheetsql/internal/synth"
	"sheetsql/pkg/config"
)

const usage = `usage: sheetsql [global flags] <command> [flags]

commands:
  infer     profile a spreadsheet and write its table document
  import    create the table if needed and load a spreadsheet into it
  query     read rows from a table
  describe  show the live columns of a table
  drop      drop a table
  mirror    write rows to a bitable table

global flags:
`

// app carries what every command needs.
type app struct {
	cfg    config.AppConfig
	log    *logger.Logger
	out    io.Writer
	driver string
	dsn    string
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("sheetsql", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	cfgPath := global.String("config", filepath.Join(".", "sheetsql.yaml"), "path to config YAML")
	driverFlag := global.String("driver", "", "db driver override (mysql,postgres,sqlite,sqlserver)")
	dsnFlag := global.String("dsn", "", "dsn override")
	levelFlag := global.String("log-level", "", "log level override (debug,info,warn,error)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, fromFile, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *levelFlag != "" {
		cfg.Log.Level = *levelFlag
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer log.Sync()
	if !fromFile {
		log.Debug("config file %s not found, using environment", *cfgPath)
	}

	a := &app{cfg: cfg, log: log, out: stdout, driver: *driverFlag, dsn: *dsnFlag}
	cmd, rest := global.Arg(0), global.Args()[1:]

	commands := map[string]func(context.Context, []string) error{
		"infer":    a.infer,
		"import":   a.importFile,
		"query":    a.query,
		"describe": a.describe,
		"drop":     a.drop,
		"mirror":   a.mirror,
	}
	fn, ok := commands[cmd]
	if !ok {
		log.Error("unknown command %q", cmd)
		global.Usage()
		return 2
	}
	if err := fn(ctx, rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		log.Error("%s: %v", cmd, err)
		return 1
	}
	return 0
}

// loadConfig reads path, or the environment alone when path does not exist.
// A file that exists but does not parse is an error.
func loadConfig(path string) (cfg config.AppConfig, fromFile bool, err error) {
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		cfg, err = config.FromEnv()
		return cfg, false, err
	}
	cfg, err = config.LoadFile(path)
	return cfg, err == nil, err
}

// connect opens the configured database. The caller closes it.
func (a *app) connect(ctx context.Context) (*db.Conn, error) {
	driver, dsn := a.driver, a.dsn
	if driver == "" || dsn == "" {
		dbCfg := a.cfg.Database
		if driver != "" {
			dbCfg.Type = driver
		}
		if dsn != "" {
			dbCfg.DSN = dsn
		}
		var err error
		driver, dsn, err = config.BuildDriverAndDSN(dbCfg)
		if err != nil {
			return nil, err
		}
	}
	a.log.Info("connecting to %s %s", config.NormalizeDriver(driver), config.RedactDSN(dsn))
	return db.Open(ctx, driver, dsn, a.cfg.Database.Timeout(), a.log)
}

func (a *app) dialect(name string) (db.Dialect, error) {
	if name == "" {
		name = a.driver
	}
	if name == "" {
		name = a.cfg.Database.Type
	}
	d, ok := db.Lookup(config.NormalizeDriver(name))
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (available: %v)", name, db.RegisteredDialects())
	}
	return d, nil
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func defaultTable(table, path string) string {
	if table != "" {
		return table
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (a *app) infer(_ context.Context, args []string) error {
	fs := newFlags("infer")
	in := fs.String("in", "", "input .xlsx/.csv/.tsv file")
	sheetName := fs.String("sheet", "", "worksheet name (default: first)")
	table := fs.String("table", "", "table name (default: file name)")
	out := fs.String("out", "", "write the table document here (.json/.yaml); stdout when empty")
	report := fs.Bool("report", false, "print the column profile report")
	showDDL := fs.Bool("ddl", false, "print the DDL for -dialect")
	dialectName := fs.String("dialect", "", "dialect for -ddl (default: configured database type)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	ds, err := sheet.Open(*in, *sheetName)
	if err != nil {
		return err
	}
	spec, profiles, err := synth.New(a.log).FromDataset(defaultTable(*table, *in), ds)
	if err != nil {
		return err
	}
	if *report {
		fmt.Fprintln(a.out, profile.Report(profiles))
	}
	if *showDDL {
		d, err := a.dialect(*dialectName)
		if err != nil {
			return err
		}
		script, err := ddl.Generate(spec, d)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, script.String())
	}
	if *out != "" {
		if err := schema.SaveDocument(*out, spec); err != nil {
			return err
		}
		a.log.Info("wrote %s", *out)
		return nil
	}
	b, err := schema.Marshal(spec, schema.FormatJSON)
	if err != nil {
		return err
	}
	_, err = a.out.Write(b)
	return err
}

func (a *app) importFile(ctx context.Context, args []string) error {
	fs := newFlags("import")
	in := fs.String("in", "", "input .xlsx/.csv/.tsv file")
	sheetName := fs.String("sheet", "", "worksheet name (default: first)")
	table := fs.String("table", "", "table name (default: document or file name)")
	specPath := fs.String("spec", "", "table document to use instead of inferring one")
	saveSpec := fs.String("save-spec", "", "write the table document used here")
	replace := fs.Bool("replace", a.cfg.Load.Replace, "drop the table before loading")
	batch := fs.Int("batch", a.cfg.Load.BatchSize, "rows per batch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("-in is required")
	}

	ds, err := sheet.Open(*in, *sheetName)
	if err != nil {
		return err
	}
	opts := pipeline.ImportOptions{Table: *table, Replace: *replace, BatchSize: *batch}
	if *specPath != "" {
		if opts.Spec, err = schema.LoadDocument(*specPath); err != nil {
			return err
		}
	} else {
		opts.Table = defaultTable(*table, *in)
	}

	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.log.Warn("close connection: %v", err)
		}
	}()

	res, err := pipeline.New(conn, a.log).Import(ctx, ds, opts)
	if err != nil {
		return err
	}
	if *saveSpec != "" {
		if err := schema.SaveDocument(*saveSpec, res.Spec); err != nil {
			return err
		}
	}
	fmt.Fprintf(a.out, "%s: %s\n", res.Spec.Name(), res.Load.Summary())
	return nil
}

// whereFlag collects repeated col=value filters; a comma-separated value is
// a membership filter.
type whereFlag map[string]any

func (w whereFlag) String() string { return fmt.Sprint(map[string]any(w)) }

func (w whereFlag) Set(s string) error {
	col, val, ok := strings.Cut(s, "=")
	col = strings.TrimSpace(col)
	if !ok || col == "" {
		return fmt.Errorf("filter %q is not col=value", s)
	}
	if strings.Contains(val, ",") {
		w[col] = strings.Split(val, ",")
		return nil
	}
	w[col] = val
	return nil
}

func (a *app) query(ctx context.Context, args []string) error {
	fs := newFlags("query")
	table := fs.String("table", "", "table name")
	where := whereFlag{}
	fs.Var(where, "where", "filter col=value or col=v1,v2 (repeatable)")
	order := fs.String("order", "", "ORDER BY expression, used verbatim")
	limit := fs.Int("limit", 0, "row limit (0 for none)")
	out := fs.String("out", "", "write rows to a .csv/.xlsx file instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" {
		return fmt.Errorf("-table is required")
	}

	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.log.Warn("close connection: %v", err)
		}
	}()

	ds := query.NewRunner(conn, a.log).Run(ctx, query.Request{Table: *table, Where: where, OrderBy: *order, Limit: *limit})
	if *out != "" {
		return sheet.Save(*out, ds)
	}
	return sheet.WriteDelimited(a.out, ds, '\t')
}

func (a *app) describe(ctx context.Context, args []string) error {
	fs := newFlags("describe")
	table := fs.String("table", "", "table name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" {
		return fmt.Errorf("-table is required")
	}
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.log.Warn("close connection: %v", err)
		}
	}()

	live, err := conn.Describe(ctx, *table)
	if err != nil {
		return err
	}
	return live.Write(a.out)
}

func (a *app) drop(ctx context.Context, args []string) error {
	fs := newFlags("drop")
	table := fs.String("table", "", "table name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *table == "" {
		return fmt.Errorf("-table is required")
	}
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			a.log.Warn("close connection: %v", err)
		}
	}()
	return pipeline.New(conn, a.log).Drop(ctx, *table)
}

func (a *app) mirror(ctx context.Context, args []string) error {
	fs := newFlags("mirror")
	in := fs.String("in", "", "input .xlsx/.csv/.tsv file")
	sheetName := fs.String("sheet", "", "worksheet name (default: first)")
	table := fs.String("table", "", "read rows from this database table instead of -in")
	specPath := fs.String("spec", "", "derive field types from this table document")
	remote := fs.Bool("remote-types", false, "derive field types from the remote table")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var rows []dataset.Row
	switch {
	case *in != "":
		ds, err := sheet.Open(*in, *sheetName)
		if err != nil {
			return err
		}
		rows = ds.Rows
	case *table != "":
		conn, err := a.connect(ctx)
		if err != nil {
			return err
		}
		ds, err := query.NewRunner(conn, a.log).Query(ctx, query.Request{Table: *table})
		if cerr := conn.Close(); cerr != nil {
			a.log.Warn("close connection: %v", cerr)
		}
		if err != nil {
			return err
		}
		rows = ds.Rows
	default:
		return fmt.Errorf("one of -in or -table is required")
	}

	bc := a.cfg.Bitable
	client := bitable.NewClient(bitable.Config{
		BaseURL:   bc.BaseURL,
		AppID:     bc.AppID,
		AppSecret: bc.AppSecret,
		AppToken:  bc.AppToken,
		TableID:   bc.TableID,
	}, a.log, nil)

	types, err := a.fieldTypes(ctx, client, *specPath, *remote)
	if err != nil {
		return err
	}
	res, err := client.WriteRecords(ctx, rows, types)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "mirrored %d records, %d failed\n", res.Written, res.Failed)
	return nil
}

// fieldTypes merges declared types: remote or document first, then the
// configured field_types on top.
func (a *app) fieldTypes(ctx context.Context, client *bitable.Client, specPath string, remote bool) (map[string]bitable.FieldType, error) {
	types := make(map[string]bitable.FieldType)
	if remote {
		rt, err := client.FieldTypesFromRemote(ctx)
		if err != nil {
			return nil, err
		}
		types = rt
	} else if specPath != "" {
		spec, err := schema.LoadDocument(specPath)
		if err != nil {
			return nil, err
		}
		types = bitable.FieldTypesFromSpec(spec)
	}
	for name, raw := range a.cfg.Bitable.FieldTypes {
		t, err := bitable.ParseFieldType(raw)
		if err != nil {
			return nil, fmt.Errorf("field_types.%s: %w", name, err)
		}
		types[name] = t
	}
	return types, nil
}
