// Package pipeline provisions tables from table definitions and loads rows into
// them in batches inside a single transaction.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/dataset"
	"sheetsql/internal/db"
	"sheetsql/internal/ddl"
	"sheetsql/internal/introspect"
	"sheetsql/internal/logger"
	"sheetsql/internal/profile"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
	"sheetsql/internal/synth"
)

const (
	DefaultBatchSize = 1000
	// maxParams bounds the bind arguments of one INSERT statement; a batch
	// wider than this is written as several statements in the same transaction.
	maxParams = 2000
)

// Pipeline owns no connection; the caller opens and closes it.
type Pipeline struct {
	conn *db.Conn
	exec *ddl.Executor
	log  *logger.Logger
}

func New(conn *db.Conn, log *logger.Logger) *Pipeline {
	return &Pipeline{conn: conn, exec: ddl.NewExecutor(log), log: log}
}

// Provision creates the table described by spec unless it already exists.
// created is false when nothing was done. Table creation failures are
// returned; index failures are only logged.
func (p *Pipeline) Provision(ctx context.Context, spec *schema.Table) (created bool, err error) {
	exists, err := p.conn.TableExists(ctx, spec.Name())
	if err != nil {
		return false, err
	}
	if exists {
		p.log.Info("table %s already exists", spec.Name())
		return false, nil
	}

	script, err := ddl.Generate(spec, p.conn.Dialect())
	if err != nil {
		return false, fmt.Errorf("generate ddl for %s: %w", spec.Name(), err)
	}
	report, err := p.exec.Execute(ctx, p.conn, script)
	if err != nil {
		return false, err
	}
	if len(report.Failed) > 0 {
		p.log.Warn("table %s created with %d of %d indexes failing", spec.Name(), len(report.Failed), len(script.Indexes))
	}
	return true, nil
}

// LoadResult describes a committed load.
type LoadResult struct {
	RunID   string
	Rows    int
	Batches int
	// Nulled counts per field the values that failed semantic validation.
	Nulled map[string]int
}

// Load writes rows into spec's table. Each row is projected onto the spec
// fields present in any row, in spec order. All batches share one
// transaction; the first failing batch rolls everything back and is returned
// as an *apperrors.BatchWriteError.
func (p *Pipeline) Load(ctx context.Context, rows []dataset.Row, spec *schema.Table, batchSize int) (LoadResult, error) {
	res := LoadResult{RunID: uuid.NewString()}
	log := p.log.With("run", res.RunID, "table", spec.Name())
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	fields := project(rows, spec)
	if len(rows) == 0 || len(fields) == 0 {
		if len(rows) > 0 {
			log.Warn("no input column matches a field of %s", spec.Name())
		}
		return res, nil
	}

	c := newCoercer()
	values := make([][]any, len(rows))
	for i, r := range rows {
		vals := make([]any, len(fields))
		for j, f := range fields {
			vals[j] = c.value(f, r[f.Name])
		}
		values[i] = vals
	}
	for name, n := range c.invalid {
		log.Warn("%d values of %s failed validation and were stored as NULL", n, name)
	}
	res.Nulled = c.invalid

	batches := (len(values) + batchSize - 1) / batchSize
	tx, err := p.conn.BeginTxx(ctx)
	if err != nil {
		return res, fmt.Errorf("begin load: %w", err)
	}
	for b := 0; b < batches; b++ {
		lo, hi := b*batchSize, min((b+1)*batchSize, len(values))
		if err := p.writeBatch(ctx, tx, spec.Name(), fields, values[lo:hi]); err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				log.Error("rollback: %v", rerr)
			}
			return res, &apperrors.BatchWriteError{Batch: b + 1, Batches: batches, Rows: hi - lo, Err: err}
		}
		log.Debug("wrote batch %d/%d", b+1, batches)
	}
	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit load: %w", err)
	}

	res.Rows = len(values)
	res.Batches = batches
	log.Info("loaded %d rows in %d batches", res.Rows, res.Batches)
	return res, nil
}

func (p *Pipeline) writeBatch(ctx context.Context, tx *sqlx.Tx, table string, fields []schema.Field, rows [][]any) error {
	d := p.conn.Dialect()
	per := max(1, maxParams/len(fields))
	for lo := 0; lo < len(rows); lo += per {
		hi := min(lo+per, len(rows))
		query, args := insertStatement(d, table, fields, rows[lo:hi])
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

func insertStatement(d db.Dialect, table string, fields []schema.Field, rows [][]any) (string, []any) {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = d.Quote(f.Name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", d.Quote(table), strings.Join(cols, ", "))
	args := make([]any, 0, len(rows)*len(fields))
	n := 0
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range r {
			if j > 0 {
				b.WriteString(", ")
			}
			n++
			b.WriteString(d.Placeholder(n))
			args = append(args, v)
		}
		b.WriteByte(')')
	}
	return b.String(), args
}

// project returns the spec fields that appear as a key in at least one row.
// Fields the store fills itself are never written: auto-increment keys and
// the record timestamps.
func project(rows []dataset.Row, spec *schema.Table) []schema.Field {
	present := make(map[string]struct{})
	for _, r := range rows {
		for k := range r {
			present[k] = struct{}{}
		}
	}
	var out []schema.Field
	for _, f := range spec.Fields() {
		if f.AutoIncrement || f.Tag == semantic.Timestamp {
			continue
		}
		if _, ok := present[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// LoadInto loads rows into an existing table, using its live columns as the
// table definition.
func (p *Pipeline) LoadInto(ctx context.Context, table string, rows []dataset.Row, batchSize int) (LoadResult, error) {
	live, err := p.conn.Describe(ctx, table)
	if err != nil {
		return LoadResult{}, err
	}
	spec, err := SpecFromLive(live)
	if err != nil {
		return LoadResult{}, err
	}
	return p.Load(ctx, rows, spec, batchSize)
}

// SpecFromLive builds a table definition from a described table. Semantic tags
// and defaults are unknown and left unset.
func SpecFromLive(t introspect.Table) (*schema.Table, error) {
	spec := schema.NewTable(schema.TableMeta{Name: t.Name})
	for _, c := range t.Columns {
		if err := spec.AddField(schema.Field{
			Name:     c.Name,
			Type:     schema.StorageType(strings.ToUpper(c.Type)),
			Nullable: c.Nullable,
		}); err != nil {
			return nil, err
		}
		if c.PK {
			spec.Indexes.PrimaryKey = append(spec.Indexes.PrimaryKey, c.Name)
		}
	}
	return spec, nil
}

// ImportOptions controls Import. Spec is synthesized from the data when nil.
type ImportOptions struct {
	Table     string
	Spec      *schema.Table
	Replace   bool
	BatchSize int
}

// ImportResult is the outcome of Import.
type ImportResult struct {
	Spec     *schema.Table
	Profiles []profile.Profile
	Created  bool
	Load     LoadResult
}

// Import runs inference, provisioning and loading for one dataset.
func (p *Pipeline) Import(ctx context.Context, ds *dataset.Dataset, opts ImportOptions) (ImportResult, error) {
	var res ImportResult
	spec := opts.Spec
	if spec == nil {
		var err error
		spec, res.Profiles, err = synth.New(p.log).FromDataset(opts.Table, ds)
		if err != nil {
			return res, err
		}
	} else if opts.Table != "" && opts.Table != spec.Name() {
		spec.Meta.Name = opts.Table
	}
	res.Spec = spec

	if opts.Replace {
		if err := p.conn.DropTable(ctx, spec.Name()); err != nil {
			return res, err
		}
	}
	created, err := p.Provision(ctx, spec)
	if err != nil {
		return res, err
	}
	res.Created = created

	res.Load, err = p.Load(ctx, ds.Rows, spec, opts.BatchSize)
	return res, err
}

// Drop removes a table.
func (p *Pipeline) Drop(ctx context.Context, table string) error {
	return p.conn.DropTable(ctx, table)
}

// sortedNulled lists the fields with nulled values, for reporting.
func (r LoadResult) sortedNulled() []string {
	names := make([]string, 0, len(r.Nulled))
	for n := range r.Nulled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Summary renders a one-line description of the load.
func (r LoadResult) Summary() string {
	s := fmt.Sprintf("run %s: %d rows in %d batches", r.RunID, r.Rows, r.Batches)
	for _, n := range r.sortedNulled() {
		s += fmt.Sprintf(", %s: %d nulled", n, r.Nulled[n])
	}
	return s
}
