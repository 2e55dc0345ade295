// Package ddl renders a table definition into creation statements for a
// dialect and executes them.
package ddl

import (
	"fmt"
	"strings"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/db"
	"sheetsql/internal/schema"
)

// Statement is one rendered DDL statement.
type Statement struct {
	Level  apperrors.DDLLevel
	Kind   db.IndexKind
	Object string
	SQL    string
}

// Script is the output of Generate: one table statement, then its indexes.
type Script struct {
	Table   Statement
	Indexes []Statement
	// Skipped names indexes the dialect cannot express.
	Skipped []string
}

// Statements returns the table statement followed by the index statements.
func (s Script) Statements() []Statement {
	return append([]Statement{s.Table}, s.Indexes...)
}

// String renders the script as semicolon-terminated statements.
func (s Script) String() string {
	var b strings.Builder
	for i, st := range s.Statements() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(st.SQL)
		b.WriteString(";")
	}
	b.WriteString("\n")
	return b.String()
}

// UniqueName is the name of the n-th (1-based) unique key of table.
func UniqueName(table string, n int) string { return fmt.Sprintf("uk_%s_%d", table, n) }

// SecondaryName is the name of the secondary index on column.
func SecondaryName(table, column string) string { return fmt.Sprintf("idx_%s_%s", table, column) }

// FullTextName is the name of the fulltext index on column.
func FullTextName(table, column string) string { return fmt.Sprintf("ft_%s_%s", table, column) }

// Generate renders spec for d. Field order is kept.
func Generate(spec *schema.Table, d db.Dialect) (Script, error) {
	if err := spec.Validate(); err != nil {
		return Script{}, err
	}
	table := spec.Name()
	pk := spec.PrimaryKey()

	var defs []string
	inlined := false
	for _, f := range spec.Fields() {
		def, inline := columnDef(f, d, pk)
		inlined = inlined || inline
		defs = append(defs, def)
	}
	if len(pk) > 0 && !inlined {
		quoted := make([]string, len(pk))
		for i, c := range pk {
			quoted[i] = d.Quote(c)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	script := Script{Table: Statement{
		Level:  apperrors.LevelTable,
		Object: table,
		SQL:    d.CreateTable(table, defs, spec.Meta),
	}}

	fields := func(names []string) []schema.Field {
		out := make([]schema.Field, 0, len(names))
		for _, n := range names {
			f, _ := spec.Field(n)
			out = append(out, f)
		}
		return out
	}
	add := func(kind db.IndexKind, name string, cols []string) {
		sql, ok := d.CreateIndex(kind, name, table, fields(cols))
		if !ok {
			script.Skipped = append(script.Skipped, name)
			return
		}
		script.Indexes = append(script.Indexes, Statement{
			Level:  apperrors.LevelIndex,
			Kind:   kind,
			Object: name,
			SQL:    sql,
		})
	}

	for i, group := range spec.Indexes.UniqueKeys {
		add(db.IndexUnique, UniqueName(table, i+1), group)
	}
	for _, c := range spec.Indexes.Secondary {
		add(db.IndexSecondary, SecondaryName(table, c), []string{c})
	}
	for _, c := range spec.Indexes.FullText {
		add(db.IndexFullText, FullTextName(table, c), []string{c})
	}
	return script, nil
}

func columnDef(f schema.Field, d db.Dialect, pk []string) (string, bool) {
	parts := []string{d.Quote(f.Name), d.ColumnType(f.Type)}
	if !f.Nullable {
		parts = append(parts, "NOT NULL")
	}

	inline := false
	if f.AutoIncrement {
		clause, inlinePK := d.AutoIncrement(f)
		soleKey := len(pk) == 1 && pk[0] == f.Name
		if !inlinePK || soleKey {
			parts = append(parts, clause)
			inline = inlinePK
		}
	} else if def := d.DefaultClause(f); def != "" {
		parts = append(parts, def)
	}

	if c := d.ColumnComment(f.Comment); c != "" {
		parts = append(parts, c)
	}
	return strings.Join(parts, " "), inline
}
