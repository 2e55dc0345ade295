package dialects

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sheetsql/internal/db"
	"sheetsql/internal/introspect"
	"sheetsql/internal/logger"
	"sheetsql/internal/schema"
)

// sqliteDialect targets SQLite. It has no column comments, no fulltext
// indexes and no on-update timestamps.
type sqliteDialect struct{}

func (sqliteDialect) Name() string       { return "sqlite" }
func (sqliteDialect) DriverName() string { return "sqlite" }

func (sqliteDialect) Quote(ident string) string { return db.QuoteWith(ident, `"`, `"`) }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) ColumnType(t schema.StorageType) string {
	switch t.Category() {
	case schema.CategoryInteger:
		return "INTEGER"
	case schema.CategoryFloat:
		return "REAL"
	case schema.CategoryBoolean:
		return "BOOLEAN"
	case schema.CategoryTemporal:
		return t.Base()
	default:
		return "TEXT"
	}
}

// AutoIncrement declares the rowid alias, which must carry the key inline.
func (sqliteDialect) AutoIncrement(schema.Field) (string, bool) {
	return "PRIMARY KEY AUTOINCREMENT", true
}

func (sqliteDialect) DefaultClause(f schema.Field) string {
	switch {
	case f.Default.IsTime():
		return "DEFAULT CURRENT_TIMESTAMP"
	case f.Default.Kind == schema.LiteralDefault:
		return "DEFAULT " + db.Literal(f.Default.Value, "1", "0")
	}
	return ""
}

func (sqliteDialect) ColumnComment(string) string { return "" }

func (d sqliteDialect) CreateTable(name string, defs []string, _ schema.TableMeta) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.Quote(name), strings.Join(defs, ",\n  "))
}

func (d sqliteDialect) CreateIndex(kind db.IndexKind, name, table string, cols []schema.Field) (string, bool) {
	quote := func(f schema.Field) string { return d.Quote(f.Name) }
	switch kind {
	case db.IndexUnique:
		return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	case db.IndexSecondary:
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	default:
		return "", false
	}
}

func (sqliteDialect) TableExists(table string) (string, []any) {
	return `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, []any{table}
}

func (sqliteDialect) Limit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

func (sqliteDialect) Describe(ctx context.Context, q db.Querier, table string, _ *logger.Logger) (introspect.Table, error) {
	t := introspect.Table{Name: table}
	pr, err := q.QueryContext(ctx, "PRAGMA table_info("+db.QuoteString(table)+")")
	if err != nil {
		return t, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer pr.Close()

	for pr.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := pr.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return t, fmt.Errorf("scan column for %s: %w", table, err)
		}
		col := introspect.Column{
			Name:     name,
			Type:     ctype,
			Nullable: notnull == 0,
			PK:       pk != 0,
		}
		if dflt.Valid {
			col.Default = &dflt.String
		}
		t.Columns = append(t.Columns, col)
	}
	if err := pr.Err(); err != nil {
		return t, err
	}
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table %s not found", table)
	}
	return t, nil
}

func init() {
	db.Register("sqlite3", sqliteDialect{})
	db.Register("sqlite", sqliteDialect{})
}
