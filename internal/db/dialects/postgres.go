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

type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgres" }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) Quote(ident string) string { return db.QuoteWith(ident, `"`, `"`) }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) ColumnType(t schema.StorageType) string {
	switch t.Base() {
	case "TINYINT", "SMALLINT":
		return "SMALLINT"
	case "MEDIUMINT", "INT", "INTEGER":
		return "INTEGER"
	case "BIGINT":
		return "BIGINT"
	case "FLOAT", "REAL":
		return "REAL"
	case "DOUBLE":
		return "DOUBLE PRECISION"
	case "BOOLEAN", "BOOL":
		return "BOOLEAN"
	case "DATETIME", "TIMESTAMP":
		return "TIMESTAMP"
	case "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return "TEXT"
	}
	return string(t)
}

func (postgresDialect) AutoIncrement(schema.Field) (string, bool) {
	return "GENERATED BY DEFAULT AS IDENTITY", false
}

func (postgresDialect) DefaultClause(f schema.Field) string {
	switch {
	case f.Default.IsTime():
		return "DEFAULT CURRENT_TIMESTAMP"
	case f.Default.Kind == schema.LiteralDefault:
		return "DEFAULT " + db.Literal(f.Default.Value, "TRUE", "FALSE")
	}
	return ""
}

func (postgresDialect) ColumnComment(string) string { return "" }

func (d postgresDialect) CreateTable(name string, defs []string, _ schema.TableMeta) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.Quote(name), strings.Join(defs, ",\n  "))
}

func (d postgresDialect) CreateIndex(kind db.IndexKind, name, table string, cols []schema.Field) (string, bool) {
	quote := func(f schema.Field) string { return d.Quote(f.Name) }
	switch kind {
	case db.IndexUnique:
		return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	case db.IndexFullText:
		vector := func(f schema.Field) string { return "to_tsvector('simple', " + d.Quote(f.Name) + ")" }
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, vector)), true
	default:
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	}
}

func (postgresDialect) TableExists(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables
        WHERE table_schema = current_schema() AND table_name = $1`, []any{table}
}

func (postgresDialect) Limit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

func (postgresDialect) Describe(ctx context.Context, q db.Querier, table string, log *logger.Logger) (introspect.Table, error) {
	t := introspect.Table{Name: table}
	cr, err := q.QueryContext(ctx, `
        SELECT column_name, data_type, is_nullable = 'YES', column_default
        FROM information_schema.columns
        WHERE table_schema = current_schema() AND table_name = $1
        ORDER BY ordinal_position`, table)
	if err != nil {
		return t, fmt.Errorf("query columns for %s: %w", table, err)
	}
	for cr.Next() {
		var col introspect.Column
		var def sql.NullString
		if err := cr.Scan(&col.Name, &col.Type, &col.Nullable, &def); err != nil {
			cr.Close()
			return t, fmt.Errorf("scan column for %s: %w", table, err)
		}
		if def.Valid {
			col.Default = &def.String
		}
		t.Columns = append(t.Columns, col)
	}
	cr.Close()
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table %s not found", table)
	}

	pkr, err := q.QueryContext(ctx, `
        SELECT a.attname
        FROM pg_index i
        JOIN pg_class c ON i.indrelid = c.oid
        JOIN pg_namespace ns ON c.relnamespace = ns.oid
        JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
        WHERE ns.nspname = current_schema() AND c.relname = $1 AND i.indisprimary`, table)
	if err != nil {
		log.Error("query primary key: %v", err)
		return t, nil
	}
	defer pkr.Close()
	for pkr.Next() {
		var pkcol string
		if err := pkr.Scan(&pkcol); err != nil {
			log.Error("scan primary key: %v", err)
			continue
		}
		markPK(&t, pkcol)
	}
	return t, nil
}

func markPK(t *introspect.Table, name string) {
	for j := range t.Columns {
		if t.Columns[j].Name == name {
			t.Columns[j].PK = true
		}
	}
}

func init() {
	db.Register("postgres", postgresDialect{})
	db.Register("postgresql", postgresDialect{})
	db.Register("pg", postgresDialect{})
}
