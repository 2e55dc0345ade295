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

// longTextPrefix is the key prefix used when indexing unbounded text.
const longTextPrefix = 255

// mysqlDialect renders the canonical vocabulary as-is.
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) Quote(ident string) string { return db.QuoteWith(ident, "`", "`") }

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) ColumnType(t schema.StorageType) string { return string(t) }

func (mysqlDialect) AutoIncrement(schema.Field) (string, bool) { return "AUTO_INCREMENT", false }

func (mysqlDialect) DefaultClause(f schema.Field) string {
	switch f.Default.Kind {
	case schema.CurrentTime:
		return "DEFAULT CURRENT_TIMESTAMP"
	case schema.CurrentTimeOnUpdate:
		return "DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"
	case schema.LiteralDefault:
		lit := db.Literal(f.Default.Value, "TRUE", "FALSE")
		// TEXT and BLOB columns only take expression defaults.
		if f.Type.IsLongText() {
			return "DEFAULT (" + lit + ")"
		}
		return "DEFAULT " + lit
	}
	return ""
}

func (mysqlDialect) ColumnComment(comment string) string {
	if comment == "" {
		return ""
	}
	return "COMMENT " + db.QuoteString(comment)
}

func (d mysqlDialect) CreateTable(name string, defs []string, meta schema.TableMeta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", d.Quote(name), strings.Join(defs, ",\n  "))
	if meta.Engine != "" {
		fmt.Fprintf(&b, " ENGINE=%s", meta.Engine)
	}
	if meta.AutoIncrementStart > 0 {
		fmt.Fprintf(&b, " AUTO_INCREMENT=%d", meta.AutoIncrementStart)
	}
	if meta.Charset != "" {
		fmt.Fprintf(&b, " DEFAULT CHARSET=%s", meta.Charset)
	}
	if meta.Collate != "" {
		fmt.Fprintf(&b, " COLLATE=%s", meta.Collate)
	}
	if meta.Comment != "" {
		fmt.Fprintf(&b, " COMMENT=%s", db.QuoteString(meta.Comment))
	}
	return b.String()
}

// indexColumn adds a prefix length to unbounded text, which InnoDB cannot key in full.
func (d mysqlDialect) indexColumn(f schema.Field) string {
	if f.Type.IsLongText() {
		return fmt.Sprintf("%s(%d)", d.Quote(f.Name), longTextPrefix)
	}
	return d.Quote(f.Name)
}

func (d mysqlDialect) CreateIndex(kind db.IndexKind, name, table string, cols []schema.Field) (string, bool) {
	switch kind {
	case db.IndexUnique:
		return fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, d.indexColumn)), true
	case db.IndexFullText:
		quote := func(f schema.Field) string { return d.Quote(f.Name) }
		return fmt.Sprintf("CREATE FULLTEXT INDEX %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, quote)), true
	default:
		return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", d.Quote(name), d.Quote(table), db.JoinColumns(cols, d.indexColumn)), true
	}
}

func (mysqlDialect) TableExists(table string) (string, []any) {
	return `SELECT COUNT(*) FROM information_schema.tables
        WHERE table_schema = DATABASE() AND table_name = ?`, []any{table}
}

func (mysqlDialect) Limit(query string, n int) string {
	return fmt.Sprintf("%s LIMIT %d", query, n)
}

func (mysqlDialect) Describe(ctx context.Context, q db.Querier, table string, _ *logger.Logger) (introspect.Table, error) {
	t := introspect.Table{Name: table}
	cr, err := q.QueryContext(ctx, `
        SELECT column_name, column_type, is_nullable = 'YES', column_key = 'PRI', column_default
        FROM information_schema.columns
        WHERE table_schema = DATABASE() AND table_name = ?
        ORDER BY ordinal_position`, table)
	if err != nil {
		return t, fmt.Errorf("query columns for %s: %w", table, err)
	}
	defer cr.Close()

	for cr.Next() {
		var col introspect.Column
		var def sql.NullString
		if err := cr.Scan(&col.Name, &col.Type, &col.Nullable, &col.PK, &def); err != nil {
			return t, fmt.Errorf("scan column for %s: %w", table, err)
		}
		if def.Valid {
			col.Default = &def.String
		}
		t.Columns = append(t.Columns, col)
	}
	if err := cr.Err(); err != nil {
		return t, err
	}
	if len(t.Columns) == 0 {
		return t, fmt.Errorf("table %s not found", table)
	}
	return t, nil
}

func init() {
	db.Register("mysql", mysqlDialect{})
	db.Register("mariadb", mysqlDialect{})
}
