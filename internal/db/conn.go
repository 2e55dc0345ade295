package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/dataset"
	"sheetsql/internal/introspect"
	"sheetsql/internal/logger"
	"sheetsql/pkg/config"
)

// Conn is one database session bound to a dialect.
type Conn struct {
	db      *sqlx.DB
	dialect Dialect
	log     *logger.Logger
}

// Open connects and pings within timeout. The pool is capped at one
// connection so that a session behaves the same against file, memory and
// server databases.
func Open(ctx context.Context, driver, dsn string, timeout time.Duration, log *logger.Logger) (*Conn, error) {
	name := config.NormalizeDriver(driver)
	d, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", apperrors.ErrUnknownDialect, driver, listRegistered())
	}
	sdb, err := sqlx.Open(d.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", apperrors.ErrConnection, d.Name(), err)
	}
	sdb.SetMaxOpenConns(1)

	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sdb.PingContext(pctx); err != nil {
		if cerr := sdb.Close(); cerr != nil {
			log.Warn("close %s after failed ping: %v", d.Name(), cerr)
		}
		return nil, fmt.Errorf("%w: ping %s: %v", apperrors.ErrConnection, d.Name(), err)
	}
	log.Debug("connected to %s", d.Name())
	return &Conn{db: sdb, dialect: d, log: log}, nil
}

func (c *Conn) Dialect() Dialect { return c.dialect }

func (c *Conn) Logger() *logger.Logger { return c.log }

func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return c.db.BeginTxx(ctx, nil)
}

// TableExists reports whether table is present in the current schema.
func (c *Conn) TableExists(ctx context.Context, table string) (bool, error) {
	q, args := c.dialect.TableExists(table)
	var n int
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return n > 0, nil
}

// DropTable removes table if it exists.
func (c *Conn) DropTable(ctx context.Context, table string) error {
	if _, err := c.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+c.dialect.Quote(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	c.log.Info("dropped table %s", table)
	return nil
}

// Describe returns the live columns of table and its row count.
func (c *Conn) Describe(ctx context.Context, table string) (introspect.Table, error) {
	t, err := c.dialect.Describe(ctx, c.db, table, c.log)
	if err != nil {
		return t, err
	}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+c.dialect.Quote(table)).Scan(&t.Rows); err != nil {
		return t, fmt.Errorf("count rows of %s: %w", table, err)
	}
	return t, nil
}

// Query runs a SELECT and returns the result with its column order. Byte
// slices are returned as strings.
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*dataset.Dataset, error) {
	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &dataset.Dataset{Columns: cols, Rows: []dataset.Row{}}
	for rows.Next() {
		m := make(map[string]any, len(cols))
		if err := rows.MapScan(m); err != nil {
			return nil, err
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out.Rows = append(out.Rows, dataset.Row(m))
	}
	return out, rows.Err()
}

// QueryRows is Query without the column order.
func (c *Conn) QueryRows(ctx context.Context, query string, args ...any) ([]dataset.Row, error) {
	ds, err := c.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return ds.Rows, nil
}

// Close releases the session.
func (c *Conn) Close() error {
	return c.db.Close()
}
