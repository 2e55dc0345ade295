package query

import (
	"context"

	"sheetsql/internal/dataset"
	"sheetsql/internal/db"
	"sheetsql/internal/logger"
)

// Runner executes requests on one connection.
type Runner struct {
	conn *db.Conn
	log  *logger.Logger
}

func NewRunner(conn *db.Conn, log *logger.Logger) *Runner {
	return &Runner{conn: conn, log: log}
}

// Query runs r and returns any execution error.
func (r *Runner) Query(ctx context.Context, req Request) (*dataset.Dataset, error) {
	q, args := Build(r.conn.Dialect(), req)
	r.log.Debug("query: %s %v", q, args)
	return r.conn.Query(ctx, q, args...)
}

// Run is Query that never fails: an execution error is logged and an empty
// result is returned, so callers cannot tell a failed read from no matches.
func (r *Runner) Run(ctx context.Context, req Request) *dataset.Dataset {
	ds, err := r.Query(ctx, req)
	if err != nil {
		r.log.Error("query %s: %v", req.Table, err)
		return &dataset.Dataset{Rows: []dataset.Row{}}
	}
	return ds
}
