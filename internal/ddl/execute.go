package ddl

import (
	"context"
	"database/sql"
	"errors"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/logger"
)

// Execer runs a single statement.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Report is the outcome of executing a script.
type Report struct {
	Created []string
	// Failed holds the index statements the store rejected.
	Failed []*apperrors.DDLExecutionError
}

// Executor runs scripts, tolerating index failures.
type Executor struct {
	log *logger.Logger
}

func NewExecutor(log *logger.Logger) *Executor {
	return &Executor{log: log}
}

// Execute creates the table, then each index in order. A table failure is
// returned as a fatal *apperrors.DDLExecutionError; index failures are
// logged, collected in the report and skipped.
func (e *Executor) Execute(ctx context.Context, x Execer, s Script) (Report, error) {
	var r Report
	for _, name := range s.Skipped {
		e.log.Warn("index %s is not supported by this database and was skipped", name)
	}

	if _, err := x.ExecContext(ctx, s.Table.SQL); err != nil {
		return r, &apperrors.DDLExecutionError{
			Level:     apperrors.LevelTable,
			Object:    s.Table.Object,
			Statement: s.Table.SQL,
			Err:       err,
		}
	}
	e.log.Info("created table %s", s.Table.Object)
	r.Created = append(r.Created, s.Table.Object)

	for _, st := range s.Indexes {
		if _, err := x.ExecContext(ctx, st.SQL); err != nil {
			derr := &apperrors.DDLExecutionError{
				Level:     apperrors.LevelIndex,
				Object:    st.Object,
				Statement: st.SQL,
				Err:       err,
			}
			e.log.Warn("%v", derr)
			r.Failed = append(r.Failed, derr)
			continue
		}
		e.log.Debug("created %s index %s", st.Kind, st.Object)
		r.Created = append(r.Created, st.Object)
	}
	return r, nil
}

// IsFatal reports whether err is a table-level DDL failure.
func IsFatal(err error) bool {
	var derr *apperrors.DDLExecutionError
	return errors.As(err, &derr) && derr.Fatal()
}
