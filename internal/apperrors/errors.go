package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrConnection     = errors.New("connection error")
	ErrConfigLoad     = errors.New("config load error")
	ErrEmptyColumn    = errors.New("empty column")
	ErrUnknownDialect = errors.New("unknown dialect")
)

// DDLLevel tells whether a failed DDL statement targeted the table itself
// or one of its indexes.
type DDLLevel int

const (
	LevelTable DDLLevel = iota
	LevelIndex
)

func (l DDLLevel) String() string {
	if l == LevelIndex {
		return "index"
	}
	return "table"
}

// DDLExecutionError reports a statement the store rejected.
// Table-level errors are fatal; index-level errors are downgraded to warnings
// by the DDL executor and only surface through its report.
type DDLExecutionError struct {
	Level     DDLLevel
	Object    string // table or index name
	Statement string
	Err       error
}

func (e *DDLExecutionError) Error() string {
	return fmt.Sprintf("create %s %s: %v", e.Level, e.Object, e.Err)
}

func (e *DDLExecutionError) Unwrap() error { return e.Err }

// Fatal reports whether the failure must abort provisioning.
func (e *DDLExecutionError) Fatal() bool { return e.Level == LevelTable }

// BatchWriteError aborts a load call. Batch is 1-based.
type BatchWriteError struct {
	Batch   int
	Batches int
	Rows    int
	Err     error
}

func (e *BatchWriteError) Error() string {
	return fmt.Sprintf("write batch %d/%d (%d rows): %v", e.Batch, e.Batches, e.Rows, e.Err)
}

func (e *BatchWriteError) Unwrap() error { return e.Err }
