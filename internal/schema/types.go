package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// StorageType is a column type written in the canonical (MySQL) vocabulary,
// e.g. "BIGINT", "VARCHAR(60)", "DECIMAL(10,2)". Dialects translate it.
type StorageType string

const (
	TinyInt   StorageType = "TINYINT"
	SmallInt  StorageType = "SMALLINT"
	Int       StorageType = "INT"
	BigInt    StorageType = "BIGINT"
	Float     StorageType = "FLOAT"
	Double    StorageType = "DOUBLE"
	Boolean   StorageType = "BOOLEAN"
	DateTime  StorageType = "DATETIME"
	Timestamp StorageType = "TIMESTAMP"
	Text      StorageType = "TEXT"
	LongText  StorageType = "LONGTEXT"
)

// VarChar returns VARCHAR(n).
func VarChar(n int) StorageType {
	return StorageType(fmt.Sprintf("VARCHAR(%d)", n))
}

// Category groups storage types by the kind of literal they accept.
type Category int

const (
	CategoryText Category = iota
	CategoryInteger
	CategoryFloat
	CategoryBoolean
	CategoryTemporal
)

// Base returns the upper-cased type name without size arguments.
func (t StorageType) Base() string {
	s := strings.ToUpper(strings.TrimSpace(string(t)))
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// Args returns the size arguments, e.g. [10 2] for DECIMAL(10,2).
func (t StorageType) Args() []int {
	s := string(t)
	open := strings.IndexByte(s, '(')
	end := strings.LastIndexByte(s, ')')
	if open < 0 || end <= open {
		return nil
	}
	var out []int
	for _, part := range strings.Split(s[open+1:end], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		out = append(out, n)
	}
	return out
}

// Size returns the first size argument or 0.
func (t StorageType) Size() int {
	if a := t.Args(); len(a) > 0 {
		return a[0]
	}
	return 0
}

func (t StorageType) Category() Category {
	switch t.Base() {
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "BIGINT":
		return CategoryInteger
	case "FLOAT", "DOUBLE", "REAL", "DECIMAL", "NUMERIC":
		return CategoryFloat
	case "BOOLEAN", "BOOL":
		return CategoryBoolean
	case "DATE", "DATETIME", "TIMESTAMP", "TIME":
		return CategoryTemporal
	default:
		return CategoryText
	}
}

// IsLongText reports membership in the unbounded text family, which cannot be
// indexed without a prefix length.
func (t StorageType) IsLongText() bool {
	switch t.Base() {
	case "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return true
	}
	return false
}

// DefaultKind distinguishes literal defaults from the write-time sentinels.
type DefaultKind int

const (
	NoDefault DefaultKind = iota
	LiteralDefault
	CurrentTime
	CurrentTimeOnUpdate
)

const (
	currentTimeText         = "CURRENT_TIMESTAMP"
	currentTimeOnUpdateText = "CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP"
)

// Default is a column default. Literal values are int64, float64, bool or string.
type Default struct {
	Kind  DefaultKind
	Value any
}

// Literal builds a literal default, normalising integer and float widths.
func Literal(v any) Default {
	switch t := v.(type) {
	case int:
		v = int64(t)
	case int32:
		v = int64(t)
	case float32:
		v = float64(t)
	}
	return Default{Kind: LiteralDefault, Value: v}
}

// IsSet reports whether the field has any default.
func (d Default) IsSet() bool { return d.Kind != NoDefault }

// IsTime reports whether the default is a write-time sentinel.
func (d Default) IsTime() bool { return d.Kind == CurrentTime || d.Kind == CurrentTimeOnUpdate }

func (d Default) String() string {
	switch d.Kind {
	case CurrentTime:
		return currentTimeText
	case CurrentTimeOnUpdate:
		return currentTimeOnUpdateText
	case LiteralDefault:
		return fmt.Sprint(d.Value)
	default:
		return "<none>"
	}
}

// ZeroDefault returns the empty literal matched to the storage category.
func ZeroDefault(t StorageType) Default {
	switch t.Category() {
	case CategoryInteger:
		return Literal(int64(0))
	case CategoryFloat:
		return Literal(float64(0))
	case CategoryBoolean:
		return Literal(false)
	case CategoryTemporal:
		return Default{}
	default:
		return Literal("")
	}
}
