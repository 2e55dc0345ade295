// Package dataset holds the row container shared by the reader, the profiler,
// the load pipeline and the mirror.
package dataset

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Row maps a column name to its raw value.
type Row map[string]any

// Dataset is an ordered set of columns and the rows carrying them.
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New builds a dataset from rows, collecting column names in first-seen order.
// Keys of a single row are visited in sorted order, since map order is random.
func New(rows []Row) *Dataset {
	ds := &Dataset{Rows: rows}
	seen := make(map[string]struct{})
	for _, r := range rows {
		for _, k := range sortedKeys(r) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			ds.Columns = append(ds.Columns, k)
		}
	}
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Column returns the values of one column, one per row; absent keys are nil.
func (d *Dataset) Column(name string) []any {
	out := make([]any, len(d.Rows))
	for i, r := range d.Rows {
		out[i] = r[name]
	}
	return out
}

var missingMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// IsMissing reports whether v represents an absent value: nil, a nil pointer,
// a NaN float, or a blank / conventional NA string.
func IsMissing(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return true
		}
		_, ok := missingMarkers[s]
		return ok
	case []byte:
		return IsMissing(string(t))
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	case time.Time:
		return t.IsZero()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return true
		}
		return IsMissing(rv.Elem().Interface())
	case reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// Stringify renders a non-missing value the way it is measured and matched.
func Stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return t.String()
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return Stringify(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

func sortedKeys(r Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
