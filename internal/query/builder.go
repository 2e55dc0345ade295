// Package query renders and runs single-table read queries.
package query

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"sheetsql/internal/db"
)

// Request describes a read. Where values that are slices or arrays become
// membership filters; anything else is compared for equality. OrderBy is
// passed through verbatim. A zero Limit means no limit.
type Request struct {
	Table   string
	Where   map[string]any
	OrderBy string
	Limit   int
}

// Build renders r for d. Filter columns are emitted in sorted order so the
// statement is stable.
func Build(d db.Dialect, r Request) (string, []any) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s", d.Quote(r.Table))

	keys := make([]string, 0, len(r.Where))
	for k := range r.Where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}
	for _, k := range keys {
		col := d.Quote(k)
		v := r.Where[k]
		if set, ok := valueSet(v); ok {
			if len(set) == 0 {
				conds = append(conds, "1 = 0")
				continue
			}
			ph := make([]string, len(set))
			for i, e := range set {
				ph[i] = next(e)
			}
			conds = append(conds, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")))
			continue
		}
		if v == nil {
			conds = append(conds, col+" IS NULL")
			continue
		}
		conds = append(conds, fmt.Sprintf("%s = %s", col, next(v)))
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if o := strings.TrimSpace(r.OrderBy); o != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(o)
	}

	q := b.String()
	if r.Limit > 0 {
		q = d.Limit(q, r.Limit)
	}
	return q, args
}

// valueSet unpacks slices and arrays other than []byte.
func valueSet(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
