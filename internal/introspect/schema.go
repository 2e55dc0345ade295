// Package introspect describes tables as they exist in a live database.
package introspect

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Column represents a table column.
type Column struct {
	Name     string  `json:"name"`
	Type     string  `json:"type"`
	Nullable bool    `json:"nullable"`
	PK       bool    `json:"pk"`
	Default  *string `json:"default,omitempty"`
}

// Table represents a database table and its columns.
type Table struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    int64    `json:"rows"`
}

// Column looks a column up by name.
func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the column names in ordinal order.
func (t Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Write prints the table as an aligned listing.
func (t Table) Write(w io.Writer) error {
	fmt.Fprintf(w, "%s (%d rows)\n", t.Name, t.Rows)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tTYPE\tNULL\tKEY\tDEFAULT")
	for _, c := range t.Columns {
		null, key, def := "NO", "", ""
		if c.Nullable {
			null = "YES"
		}
		if c.PK {
			key = "PRI"
		}
		if c.Default != nil {
			def = *c.Default
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", c.Name, c.Type, null, key, def)
	}
	return tw.Flush()
}
