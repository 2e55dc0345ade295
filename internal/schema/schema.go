// Package schema holds the table definition handed from inference to DDL
// generation and loading, and its interchange document.
package schema

import (
	"fmt"

	"sheetsql/internal/semantic"
)

// Field is the table definition of one column.
type Field struct {
	Name          string
	Type          StorageType
	Nullable      bool
	AutoIncrement bool
	Default       Default
	Tag           semantic.Tag
	Comment       string
}

// TableMeta is the table-level section of the document.
type TableMeta struct {
	Name               string `json:"name" yaml:"name"`
	Engine             string `json:"engine,omitempty" yaml:"engine,omitempty"`
	Charset            string `json:"charset,omitempty" yaml:"charset,omitempty"`
	Collate            string `json:"collate,omitempty" yaml:"collate,omitempty"`
	AutoIncrementStart int    `json:"auto_increment_start,omitempty" yaml:"auto_increment_start,omitempty"`
	Comment            string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

// IndexPlan lists the indexing decisions for a table.
type IndexPlan struct {
	PrimaryKey []string   `json:"primary_key" yaml:"primary_key"`
	UniqueKeys [][]string `json:"unique_keys" yaml:"unique_keys"`
	Secondary  []string   `json:"secondary" yaml:"secondary"`
	FullText   []string   `json:"fulltext" yaml:"fulltext"`
}

// Table is an ordered set of fields plus table metadata and an index plan.
// Field order is the column order of the generated table.
type Table struct {
	Meta    TableMeta
	Indexes IndexPlan

	fields []Field
	byName map[string]int
}

// NewTable returns an empty table definition.
func NewTable(meta TableMeta) *Table {
	return &Table{Meta: meta, byName: make(map[string]int)}
}

// Name is shorthand for Meta.Name.
func (t *Table) Name() string { return t.Meta.Name }

// AddField appends f. Field names are unique.
func (t *Table) AddField(f Field) error {
	if f.Name == "" {
		return fmt.Errorf("field without name")
	}
	if t.byName == nil {
		t.byName = make(map[string]int)
	}
	if _, ok := t.byName[f.Name]; ok {
		return fmt.Errorf("duplicate field %q", f.Name)
	}
	if f.Comment == "" {
		f.Comment = f.Name
	}
	t.byName[f.Name] = len(t.fields)
	t.fields = append(t.fields, f)
	return nil
}

// Field looks a field up by name.
func (t *Table) Field(name string) (Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Field{}, false
	}
	return t.fields[i], true
}

// HasField reports whether name is a field of the table.
func (t *Table) HasField(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// Fields returns a copy of the fields in insertion order.
func (t *Table) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

// FieldNames returns the field names in insertion order.
func (t *Table) FieldNames() []string {
	out := make([]string, len(t.fields))
	for i, f := range t.fields {
		out[i] = f.Name
	}
	return out
}

// Len returns the number of fields.
func (t *Table) Len() int { return len(t.fields) }

// Validate checks the references inside the table definition.
func (t *Table) Validate() error {
	if t.Meta.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.fields) == 0 {
		return fmt.Errorf("table %s has no fields", t.Meta.Name)
	}
	for _, f := range t.fields {
		if f.Type == "" {
			return fmt.Errorf("field %s has no storage type", f.Name)
		}
		if !f.Tag.Valid() {
			return fmt.Errorf("field %s has invalid semantic tag %d", f.Name, int(f.Tag))
		}
	}
	check := func(kind, col string) error {
		if !t.HasField(col) {
			return fmt.Errorf("%s index references unknown field %q", kind, col)
		}
		return nil
	}
	for _, c := range t.Indexes.PrimaryKey {
		if err := check("primary", c); err != nil {
			return err
		}
	}
	for _, group := range t.Indexes.UniqueKeys {
		for _, c := range group {
			if err := check("unique", c); err != nil {
				return err
			}
		}
	}
	for _, c := range t.Indexes.Secondary {
		if err := check("secondary", c); err != nil {
			return err
		}
	}
	for _, c := range t.Indexes.FullText {
		if err := check("fulltext", c); err != nil {
			return err
		}
	}
	return nil
}

// PrimaryKey returns the primary key columns: the index plan's list when set,
// otherwise every field tagged primary_key.
func (t *Table) PrimaryKey() []string {
	if len(t.Indexes.PrimaryKey) > 0 {
		return append([]string(nil), t.Indexes.PrimaryKey...)
	}
	var out []string
	for _, f := range t.fields {
		if f.Tag == semantic.PrimaryKey {
			out = append(out, f.Name)
		}
	}
	return out
}
