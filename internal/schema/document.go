package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"sheetsql/internal/apperrors"
	"sheetsql/internal/semantic"
)

// fieldDoc is the document shape of one field.
type fieldDoc struct {
	Type          string `json:"type" yaml:"type"`
	Nullable      *bool  `json:"nullable" yaml:"nullable"`
	AutoIncrement bool   `json:"auto_increment,omitempty" yaml:"auto_increment,omitempty"`
	Default       any    `json:"default" yaml:"default"`
	Semantic      string `json:"semantic" yaml:"semantic"`
	Comment       string `json:"comment,omitempty" yaml:"comment,omitempty"`
}

func toDoc(f Field) fieldDoc {
	nullable := f.Nullable
	return fieldDoc{
		Type:          string(f.Type),
		Nullable:      &nullable,
		AutoIncrement: f.AutoIncrement,
		Default:       encodeDefault(f.Default),
		Semantic:      f.Tag.String(),
		Comment:       f.Comment,
	}
}

func fromDoc(name string, d fieldDoc) (Field, error) {
	tag, err := semantic.Parse(d.Semantic)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	t := StorageType(strings.TrimSpace(d.Type))
	if t == "" {
		return Field{}, fmt.Errorf("field %s: type is required", name)
	}
	def, err := decodeDefault(d.Default, t)
	if err != nil {
		return Field{}, fmt.Errorf("field %s: %w", name, err)
	}
	nullable := true
	if d.Nullable != nil {
		nullable = *d.Nullable
	}
	return Field{
		Name:          name,
		Type:          t,
		Nullable:      nullable,
		AutoIncrement: d.AutoIncrement,
		Default:       def,
		Tag:           tag,
		Comment:       d.Comment,
	}, nil
}

func encodeDefault(d Default) any {
	switch d.Kind {
	case LiteralDefault:
		return d.Value
	case CurrentTime:
		return currentTimeText
	case CurrentTimeOnUpdate:
		return currentTimeOnUpdateText
	default:
		return nil
	}
}

// decodeDefault interprets a document default against the field's type, so
// that a float column keeps float64(0) and sentinels are only recognised on
// temporal columns.
func decodeDefault(raw any, t StorageType) (Default, error) {
	if raw == nil {
		return Default{}, nil
	}
	cat := t.Category()
	if s, ok := raw.(string); ok && cat == CategoryTemporal {
		switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
		case currentTimeText:
			return Default{Kind: CurrentTime}, nil
		case currentTimeOnUpdateText:
			return Default{Kind: CurrentTimeOnUpdate}, nil
		}
	}

	switch v := raw.(type) {
	case json.Number:
		switch cat {
		case CategoryInteger:
			n, err := v.Int64()
			if err != nil {
				return Default{}, fmt.Errorf("default %s is not an integer", v)
			}
			return Literal(n), nil
		case CategoryFloat:
			f, err := v.Float64()
			if err != nil {
				return Default{}, err
			}
			return Literal(f), nil
		case CategoryBoolean:
			return Literal(v.String() != "0"), nil
		case CategoryText:
			return Literal(v.String()), nil
		}
		if n, err := v.Int64(); err == nil {
			return Literal(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return Default{}, err
		}
		return Literal(f), nil
	case int:
		return decodeDefault(json.Number(fmt.Sprint(v)), t)
	case int64:
		return decodeDefault(json.Number(fmt.Sprint(v)), t)
	case uint64:
		return decodeDefault(json.Number(fmt.Sprint(v)), t)
	case float64:
		if cat == CategoryFloat {
			return Literal(v), nil
		}
		return decodeDefault(json.Number(fmt.Sprint(v)), t)
	case bool, string:
		return Literal(v), nil
	default:
		return Default{}, fmt.Errorf("unsupported default %v (%T)", raw, raw)
	}
}

func (p IndexPlan) normalized() IndexPlan {
	if len(p.PrimaryKey) == 0 {
		p.PrimaryKey = nil
	}
	if len(p.UniqueKeys) == 0 {
		p.UniqueKeys = nil
	}
	if len(p.Secondary) == 0 {
		p.Secondary = nil
	}
	if len(p.FullText) == 0 {
		p.FullText = nil
	}
	return p
}

// emptyLists renders missing lists as [] in documents.
func (p IndexPlan) emptyLists() IndexPlan {
	if p.PrimaryKey == nil {
		p.PrimaryKey = []string{}
	}
	if p.UniqueKeys == nil {
		p.UniqueKeys = [][]string{}
	}
	if p.Secondary == nil {
		p.Secondary = []string{}
	}
	if p.FullText == nil {
		p.FullText = []string{}
	}
	return p
}

// MarshalJSON writes {"table": ..., "fields": {...}, "indexes": ...} keeping field order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	meta, err := json.Marshal(t.Meta)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`{"table":`)
	buf.Write(meta)
	buf.WriteString(`,"fields":{`)
	for i, f := range t.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(toDoc(f))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	idx, err := json.Marshal(t.Indexes.emptyLists())
	if err != nil {
		return nil, err
	}
	buf.WriteString(`},"indexes":`)
	buf.Write(idx)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (t *Table) UnmarshalJSON(b []byte) error {
	var doc struct {
		Table   TableMeta       `json:"table"`
		Fields  json.RawMessage `json:"fields"`
		Indexes IndexPlan       `json:"indexes"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	out := NewTable(doc.Table)
	out.Indexes = doc.Indexes.normalized()

	if len(doc.Fields) > 0 && string(doc.Fields) != "null" {
		dec := json.NewDecoder(bytes.NewReader(doc.Fields))
		dec.UseNumber()
		if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
			return fmt.Errorf("fields must be an object")
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			name, _ := tok.(string)
			var fd fieldDoc
			if err := dec.Decode(&fd); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			f, err := fromDoc(name, fd)
			if err != nil {
				return err
			}
			if err := out.AddField(f); err != nil {
				return err
			}
		}
	}
	*t = *out
	return nil
}

// MarshalYAML renders the same document as an ordered YAML mapping.
func (t *Table) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}

	add := func(key string, v any) error {
		var n yaml.Node
		if err := n.Encode(v); err != nil {
			return err
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: key}, &n)
		return nil
	}
	if err := add("table", t.Meta); err != nil {
		return nil, err
	}

	fields := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range t.fields {
		var n yaml.Node
		if err := n.Encode(toDoc(f)); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		fields.Content = append(fields.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: f.Name}, &n)
	}
	root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "fields"}, fields)

	if err := add("indexes", t.Indexes.emptyLists()); err != nil {
		return nil, err
	}
	return root, nil
}

func (t *Table) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.DocumentNode && len(value.Content) == 1 {
		value = value.Content[0]
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("document must be a mapping")
	}
	var meta TableMeta
	var plan IndexPlan
	var fields *yaml.Node
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i].Value, value.Content[i+1]
		switch key {
		case "table":
			if err := val.Decode(&meta); err != nil {
				return fmt.Errorf("table: %w", err)
			}
		case "indexes":
			if err := val.Decode(&plan); err != nil {
				return fmt.Errorf("indexes: %w", err)
			}
		case "fields":
			fields = val
		}
	}

	out := NewTable(meta)
	out.Indexes = plan.normalized()
	if fields != nil {
		if fields.Kind != yaml.MappingNode {
			return fmt.Errorf("fields must be a mapping")
		}
		for i := 0; i+1 < len(fields.Content); i += 2 {
			name := fields.Content[i].Value
			var fd fieldDoc
			if err := fields.Content[i+1].Decode(&fd); err != nil {
				return fmt.Errorf("field %s: %w", name, err)
			}
			f, err := fromDoc(name, fd)
			if err != nil {
				return err
			}
			if err := out.AddField(f); err != nil {
				return err
			}
		}
	}
	*t = *out
	return nil
}

// Format selects the interchange encoding of a document.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

// FormatFor picks the format from a file extension; JSON is the default.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Marshal encodes a document.
func Marshal(t *Table, f Format) ([]byte, error) {
	if f == FormatYAML {
		return yaml.Marshal(t)
	}
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Unmarshal decodes and validates a document.
func Unmarshal(b []byte, f Format) (*Table, error) {
	t := &Table{}
	var err error
	if f == FormatYAML {
		err = yaml.Unmarshal(b, t)
	} else {
		err = json.Unmarshal(b, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigLoad, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigLoad, err)
	}
	return t, nil
}

// LoadDocument reads a table document from path.
func LoadDocument(path string) (*Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigLoad, err)
	}
	t, err := Unmarshal(b, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return t, nil
}

// SaveDocument writes a table document to path.
func SaveDocument(path string, t *Table) error {
	b, err := Marshal(t, FormatFor(path))
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
