// Package synth assembles column profiles into a full table definition:
// synthetic key and audit columns, per-column fields, and an index plan.
package synth

import (
	"fmt"

	"sheetsql/internal/classify"
	"sheetsql/internal/dataset"
	"sheetsql/internal/logger"
	"sheetsql/internal/profile"
	"sheetsql/internal/schema"
	"sheetsql/internal/semantic"
)

const (
	IDColumn        = "id"
	CreatedAtColumn = "created_at"
	UpdatedAtColumn = "updated_at"

	// UniqueThreshold is exclusive: a column must be strictly more unique.
	UniqueThreshold = 0.95
	// SecondaryThreshold is the exclusive lower bound for secondary indexes.
	SecondaryThreshold = 0.10
)

// DefaultMeta returns the table metadata used for generated tables.
func DefaultMeta(name string) schema.TableMeta {
	if name == "" {
		name = "auto_generated_table"
	}
	return schema.TableMeta{
		Name:               name,
		Engine:             "InnoDB",
		Charset:            "utf8mb4",
		Collate:            "utf8mb4_unicode_ci",
		AutoIncrementStart: 1,
		Comment:            "auto-generated table",
	}
}

// Synthesizer turns profiles into table definitions.
type Synthesizer struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Synthesizer {
	return &Synthesizer{log: log}
}

func isSynthetic(name string) bool {
	return name == IDColumn || name == CreatedAtColumn || name == UpdatedAtColumn
}

// Synthesize builds the table definition for table from profiles, in order.
func (s *Synthesizer) Synthesize(table string, profiles []profile.Profile) (*schema.Table, error) {
	spec := schema.NewTable(DefaultMeta(table))

	if err := spec.AddField(schema.Field{
		Name:          IDColumn,
		Type:          schema.BigInt,
		AutoIncrement: true,
		Tag:           semantic.PrimaryKey,
		Comment:       "auto-increment primary key",
	}); err != nil {
		return nil, err
	}

	plan := schema.IndexPlan{
		PrimaryKey: []string{IDColumn},
		Secondary:  []string{CreatedAtColumn, UpdatedAtColumn},
	}

	for _, p := range profiles {
		if isSynthetic(p.Name) {
			s.log.Warn("column %q collides with a generated column and is skipped", p.Name)
			continue
		}
		f := classify.Field(p)
		if err := spec.AddField(f); err != nil {
			return nil, fmt.Errorf("synthesize %s: %w", spec.Name(), err)
		}

		switch {
		case p.UniqueRatio > UniqueThreshold:
			plan.UniqueKeys = append(plan.UniqueKeys, []string{p.Name})
		case p.UniqueRatio > SecondaryThreshold && p.UniqueRatio < UniqueThreshold:
			plan.Secondary = append(plan.Secondary, p.Name)
		}
		if f.Type.IsLongText() {
			plan.FullText = append(plan.FullText, p.Name)
		}
	}

	for _, f := range []schema.Field{
		{
			Name:    CreatedAtColumn,
			Type:    schema.Timestamp,
			Default: schema.Default{Kind: schema.CurrentTime},
			Tag:     semantic.Timestamp,
			Comment: "creation time",
		},
		{
			Name:    UpdatedAtColumn,
			Type:    schema.Timestamp,
			Default: schema.Default{Kind: schema.CurrentTimeOnUpdate},
			Tag:     semantic.Timestamp,
			Comment: "last update time",
		},
	} {
		if err := spec.AddField(f); err != nil {
			return nil, err
		}
	}

	spec.Indexes = plan
	return spec, nil
}

// FromDataset profiles every column of ds and synthesizes a table definition.
func (s *Synthesizer) FromDataset(table string, ds *dataset.Dataset) (*schema.Table, []profile.Profile, error) {
	profiles, err := profile.Table(ds)
	if err != nil {
		return nil, nil, err
	}
	spec, err := s.Synthesize(table, profiles)
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("synthesized %s with %d fields", spec.Name(), spec.Len())
	return spec, profiles, nil
}
