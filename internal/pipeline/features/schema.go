// Package features converts canonical records into fixed-width numeric
// feature rows through an explicit, immutable FeatureSchema.
package features

import (
	"fmt"

	"employability-workers/internal/models"
)

// Column names.
const (
	ColumnExperience  = "experience_required"
	FieldSector       = "sector_activity"
	FieldFunction     = "function"
	FieldContractType = "contract_type_offered"
	categorySeparator = "="
)

// NumericColumns lists the numeric columns in their fixed order.
var NumericColumns = append([]string{ColumnExperience}, models.EducationLevels[:]...)

// CategoricalFields lists the expanded categorical fields in column order.
var CategoricalFields = []string{FieldSector, FieldFunction, FieldContractType}

// NumericColumn carries the fitted min-max parameters of one numeric column:
// scaled = (value - Offset) * Scale.
type NumericColumn struct {
	Name   string  `json:"name"`
	Scale  float64 `json:"scale"`
	Offset float64 `json:"offset"`
}

// FeatureSchema fixes column order, numeric scaling and categorical
// vocabulary. Columns starts with the numeric columns; Vocabulary maps
// field -> value -> column position. A schema is never modified after it is
// built; fitting returns a new value.
type FeatureSchema struct {
	Version    string                    `json:"version"`
	Columns    []string                  `json:"columns"`
	Numeric    []NumericColumn           `json:"numeric"`
	Vocabulary map[string]map[string]int `json:"vocabulary"`
}

// CategoryColumn names the indicator column for value of field.
func CategoryColumn(field, value string) string {
	return field + categorySeparator + value
}

// Width is the number of feature columns.
func (s *FeatureSchema) Width() int {
	return len(s.Columns)
}

// WithVersion returns a copy of s stamped with version.
func (s *FeatureSchema) WithVersion(version string) *FeatureSchema {
	out := s.clone()
	out.Version = version
	return out
}

func (s *FeatureSchema) clone() *FeatureSchema {
	out := &FeatureSchema{
		Version:    s.Version,
		Columns:    append([]string(nil), s.Columns...),
		Numeric:    append([]NumericColumn(nil), s.Numeric...),
		Vocabulary: make(map[string]map[string]int, len(s.Vocabulary)),
	}
	for field, values := range s.Vocabulary {
		m := make(map[string]int, len(values))
		for v, col := range values {
			m[v] = col
		}
		out.Vocabulary[field] = m
	}
	return out
}

// Validate checks that the schema is internally consistent.
func (s *FeatureSchema) Validate() error {
	if len(s.Numeric) != len(NumericColumns) {
		return fmt.Errorf("schema has %d numeric columns, want %d", len(s.Numeric), len(NumericColumns))
	}
	if len(s.Columns) < len(s.Numeric) {
		return fmt.Errorf("schema has fewer columns than numeric columns")
	}
	for i, n := range s.Numeric {
		if s.Columns[i] != n.Name || n.Name != NumericColumns[i] {
			return fmt.Errorf("numeric column %d is %q, want %q", i, n.Name, NumericColumns[i])
		}
	}
	seen := make(map[int]bool)
	for field, values := range s.Vocabulary {
		for value, col := range values {
			if col < len(s.Numeric) || col >= len(s.Columns) {
				return fmt.Errorf("vocabulary %s has column %d out of range", CategoryColumn(field, value), col)
			}
			if s.Columns[col] != CategoryColumn(field, value) {
				return fmt.Errorf("column %d is %q, vocabulary says %q", col, s.Columns[col], CategoryColumn(field, value))
			}
			seen[col] = true
		}
	}
	if len(seen) != len(s.Columns)-len(s.Numeric) {
		return fmt.Errorf("schema has %d categorical columns but %d vocabulary entries",
			len(s.Columns)-len(s.Numeric), len(seen))
	}
	return nil
}

// FeatureTable is a dense row-major matrix with labels.
type FeatureTable struct {
	Columns []string
	Rows    [][]float64
	Labels  []float64
}

func (t *FeatureTable) Len() int {
	return len(t.Rows)
}
