package features

import (
	"fmt"
	"math"
	"sort"

	"employability-workers/internal/models"
)

// BuildVocabulary fixes the column layout from records. Numeric scaling is
// left as identity; use FitScaling to fit it.
func BuildVocabulary(records []models.CanonicalRecord) (*FeatureSchema, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot build a feature schema from zero records")
	}

	distinct := make(map[string]map[string]struct{}, len(CategoricalFields))
	for _, field := range CategoricalFields {
		distinct[field] = make(map[string]struct{})
	}
	for _, r := range records {
		for _, field := range CategoricalFields {
			for _, v := range categoryValues(r, field) {
				distinct[field][v] = struct{}{}
			}
		}
	}

	schema := &FeatureSchema{
		Columns:    append([]string(nil), NumericColumns...),
		Numeric:    make([]NumericColumn, len(NumericColumns)),
		Vocabulary: make(map[string]map[string]int, len(CategoricalFields)),
	}
	for i, name := range NumericColumns {
		schema.Numeric[i] = NumericColumn{Name: name, Scale: 1}
	}

	for _, field := range CategoricalFields {
		values := make([]string, 0, len(distinct[field]))
		for v := range distinct[field] {
			values = append(values, v)
		}
		sort.Strings(values)

		vocab := make(map[string]int, len(values))
		for _, v := range values {
			vocab[v] = len(schema.Columns)
			schema.Columns = append(schema.Columns, CategoryColumn(field, v))
		}
		schema.Vocabulary[field] = vocab
	}

	return schema, nil
}

// FitScaling returns a copy of schema with min-max parameters fitted on
// records. A constant column gets scale 1 and offset equal to its value.
func FitScaling(schema *FeatureSchema, records []models.CanonicalRecord) (*FeatureSchema, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("cannot fit scaling on zero records")
	}

	out := schema.clone()
	for i := range out.Numeric {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range records {
			v, err := numericValue(r, i)
			if err != nil {
				return nil, err
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		out.Numeric[i].Offset = lo
		if hi > lo {
			out.Numeric[i].Scale = 1 / (hi - lo)
		} else {
			out.Numeric[i].Scale = 1
		}
	}
	return out, nil
}

// FitTransform builds and fits a schema over records and transforms them.
func FitTransform(records []models.CanonicalRecord) (*FeatureTable, *FeatureSchema, error) {
	schema, err := BuildVocabulary(records)
	if err != nil {
		return nil, nil, err
	}
	schema, err = FitScaling(schema, records)
	if err != nil {
		return nil, nil, err
	}
	table, err := Transform(records, schema)
	if err != nil {
		return nil, nil, err
	}
	return table, schema, nil
}

func categoryValues(r models.CanonicalRecord, field string) []string {
	switch field {
	case FieldSector:
		return r.SectorActivity
	case FieldFunction:
		return r.Function
	case FieldContractType:
		if r.ContractType == "" {
			return nil
		}
		return []string{r.ContractType}
	}
	return nil
}
