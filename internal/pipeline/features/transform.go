package features

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/models"
	"employability-workers/internal/pipeline/normalize"
)

// Transform encodes records with the frozen schema. It never refits.
func Transform(records []models.CanonicalRecord, schema *FeatureSchema) (*FeatureTable, error) {
	table := &FeatureTable{
		Columns: append([]string(nil), schema.Columns...),
		Rows:    make([][]float64, len(records)),
		Labels:  make([]float64, len(records)),
	}
	for i, r := range records {
		row, err := TransformRecord(r, schema)
		if err != nil {
			return nil, err
		}
		table.Rows[i] = row
		table.Labels[i] = float64(r.Label())
	}
	return table, nil
}

// TransformRecord encodes a single record.
func TransformRecord(r models.CanonicalRecord, schema *FeatureSchema) ([]float64, error) {
	raw := make([]float64, len(schema.Numeric))
	for i := range schema.Numeric {
		v, err := numericValue(r, i)
		if err != nil {
			return nil, err
		}
		raw[i] = v
	}

	row := make([]float64, schema.Width())
	scaleInto(row, raw, schema)
	for _, field := range CategoricalFields {
		for _, v := range categoryValues(r, field) {
			if col, ok := schema.Vocabulary[field][v]; ok {
				row[col] = 1
			}
		}
	}
	return row, nil
}

// TransformRow encodes a caller-supplied flat map with the frozen schema.
// Keys outside the schema are ignored and absent columns are 0. Accepted
// keys: experience_required (or Experience_Required) as a number, text or
// nested list; study_level_required as free text; the education level names;
// the categorical fields as a string or list of strings; and indicator
// columns named "<field>=<value>".
//
// study_level_required is expanded first and an explicit level key then
// replaces that single flag, so {"study_level_required":"Bac +5","Bac":0}
// yields Bac=0 with Bac +2..+5 still set. The flags are not forced back
// into a cumulative ladder.
func TransformRow(input map[string]interface{}, schema *FeatureSchema) ([]float64, error) {
	raw := make([]float64, len(schema.Numeric))
	row := make([]float64, schema.Width())

	columnIndex := make(map[string]int, len(schema.Columns))
	for i, c := range schema.Columns {
		columnIndex[c] = i
	}

	if text, ok := input["study_level_required"]; ok && text != nil {
		s, isString := text.(string)
		if !isString {
			return nil, errors.NewInvalidFeatureValueError("study_level_required", text)
		}
		for i, set := range normalize.ParseEducation(s) {
			raw[1+i] = boolFloat(set)
		}
	}

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := input[key]
		switch {
		case key == ColumnExperience || key == "Experience_Required":
			v, err := normalize.FlattenExperience(key, value)
			if err != nil {
				return nil, err
			}
			raw[0] = v

		case isCategoricalField(key):
			values, err := stringValues(key, value)
			if err != nil {
				return nil, err
			}
			for _, v := range values {
				if col, ok := schema.Vocabulary[key][v]; ok {
					row[col] = 1
				}
			}

		default:
			col, ok := columnIndex[key]
			if !ok {
				continue
			}
			v, err := scalarValue(key, value)
			if err != nil {
				return nil, err
			}
			if col < len(raw) {
				raw[col] = v
			} else {
				row[col] = v
			}
		}
	}

	scaleInto(row, raw, schema)
	return row, nil
}

func scaleInto(row, raw []float64, schema *FeatureSchema) {
	for i, n := range schema.Numeric {
		row[i] = (raw[i] - n.Offset) * n.Scale
	}
}

func numericValue(r models.CanonicalRecord, i int) (float64, error) {
	if i == 0 {
		v := r.ExperienceRequired
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.NewInvalidFeatureValueError(ColumnExperience, v)
		}
		return v, nil
	}
	return boolFloat(r.Education[i-1]), nil
}

func isCategoricalField(key string) bool {
	for _, f := range CategoricalFields {
		if key == f {
			return true
		}
	}
	return false
}

func stringValues(field string, v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return normalize.Categories([]string{t}), nil
	case []string:
		return normalize.Categories(t), nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, errors.NewInvalidFeatureValueError(field, v)
			}
			out = append(out, s)
		}
		return normalize.Categories(out), nil
	}
	return nil, errors.NewInvalidFeatureValueError(field, v)
}

func scalarValue(field string, v interface{}) (float64, error) {
	f, ok := parseScalar(v)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.NewInvalidFeatureValueError(field, v)
	}
	return f, nil
}

func parseScalar(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, true
	case bool:
		return boolFloat(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ToLower(t))
		switch s {
		case "true", "yes", "oui":
			return 1, true
		case "false", "no", "non", "":
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	}
	return 0, false
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
