package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"employability-workers/internal/common/errors"
)

// FlattenExperience reduces a caller-supplied experience value (number,
// numeric string, free text with digits, or arbitrarily nested list of
// those) to the mean of its numeric tokens. nil and empty lists give 0.
// Values with no numeric content, NaN, infinities and negative numbers fail
// with InvalidFeatureValue.
func FlattenExperience(field string, v interface{}) (float64, error) {
	var values []float64
	if err := collect(v, &values); err != nil {
		return 0, errors.NewInvalidFeatureValueError(field, v)
	}
	if len(values) == 0 {
		return 0, nil
	}
	var sum float64
	for _, x := range values {
		if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 {
			return 0, errors.NewInvalidFeatureValueError(field, v)
		}
		sum += x
	}
	return sum / float64(len(values)), nil
}

type nonNumeric struct{}

func (nonNumeric) Error() string { return "non-numeric value" }

func collect(v interface{}, out *[]float64) error {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		*out = append(*out, t)
	case float32:
		*out = append(*out, float64(t))
	case int:
		*out = append(*out, float64(t))
	case int64:
		*out = append(*out, float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nonNumeric{}
		}
		*out = append(*out, f)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			*out = append(*out, f)
			return nil
		}
		tokens := integerTokens(s)
		if len(tokens) == 0 {
			return nonNumeric{}
		}
		*out = append(*out, tokens...)
	case []interface{}:
		for _, item := range t {
			if err := collect(item, out); err != nil {
				return err
			}
		}
	case []float64:
		*out = append(*out, t...)
	case [][]float64:
		for _, c := range t {
			*out = append(*out, c...)
		}
	case []string:
		for _, item := range t {
			if err := collect(item, out); err != nil {
				return err
			}
		}
	default:
		return nonNumeric{}
	}
	return nil
}
