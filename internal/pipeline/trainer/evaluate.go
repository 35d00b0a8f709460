package trainer

import "math"

// Threshold separates positive from negative predictions.
const Threshold = 0.5

// Evaluation holds test-partition metrics.
type Evaluation struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"logLoss"`
}

func (e Evaluation) asMap() map[string]float64 {
	return map[string]float64{
		"accuracy":  e.Accuracy,
		"precision": e.Precision,
		"recall":    e.Recall,
		"f1":        e.F1,
		"logLoss":   e.LogLoss,
	}
}

// Evaluate scores probabilities against 0/1 labels.
func Evaluate(probs, labels []float64) Evaluation {
	if len(probs) == 0 {
		return Evaluation{}
	}
	const eps = 1e-15

	var tp, fp, tn, fn int
	var loss float64
	for i, p := range probs {
		predicted := p >= Threshold
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && actual:
			fn++
		default:
			tn++
		}
		q := math.Min(math.Max(p, eps), 1-eps)
		if actual {
			loss -= math.Log(q)
		} else {
			loss -= math.Log(1 - q)
		}
	}

	e := Evaluation{
		Accuracy: float64(tp+tn) / float64(len(probs)),
		LogLoss:  loss / float64(len(probs)),
	}
	if tp+fp > 0 {
		e.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		e.Recall = float64(tp) / float64(tp+fn)
	}
	if e.Precision+e.Recall > 0 {
		e.F1 = 2 * e.Precision * e.Recall / (e.Precision + e.Recall)
	}
	return e
}
