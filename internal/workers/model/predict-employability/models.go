package predictemployability

type Input struct {
	Features map[string]interface{} `json:"features"`
}

type Output struct {
	Prediction   int     `json:"prediction"`
	Probability  float64 `json:"probability"`
	ModelVersion string  `json:"modelVersion"`
}
