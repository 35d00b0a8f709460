package trainmodel

// Input optionally overrides the configured model kind.
type Input struct {
	Model string `json:"model,omitempty"`
}

type Output struct {
	Version   string  `json:"version"`
	Model     string  `json:"model"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	LogLoss   float64 `json:"logLoss"`
	TrainSize int     `json:"trainSize"`
	TestSize  int     `json:"testSize"`
	Reloaded  bool    `json:"reloaded"`
}
