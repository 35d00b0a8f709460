// Package model defines the classifier capability used by training and
// prediction, plus a registry of interchangeable implementations.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Classifier is fitted on a dense feature matrix and predicts the
// probability of the positive class for each row.
type Classifier interface {
	Fit(ctx context.Context, X [][]float64, y []float64) error
	Predict(X [][]float64) ([]float64, error)
}

// Params configures a classifier. Zero values select the defaults.
type Params struct {
	Epochs       int     `json:"epochs,omitempty"`
	LearningRate float64 `json:"learningRate,omitempty"`
	L2           float64 `json:"l2,omitempty"`
	Hidden       int     `json:"hidden,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
}

func (p Params) withDefaults() Params {
	if p.Epochs <= 0 {
		p.Epochs = 200
	}
	if p.LearningRate <= 0 {
		p.LearningRate = 0.1
	}
	if p.Hidden <= 0 {
		p.Hidden = 8
	}
	if p.Seed == 0 {
		p.Seed = 42
	}
	return p
}

// Factory builds an unfitted classifier.
type Factory func(Params) Classifier

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes a classifier available by name. It panics on duplicates.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("model: Register called twice for " + name)
	}
	registry[name] = f
}

// New builds the classifier registered under name.
func New(name string, p Params) (Classifier, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model %q (available: %v)", name, Names())
	}
	return f(p.withDefaults()), nil
}

// Names lists registered classifiers.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register(KindLogistic, func(p Params) Classifier { return NewLogistic(p) })
	Register(KindMLP, func(p Params) Classifier { return NewMLP(p) })
}

// Named is implemented by classifiers that can be encoded.
type Named interface {
	Kind() string
}

type envelope struct {
	Version string          `json:"version"`
	Kind    string          `json:"kind"`
	State   json.RawMessage `json:"state"`
}

// Encode serializes a fitted classifier tagged with version.
func Encode(c Classifier, version string) ([]byte, error) {
	named, ok := c.(Named)
	if !ok {
		return nil, fmt.Errorf("model %T cannot be encoded", c)
	}
	state, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", named.Kind(), err)
	}
	return json.MarshalIndent(envelope{Version: version, Kind: named.Kind(), State: state}, "", "  ")
}

// Decode restores a classifier and returns the version it was encoded with.
func Decode(data []byte) (Classifier, string, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, "", fmt.Errorf("decode model: %w", err)
	}
	c, err := New(env.Kind, Params{})
	if err != nil {
		return nil, "", err
	}
	if err := json.Unmarshal(env.State, c); err != nil {
		return nil, "", fmt.Errorf("decode %s state: %w", env.Kind, err)
	}
	return c, env.Version, nil
}

// EncodedVersion reads only the version of an encoded model.
func EncodedVersion(data []byte) (string, error) {
	var env struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return "", fmt.Errorf("decode model: %w", err)
	}
	return env.Version, nil
}

func checkShape(X [][]float64, y []float64) (int, error) {
	if len(X) == 0 {
		return 0, fmt.Errorf("empty training set")
	}
	if y != nil && len(X) != len(y) {
		return 0, fmt.Errorf("got %d rows and %d labels", len(X), len(y))
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return 0, fmt.Errorf("row %d has %d columns, want %d", i, len(row), width)
		}
	}
	return width, nil
}
