// Package api serves predictions, crawl url registration and the health
// endpoints over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"employability-workers/internal/common/errors"
	"employability-workers/internal/common/logger"
	"employability-workers/internal/common/validation"
	"employability-workers/internal/pipeline/predictor"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxBodyBytes = 1 << 20

// Predictor is satisfied by *predictor.Predictor.
type Predictor interface {
	PredictDetailed(ctx context.Context, input map[string]interface{}) (*predictor.Prediction, error)
	Ready() bool
}

// URLRepository registers crawl urls.
type URLRepository interface {
	Add(ctx context.Context, url string) (bool, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	predictor Predictor
	urls      URLRepository
	pingers   map[string]Pinger
	logger    logger.Logger
	now       func() time.Time
}

func NewServer(p Predictor, urls URLRepository, pingers map[string]Pinger, log logger.Logger) *Server {
	return &Server{
		predictor: p,
		urls:      urls,
		pingers:   pingers,
		logger:    logger.Component(log, "api"),
		now:       time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", s.handlePredict)
	mux.HandleFunc("POST /urls", s.handleAddURL)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var input map[string]interface{}
	if err := decodeBody(w, r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be a JSON object"})
		return
	}

	result, err := validation.PredictionRequest.Validate(input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !result.Valid {
		first := result.FirstError()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: first.Message, Field: first.Field})
		return
	}

	pred, err := s.predictor.PredictDetailed(r.Context(), input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pred)
}

type addURLResponse struct {
	URL   string `json:"url"`
	Added bool   `json:"added"`
}

func (s *Server) handleAddURL(w http.ResponseWriter, r *http.Request) {
	var input map[string]interface{}
	if err := decodeBody(w, r, &input); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be a JSON object"})
		return
	}

	result, err := validation.CrawlURLRequest.Validate(input)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !result.Valid {
		first := result.FirstError()
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: first.Message, Field: first.Field})
		return
	}

	url, _ := input["url"].(string)
	added, err := s.urls.Add(r.Context(), url)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, addURLResponse{URL: url, Added: added})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   s.now().Format(time.RFC3339),
	})
}

// handleReady reports 503 until a model is loaded and every store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if s.predictor.Ready() {
		checks["model"] = "loaded"
	} else {
		checks["model"] = "not loaded"
		ready = false
	}

	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": checks,
		"time":   s.now().Format(time.RFC3339),
	})
}

// writeError maps standard error codes to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	stdErr := errors.Normalize(err)

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case errors.ErrCodeInvalidFeatureValue, errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	case errors.ErrCodeModelNotLoaded:
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", map[string]interface{}{
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
	}

	msg := stdErr.Details
	if msg == "" {
		msg = stdErr.Message
	}
	writeJSON(w, status, errorResponse{Error: msg, Field: stdErr.Field()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	return dec.Decode(v)
}

// writeJSON encodes before writing the status so an unencodable value
// becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"response encoding failed"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
