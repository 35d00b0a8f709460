// Package errors provides standardized error handling for the employability pipeline
// and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline error taxonomy
const (
	ErrCodeMalformedRawField     ErrorCode = "MALFORMED_RAW_FIELD"
	ErrCodeDuplicateIngestion    ErrorCode = "DUPLICATE_INGESTION"
	ErrCodeInvalidFeatureValue   ErrorCode = "INVALID_FEATURE_VALUE"
	ErrCodeSchemaVersionMismatch ErrorCode = "SCHEMA_VERSION_MISMATCH"
	ErrCodeTrainingAborted       ErrorCode = "TRAINING_ABORTED"

	ErrCodeArtifactNotFound    ErrorCode = "ARTIFACT_NOT_FOUND"
	ErrCodeArtifactWriteFailed ErrorCode = "ARTIFACT_WRITE_FAILED"
	ErrCodeModelNotLoaded      ErrorCode = "MODEL_NOT_LOADED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeIndexRequestFailed            ErrorCode = "INDEX_REQUEST_FAILED"

	ErrCodeCrawlFetchFailed       ErrorCode = "CRAWL_FETCH_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"

	ErrCodeBrokerUnavailable ErrorCode = "BROKER_UNAVAILABLE"
	ErrCodeBrokerTimeout     ErrorCode = "BROKER_TIMEOUT"
	ErrCodeBrokerRejected    ErrorCode = "BROKER_REJECTED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a StandardError carrying the same code.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Field returns the offending field name recorded in the metadata, if any.
func (e *StandardError) Field() string {
	if e.Metadata == nil {
		return ""
	}
	f, _ := e.Metadata["field"].(string)
	return f
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// Sentinels usable with errors.Is; only the code is compared.
var (
	ErrMalformedRawField     = &StandardError{Code: ErrCodeMalformedRawField}
	ErrDuplicateIngestion    = &StandardError{Code: ErrCodeDuplicateIngestion}
	ErrInvalidFeatureValue   = &StandardError{Code: ErrCodeInvalidFeatureValue}
	ErrSchemaVersionMismatch = &StandardError{Code: ErrCodeSchemaVersionMismatch}
	ErrTrainingAborted       = &StandardError{Code: ErrCodeTrainingAborted}
	ErrArtifactNotFound      = &StandardError{Code: ErrCodeArtifactNotFound}
	ErrModelNotLoaded        = &StandardError{Code: ErrCodeModelNotLoaded}
	ErrInvalidInput          = &StandardError{Code: ErrCodeInvalidInput}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	for k, v := range e.ErrorVariables {
		vars[k] = v
	}

	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewMalformedRawFieldError describes a raw posting field that was degraded to its default.
func NewMalformedRawFieldError(field, details string) *StandardError {
	e := newError(ErrCodeMalformedRawField, "Malformed raw field degraded to default", details, false, nil)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewDuplicateIngestionError records a re-ingested detail url.
func NewDuplicateIngestionError(detailURL string) *StandardError {
	return newError(ErrCodeDuplicateIngestion, "Posting already ingested",
		fmt.Sprintf("detailUrl: %s", detailURL), false, nil)
}

// NewInvalidFeatureValueError is raised when a numeric column receives a non-numeric value.
func NewInvalidFeatureValueError(field string, value interface{}) *StandardError {
	e := newError(ErrCodeInvalidFeatureValue, "Invalid feature value",
		fmt.Sprintf("field %q: expected numeric value, got %T (%v)", field, value, value), false, nil)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewSchemaVersionMismatchError is fatal: the schema was not co-trained with the model.
func NewSchemaVersionMismatchError(schemaVersion, modelVersion string) *StandardError {
	e := newError(ErrCodeSchemaVersionMismatch, "Feature schema does not match model",
		fmt.Sprintf("schemaVersion: %s, modelVersion: %s", schemaVersion, modelVersion), false, nil)
	e.Metadata = map[string]interface{}{"schemaVersion": schemaVersion, "modelVersion": modelVersion}
	return e
}

// NewTrainingAbortedError wraps the failure of one orchestrator stage.
func NewTrainingAbortedError(stage string, err error) *StandardError {
	e := newError(ErrCodeTrainingAborted, "Training run aborted",
		fmt.Sprintf("stage: %s, error: %v", stage, err), false, err)
	e.Metadata = map[string]interface{}{"stage": stage}
	return e
}

func NewArtifactNotFoundError(details string) *StandardError {
	return newError(ErrCodeArtifactNotFound, "Artifact bundle not found", details, false, nil)
}

func NewArtifactWriteFailedError(err error) *StandardError {
	return newError(ErrCodeArtifactWriteFailed, "Artifact bundle write failed", err.Error(), true, err)
}

func NewModelNotLoadedError() *StandardError {
	return newError(ErrCodeModelNotLoaded, "No trained model loaded", "", true, nil)
}

func NewInvalidInputError(field, details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
	e.Metadata = map[string]interface{}{"field": field}
	return e
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true, err)
}

// NewDatabaseInsertFailedError creates a retryable database insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true, err)
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true, err)
}

func NewIndexRequestFailedError(op string, err error) *StandardError {
	return newError(ErrCodeIndexRequestFailed, "Elasticsearch request error",
		fmt.Sprintf("op: %s, error: %s", op, err.Error()), true, err)
}

func NewCrawlFetchFailedError(url string, err error) *StandardError {
	return newError(ErrCodeCrawlFetchFailed, "Crawl fetch failed",
		fmt.Sprintf("url: %s, error: %s", url, err.Error()), true, err)
}

func NewNotificationSendFailedError(err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed", err.Error(), true, err)
}

// NewBrokerError classifies a failed Zeebe command.
func NewBrokerError(code ErrorCode, operation string, err error) *StandardError {
	retryable := code != ErrCodeBrokerRejected
	return newError(code, "Workflow broker command failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), retryable, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeIndexRequestFailed,
		ErrCodeCrawlFetchFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeBrokerUnavailable,
		ErrCodeBrokerTimeout:
		return 3

	case ErrCodeArtifactWriteFailed,
		ErrCodeModelNotLoaded:
		return 1

	default:
		return 0 // business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if field := stdErr.Field(); field != "" {
		vars["errorField"] = field
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError extracts the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the first StandardError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr.Code
	}
	return ""
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "FEATURE") || strings.Contains(codeStr, "SCHEMA") ||
		strings.Contains(codeStr, "RAW_FIELD") || strings.Contains(codeStr, "INPUT"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TRAINING") || strings.Contains(codeStr, "MODEL") ||
		strings.Contains(codeStr, "ARTIFACT"):
		return "MODEL"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "CRAWL") || strings.Contains(codeStr, "INGESTION"):
		return "INGESTION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "BROKER"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
