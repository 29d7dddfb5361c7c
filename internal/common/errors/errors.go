// Package errors provides the standardized error taxonomy for syllabus
// processing and its mapping onto Zeebe job failures.
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

const (
	ErrCodeInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrCodeDocumentNotFound   ErrorCode = "DOCUMENT_NOT_FOUND"
	ErrCodeMalformedResponse  ErrorCode = "MALFORMED_RESPONSE"
	ErrCodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeModelFailure       ErrorCode = "MODEL_FAILURE"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Every StandardError unwraps to the sentinel
// matching its code.
var (
	ErrInvalidInput       = stderrors.New(string(ErrCodeInvalidInput))
	ErrNotFound           = stderrors.New(string(ErrCodeDocumentNotFound))
	ErrMalformedResponse  = stderrors.New(string(ErrCodeMalformedResponse))
	ErrPersistenceFailure = stderrors.New(string(ErrCodePersistenceFailure))
	ErrModelFailure       = stderrors.New(string(ErrCodeModelFailure))
)

var sentinels = map[ErrorCode]error{
	ErrCodeInvalidInput:       ErrInvalidInput,
	ErrCodeDocumentNotFound:   ErrNotFound,
	ErrCodeMalformedResponse:  ErrMalformedResponse,
	ErrCodePersistenceFailure: ErrPersistenceFailure,
	ErrCodeModelFailure:       ErrModelFailure,
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes both the code sentinel and the underlying cause.
func (e *StandardError) Unwrap() []error {
	var out []error
	if s, ok := sentinels[e.Code]; ok {
		out = append(out, s)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Table returns the table the error was raised against, if any.
func (e *StandardError) Table() string {
	s, _ := e.Metadata["table"].(string)
	return s
}

// RecordID returns the record id the error was raised against, if any.
func (e *StandardError) RecordID() string {
	s, _ := e.Metadata["recordId"].(string)
	return s
}

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

// NewInvalidInputError covers malformed trigger messages and documents without
// usable source text.
func NewInvalidInputError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid input",
		Details:   details,
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

func NewNotFoundError(table, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDocumentNotFound,
		Message:   "Record not found",
		Details:   fmt.Sprintf("table: %s, id: %s", table, id),
		Retryable: false,
		Metadata:  map[string]interface{}{"table": table, "recordId": id},
		Timestamp: time.Now().UTC(),
	}
}

func NewMalformedResponseError(details string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Model response did not decode as the expected structure",
		Details:   details,
		Retryable: false,
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceFailureError is tagged with the table and record id so a
// failed write can be traced back to the row it targeted.
func NewPersistenceFailureError(op, table, id string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceFailure,
		Message:   fmt.Sprintf("Store %s failed", op),
		Details:   fmt.Sprintf("table: %s, id: %s", table, id),
		Retryable: true,
		Metadata:  map[string]interface{}{"table": table, "recordId": id, "operation": op},
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

func NewModelFailureError(deployment string, cause error) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelFailure,
		Message:   "Model completion failed",
		Details:   fmt.Sprintf("deployment: %s", deployment),
		Retryable: true,
		Metadata:  map[string]interface{}{"deployment": deployment},
		Cause:     cause,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Classification helpers
// ==========================

// AsStandard finds a StandardError in err's chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code carried by err, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:       "SYLLABUS_INVALID_INPUT",
	ErrCodeDocumentNotFound:   "SYLLABUS_NOT_FOUND",
	ErrCodeMalformedResponse:  "SYLLABUS_MALFORMED_RESPONSE",
	ErrCodePersistenceFailure: "SYLLABUS_PERSISTENCE_FAILURE",
	ErrCodeModelFailure:       "SYLLABUS_MODEL_FAILURE",
}

// GetRetryCount is the number of dispatcher retries a code deserves. The
// worker itself never retries; this only informs the Zeebe fail command.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePersistenceFailure, ErrCodeModelFailure:
		return 3
	default:
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if table := stdErr.Table(); table != "" {
		vars["table"] = table
	}
	if id := stdErr.RecordID(); id != "" {
		vars["recordId"] = id
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeInvalidInput, ErrCodeDocumentNotFound:
		return "VALIDATION"
	case ErrCodeMalformedResponse, ErrCodeModelFailure:
		return "AI"
	case ErrCodePersistenceFailure:
		return "DATABASE"
	default:
		return "OTHER"
	}
}
