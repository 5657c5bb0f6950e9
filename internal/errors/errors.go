package errors

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"forecast-dashboard/internal/services"
)

type ErrorCode string

const (
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
	CodeBadRequest         ErrorCode = "BAD_REQUEST"
	CodeNotFound           ErrorCode = "NOT_FOUND"
	CodeMalformedData      ErrorCode = "MALFORMED_DATA"
	CodeInvalidWindow      ErrorCode = "INVALID_WINDOW"
	CodeEmptyTable         ErrorCode = "EMPTY_TABLE"
	CodeDivisionByZero     ErrorCode = "DIVISION_BY_ZERO"
	CodeIdentifierMismatch ErrorCode = "IDENTIFIER_MISMATCH"
	CodeTimeout            ErrorCode = "TIMEOUT"
	CodeRateLimit          ErrorCode = "RATE_LIMIT_EXCEEDED"
)

type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode(code),
		Timestamp:  time.Now().UTC(),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	e := New(code, message)
	e.Cause = err
	if err != nil {
		e.Details = err.Error()
	}
	return e
}

func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

func BadRequest(message string) *AppError {
	return New(CodeBadRequest, message)
}

func NotFound(message string) *AppError {
	return New(CodeNotFound, message)
}

func RateLimit(message string) *AppError {
	return New(CodeRateLimit, message)
}

// FromEngine maps an engine error onto its code. Unknown errors are internal.
func FromEngine(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	switch {
	case stderrors.Is(err, services.ErrNotFound):
		return Wrap(err, CodeNotFound, "No forecast data for this selection")
	case stderrors.Is(err, services.ErrMalformedData):
		return Wrap(err, CodeMalformedData, "Forecast data is malformed")
	case stderrors.Is(err, services.ErrInvalidWindow):
		return Wrap(err, CodeInvalidWindow, "Start date must not be after end date")
	case stderrors.Is(err, services.ErrEmptyTable):
		return Wrap(err, CodeEmptyTable, "Accuracy summary is empty")
	case stderrors.Is(err, services.ErrDivisionByZero):
		return Wrap(err, CodeDivisionByZero, "Percentage change is not applicable")
	case stderrors.Is(err, services.ErrIdentifierMismatch):
		return Wrap(err, CodeIdentifierMismatch, "Report assembled from mismatched data")
	case stderrors.Is(err, context.DeadlineExceeded):
		return Wrap(err, CodeTimeout, "Loading forecast data timed out")
	default:
		return Wrap(err, CodeInternal, "An unexpected error occurred")
	}
}

func statusCode(code ErrorCode) int {
	switch code {
	case CodeBadRequest, CodeInvalidWindow:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeMalformedData:
		return http.StatusUnprocessableEntity
	case CodeEmptyTable, CodeDivisionByZero:
		return http.StatusOK
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type ErrorResponse struct {
	Error   *AppError `json:"error"`
	Success bool      `json:"success"`
}

func WriteError(w http.ResponseWriter, logger *slog.Logger, err error, requestID string) {
	appErr := FromEngine(err)
	appErr.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.StatusCode)

	response := ErrorResponse{
		Error:   appErr,
		Success: false,
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		logger.Error("failed to encode error response",
			"encode_error", encodeErr,
			"original_error", err,
			"request_id", requestID,
		)
		return
	}

	level := slog.LevelError
	if appErr.StatusCode < http.StatusInternalServerError {
		level = slog.LevelWarn
	}

	logger.Log(context.Background(), level, "request failed",
		"error_code", appErr.Code,
		"error_message", appErr.Message,
		"status_code", appErr.StatusCode,
		"request_id", requestID,
		"cause", appErr.Cause,
	)
}

type SuccessResponse struct {
	Data    any  `json:"data"`
	Success bool `json:"success"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessWithHeaders(w, data, nil)
}

// WriteSuccessWithHeaders encodes before writing the status so a value that
// cannot be encoded becomes a 500 instead of an empty 200.
func WriteSuccessWithHeaders(w http.ResponseWriter, data any, headers map[string]string) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(SuccessResponse{Data: data, Success: true}); err != nil {
		logger := slog.Default()
		logger.Error("failed to encode success response", "error", err)
		WriteError(w, logger, Wrap(err, CodeInternal, "Failed to encode response"), w.Header().Get("X-Request-ID"))
		return
	}

	for key, value := range headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Default().Warn("failed to write response", "error", err)
	}
}
