package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
)

// Error codes carried in APIResponse.Code
const (
	CodeUnauthorized = "unauthorized"
	CodeBadRequest   = "bad_request"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeInvalid      = "invalid_record"
	CodeProtocol     = "protocol_error"
	CodeInternal     = "internal"
)

// apiKeyMiddleware validates the X-API-Key header
func apiKeyMiddleware(expectedKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			if subtle.ConstantTimeCompare([]byte(apiKey), []byte(expectedKey)) != 1 {
				sendError(w, "Invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sendSuccess sends a successful JSON response
func sendSuccess(w http.ResponseWriter, data interface{}) {
	writeResponse(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// sendError sends an error JSON response with the code matching statusCode
func sendError(w http.ResponseWriter, message string, statusCode int) {
	writeResponse(w, statusCode, APIResponse{
		Error: message,
		Code:  statusErrorCode(statusCode),
	})
}

// sendRecordError sends err in the error envelope. Record parse and
// validation failures name the record type, and the field for parse
// failures. Unclassified errors are logged and reported as 500.
func sendRecordError(w http.ResponseWriter, log *logging.Logger, err error) {
	status, code := classifyError(err)
	resp := APIResponse{Error: err.Error(), Code: code}

	var perr *record.ProtocolError
	var verr *record.ValidationError
	switch {
	case errors.As(err, &perr):
		field := perr.Field
		resp.Detail = &ErrorDetail{Record: perr.Record, Field: &field}
	case errors.As(err, &verr):
		resp.Detail = &ErrorDetail{Record: verr.Record}
	}

	if status == http.StatusInternalServerError {
		log.Error("request failed", "error", err)
	}
	writeResponse(w, status, resp)
}

// classifyError maps device, record and sync errors to a status and code
func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, desktop.ErrDatabaseNotFound),
		errors.Is(err, desktop.ErrRecordNotFound),
		errors.Is(err, desktop.ErrIndexNotFound),
		errors.Is(err, record.ErrUnknownDatabase):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, desktop.ErrRecordExists), errors.Is(err, desktop.ErrDatabaseFull):
		return http.StatusConflict, CodeConflict
	case errors.Is(err, desktop.ErrInvalidRecordID):
		return http.StatusBadRequest, CodeBadRequest
	case record.IsValidationError(err):
		return http.StatusBadRequest, CodeInvalid
	case record.IsProtocolError(err):
		return http.StatusUnprocessableEntity, CodeProtocol
	}
	return http.StatusInternalServerError, CodeInternal
}

func statusErrorCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	case http.StatusUnprocessableEntity:
		return CodeProtocol
	case http.StatusInternalServerError:
		return CodeInternal
	}
	return CodeBadRequest
}

func writeResponse(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
