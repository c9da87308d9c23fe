package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	apperrors "github.com/jrsteele09/campus-market/internal/errors"
	"github.com/pkg/errors"
)

const maxJSONBodyBytes = 1 << 20

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Error string         `json:"error"`
	Code  apperrors.Code `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// writeAuthError classifies err and writes its user-facing message with the
// status that matches its code.
func writeAuthError(w http.ResponseWriter, err error) {
	authErr := apperrors.Classify(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(authStatus(authErr.Code))
	_ = json.NewEncoder(w).Encode(errorResponse{Error: authErr.Message, Code: authErr.Code})
}

func authStatus(code apperrors.Code) int {
	switch code {
	case apperrors.CodeInvalidInput, apperrors.CodeInvalidEmail, apperrors.CodeWeakPassword:
		return http.StatusBadRequest
	case apperrors.CodeInvalidCredentials, apperrors.CodeSessionExpired:
		return http.StatusUnauthorized
	case apperrors.CodeUserNotFound:
		return http.StatusNotFound
	case apperrors.CodeUserAlreadyExists:
		return http.StatusConflict
	case apperrors.CodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.CodeNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.Wrap(err, "[decodeJSON] decode request body")
	}
	return nil
}

// redirectWithError sends the browser to path with the message in the error query parameter.
func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}
