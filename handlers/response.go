package handlers

import (
	"encoding/json"
	"net/http"

	"matchConnectAPI/internal/apperror"
	"matchConnectAPI/internal/logger"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "Internal server error", "code": "INTERNAL_ERROR"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, status int, code, message string) {
	respondWithJSON(w, status, map[string]any{
		"message": message,
		"code":    code,
	})
}

// respondWithAppError maps a service error to its HTTP status and writes
// {message, code} plus any response fields the error carries.
func respondWithAppError(w http.ResponseWriter, err error) {
	appErr, ok := apperror.As(err)
	if !ok || appErr.Code == apperror.CodeInternal {
		respondWithError(w, http.StatusInternalServerError, apperror.CodeInternal, "Internal server error")
		return
	}

	body := make(map[string]any, len(appErr.Meta)+2)
	for k, v := range appErr.Meta {
		body[k] = v
	}
	body["message"] = appErr.Message
	body["code"] = appErr.Code

	respondWithJSON(w, statusFor(appErr.Code), body)
}

func statusFor(code string) int {
	switch code {
	case apperror.CodeSelfRequest, apperror.CodeValidation:
		return http.StatusBadRequest
	case apperror.CodeUnauthorized:
		return http.StatusUnauthorized
	case apperror.CodeForbidden:
		return http.StatusForbidden
	case apperror.CodeNotFound:
		return http.StatusNotFound
	case apperror.CodeDuplicateActive, apperror.CodeInvalidTransition:
		return http.StatusConflict
	case apperror.CodeQuotaExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
