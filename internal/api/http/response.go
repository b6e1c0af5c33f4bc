package http

import (
	"encoding/json"
	"net/http"

	"device-loan-backend/internal/domain"
	"device-loan-backend/internal/logger"
)

const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeForbidden       = "FORBIDDEN"
)

type errorBody struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a result code to the HTTP status it is reported with.
func statusFor(code domain.ResultCode, success int) int {
	switch code {
	case domain.CodeSuccess:
		return success
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeValidationError:
		return http.StatusBadRequest
	case domain.CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeResult[T any](w http.ResponseWriter, r *http.Request, res domain.Result[T], success int) {
	writeJSON(w, r, statusFor(res.Code, success), res)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, r, status, errorBody{Success: false, Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnContext(r.Context(), "Failed to write response", "error", err)
	}
}
