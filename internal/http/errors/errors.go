package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// errorResponse controla exactamente qué campos se envían al cliente.
type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// WriteError escribe la respuesta HTTP para err. Acepta *AppError, rechazos de
// session y errores genéricos (500). La causa nunca se serializa.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:       appErr.Code,
		Message:    appErr.Message,
		Detail:     appErr.Detail,
		RetryAfter: appErr.RetryAfter,
	}

	if appErr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(appErr.RetryAfter))
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)

	_ = json.NewEncoder(w).Encode(resp)
}
