// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ammerola/clothify-cart/internal/core/domain"
)

// LoginRedirect is where the storefront sends customers without a session.
const LoginRedirect = "/login"

func respondJSON(w http.ResponseWriter, logger *slog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

// statusFor maps the cart error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindRejected:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindNetwork:
		return http.StatusBadGateway
	}
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func errorBody(err error) errorResponse {
	resp := errorResponse{Error: domain.UserMessage(err, http.StatusText(statusFor(err)))}
	var e *domain.Error
	if errors.As(err, &e) {
		resp.Code = e.Code
	}
	if domain.KindOf(err) == domain.KindUnauthenticated {
		resp.Redirect = LoginRedirect
	}
	return resp
}
