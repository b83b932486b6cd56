package handler

import (
	"errors"
	"net/http"

	"halaqa-points-api/internal/logger"
	"halaqa-points-api/internal/middleware"
	"halaqa-points-api/internal/service"
	"halaqa-points-api/pkg/apierror"
	"halaqa-points-api/pkg/response"
)

// writeServiceError maps the service error taxonomy onto API errors.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierror.Error
	switch {
	case errors.As(err, &apiErr):
	case errors.Is(err, service.ErrInsufficientFunds):
		apiErr = apierror.InsufficientFunds("")
	case errors.Is(err, service.ErrAlreadyOwned):
		apiErr = apierror.AlreadyOwned("")
	case errors.Is(err, service.ErrNotFound):
		apiErr = apierror.NotFound("Ledger not found")
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidSlot),
		errors.Is(err, service.ErrInvalidItem):
		apiErr = apierror.BadRequest(err.Error())
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		apiErr = apierror.Unauthorized(err.Error())
	case errors.Is(err, service.ErrTransientStoreFailure):
		logger.Warn("[Handler] %s %s req=%s: %v", r.Method, r.URL.Path, middleware.GetRequestID(r.Context()), err)
		apiErr = apierror.ServiceUnavailable("Ledger is busy, please retry")
	default:
		logger.Error("[Handler] %s %s req=%s: %v", r.Method, r.URL.Path, middleware.GetRequestID(r.Context()), err)
		apiErr = apierror.InternalError("")
	}
	response.Error(w, apiErr)
}
