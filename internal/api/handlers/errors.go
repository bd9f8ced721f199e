package handlers

import (
	"errors"
	"net/http"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps the domain error taxonomy to HTTP status codes.
func statusFor(err error) int {
	var (
		transition  *domain.TransitionError
		consistency *domain.ConsistencyViolation
		resolution  *domain.ResolutionFailure
		syncFailure *domain.SyncFailure
		cfgErr      *domain.ConfigurationError
	)

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrOrderBusy),
		errors.Is(err, domain.ErrOrderCompleted),
		errors.As(err, &transition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrReconciliationDataMissing),
		errors.As(err, &consistency),
		errors.As(err, &resolution):
		return http.StatusUnprocessableEntity
	case errors.As(err, &syncFailure), errors.As(err, &cfgErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": err.Error()})
}
