package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/railzwaylabs/paygate/internal/payment/domain"
)

// APIError is rendered as {"error":{"code":...,"message":...}}.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return e.Code }

var (
	ErrInvalidRequest  = &APIError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "request is malformed"}
	ErrNotFound        = &APIError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}
	ErrPayloadTooLarge = &APIError{Status: http.StatusRequestEntityTooLarge, Code: "payload_too_large", Message: "request body is too large"}
	ErrInternal        = &APIError{Status: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error"}
)

type errorMapping struct {
	err     error
	status  int
	message string
}

var domainErrors = []errorMapping{
	{domain.ErrInvalidSignature, http.StatusUnauthorized, "webhook signature verification failed"},
	{domain.ErrProviderNotFound, http.StatusNotFound, "payment provider not found"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order not found"},
	{domain.ErrTransactionNotFound, http.StatusNotFound, "transaction not found"},
	{domain.ErrInvalidProvider, http.StatusBadRequest, "payment provider is required"},
	{domain.ErrInvalidPayload, http.StatusBadRequest, "payload is not valid"},
	{domain.ErrInvalidEvent, http.StatusBadRequest, "event is missing required fields"},
	{domain.ErrInvalidAmount, http.StatusBadRequest, "amount must be positive"},
	{domain.ErrInvalidCurrency, http.StatusBadRequest, "currency is not valid"},
	{domain.ErrOrderNotPayable, http.StatusConflict, "order cannot accept a new payment"},
	{domain.ErrProviderRequest, http.StatusBadGateway, "payment provider request failed"},
	{domain.ErrInvalidConfig, http.StatusInternalServerError, "payment provider is misconfigured"},
}

func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			return &APIError{Status: m.status, Code: m.err.Error(), Message: m.message}
		}
	}
	return ErrInternal
}

// AbortWithError renders err and stops the handler chain. The original error
// is attached to the context for the request logger.
func AbortWithError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(apiErr.Status, gin.H{"error": apiErr})
}

func invalidRequestError() error {
	return ErrInvalidRequest
}
