package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/smithy-go"
	"github.com/ikkim/storefront-cart/internal/app/service"
	"github.com/ikkim/storefront-cart/internal/cart"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrorInfo is the client-facing form of an error.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

// ParseError classifies err into a status, code and message. Driver
// details never reach the message. context names the failed operation,
// e.g. "add item".
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Status:  http.StatusInternalServerError,
			Code:    InternalServerError,
			Message: "Something went wrong",
		}
	}

	// 1. Cart domain errors
	switch {
	case errors.Is(err, service.ErrOwnerRequired):
		return ErrorInfo{Status: http.StatusUnauthorized, Code: CartOwnerMissing, Message: "No cart owner could be resolved for this request"}
	case errors.Is(err, service.ErrUnpricedProduct):
		return ErrorInfo{Status: http.StatusUnprocessableEntity, Code: CartUnpricedProduct, Message: "This product has no price and cannot be added to the cart"}
	case errors.Is(err, cart.ErrMalformedAction):
		return ErrorInfo{Status: http.StatusBadRequest, Code: CartMalformedAction, Message: "The cart action payload is malformed"}
	}

	// 2. Timeouts and cancellation
	if isTimeout(err) {
		return ErrorInfo{
			Status:  http.StatusGatewayTimeout,
			Code:    InternalTimeout,
			Message: fmt.Sprintf("Timed out while trying to %s", contextOrDefault(context)),
		}
	}

	// 3. Storage backends
	if isStorageError(err) {
		return ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    CartStorageFailure,
			Message: "Cart storage is temporarily unavailable. Please try again shortly",
		}
	}

	// 4. Network errors by message
	errLower := strings.ToLower(err.Error())
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "broken pipe") {
		return ErrorInfo{
			Status:  http.StatusServiceUnavailable,
			Code:    InternalExternalAPI,
			Message: "A backing service could not be reached. Please try again shortly",
		}
	}

	// 5. Fallback
	return ErrorInfo{
		Status:  http.StatusInternalServerError,
		Code:    InternalServerError,
		Message: fmt.Sprintf("Failed to %s. Please try again shortly", contextOrDefault(context)),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func isStorageError(err error) bool {
	if errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, redis.ErrClosed) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return true
	}
	var redisErr redis.Error
	return errors.As(err, &redisErr)
}

func contextOrDefault(context string) string {
	if context == "" {
		return "process the request"
	}
	return context
}
