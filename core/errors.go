package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const textCodePrefix = "CHECKOUT_"

const (
	ErrorMissingSignature     = "CHECKOUT_MISSING_SIGNATURE"
	ErrorInvalidSignature     = "CHECKOUT_INVALID_SIGNATURE"
	ErrorInvalidPayload       = "CHECKOUT_INVALID_PAYLOAD"
	ErrorMissingCustomerEmail = "CHECKOUT_MISSING_CUSTOMER_EMAIL"
	ErrorInvalidOrderMetadata = "CHECKOUT_INVALID_ORDER_METADATA"
	ErrorOrderNotFound        = "CHECKOUT_ORDER_NOT_FOUND"
	ErrorStoreFailure         = "CHECKOUT_STORE_FAILURE"
	ErrorNotificationFailure  = "CHECKOUT_NOTIFICATION_FAILURE"
	ErrorDeliveryExhausted    = "CHECKOUT_DELIVERY_EXHAUSTED"
	ErrorBadInput             = "CHECKOUT_BAD_INPUT"
	ErrorConflict             = "CHECKOUT_CONFLICT"
	ErrorNotFound             = "CHECKOUT_NOT_FOUND"
	ErrorRateLimited          = "CHECKOUT_RATE_LIMITED"
	ErrorInternal             = "CHECKOUT_INTERNAL_ERROR"
)

func NewError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func WrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) *goerrors.Error {
	if source == nil {
		return NewError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func MissingSignatureError(header string) error {
	return NewError(
		"core: missing signature",
		goerrors.CategoryBadInput,
		http.StatusBadRequest,
		ErrorMissingSignature,
		map[string]any{"header": strings.TrimSpace(header)},
	)
}

func InvalidSignatureError(cause error) error {
	return WrapError(
		cause,
		goerrors.CategoryAuth,
		"core: invalid signature",
		http.StatusBadRequest,
		ErrorInvalidSignature,
		nil,
	)
}

func InvalidPayloadError(cause error, eventID string) error {
	return WrapError(
		cause,
		goerrors.CategoryBadInput,
		"core: event payload could not be decoded",
		http.StatusInternalServerError,
		ErrorInvalidPayload,
		map[string]any{"event_id": eventID},
	)
}

func MissingCustomerEmailError(sessionID string) error {
	return NewError(
		"core: missing customer email",
		goerrors.CategoryValidation,
		http.StatusInternalServerError,
		ErrorMissingCustomerEmail,
		map[string]any{"session_id": sessionID},
	)
}

func InvalidOrderMetadataError(sessionID string, missing ...string) error {
	metadata := map[string]any{"session_id": sessionID}
	if len(missing) > 0 {
		metadata["missing"] = append([]string(nil), missing...)
	}
	return NewError(
		"core: invalid order metadata",
		goerrors.CategoryValidation,
		http.StatusInternalServerError,
		ErrorInvalidOrderMetadata,
		metadata,
	)
}

func OrderNotFoundError(orderID string, cause error) error {
	return WrapError(
		cause,
		goerrors.CategoryNotFound,
		"core: order not found",
		http.StatusNotFound,
		ErrorOrderNotFound,
		map[string]any{"order_id": orderID},
	)
}

func StoreFailureError(cause error, orderID string) error {
	return WrapError(
		cause,
		goerrors.CategoryOperation,
		"core: order store write failed",
		http.StatusInternalServerError,
		ErrorStoreFailure,
		map[string]any{"order_id": orderID},
	)
}

func NotificationFailureError(cause error, orderID string) error {
	return WrapError(
		cause,
		goerrors.CategoryExternal,
		"core: order confirmation delivery failed",
		http.StatusBadGateway,
		ErrorNotificationFailure,
		map[string]any{"order_id": orderID},
	)
}

func BadInputError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput, metadata)
}

// DeliveryExhaustedError reports an event whose processing attempts ran out
// without success. It maps to 500 so the provider keeps the event visible as
// failed instead of treating it as delivered.
func DeliveryExhaustedError(lastError string, metadata map[string]any) error {
	message := "webhooks: event delivery exhausted its attempts"
	if lastError != "" {
		message += ": " + lastError
	}
	return NewError(message, goerrors.CategoryOperation, http.StatusInternalServerError, ErrorDeliveryExhausted, metadata)
}

func ConflictError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryConflict, http.StatusConflict, ErrorConflict, metadata)
}

func NotFoundError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound, metadata)
}

func RateLimitedError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryRateLimit, http.StatusTooManyRequests, ErrorRateLimited, metadata)
}

func InternalError(message string, metadata map[string]any) error {
	return NewError(message, goerrors.CategoryInternal, http.StatusInternalServerError, ErrorInternal, metadata)
}

// ErrorTextCode returns the taxonomy tag carried by err, or ErrorInternal for
// untagged errors.
func ErrorTextCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.TextCode) != "" {
		return rich.TextCode
	}
	return ErrorInternal
}

// IsTagged reports whether err carries one of the CHECKOUT_* text codes.
// Envelopes produced by other go-errors users do not count.
func IsTagged(err error) bool {
	var rich *goerrors.Error
	return err != nil && goerrors.As(err, &rich) && strings.HasPrefix(strings.TrimSpace(rich.TextCode), textCodePrefix)
}

func HasTextCode(err error, textCode string) bool {
	return err != nil && ErrorTextCode(err) == textCode
}

func IsSignatureError(err error) bool {
	code := ErrorTextCode(err)
	return code == ErrorMissingSignature || code == ErrorInvalidSignature
}

func IsOrderNotFound(err error) bool {
	return HasTextCode(err, ErrorOrderNotFound)
}
