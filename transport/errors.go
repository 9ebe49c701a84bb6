package transport

import (
	"net/http"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

const (
	messageInvalidSignature = "Invalid signature"
	messageInvalidBody      = "Invalid request body"
	messageTooManyRequests  = "Too many requests"
	messageInternal         = "Something went wrong"
)

func transportError(
	message string,
	category goerrors.Category,
	code int,
	metadata map[string]any,
) error {
	return core.NewError(message, category, code, transportTextCode(category), metadata)
}

func transportWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	metadata map[string]any,
) error {
	return core.WrapError(source, category, message, code, transportTextCode(category), metadata)
}

func transportTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorBadInput
	case goerrors.CategoryRateLimit:
		return core.ErrorRateLimited
	case goerrors.CategoryNotFound:
		return core.ErrorNotFound
	default:
		return core.ErrorInternal
	}
}

// responseFor collapses err into the public envelope. Only signature, body
// and throttling failures are distinguishable by the caller; everything else
// shares one opaque 500.
func responseFor(err error) (int, Envelope) {
	switch {
	case core.IsSignatureError(err):
		return http.StatusBadRequest, failure(messageInvalidSignature)
	case core.HasTextCode(err, core.ErrorBadInput) && isBodyError(err):
		return http.StatusBadRequest, failure(messageInvalidBody)
	case core.HasTextCode(err, core.ErrorRateLimited):
		return http.StatusTooManyRequests, failure(messageTooManyRequests)
	default:
		return http.StatusInternalServerError, failure(messageInternal)
	}
}

func isBodyError(err error) bool {
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	stage, _ := rich.Metadata["stage"].(string)
	return stage == stageReadBody
}

func errorCategory(err error) string {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		return string(rich.Category)
	}
	return string(goerrors.CategoryInternal)
}
