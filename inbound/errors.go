package inbound

import (
	"net/http"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	return core.WrapError(source, category, message, code, textCode, metadata)
}

func inboundBadInput(message string, metadata map[string]any) error {
	return core.BadInputError(message, metadata)
}

func inboundInternal(message string, metadata map[string]any) error {
	return core.InternalError(message, metadata)
}

// handlerFailure keeps tagged handler errors intact so their taxonomy
// survives to the transport boundary.
func handlerFailure(err error, eventType string) error {
	if core.IsTagged(err) {
		return err
	}
	return inboundWrapError(
		err,
		goerrors.CategoryOperation,
		"inbound: handler execution failed",
		http.StatusInternalServerError,
		core.ErrorInternal,
		map[string]any{"event_type": eventType},
	)
}
