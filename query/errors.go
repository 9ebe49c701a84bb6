package query

import (
	"net/http"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

func errMissingDependency(name string) error {
	return goerrors.New("query: "+name+" is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"dependency": name})
}

func errInvalidField(field string, message string) error {
	return goerrors.NewValidation("query: "+field+" is invalid", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}
