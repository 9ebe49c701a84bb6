package command

import (
	"net/http"

	"github.com/goliatone/go-checkout/core"
	goerrors "github.com/goliatone/go-errors"
)

// errMissingDependency reports a handler built without the collaborator it
// needs. It maps to the uniform 500 envelope.
func errMissingDependency(name string) error {
	return goerrors.New("command: "+name+" is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"dependency": name})
}

func errInvalidField(field string, message string) error {
	return goerrors.NewValidation("command: "+field+" is invalid", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorBadInput)
}
