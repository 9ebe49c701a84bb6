package core

import (
	stderrors "errors"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func TestErrorConstructors_AssignStableCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		textCode string
		status   int
		category goerrors.Category
	}{
		{"missing signature", MissingSignatureError("Stripe-Signature"), ErrorMissingSignature, http.StatusBadRequest, goerrors.CategoryBadInput},
		{"invalid signature", InvalidSignatureError(stderrors.New("bad mac")), ErrorInvalidSignature, http.StatusBadRequest, goerrors.CategoryAuth},
		{"missing email", MissingCustomerEmailError("cs_1"), ErrorMissingCustomerEmail, http.StatusInternalServerError, goerrors.CategoryValidation},
		{"invalid metadata", InvalidOrderMetadataError("cs_1", "orderId"), ErrorInvalidOrderMetadata, http.StatusInternalServerError, goerrors.CategoryValidation},
		{"order not found", OrderNotFoundError("o1", nil), ErrorOrderNotFound, http.StatusNotFound, goerrors.CategoryNotFound},
		{"store failure", StoreFailureError(stderrors.New("tx aborted"), "o1"), ErrorStoreFailure, http.StatusInternalServerError, goerrors.CategoryOperation},
		{"notification failure", NotificationFailureError(stderrors.New("timeout"), "o1"), ErrorNotificationFailure, http.StatusBadGateway, goerrors.CategoryExternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var rich *goerrors.Error
			if !goerrors.As(tc.err, &rich) {
				t.Fatalf("expected go-errors type, got %T", tc.err)
			}
			if rich.TextCode != tc.textCode {
				t.Fatalf("expected text code %s, got %s", tc.textCode, rich.TextCode)
			}
			if rich.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rich.Code)
			}
			if rich.Category != tc.category {
				t.Fatalf("expected category %s, got %s", tc.category, rich.Category)
			}
		})
	}
}

func TestErrorTextCode_DefaultsToInternal(t *testing.T) {
	if got := ErrorTextCode(stderrors.New("plain")); got != ErrorInternal {
		t.Fatalf("expected internal text code for plain error, got %s", got)
	}
	if got := ErrorTextCode(nil); got != "" {
		t.Fatalf("expected empty text code for nil, got %s", got)
	}
}

func TestIsSignatureError(t *testing.T) {
	if !IsSignatureError(MissingSignatureError("Stripe-Signature")) {
		t.Fatalf("expected missing signature to be a signature error")
	}
	if !IsSignatureError(InvalidSignatureError(nil)) {
		t.Fatalf("expected invalid signature to be a signature error")
	}
	if IsSignatureError(StoreFailureError(nil, "o1")) {
		t.Fatalf("expected store failure not to be a signature error")
	}
}

func TestIsTagged_OnlyCountsCheckoutCodes(t *testing.T) {
	if !IsTagged(OrderNotFoundError("o1", nil)) {
		t.Fatalf("expected checkout error to be tagged")
	}
	if IsTagged(stderrors.New("plain")) {
		t.Fatalf("expected plain error not to be tagged")
	}
	foreign := goerrors.New("duplicate row", goerrors.CategoryConflict).WithTextCode("DUPLICATE_KEY")
	if IsTagged(foreign) {
		t.Fatalf("expected foreign text code not to count as tagged")
	}
}
