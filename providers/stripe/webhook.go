package stripe

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	stripesdk "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const (
	ProviderID      = "stripe"
	SignatureHeader = "Stripe-Signature"

	defaultTolerance = 300 * time.Second
)

// EventTypeCheckoutSessionCompleted mirrors the SDK constant so handlers can
// register without importing stripe-go.
const EventTypeCheckoutSessionCompleted = string(stripesdk.EventTypeCheckoutSessionCompleted)

type WebhookConfig struct {
	Secret                   string
	Tolerance                time.Duration
	IgnoreAPIVersionMismatch bool
}

func DefaultWebhookConfig(secret string) WebhookConfig {
	return WebhookConfig{
		Secret:                   strings.TrimSpace(secret),
		Tolerance:                defaultTolerance,
		IgnoreAPIVersionMismatch: true,
	}
}

func WebhookConfigFrom(cfg core.StripeConfig) WebhookConfig {
	out := DefaultWebhookConfig(cfg.WebhookSecret)
	if cfg.ToleranceSeconds > 0 {
		out.Tolerance = time.Duration(cfg.ToleranceSeconds) * time.Second
	}
	out.IgnoreAPIVersionMismatch = cfg.IgnoreAPIVersionMismatch
	return out
}

type WebhookVerifier struct {
	Secret                   string
	Tolerance                time.Duration
	IgnoreAPIVersionMismatch bool
}

func NewWebhookVerifier(cfg WebhookConfig) WebhookVerifier {
	return WebhookVerifier{
		Secret:                   strings.TrimSpace(cfg.Secret),
		Tolerance:                cfg.Tolerance,
		IgnoreAPIVersionMismatch: cfg.IgnoreAPIVersionMismatch,
	}
}

// Verify checks the Stripe-Signature header against the exact request body.
// A missing header fails before the body is read.
func (v WebhookVerifier) Verify(_ context.Context, req core.InboundRequest) (core.InboundEvent, error) {
	header := headerValue(req.Headers, SignatureHeader)
	if header == "" {
		return core.InboundEvent{}, core.MissingSignatureError(SignatureHeader)
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return core.InboundEvent{}, core.InternalError("providers/stripe: webhook secret is not configured", nil)
	}
	tolerance := v.Tolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}

	event, err := webhook.ConstructEventWithOptions(req.Body, header, secret, webhook.ConstructEventOptions{
		Tolerance:                tolerance,
		IgnoreAPIVersionMismatch: v.IgnoreAPIVersionMismatch,
	})
	if err != nil {
		return core.InboundEvent{}, core.InvalidSignatureError(classifyError(err))
	}

	out := core.InboundEvent{
		ID:         event.ID,
		ProviderID: ProviderID,
		Type:       string(event.Type),
		APIVersion: event.APIVersion,
		Livemode:   event.Livemode,
	}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}
	if event.Data != nil {
		out.Data = append([]byte(nil), event.Data.Raw...)
	}
	return out, nil
}

var (
	errTimestampOutsideTolerance = errors.New("providers/stripe: timestamp outside tolerance")
	errSignatureMismatch         = errors.New("providers/stripe: no valid signature")
	errMalformedHeader           = errors.New("providers/stripe: malformed signature header")
)

func classifyError(err error) error {
	switch {
	case errors.Is(err, webhook.ErrTooOld):
		return errors.Join(errTimestampOutsideTolerance, err)
	case errors.Is(err, webhook.ErrNoValidSignature):
		return errors.Join(errSignatureMismatch, err)
	case errors.Is(err, webhook.ErrInvalidHeader), errors.Is(err, webhook.ErrNotSigned):
		return errors.Join(errMalformedHeader, err)
	default:
		return err
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.EventVerifier = WebhookVerifier{}
