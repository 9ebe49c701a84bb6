package stripe

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	stripesdk "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testSecret = "whsec_test_secret"

func signedRequest(t *testing.T, secret string, payload []byte, at time.Time) core.InboundRequest {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: at,
	})
	return core.InboundRequest{
		ProviderID: ProviderID,
		Headers:    map[string]string{"stripe-signature": signed.Header},
		Body:       signed.Payload,
	}
}

func eventPayload(t *testing.T, apiVersion string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_123",
		"object":      "event",
		"type":        "checkout.session.completed",
		"api_version": apiVersion,
		"created":     1700000000,
		"livemode":    false,
		"data": map[string]any{
			"object": map[string]any{
				"id":       "cs_test_1",
				"object":   "checkout.session",
				"metadata": map[string]any{"orderId": "o1", "userId": "u1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func TestWebhookVerifier_AcceptsValidSignature(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig(testSecret))
	req := signedRequest(t, testSecret, eventPayload(t, "2020-08-27"), time.Now())

	event, err := verifier.Verify(context.Background(), req)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "evt_123" || event.Type != EventTypeCheckoutSessionCompleted {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.ProviderID != ProviderID {
		t.Fatalf("expected provider id %q, got %q", ProviderID, event.ProviderID)
	}
	if !event.Created.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("unexpected created %v", event.Created)
	}
	var object map[string]any
	if err := json.Unmarshal(event.Data, &object); err != nil {
		t.Fatalf("decode event data: %v", err)
	}
	if object["id"] != "cs_test_1" {
		t.Fatalf("expected data.object payload, got %#v", object)
	}
}

func TestWebhookVerifier_MissingHeaderFailsFast(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig(testSecret))
	_, err := verifier.Verify(context.Background(), core.InboundRequest{
		ProviderID: ProviderID,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       []byte("not even json"),
	})
	if !core.HasTextCode(err, core.ErrorMissingSignature) {
		t.Fatalf("expected missing signature, got %v", err)
	}
}

func TestWebhookVerifier_RejectsInvalidSignatures(t *testing.T) {
	payload := eventPayload(t, "2020-08-27")
	tests := []struct {
		name string
		req  func() core.InboundRequest
	}{
		{
			name: "wrong secret",
			req: func() core.InboundRequest {
				return signedRequest(t, "whsec_other", payload, time.Now())
			},
		},
		{
			name: "tampered body",
			req: func() core.InboundRequest {
				req := signedRequest(t, testSecret, payload, time.Now())
				req.Body = append([]byte(nil), req.Body...)
				req.Body[len(req.Body)-2] = ' '
				return req
			},
		},
		{
			name: "expired timestamp",
			req: func() core.InboundRequest {
				return signedRequest(t, testSecret, payload, time.Now().Add(-time.Hour))
			},
		},
		{
			name: "malformed header",
			req: func() core.InboundRequest {
				return core.InboundRequest{
					ProviderID: ProviderID,
					Headers:    map[string]string{SignatureHeader: "garbage"},
					Body:       payload,
				}
			},
		},
	}
	verifier := NewWebhookVerifier(DefaultWebhookConfig(testSecret))
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), tc.req())
			if !core.HasTextCode(err, core.ErrorInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}
}

func TestWebhookVerifier_EnforcesAPIVersionWhenConfigured(t *testing.T) {
	cfg := DefaultWebhookConfig(testSecret)
	cfg.IgnoreAPIVersionMismatch = false
	verifier := NewWebhookVerifier(cfg)

	if _, err := verifier.Verify(context.Background(), signedRequest(t, testSecret, eventPayload(t, stripesdk.APIVersion), time.Now())); err != nil {
		t.Fatalf("expected matching api version to pass, got %v", err)
	}
	_, err := verifier.Verify(context.Background(), signedRequest(t, testSecret, eventPayload(t, "2019-01-01"), time.Now()))
	if !core.HasTextCode(err, core.ErrorInvalidSignature) {
		t.Fatalf("expected mismatched api version to be rejected, got %v", err)
	}
}

func TestWebhookVerifier_MissingSecretIsInternal(t *testing.T) {
	verifier := NewWebhookVerifier(DefaultWebhookConfig(""))
	_, err := verifier.Verify(context.Background(), signedRequest(t, testSecret, eventPayload(t, "2020-08-27"), time.Now()))
	if !core.HasTextCode(err, core.ErrorInternal) {
		t.Fatalf("expected internal configuration error, got %v", err)
	}
}

func TestWebhookConfigFrom_AppliesCoreSettings(t *testing.T) {
	cfg := WebhookConfigFrom(core.StripeConfig{WebhookSecret: " whsec_x ", ToleranceSeconds: 60})
	if cfg.Secret != "whsec_x" {
		t.Fatalf("expected trimmed secret, got %q", cfg.Secret)
	}
	if cfg.Tolerance != time.Minute {
		t.Fatalf("expected 1m tolerance, got %s", cfg.Tolerance)
	}
	if cfg.IgnoreAPIVersionMismatch {
		t.Fatalf("expected api version mismatch flag from config")
	}
}
