package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/inbound"
	"github.com/goliatone/go-checkout/providers/stripe"
	"github.com/goliatone/go-checkout/webhooks"
	"github.com/stripe/stripe-go/v81/webhook"
)

const testSecret = "whsec_transport_test"

func TestRouter_EndToEndSignedCheckoutCompletion(t *testing.T) {
	store := &recordingOrderStore{}
	notifier := &recordingNotifier{}
	router := newCheckoutRouter(t, store, notifier, core.HTTPConfig{})

	res := serve(router, signedRequest(t, testSecret, checkoutEvent(t, "evt_e2e", "checkout.session.completed", true)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", res.Code, res.Body.String())
	}
	body := decodeEnvelope(t, res)
	if !body.OK || body.Result == nil {
		t.Fatalf("expected ok envelope with result, got %+v", body)
	}
	if body.Result.EventID != "evt_e2e" || body.Result.Outcome != "paid" || body.Result.OrderID != "o1" {
		t.Fatalf("unexpected result %+v", body.Result)
	}

	if len(store.updates) != 1 {
		t.Fatalf("expected one order update, got %d", len(store.updates))
	}
	update := store.updates[0]
	if update.OrderID != "o1" || update.UserID != "u1" {
		t.Fatalf("unexpected update identity %+v", update)
	}
	shipping := update.ShippingAddress
	if shipping.City != "Cairo" || shipping.Country != "EG" || shipping.PostalCode != "" || shipping.Street != "" || shipping.State != "" {
		t.Fatalf("unexpected shipping address %+v", shipping)
	}
	if shipping.Name != "A B" {
		t.Fatalf("expected shipping name from customer details, got %q", shipping.Name)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].To != "a@b.com" {
		t.Fatalf("expected one confirmation to a@b.com, got %+v", notifier.sent)
	}
}

func TestRouter_RedeliveryIsDedupedByLedger(t *testing.T) {
	store := &recordingOrderStore{}
	notifier := &recordingNotifier{}
	router := newCheckoutRouter(t, store, notifier, core.HTTPConfig{})
	payload := checkoutEvent(t, "evt_dup", "checkout.session.completed", true)

	for i := 0; i < 2; i++ {
		res := serve(router, signedRequest(t, testSecret, payload))
		if res.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, res.Code)
		}
	}
	if len(store.updates) != 1 {
		t.Fatalf("expected redelivery to skip the store, got %d updates", len(store.updates))
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected a single confirmation, got %d", len(notifier.sent))
	}
}

func TestRouter_MissingSignatureIsRejectedWithoutStore(t *testing.T) {
	store := &recordingOrderStore{}
	router := newCheckoutRouter(t, store, &recordingNotifier{}, core.HTTPConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(checkoutEvent(t, "evt_1", "checkout.session.completed", true)))
	res := serve(router, req)
	assertFailure(t, res, http.StatusBadRequest, "Invalid signature")
	if len(store.updates) != 0 {
		t.Fatalf("expected store to be untouched")
	}
}

func TestRouter_InvalidSignatureIsRejected(t *testing.T) {
	store := &recordingOrderStore{}
	router := newCheckoutRouter(t, store, &recordingNotifier{}, core.HTTPConfig{})

	res := serve(router, signedRequest(t, "whsec_someone_else", checkoutEvent(t, "evt_1", "checkout.session.completed", true)))
	assertFailure(t, res, http.StatusBadRequest, "Invalid signature")
	if len(store.updates) != 0 {
		t.Fatalf("expected store to be untouched")
	}
}

func TestRouter_UnhandledEventTypeSucceedsWithoutStore(t *testing.T) {
	store := &recordingOrderStore{}
	router := newCheckoutRouter(t, store, &recordingNotifier{}, core.HTTPConfig{})

	res := serve(router, signedRequest(t, testSecret, checkoutEvent(t, "evt_refund", "charge.refunded", true)))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	body := decodeEnvelope(t, res)
	if !body.OK || body.Result == nil || body.Result.Outcome != "ignored" {
		t.Fatalf("expected ignored outcome, got %+v", body)
	}
	if len(store.updates) != 0 {
		t.Fatalf("expected store to be untouched")
	}
}

func TestRouter_MissingEmailCollapsesToInternalError(t *testing.T) {
	store := &recordingOrderStore{}
	router := newCheckoutRouter(t, store, &recordingNotifier{}, core.HTTPConfig{})

	res := serve(router, signedRequest(t, testSecret, checkoutEvent(t, "evt_no_email", "checkout.session.completed", false)))
	assertFailure(t, res, http.StatusInternalServerError, "Something went wrong")
	if len(store.updates) != 0 {
		t.Fatalf("expected no order mutation")
	}
}

func TestRouter_OrderNotFoundCollapsesToInternalError(t *testing.T) {
	store := &recordingOrderStore{err: core.OrderNotFoundError("o1", nil)}
	notifier := &recordingNotifier{}
	router := newCheckoutRouter(t, store, notifier, core.HTTPConfig{})

	res := serve(router, signedRequest(t, testSecret, checkoutEvent(t, "evt_missing", "checkout.session.completed", true)))
	assertFailure(t, res, http.StatusInternalServerError, "Something went wrong")
	if strings.Contains(res.Body.String(), core.ErrorOrderNotFound) {
		t.Fatalf("expected error taxonomy to stay out of the response body")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no confirmation for missing order")
	}
}

func TestWebhookHandler_UntaggedProcessorErrorIsOpaque(t *testing.T) {
	handler := NewWebhookHandler(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		return core.InboundResult{}, errors.New("db: connection refused on 10.0.0.5")
	}), stripe.ProviderID)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, unverifiedRequest("/api/webhooks", "{}"))
	assertFailure(t, res, http.StatusInternalServerError, "Something went wrong")
	if strings.Contains(res.Body.String(), "10.0.0.5") {
		t.Fatalf("expected internal error detail to be hidden, got %s", res.Body.String())
	}
}

func TestWebhookHandler_PassesRawBodyAndHeaders(t *testing.T) {
	var captured core.InboundRequest
	handler := NewWebhookHandler(processorFunc(func(_ context.Context, req core.InboundRequest) (core.InboundResult, error) {
		captured = req
		return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}), stripe.ProviderID)

	raw := "{\"id\":  \"evt_spacing\"}\n"
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader(raw))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	req.RemoteAddr = "198.51.100.4:5555"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if string(captured.Body) != raw {
		t.Fatalf("expected body bytes to be untouched, got %q", string(captured.Body))
	}
	if captured.Headers["Stripe-Signature"] != "t=1,v1=abc" {
		t.Fatalf("expected signature header to be copied, got %+v", captured.Headers)
	}
	if captured.ProviderID != stripe.ProviderID {
		t.Fatalf("expected provider id %q, got %q", stripe.ProviderID, captured.ProviderID)
	}
	if captured.Metadata["remote_addr"] != "198.51.100.4" {
		t.Fatalf("expected remote address metadata, got %+v", captured.Metadata)
	}
}

func TestWebhookHandler_OversizedBodyIsRejected(t *testing.T) {
	called := false
	handler := NewWebhookHandler(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		called = true
		return core.InboundResult{}, nil
	}), stripe.ProviderID)
	handler.MaxBodyBytes = 8

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, unverifiedRequest("/api/webhooks", "0123456789"))
	assertFailure(t, res, http.StatusBadRequest, "Invalid request body")
	if called {
		t.Fatalf("expected processor not to run for oversized body")
	}
}

func TestWebhookHandler_MissingSignatureLeavesBodyUnread(t *testing.T) {
	called := false
	handler := NewWebhookHandler(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		called = true
		return core.InboundResult{}, nil
	}), stripe.ProviderID)
	handler.MaxBodyBytes = 8

	body := &countingReader{Reader: strings.NewReader(strings.Repeat("x", 4096))}
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", body)
	res := serve(handler, req)
	assertFailure(t, res, http.StatusBadRequest, "Invalid signature")
	if body.read != 0 {
		t.Fatalf("expected body to stay unread, read %d bytes", body.read)
	}
	if called {
		t.Fatalf("expected processor not to run without a signature header")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader("{}"))
	req.Header.Set("stripe-signature", "   ")
	assertFailure(t, serve(handler, req), http.StatusBadRequest, "Invalid signature")
}

func TestRouter_ThrottlesClientsPastLimit(t *testing.T) {
	router, err := NewRouter(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}), stripe.ProviderID, core.HTTPConfig{
		RateLimit: core.RateLimitConfig{Enabled: true, Limit: 1, PeriodSeconds: 60},
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	newReq := func() *http.Request {
		req := unverifiedRequest("/api/webhooks", "{}")
		req.RemoteAddr = "203.0.113.9:4000"
		return req
	}
	if res := serve(router, newReq()); res.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", res.Code)
	}
	res := serve(router, newReq())
	assertFailure(t, res, http.StatusTooManyRequests, "Too many requests")
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
}

func TestRouter_ForwardedHeadersDoNotBypassThrottle(t *testing.T) {
	newRouter := func(trust bool) http.Handler {
		router, err := NewRouter(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
			return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
		}), stripe.ProviderID, core.HTTPConfig{
			RateLimit:         core.RateLimitConfig{Enabled: true, Limit: 1, PeriodSeconds: 60},
			TrustProxyHeaders: trust,
		})
		if err != nil {
			t.Fatalf("new router: %v", err)
		}
		return router
	}
	spoofed := func(forwardedFor string) *http.Request {
		req := unverifiedRequest("/api/webhooks", "{}")
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", forwardedFor)
		req.Header.Set("X-Real-IP", forwardedFor)
		return req
	}

	router := newRouter(false)
	if res := serve(router, spoofed("198.51.100.1")); res.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", res.Code)
	}
	assertFailure(t, serve(router, spoofed("198.51.100.2")), http.StatusTooManyRequests, "Too many requests")

	trusted := newRouter(true)
	if res := serve(trusted, spoofed("198.51.100.1")); res.Code != http.StatusOK {
		t.Fatalf("expected first proxied client to pass, got %d", res.Code)
	}
	if res := serve(trusted, spoofed("198.51.100.2")); res.Code != http.StatusOK {
		t.Fatalf("expected a second proxied client to get its own budget, got %d", res.Code)
	}
}

func TestRouter_CustomPathAndHealth(t *testing.T) {
	metrics := core.NewInMemoryMetricsRecorder()
	router, err := NewRouter(processorFunc(func(context.Context, core.InboundRequest) (core.InboundResult, error) {
		return core.InboundResult{Accepted: true, StatusCode: http.StatusOK}, nil
	}), stripe.ProviderID, core.HTTPConfig{Path: "/hooks/stripe"}, WithMetricsRecorder(metrics))
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	if res := serve(router, unverifiedRequest("/hooks/stripe", "{}")); res.Code != http.StatusOK {
		t.Fatalf("expected custom path to be mounted, got %d", res.Code)
	}
	if res := serve(router, httptest.NewRequest(http.MethodPost, "/api/webhooks", strings.NewReader("{}"))); res.Code != http.StatusNotFound {
		t.Fatalf("expected default path to be unmounted, got %d", res.Code)
	}

	res := serve(router, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", res.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["ok"] != true {
		t.Fatalf("expected ok health, got %+v", health)
	}
	if _, ok := health["counters"]; !ok {
		t.Fatalf("expected counters in health body, got %+v", health)
	}
}

func TestNewRouter_RequiresProcessor(t *testing.T) {
	if _, err := NewRouter(nil, stripe.ProviderID, core.HTTPConfig{}); !core.HasTextCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input, got %v", err)
	}
}

func newCheckoutRouter(t *testing.T, store core.OrderStore, notifier core.Notifier, cfg core.HTTPConfig) http.Handler {
	t.Helper()
	service, err := core.NewService(core.DefaultConfig(),
		core.WithOrderStore(store),
		core.WithNotifier(notifier),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	dispatcher, err := inbound.NewRouter(service)
	if err != nil {
		t.Fatalf("new inbound router: %v", err)
	}
	verifier := stripe.NewWebhookVerifier(stripe.DefaultWebhookConfig(testSecret))
	processor := webhooks.NewProcessor(verifier, webhooks.NewInMemoryDeliveryLedger(), dispatcher)
	router, err := NewRouter(processor, stripe.ProviderID, cfg)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router
}

func checkoutEvent(t *testing.T, eventID string, eventType string, withEmail bool) []byte {
	t.Helper()
	customer := map[string]any{
		"name":    "A B",
		"address": map[string]any{"city": "Alexandria", "country": "EG"},
	}
	if withEmail {
		customer["email"] = "a@b.com"
	}
	payload, err := json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-06-20",
		"created":     time.Now().Unix(),
		"livemode":    false,
		"data": map[string]any{
			"object": map[string]any{
				"id":               "cs_test_1",
				"object":           "checkout.session",
				"customer_details": customer,
				"shipping_details": map[string]any{
					"address": map[string]any{"city": "Cairo", "country": "EG"},
				},
				"metadata": map[string]any{"orderId": "o1", "userId": "u1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signedRequest(t *testing.T, secret string, payload []byte) *http.Request {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks", bytes.NewReader(signed.Payload))
	req.Header.Set(stripe.SignatureHeader, signed.Header)
	return req
}

// unverifiedRequest carries a signature header so it reaches the processor;
// the stubs used with it do not verify.
func unverifiedRequest(path string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(stripe.SignatureHeader, "t=1,v1=stub")
	return req
}

type countingReader struct {
	Reader io.Reader
	read   int
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.read += n
	return n, err
}

func serve(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var body Envelope
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode envelope %q: %v", res.Body.String(), err)
	}
	return body
}

func assertFailure(t *testing.T, res *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if res.Code != status {
		t.Fatalf("expected status %d, got %d body=%s", status, res.Code, res.Body.String())
	}
	body := decodeEnvelope(t, res)
	if body.OK || body.Message != message {
		t.Fatalf("expected failure envelope %q, got %+v", message, body)
	}
	if body.Result != nil {
		t.Fatalf("expected no result on failure, got %+v", body.Result)
	}
}

type processorFunc func(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)

func (f processorFunc) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	return f(ctx, req)
}

type recordingOrderStore struct {
	mu      sync.Mutex
	updates []core.PaymentUpdate
	err     error
}

func (s *recordingOrderStore) UpdateOrderOnPayment(_ context.Context, update core.PaymentUpdate) (core.PaymentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return core.PaymentOutcome{}, s.err
	}
	s.updates = append(s.updates, update)
	paidAt := update.PaidAt
	return core.PaymentOutcome{Order: core.Order{
		ID:        update.OrderID,
		UserID:    update.UserID,
		IsPaid:    true,
		PaidAt:    &paidAt,
		CreatedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}}, nil
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []core.OrderConfirmation
}

func (n *recordingNotifier) SendOrderConfirmation(_ context.Context, confirmation core.OrderConfirmation) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, confirmation)
	return nil
}
