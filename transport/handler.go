package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-checkout/core"
	"github.com/goliatone/go-checkout/providers/stripe"
	"github.com/goliatone/go-checkout/webhooks"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	defaultMaxBodyBytes int64 = 1 << 20 // 1 MiB
	stageReadBody             = "read_body"
)

// WebhookProcessor is the processing surface the HTTP boundary drives.
type WebhookProcessor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error)
}

// WebhookHandler adapts one provider webhook endpoint to a WebhookProcessor.
// When SignatureHeader is set, requests without it are rejected before the
// body is read.
type WebhookHandler struct {
	Processor       WebhookProcessor
	ProviderID      string
	MaxBodyBytes    int64
	SignatureHeader string
	Logger          core.Logger
	MetricsRecorder core.MetricsRecorder
}

var signatureHeaders = map[string]string{
	stripe.ProviderID: stripe.SignatureHeader,
}

func NewWebhookHandler(processor WebhookProcessor, providerID string) *WebhookHandler {
	providerID = strings.TrimSpace(providerID)
	return &WebhookHandler{
		Processor:       processor,
		ProviderID:      providerID,
		MaxBodyBytes:    defaultMaxBodyBytes,
		SignatureHeader: signatureHeaders[providerID],
		Logger:          glog.Nop(),
		MetricsRecorder: core.NopMetricsRecorder{},
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()
	ctx := r.Context()
	fields := map[string]any{
		"provider_id": h.providerID(),
		"remote_addr": ClientKey(r),
	}

	result, err := h.handle(ctx, r)
	if err != nil {
		status, body := responseFor(err)
		fields["http_status"] = status
		fields["text_code"] = core.ErrorTextCode(err)
		fields["category"] = errorCategory(err)
		core.ObserveOperation(ctx, h.logger(), h.metrics(), startedAt, "webhook_http", err, fields)
		h.write(ctx, w, status, body)
		return
	}

	payload := &Result{Outcome: webhooks.OutcomeOf(result)}
	payload.EventID, _ = result.Metadata["event_id"].(string)
	payload.EventType, _ = result.Metadata["event_type"].(string)
	payload.OrderID, _ = result.Metadata["order_id"].(string)
	fields["http_status"] = http.StatusOK
	fields["event_id"] = payload.EventID
	fields["event_type"] = payload.EventType
	fields["outcome"] = payload.Outcome
	core.ObserveOperation(ctx, h.logger(), h.metrics(), startedAt, "webhook_http", nil, fields)
	h.write(ctx, w, http.StatusOK, success(payload))
}

func (h *WebhookHandler) handle(ctx context.Context, r *http.Request) (core.InboundResult, error) {
	if h == nil || h.Processor == nil {
		return core.InboundResult{}, transportError(
			"transport: webhook handler requires a processor",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if header := strings.TrimSpace(h.SignatureHeader); header != "" && strings.TrimSpace(r.Header.Get(header)) == "" {
		return core.InboundResult{}, core.MissingSignatureError(header)
	}
	body, err := readBody(r, h.maxBodyBytes())
	if err != nil {
		return core.InboundResult{}, err
	}
	return h.Processor.Process(ctx, core.InboundRequest{
		ProviderID: h.providerID(),
		Headers:    flattenHeaders(r.Header),
		Body:       body,
		Metadata: map[string]any{
			"remote_addr": ClientKey(r),
			"path":        r.URL.Path,
			"user_agent":  r.UserAgent(),
		},
	})
}

func (h *WebhookHandler) write(ctx context.Context, w http.ResponseWriter, status int, body Envelope) {
	if err := writeJSON(w, status, body); err != nil {
		core.LogWithFields(ctx, h.logger(), "warn", "webhook response write failed", map[string]any{
			"status": status,
			"error":  err.Error(),
		})
	}
}

// readBody returns the exact request bytes; signature verification depends
// on them being untouched.
func readBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return []byte{}, nil
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: read request body",
			http.StatusBadRequest,
			map[string]any{"stage": stageReadBody},
		)
	}
	if int64(len(body)) > limit {
		return nil, transportError(
			"transport: request body exceeds limit",
			goerrors.CategoryBadInput,
			http.StatusRequestEntityTooLarge,
			map[string]any{"stage": stageReadBody, "limit_bytes": limit},
		)
	}
	return body, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

// ClientKey identifies the caller for throttling and logs. It reads
// RemoteAddr, which chi's RealIP middleware rewrites only when proxy headers
// are trusted.
func ClientKey(r *http.Request) string {
	if r == nil {
		return ""
	}
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func (h *WebhookHandler) providerID() string {
	if h == nil {
		return ""
	}
	return strings.TrimSpace(h.ProviderID)
}

func (h *WebhookHandler) maxBodyBytes() int64 {
	if h != nil && h.MaxBodyBytes > 0 {
		return h.MaxBodyBytes
	}
	return defaultMaxBodyBytes
}

func (h *WebhookHandler) logger() core.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return glog.Nop()
}

func (h *WebhookHandler) metrics() core.MetricsRecorder {
	if h != nil && h.MetricsRecorder != nil {
		return h.MetricsRecorder
	}
	return core.NopMetricsRecorder{}
}
