package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// telemetry bundles the logger and metrics sink shared by the checkout
// components so they report operations the same way.
type telemetry struct {
	logger          Logger
	metricsRecorder MetricsRecorder
}

func (t telemetry) observe(
	ctx context.Context,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	operation = normalizeOperation(operation)
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	elapsed := time.Since(startedAt).Milliseconds()

	contextFields := cloneFields(fields)
	contextFields["operation"] = operation
	contextFields["status"] = status
	contextFields["duration_ms"] = elapsed
	if err != nil {
		contextFields["error"] = err.Error()
		contextFields["text_code"] = ErrorTextCode(err)
	}

	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range []string{"provider_id", "event_type", "outcome"} {
		if value := strings.TrimSpace(fmt.Sprint(contextFields[key])); value != "" && value != "<nil>" {
			tags[key] = value
		}
	}
	if err != nil {
		tags["text_code"] = ErrorTextCode(err)
	}

	t.counter(ctx, "checkout."+operation+".total", 1, tags)
	t.histogram(ctx, "checkout."+operation+".duration_ms", float64(elapsed), tags)

	if err != nil {
		t.log(ctx, "error", operation+" failed", contextFields)
		return
	}
	t.log(ctx, "info", operation+" succeeded", contextFields)
}

func (t telemetry) log(ctx context.Context, level string, message string, fields map[string]any) {
	LogWithFields(ctx, t.logger, level, message, fields)
}

func (t telemetry) counter(ctx context.Context, name string, value int64, tags map[string]string) {
	if t.metricsRecorder == nil {
		return
	}
	t.metricsRecorder.IncCounter(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

func (t telemetry) histogram(ctx context.Context, name string, value float64, tags map[string]string) {
	if t.metricsRecorder == nil {
		return
	}
	t.metricsRecorder.ObserveHistogram(ctx, strings.TrimSpace(name), value, cloneTags(tags))
}

// ObserveOperation records the standard counter, histogram and log line for
// an operation executed outside the Service (processor, transport, workers).
func ObserveOperation(
	ctx context.Context,
	logger Logger,
	recorder MetricsRecorder,
	startedAt time.Time,
	operation string,
	err error,
	fields map[string]any,
) {
	telemetry{logger: logger, metricsRecorder: recorder}.observe(ctx, startedAt, operation, err, fields)
}

// LogWithFields writes message at level, attaching fields through
// FieldsLogger when the logger supports it and as key/value args otherwise.
func LogWithFields(ctx context.Context, logger Logger, level string, message string, fields map[string]any) {
	if logger == nil {
		return
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(cloneFields(fields))
	}
	args := flattenFields(fields)
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "error":
		logger.Error(message, args...)
	case "warn":
		logger.Warn(message, args...)
	case "debug":
		logger.Debug(message, args...)
	default:
		logger.Info(message, args...)
	}
}

func cloneFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return map[string]any{}
	}
	copied := make(map[string]any, len(fields))
	for key, value := range fields {
		copied[key] = value
	}
	return copied
}

func flattenFields(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return args
}

func normalizeOperation(operation string) string {
	operation = strings.TrimSpace(strings.ToLower(operation))
	operation = strings.ReplaceAll(operation, " ", "_")
	operation = strings.ReplaceAll(operation, "-", "_")
	return operation
}
