package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const DefaultEnvPrefix = "CHECKOUT_"

type envKind int

const (
	envString envKind = iota
	envInt
	envBool
)

type envBinding struct {
	name string
	path []string
	kind envKind
}

var envBindings = []envBinding{
	{name: "SERVICE_NAME", path: []string{"service_name"}},
	{name: "STRIPE_WEBHOOK_SECRET", path: []string{"stripe", "webhook_secret"}},
	{name: "STRIPE_TOLERANCE_SECONDS", path: []string{"stripe", "tolerance_seconds"}, kind: envInt},
	{name: "STRIPE_IGNORE_API_VERSION_MISMATCH", path: []string{"stripe", "ignore_api_version_mismatch"}, kind: envBool},
	{name: "NOTIFICATION_DRIVER", path: []string{"notification", "driver"}},
	{name: "NOTIFICATION_API_KEY", path: []string{"notification", "api_key"}},
	{name: "NOTIFICATION_FROM", path: []string{"notification", "from"}},
	{name: "NOTIFICATION_SUBJECT", path: []string{"notification", "subject"}},
	{name: "NOTIFICATION_FAIL_ON_ERROR", path: []string{"notification", "fail_on_error"}, kind: envBool},
	{name: "STORE_DRIVER", path: []string{"store", "driver"}},
	{name: "STORE_DSN", path: []string{"store", "dsn"}},
	{name: "STORE_DEBUG", path: []string{"store", "debug"}, kind: envBool},
	{name: "HTTP_ADDRESS", path: []string{"http", "address"}},
	{name: "HTTP_PATH", path: []string{"http", "path"}},
	{name: "HTTP_MAX_BODY_BYTES", path: []string{"http", "max_body_bytes"}, kind: envInt},
	{name: "HTTP_TRUST_PROXY_HEADERS", path: []string{"http", "trust_proxy_headers"}, kind: envBool},
	{name: "HTTP_RATE_LIMIT_ENABLED", path: []string{"http", "rate_limit", "enabled"}, kind: envBool},
	{name: "HTTP_RATE_LIMIT_LIMIT", path: []string{"http", "rate_limit", "limit"}, kind: envInt},
	{name: "HTTP_RATE_LIMIT_PERIOD_SECONDS", path: []string{"http", "rate_limit", "period_seconds"}, kind: envInt},
}

// EnvConfigLoader reads CHECKOUT_* variables into the nested raw map consumed
// by CfgxConfigProvider. Unset variables are omitted.
type EnvConfigLoader struct {
	Prefix string
	Lookup func(string) (string, bool)
}

func NewEnvConfigLoader() EnvConfigLoader {
	return EnvConfigLoader{Prefix: DefaultEnvPrefix, Lookup: os.LookupEnv}
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := l.Prefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	raw := map[string]any{}
	for _, binding := range envBindings {
		name := prefix + binding.name
		value, ok := lookup(name)
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		var typed any = value
		switch binding.kind {
		case envInt:
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("core: %s must be an integer: %w", name, err)
			}
			typed = parsed
		case envBool:
			parsed, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("core: %s must be a boolean: %w", name, err)
			}
			typed = parsed
		}
		setPath(raw, binding.path, typed)
	}
	return raw, nil
}

func setPath(target map[string]any, path []string, value any) {
	current := target
	for _, key := range path[:len(path)-1] {
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
	current[path[len(path)-1]] = value
}

var _ RawConfigLoader = EnvConfigLoader{}
