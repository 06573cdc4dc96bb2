package config

import (
	"github.com/abgdnv/catalog/internal/source"
	"github.com/abgdnv/catalog/pkg/messaging"
)

// Defaults are the lowest priority configuration values. They describe a
// service that serves products.json from the working directory with NATS,
// tracing and token verification disabled.
func Defaults() map[string]any {
	return map[string]any{
		"server.port":               8080,
		"server.maxheaderbytes":     1 << 20,
		"server.timeout.read":       "5s",
		"server.timeout.write":      "0s",
		"server.timeout.idle":       "2m",
		"server.timeout.readheader": "2s",

		"grpc.port":       "50051",
		"grpc.reflection": true,

		"catalog.source":         source.KindFile,
		"catalog.path":           "products.json",
		"catalog.fetchtimeout":   "10s",
		"catalog.reloadinterval": "0s",

		"filter.debouncewindow": "300ms",
		"filter.sessionttl":     "30m",
		"filter.maxsessions":    10000,
		"filter.memosize":       128,

		"database.timeout":  "10s",
		"database.maxconns": 4,

		"log.level":        "info",
		"log.format":       "json",
		"shutdown.timeout": "10s",

		"nats.timeout":            "5s",
		"nats.name":               "catalog",
		"subscriber.stream":       "CATALOG",
		"subscriber.subject":      messaging.ProductsChangedSubject,
		"subscriber.consumer":     "catalog-reloader",
		"subscriber.batch":        1,
		"subscriber.timeout":      "5s",
		"subscriber.interval":     "1s",
		"subscriber.workers":      1,
		"subscriber.createstream": true,

		"telemetry.traces.otlphttp.timeout": "5s",
		"telemetry.traces.sampleratio":      1.0,
		"telemetry.metrics.enabled":         true,
		"telemetry.metrics.path":            "/metrics",

		"idp.mininterval": "1m",

		"resilience.retry.maxattempts":                  3,
		"resilience.retry.initialbackoff":               "100ms",
		"resilience.circuitbreaker.consecutivefailures": 5,
		"resilience.circuitbreaker.errorratepercent":    60,
		"resilience.circuitbreaker.opentimeout":         "30s",
	}
}
