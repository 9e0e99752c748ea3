// Package metric provides Prometheus-based metrics collection for the
// CacheStream runtime.
//
// The package offers a centralized metrics registry managing both core runtime
// metrics (cache request outcomes, transport health) and component-specific
// metrics registered through the Registrar interface. An optional HTTP server
// exposes metrics in Prometheus format.
//
// Core metrics are registered automatically when a registry is created;
// components add their own under a "component.metric" key that guards against
// duplicate registration.
package metric
