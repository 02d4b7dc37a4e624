package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/fpconsole"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Backend API metrics
	APIRequestsTotal metric.Int64Counter
	APIErrorsTotal   metric.Int64Counter
	APIRetriesTotal  metric.Int64Counter
	APIDuration      metric.Float64Histogram

	// Session metrics
	SessionLoginsTotal        metric.Int64Counter
	SessionInvalidationsTotal metric.Int64Counter
	SessionCorruptTotal       metric.Int64Counter

	// Guard metrics
	GuardRedirectsTotal metric.Int64Counter

	// Console metrics
	ActiveWorkspaces      metric.Int64UpDownCounter
	LoginRateLimitedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.APIRequestsTotal, _ = meter.Int64Counter(
		"fpconsole.api.requests.total",
		metric.WithDescription("Total number of backend API requests issued"),
		metric.WithUnit("{request}"),
	)

	m.APIErrorsTotal, _ = meter.Int64Counter(
		"fpconsole.api.errors.total",
		metric.WithDescription("Total number of backend API requests that failed, by kind"),
		metric.WithUnit("{error}"),
	)

	m.APIRetriesTotal, _ = meter.Int64Counter(
		"fpconsole.api.retries.total",
		metric.WithDescription("Total number of retries of transient backend failures"),
		metric.WithUnit("{retry}"),
	)

	m.APIDuration, _ = meter.Float64Histogram(
		"fpconsole.api.duration",
		metric.WithDescription("Duration of backend API requests including retries"),
		metric.WithUnit("ms"),
	)

	m.SessionLoginsTotal, _ = meter.Int64Counter(
		"fpconsole.session.logins.total",
		metric.WithDescription("Total number of successful logins"),
		metric.WithUnit("{login}"),
	)

	m.SessionInvalidationsTotal, _ = meter.Int64Counter(
		"fpconsole.session.invalidations.total",
		metric.WithDescription("Total number of sessions cleared by logout, refresh failure or unauthorized responses"),
		metric.WithUnit("{session}"),
	)

	m.SessionCorruptTotal, _ = meter.Int64Counter(
		"fpconsole.session.corrupt.total",
		metric.WithDescription("Total number of persisted session records discarded as unreadable"),
		metric.WithUnit("{record}"),
	)

	m.GuardRedirectsTotal, _ = meter.Int64Counter(
		"fpconsole.guard.redirects.total",
		metric.WithDescription("Total number of navigations redirected by the route guard"),
		metric.WithUnit("{redirect}"),
	)

	m.ActiveWorkspaces, _ = meter.Int64UpDownCounter(
		"fpconsole.console.workspaces.active",
		metric.WithDescription("Number of live console workspaces"),
		metric.WithUnit("{workspace}"),
	)

	m.LoginRateLimitedTotal, _ = meter.Int64Counter(
		"fpconsole.console.login_rate_limited.total",
		metric.WithDescription("Total number of login attempts rejected by the rate limiter"),
		metric.WithUnit("{attempt}"),
	)

	return m
}
