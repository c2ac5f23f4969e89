package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/MrEthical07/tokenauth"
	"github.com/MrEthical07/tokenauth/account"
	"github.com/MrEthical07/tokenauth/refresh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestCounterAttrsKeepsNonZeroMonotonicSums(t *testing.T) {
	rm := metricdata.ResourceMetrics{ScopeMetrics: []metricdata.ScopeMetrics{{
		Metrics: []metricdata.Metrics{
			{Name: "tokenauth_login_success_total", Data: metricdata.Sum[int64]{
				IsMonotonic: true,
				DataPoints:  []metricdata.DataPoint[int64]{{Value: 3}},
			}},
			{Name: "tokenauth_logout_total", Data: metricdata.Sum[int64]{
				IsMonotonic: true,
				DataPoints:  []metricdata.DataPoint[int64]{{Value: 0}},
			}},
			{Name: "tokenauth_verify_latency_count", Data: metricdata.Gauge[int64]{
				DataPoints: []metricdata.DataPoint[int64]{{Value: 9}},
			}},
		},
	}}}

	attrs := counterAttrs(rm)
	require.Len(t, attrs, 1)
	assert.Equal(t, "tokenauth_login_success_total", attrs[0].Key)
	assert.Equal(t, int64(3), attrs[0].Value.Int64())
}

func TestStartTelemetryInstallsGlobalProvider(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	cfg := tokenauth.DefaultConfig()
	cfg.Tokens.AccessSecret = []byte("access-secret-0123456789abcdef0123456789")
	cfg.Tokens.RefreshSecret = []byte("refresh-secret-0123456789abcdef012345678")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	engine, err := tokenauth.New().
		WithConfig(cfg).
		WithAccounts(account.NewMemoryStore()).
		WithRefreshTokens(refresh.NewMemoryStore()).
		WithMetricsEnabled(true).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	stop, err := startTelemetry(context.Background(), engine, log, 0)
	require.NoError(t, err)
	_, installed := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, installed)
	require.NoError(t, stop(context.Background()))
}
