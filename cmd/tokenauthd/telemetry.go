package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/tokenauth"
	otelexport "github.com/MrEthical07/tokenauth/metrics/export/otel"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// startTelemetry registers the engine's counters with an OTel meter provider,
// installs it as the global provider and, every interval, logs the non-zero
// counters collected through it. The returned func stops the loop and shuts
// the provider down.
func startTelemetry(ctx context.Context, engine *tokenauth.Engine, log *slog.Logger, interval time.Duration) (func(context.Context) error, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exporter, err := otelexport.NewOTelExporter(provider.Meter("tokenauthd"), engine)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	otel.SetMeterProvider(provider)

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if interval <= 0 {
			<-loopCtx.Done()
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				var rm metricdata.ResourceMetrics
				if err := reader.Collect(loopCtx, &rm); err != nil {
					log.Warn("metrics collection failed", slog.String("error", err.Error()))
					continue
				}
				if attrs := counterAttrs(rm); len(attrs) > 0 {
					log.LogAttrs(loopCtx, slog.LevelInfo, "auth counters", attrs...)
				}
			}
		}
	}()

	return func(shutdownCtx context.Context) error {
		cancel()
		<-done
		return errors.Join(exporter.Close(), provider.Shutdown(shutdownCtx))
	}, nil
}

// counterAttrs flattens the non-zero monotonic sums in rm into log attrs.
func counterAttrs(rm metricdata.ResourceMetrics) []slog.Attr {
	var attrs []slog.Attr
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || !sum.IsMonotonic {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			if total > 0 {
				attrs = append(attrs, slog.Int64(m.Name, total))
			}
		}
	}
	return attrs
}
