package app

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Supported METRICS_EXPORTER values.
const (
	MetricsPrometheus = "prometheus"
	MetricsStdout     = "stdout"
	MetricsNone       = "none"
)

// NewMetricsReader creates the metrics reader named by exporter. For
// prometheus the returned handler serves the scrape endpoint from a registry
// private to this reader; for every other exporter it is nil. "none" returns
// a nil reader.
func NewMetricsReader(exporter string, out io.Writer) (sdkmetric.Reader, http.Handler, error) {
	switch exporter {
	case MetricsPrometheus:
		reg := prometheus.NewRegistry()
		exp, err := otelprom.New(otelprom.WithRegisterer(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exp, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil

	case MetricsStdout:
		if out == nil {
			out = os.Stdout
		}
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(out))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil, nil

	case MetricsNone, "":
		return nil, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown METRICS_EXPORTER %q (supported: prometheus, stdout, none)", exporter)
	}
}

// initMetrics builds the meter provider every counter in the service reports
// to and installs it as the global provider.
func initMetrics(cfg Config) (*sdkmetric.MeterProvider, http.Handler, error) {
	reader, handler, err := NewMetricsReader(cfg.MetricsExporter, nil)
	if err != nil {
		return nil, nil, err
	}

	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "gatekeeper"),
			attribute.String("service.version", BuildVersion),
			attribute.String("deployment.environment", cfg.Env),
		)),
	}
	if reader != nil {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return mp, handler, nil
}
