package metrics

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// NewMeterProvider builds an SDK meter provider that pushes to the named
// exporter every interval. It returns nil for ExporterNone. The stdout
// exporter writes to w, or os.Stdout when w is nil. Callers must Shutdown the
// provider to flush the last interval.
func NewMeterProvider(ctx context.Context, exporter, endpoint string, interval time.Duration, w io.Writer) (*sdkmetric.MeterProvider, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch exporter {
	case "", ExporterNone:
		return nil, nil
	case ExporterStdout:
		if w == nil {
			w = os.Stdout
		}
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(w))
	case ExporterOTLP:
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpointURL(endpoint))
		}
		exp, err = otlpmetrichttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown metrics exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s metrics exporter: %w", exporter, err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(interval))
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, readerOpts...)),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", MeterName))),
	), nil
}
