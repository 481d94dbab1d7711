package telemetry

import (
	"context"
	"regexp"
	"strings"

	"github.com/sethvargo/go-envconfig"
	"go.opentelemetry.io/otel/trace"
)

const (
	// EnvService is the service name used for the tracer's name.
	EnvService = "MG_SERVICE"
	// EnvOtelTrace enables OpenTelemetry tracing of machines.
	EnvOtelTrace = "MG_OTEL_TRACE"
	// EnvOtelTraceTxs enables tracing of transitions, not only machines.
	EnvOtelTraceTxs = "MG_OTEL_TRACE_TXS"
)

// Config is the env configuration of tracing.
type Config struct {
	Service  string `env:"MG_SERVICE, default=machinegen"`
	Trace    bool   `env:"MG_OTEL_TRACE, default=false"`
	TraceTxs bool   `env:"MG_OTEL_TRACE_TXS, default=false"`
}

func readEnv(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	config := &Config{}
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   config,
		Lookuper: l,
	})
	if err != nil {
		return nil, err
	}

	return config, nil
}

// everything else than a-z and _
var normalizeRegexp = regexp.MustCompile("[^a-z_0-9]+")

func NormalizeId(id string) string {
	return normalizeRegexp.ReplaceAllString(strings.ToLower(id), "_")
}

// TracerFromEnv creates an OtelMachTracer based on environment vars:
// - MG_OTEL_TRACE (required)
// - MG_OTEL_TRACE_TXS
// - MG_SERVICE
// Returns nil when tracing is disabled. The tracer has to be passed via
// machine.Opts.Tracers and ended with OtelMachTracer.End.
func TracerFromEnv(
	ctx context.Context, provider trace.TracerProvider,
	logf func(format string, args ...any),
) (*OtelMachTracer, error) {
	return tracerFromEnv(ctx, envconfig.OsLookuper(), provider, logf)
}

func tracerFromEnv(
	ctx context.Context, l envconfig.Lookuper, provider trace.TracerProvider,
	logf func(format string, args ...any),
) (*OtelMachTracer, error) {
	config, err := readEnv(ctx, l)
	if err != nil || !config.Trace {
		return nil, err
	}

	tracer := provider.Tracer(NormalizeId(config.Service))
	return NewOtelMachTracer(tracer, &OtelMachTracerOpts{
		SkipTransitions: !config.TraceTxs,
		Logf:            logf,
	}), nil
}
