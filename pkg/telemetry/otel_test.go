package telemetry

import (
	"testing"

	"github.com/samber/lo"
	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pancsta/machinegen/examples/door"
	am "github.com/pancsta/machinegen/pkg/machine"
)

func newTracer(t *testing.T) (*OtelMachTracer, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() {
		_ = provider.Shutdown(t.Context())
	})

	return NewOtelMachTracer(provider.Tracer("test"), &OtelMachTracerOpts{
		Logf: t.Logf,
	}), rec
}

func span(t *testing.T, rec *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	s, ok := lo.Find(rec.Ended(), func(s sdktrace.ReadOnlySpan) bool {
		return s.Name() == name
	})
	require.True(t, ok, "span %s not found", name)

	return s
}

func attr(s sdktrace.ReadOnlySpan, key string) string {
	for _, a := range s.Attributes() {
		if a.Key == attribute.Key(key) {
			return a.Value.AsString()
		}
	}
	return ""
}

func TestTransitions(t *testing.T) {
	tracer, rec := newTracer(t)
	mach := door.Initial(&am.Opts{ID: "door-1", Tracers: []am.Tracer{tracer}})

	require.NoError(t, mach.HandleEvent(&door.OpenEvent{}))
	require.Error(t, mach.HandleEvent(&door.KnockEvent{}))
	require.NoError(t, mach.HandleEvent(&door.CloseEvent{}))
	require.NoError(t, mach.Close())

	open := span(t, rec, "Open")
	assert.Equal(t, "external", attr(open, "kind"))
	assert.Equal(t, "Closed", attr(open, "source"))
	assert.Equal(t, "Opened", attr(open, "target"))

	knock := span(t, rec, "Knock")
	assert.Equal(t, codes.Error, knock.Status().Code)
	assert.Equal(t, "Opened", attr(knock, "target"))

	machSpan := span(t, rec, "mach:door-1")
	assert.Equal(t, "Door", attr(machSpan, "name"))
	assert.Equal(t, "Closed", attr(machSpan, "final"))
	assert.NotEqual(t, codes.Error, machSpan.Status().Code)

	// transitions are nested in the group span
	group := span(t, rec, "transitions")
	assert.Equal(t, group.SpanContext().SpanID(), open.Parent().SpanID())
	assert.Equal(t, machSpan.SpanContext().SpanID(), group.Parent().SpanID())

	assert.Empty(t, tracer.Machines)
}

func TestCloseFailure(t *testing.T) {
	tracer, rec := newTracer(t)
	mach := door.Initial(&am.Opts{ID: "door-2", Tracers: []am.Tracer{tracer}})
	require.NoError(t, mach.HandleEvent(&door.OpenEvent{}))

	require.ErrorIs(t, mach.Close(), am.ErrNotTerminal)
	machSpan := span(t, rec, "mach:door-2")
	assert.Equal(t, codes.Error, machSpan.Status().Code)
	assert.Equal(t, "Opened", attr(machSpan, "final"))
}

func TestEnd(t *testing.T) {
	tracer, rec := newTracer(t)
	_ = door.Initial(&am.Opts{ID: "door-3", Tracers: []am.Tracer{tracer}})
	assert.Len(t, tracer.Machines, 1)

	// unfinished machines get ended
	tracer.End()
	span(t, rec, "mach:door-3")
	assert.Empty(t, tracer.Machines)
}

func TestSkipTransitions(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	tracer := NewOtelMachTracer(provider.Tracer("test"), &OtelMachTracerOpts{
		SkipTransitions: true,
	})
	mach := door.Initial(&am.Opts{ID: "door-4", Tracers: []am.Tracer{tracer}})
	require.NoError(t, mach.HandleEvent(&door.KnockEvent{}))
	require.NoError(t, mach.Close())

	names := lo.Map(rec.Ended(), func(s sdktrace.ReadOnlySpan, _ int) string {
		return s.Name()
	})
	assert.ElementsMatch(t, []string{"transitions", "mach:door-4"}, names)
}

func TestTracerFromEnv(t *testing.T) {
	provider := sdktrace.NewTracerProvider()
	ctx := t.Context()

	tracer, err := tracerFromEnv(ctx, envconfig.MapLookuper(nil), provider, nil)
	require.NoError(t, err)
	assert.Nil(t, tracer)

	tracer, err = tracerFromEnv(ctx, envconfig.MapLookuper(map[string]string{
		EnvOtelTrace: "1",
		EnvService:   "My Service",
	}), provider, nil)
	require.NoError(t, err)
	require.NotNil(t, tracer)
	assert.True(t, tracer.opts.SkipTransitions)

	tracer, err = tracerFromEnv(ctx, envconfig.MapLookuper(map[string]string{
		EnvOtelTrace:    "true",
		EnvOtelTraceTxs: "true",
	}), provider, nil)
	require.NoError(t, err)
	assert.False(t, tracer.opts.SkipTransitions)

	_, err = tracerFromEnv(ctx, envconfig.MapLookuper(map[string]string{
		EnvOtelTrace: "maybe",
	}), provider, nil)
	assert.Error(t, err)
}

func TestNormalizeId(t *testing.T) {
	assert.Equal(t, "my_service_1", NormalizeId("My Service-1"))
}
