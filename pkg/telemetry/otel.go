// Package telemetry provides OpenTelemetry tracing of machines.
package telemetry

import (
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	am "github.com/pancsta/machinegen/pkg/machine"
)

// OtelMachTracer implements machine.Tracer for OpenTelemetry.
// Support tracing of multiple state machines.
type OtelMachTracer struct {
	Tracer        trace.Tracer
	Machines      map[string]*OtelMachineData
	MachinesMx    sync.Mutex
	MachinesOrder []string
	Logf          func(format string, args ...any)

	opts  *OtelMachTracerOpts
	ended bool
}

var _ am.Tracer = &OtelMachTracer{}

type OtelMachineData struct {
	ID    string
	Lock  sync.Mutex
	Ended bool

	machTrace context.Context
	txTrace   context.Context
	// group trace for all the transitions
	txGroup context.Context
}

type OtelMachTracerOpts struct {
	// if true, only machines will be traced
	SkipTransitions bool
	Logf            func(format string, args ...any)
}

// NewOtelMachTracer creates a new machine tracer from an OpenTelemetry tracer.
// Requires OtelMachTracer.End to be called at the end.
func NewOtelMachTracer(tracer trace.Tracer, opts *OtelMachTracerOpts,
) *OtelMachTracer {
	if tracer == nil {
		panic("nil tracer")
	}
	if opts == nil {
		opts = &OtelMachTracerOpts{}
	}
	otel := &OtelMachTracer{
		Tracer:   tracer,
		Machines: make(map[string]*OtelMachineData),
		opts:     opts,
	}
	if opts.Logf != nil {
		otel.Logf = opts.Logf
	} else {
		otel.Logf = func(format string, args ...any) {}
	}
	otel.Logf("[otel] NewOtelMachTracer")

	return otel
}

func (ot *OtelMachTracer) getMachineData(id string) *OtelMachineData {
	ot.MachinesMx.Lock()
	defer ot.MachinesMx.Unlock()

	if data, ok := ot.Machines[id]; ok {
		return data
	}
	data := &OtelMachineData{ID: id}
	if !ot.ended {
		ot.Logf("[otel] getMachineData: creating for %s", id)
		ot.Machines[id] = data
		ot.MachinesOrder = append(ot.MachinesOrder, id)
	}

	return data
}

func (ot *OtelMachTracer) MachineInit(mach am.Api) {
	if ot.ended {
		return
	}

	// create a machine trace
	machCtx, _ := ot.Tracer.Start(context.Background(), "mach:"+mach.Id(),
		trace.WithAttributes(
			attribute.String("id", mach.Id()),
			attribute.String("name", mach.Name()),
			attribute.String("initial", mach.StateName()),
		))

	ot.Logf("[otel] MachineInit: trace %s", mach.Id())
	data := ot.getMachineData(mach.Id())
	data.machTrace = machCtx

	// create a group span for transitions
	txGroupCtx, txGroupSpan := ot.Tracer.Start(machCtx, "transitions",
		trace.WithAttributes(attribute.String("mach_id", mach.Id())))
	data.txGroup = txGroupCtx
	// groups are only for nesting, so end it right away
	txGroupSpan.End()
}

func (ot *OtelMachTracer) TransitionStart(tx *am.TransitionInfo) {
	if ot.ended || ot.opts.SkipTransitions {
		return
	}
	data := ot.getMachineData(tx.Machine.Id())
	if data.Ended || data.txGroup == nil {
		ot.Logf("[otel] TransitionStart: machine %s not traced", tx.Machine.Id())
		return
	}

	ctx, _ := ot.Tracer.Start(data.txGroup, tx.Event, trace.WithAttributes(
		attribute.String("kind", tx.Kind.String()),
		attribute.String("source", tx.Source),
		attribute.String("target", tx.Target),
	), trace.WithTimestamp(tx.Start))
	data.txTrace = ctx
}

func (ot *OtelMachTracer) TransitionEnd(tx *am.TransitionInfo) {
	if ot.ended {
		return
	}
	data := ot.getMachineData(tx.Machine.Id())
	if data.Ended || data.txTrace == nil {
		return
	}
	span := trace.SpanFromContext(data.txTrace)
	data.txTrace = nil

	if tx.Err != nil {
		span.SetStatus(codes.Error, tx.Err.Error())
		span.SetAttributes(attribute.String("error", tx.Err.Error()))
	}
	span.End(trace.WithTimestamp(tx.End))
}

func (ot *OtelMachTracer) MachineClose(mach am.Api, err error) {
	ot.MachinesMx.Lock()
	defer ot.MachinesMx.Unlock()

	data, ok := ot.Machines[mach.Id()]
	if !ok {
		ot.Logf("[otel] MachineClose: machine %s not found", mach.Id())
		return
	}
	if err != nil {
		span := trace.SpanFromContext(data.machTrace)
		span.SetStatus(codes.Error, err.Error())
	}
	trace.SpanFromContext(data.machTrace).SetAttributes(
		attribute.String("final", mach.StateName()))
	ot.dispose(mach.Id())
}

func (ot *OtelMachTracer) dispose(id string) {
	data, ok := ot.Machines[id]
	if !ok {
		return
	}
	ot.Logf("[otel] dispose: %s", id)
	data.Lock.Lock()
	defer data.Lock.Unlock()

	delete(ot.Machines, id)
	ot.MachinesOrder = lo.Without(ot.MachinesOrder, id)
	data.Ended = true

	if data.txTrace != nil {
		trace.SpanFromContext(data.txTrace).End()
	}
	trace.SpanFromContext(data.machTrace).End()
}

// End ends all the remaining machine spans. The tracer is unusable
// afterwards.
func (ot *OtelMachTracer) End() {
	ot.MachinesMx.Lock()
	defer ot.MachinesMx.Unlock()

	for _, id := range slices.Clone(ot.MachinesOrder) {
		ot.dispose(id)
	}
	ot.ended = true
}
