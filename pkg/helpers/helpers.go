// Package helpers is a set of useful functions when working with generated
// state machines.
package helpers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	am "github.com/pancsta/machinegen/pkg/machine"
)

// EnvMgTestRunner marks the process as a test runner, which disables debug
// logging via env.
const EnvMgTestRunner = "MG_TEST_RUNNER"

// Debuggable is a machine which logs.
type Debuggable interface {
	Id() string
	SetLoggerSimple(logf func(format string, args ...any), level am.LogLevel)
	SetLogLevel(level am.LogLevel)
	GetLogLevel() am.LogLevel
}

// Handler handles events of type E, like the generated machines do.
type Handler[E any] interface {
	HandleEvent(e E) error
}

// Replay handles events in order and stops at the first error. It returns
// the number of handled events.
func Replay[E any](mach Handler[E], events ...E) (int, error) {
	for i, e := range events {
		if err := mach.HandleEvent(e); err != nil {
			return i, fmt.Errorf("event %d: %w", i, err)
		}
	}

	return len(events), nil
}

// ReplayAll handles all the events, even after a rejection. It returns the
// number of accepted events and all the errors joined.
func ReplayAll[E any](mach Handler[E], events ...E) (int, error) {
	var errs []error
	accepted := 0
	for i, e := range events {
		if err := mach.HandleEvent(e); err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
			continue
		}
		accepted++
	}

	return accepted, errors.Join(errs...)
}

// MachDebug sets the log level of a machine, unless running as a test runner.
func MachDebug(mach Debuggable, logLvl am.LogLevel) {
	if IsTestRunner() {
		return
	}
	mach.SetLogLevel(logLvl)
}

// MachDebugEnv sets up a machine for debugging, based on env vars only:
// MG_LOG and MG_DEBUG. This function should be called right after the
// machine is created. Prefer am.OptsFromEnv during construction, to catch the
// initial action and entry.
func MachDebugEnv(mach Debuggable) {
	config, err := am.ReadEnv(context.Background())
	if err != nil {
		return
	}

	MachDebug(mach, config.Opts().LogLevel)
}

// IsDebug returns true if the process is in simple debug mode.
func IsDebug() bool {
	return os.Getenv(am.EnvMgDebug) != "" && !IsTestRunner()
}

// IsTestRunner returns true when MG_TEST_RUNNER is set.
func IsTestRunner() bool {
	return os.Getenv(EnvMgTestRunner) != ""
}

// SetLogLevel sets the MG_LOG env var to the passed log level. It will affect
// all future machines using MachDebugEnv or am.OptsFromEnv.
func SetLogLevel(level am.LogLevel) {
	_ = os.Setenv(am.EnvMgLog, strconv.Itoa(int(level)))
}

// EnableDebugging sets env vars for verbose logging of all future machines.
func EnableDebugging() {
	_ = os.Setenv(am.EnvMgDebug, "1")
	SetLogLevel(am.LogDecisions)
}

// ///// ///// /////

// ///// RECORDER

// ///// ///// /////

// Recorder is a tracer keeping all the transitions of traced machines.
type Recorder struct {
	am.NoOpTracer

	mx          sync.Mutex
	transitions []am.TransitionInfo
	closed      map[string]error
}

var _ am.Tracer = &Recorder{}

// NewRecorder returns a new, empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{closed: map[string]error{}}
}

func (r *Recorder) TransitionEnd(tx *am.TransitionInfo) {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.transitions = append(r.transitions, *tx)
}

func (r *Recorder) MachineClose(mach am.Api, err error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	r.closed[mach.Id()] = err
}

// Transitions returns all the recorded transitions, in order.
func (r *Recorder) Transitions() []am.TransitionInfo {
	r.mx.Lock()
	defer r.mx.Unlock()

	return append([]am.TransitionInfo{}, r.transitions...)
}

// Events returns event names of recorded transitions, optionally only the
// accepted ones.
func (r *Recorder) Events(acceptedOnly bool) []string {
	var ret []string
	for _, tx := range r.Transitions() {
		if acceptedOnly && !tx.Accepted() {
			continue
		}
		ret = append(ret, tx.Event)
	}

	return ret
}

// CloseResult returns the result of closing a machine. closed is false if it
// hasn't been closed yet.
func (r *Recorder) CloseResult(id string) (closed bool, err error) {
	r.mx.Lock()
	defer r.mx.Unlock()

	err, closed = r.closed[id]
	return closed, err
}
