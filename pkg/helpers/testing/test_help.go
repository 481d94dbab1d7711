// Package testing provides testing helpers for generated state machines using
// testify.
package testing

import (
	"context"
	"errors"
	stdtest "testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amhelp "github.com/pancsta/machinegen/pkg/helpers"
	am "github.com/pancsta/machinegen/pkg/machine"
)

// Stateful is a machine exposing its current state.
type Stateful[S am.StateID] interface {
	StateID() S
}

// MachDebug redirects the machine's logs to t.Logf with the passed log
// level.
func MachDebug(t *stdtest.T, mach amhelp.Debuggable, logLvl am.LogLevel) {
	mach.SetLoggerSimple(t.Logf, logLvl)
}

// MachDebugEnv redirects the machine's logs to t.Logf, based on env vars
// only: MG_LOG and MG_DEBUG.
func MachDebugEnv(t *stdtest.T, mach amhelp.Debuggable) {
	config, err := am.ReadEnv(context.Background())
	require.NoError(t, err)

	MachDebug(t, mach, config.Opts().LogLevel)
}

// OptsEnv returns machine options with logs redirected to t.Logf, based on
// MG_LOG and MG_DEBUG.
func OptsEnv(t *stdtest.T) *am.Opts {
	opts, err := am.OptsFromEnv(context.Background())
	require.NoError(t, err)
	opts.Logger = func(_ am.LogLevel, msg string, args ...any) {
		t.Logf(msg, args...)
	}

	return opts
}

// AssertIs asserts that the machine is in the given state.
func AssertIs[S am.StateID](t *stdtest.T, mach Stateful[S], state S) {
	assert.Equal(t, state, mach.StateID(), "%s expected", state)
}

// AssertNot asserts that the machine is not in the given state.
func AssertNot[S am.StateID](t *stdtest.T, mach Stateful[S], state S) {
	assert.NotEqual(t, state, mach.StateID(), "%s not expected", state)
}

// AssertWrongState asserts that err is a rejection of event while in
// current.
func AssertWrongState(t *stdtest.T, err error, event, current string) {
	var wrong *am.WrongStateError
	if !assert.ErrorAs(t, err, &wrong) {
		return
	}
	assert.ErrorIs(t, err, am.ErrWrongState)
	assert.Equal(t, event, wrong.Event)
	assert.Equal(t, current, wrong.Current)
}

// AssertReplay handles all the events and requires all of them to be
// accepted.
func AssertReplay[E any](t *stdtest.T, mach amhelp.Handler[E], events ...E) {
	n, err := amhelp.Replay(mach, events...)
	require.NoError(t, err, "handled %d/%d", n, len(events))
}

// AssertClose asserts a clean close of the machine.
func AssertClose(t *stdtest.T, mach interface{ Close() error }) {
	err := mach.Close()
	if errors.Is(err, am.ErrNotTerminal) {
		t.Fatalf("closed in a non-terminal state: %s", err)
	}
	assert.NoError(t, err)
}
