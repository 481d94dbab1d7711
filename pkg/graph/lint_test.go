package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pancsta/machinegen/pkg/spec"
)

func TestLintClean(t *testing.T) {
	for _, m := range []*spec.Machine{door(), universal()} {
		warns, err := Lint(m)
		require.NoError(t, err)
		assert.Empty(t, warns, m.Name)
	}
}

func TestLint(t *testing.T) {
	m := &spec.Machine{
		Name: "Lint",
		States: []spec.State{
			{Name: "A", Initial: true, Fields: []spec.Field{
				{Name: "n", Type: "int"},
			}},
			{Name: "B"},
			{Name: "C"},
			{Name: "D", Terminal: true},
		},
		Events: []spec.Event{
			{Name: "AB", Source: "A", Target: "B", Scope: []string{"n"}},
			{Name: "BD", Source: "B", Target: "D"},
			{Name: "DA", Source: "D", Target: "A"},
			{Name: "CC", Source: "C"},
		},
	}
	require.NoError(t, spec.Validate(m))

	warns, err := Lint(m)
	require.NoError(t, err)
	var lines []string
	for _, w := range warns {
		lines = append(lines, w.String())
	}
	assert.Equal(t, []string{
		"states[2]: state C is unreachable",
		"events[0].scope: scope of external event AB is not bound",
	}, lines)
}

func TestLintTerminal(t *testing.T) {
	m := &spec.Machine{
		Name: "Trap",
		States: []spec.State{
			{Name: "A", Initial: true},
			{Name: "Trap"},
			{Name: "End", Terminal: true},
		},
		Events: []spec.Event{
			{Name: "Fall", Source: "A", Target: "Trap"},
			{Name: "Finish", Source: "A", Target: "End"},
		},
	}

	warns, err := Lint(m)
	require.NoError(t, err)
	require.Len(t, warns, 1)
	assert.Equal(t, Warning{"states[1]",
		"state Trap can't reach terminal state End"}, warns[0])

	// without the finish, the terminal state is unreachable
	m.Events = m.Events[:1]
	warns, err = Lint(m)
	require.NoError(t, err)
	assert.Contains(t, warns, Warning{"states[2]",
		"terminal state End is unreachable"})
	assert.Contains(t, warns, Warning{"states[0]",
		"state A can't reach terminal state End"})
}
