package spec

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lithammer/dedent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sp(txt string) string {
	return strings.TrimLeft(dedent.Dedent(txt), "\n")
}

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sp(`
		name: Door
		states:
		  - name: Closed
		    initial: true
		    terminal: true
		    fields:
		      - name: knockCount
		        type: uint64
		        default: "0"
		  - name: Opened
		events:
		  - name: Knock
		    source: Closed
		    scope: [knockCount]
		    action: "*knockCount++"
		  - name: Open
		    source: Closed
		    target: Opened
		    action: "*openCount++"
		  - name: Close
		    source: Opened
		    target: Closed
		extended:
		  - name: openCount
		    type: uint64
		    default: "0"
		initialAction: |
		  door.Log("installed")
	`)))
	require.NoError(t, err)

	m.InitialAction = strings.TrimSpace(m.InitialAction)
	assert.Equal(t, door(), m)
}

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(`{"name": "Door",` +
		` "states": [{"name": "Closed", "initial": true}],` +
		` "events": [{"name": "Knock", "source": "Closed"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "Closed", m.InitialState().Name)
	assert.Equal(t, KindInternal, m.Events[0].Kind())
}

func TestParseErrors(t *testing.T) {
	_, err := Parse(nil)
	require.ErrorIs(t, err, ErrParse)
	assert.ErrorContains(t, err, "empty definition")

	_, err = Parse([]byte("name: Door\nstates:\n  - name: A\n    initail: true\n"))
	require.ErrorIs(t, err, ErrParse)
	assert.ErrorContains(t, err, "initail")

	_, err = Parse([]byte("name: [Door"))
	require.ErrorIs(t, err, ErrParse)
}

func TestMarshal(t *testing.T) {
	out, err := Marshal(door())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "name: Door\n"))
	assert.Contains(t, string(out), `default: "0"`)
	assert.Contains(t, string(out), "initial: true")
	assert.NotContains(t, string(out), "typeParams")

	m, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, door(), m)
}

func TestMustParse(t *testing.T) {
	assert.Panics(t, func() {
		MustParse([]byte("name: Door\nstates: []\n"))
	})
	assert.Panics(t, func() {
		MustParse([]byte("nope: 1"))
	})
	assert.NotPanics(t, func() {
		MustParse([]byte("name: D\nstates: [{name: A, initial: true}]\n"))
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.yaml")
	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(valid,
		[]byte("name: D\nstates: [{name: A, initial: true}]\n"), 0o666))
	require.NoError(t, os.WriteFile(invalid,
		[]byte("name: D\nstates: [{name: A}]\n"), 0o666))

	m, err := LoadValid(valid)
	require.NoError(t, err)
	assert.Equal(t, "D", m.Name)

	_, err = Load(invalid)
	require.NoError(t, err)
	_, err = LoadValid(invalid)
	require.ErrorIs(t, err, ErrNoInitial)
	assert.ErrorContains(t, err, invalid)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
