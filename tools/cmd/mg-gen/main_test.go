package main

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pancsta/machinegen/tools/generator/cli"
	"github.com/pancsta/machinegen/tools/visualizer"
)

func TestCheckFile(t *testing.T) {
	report, invalid := checkFile("testdata/door.yaml")
	assert.False(t, invalid)
	assert.Equal(t, "testdata/door.yaml: OK\n", report)

	report, invalid = checkFile("testdata/invalid.yaml")
	assert.True(t, invalid)
	assert.Contains(t, report, "error: states[1]")
	assert.Contains(t, report, "duplicate state")
	assert.Contains(t, report, "unknown target state")

	report, invalid = checkFile("testdata/stuck.yaml")
	assert.False(t, invalid)
	assert.Contains(t, report, "warning: states[2]: terminal state C is unreachable")
	assert.Contains(t, report, "can't reach terminal state C")

	_, invalid = checkFile("testdata/missing.yaml")
	assert.True(t, invalid)
}

func TestRenderAll(t *testing.T) {
	out := filepath.Join(t.TempDir(), "door.dot")
	p := cli.Params{
		Files: []string{"testdata/door.yaml", "testdata/stuck.yaml"},
		Out:   out,
		Mode:  visualizer.HideDefaults,
	}
	require.NoError(t, renderAll(context.Background(), p, false))

	dot, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(dot), `digraph "Door" {`)
	assert.Contains(t, string(dot), `digraph "Stuck" {`)
	assert.NotContains(t, string(dot), "knockCount : uint64 = 0")

	p.Files = []string{"testdata/invalid.yaml"}
	assert.Error(t, renderAll(context.Background(), p, true))
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "door.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: Door\n"), 0o666))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var changes atomic.Int32
	done := make(chan error)
	go func() {
		done <- watch(ctx, []string{file}, func(path string) {
			changes.Add(1)
		})
	}()

	// other files are ignored
	assert.Eventually(t, func() bool {
		_ = os.WriteFile(filepath.Join(dir, "other.yaml"), nil, 0o666)
		_ = os.WriteFile(file, []byte("name: Door2\n"), 0o666)
		return changes.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("watch didn't stop")
	}
}
