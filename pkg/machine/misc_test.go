package machine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "nothing", LogNothing.String())
	assert.Equal(t, "nothing", LogLevel(0).String())
	assert.Equal(t, "changes", LogChanges.String())
	assert.Equal(t, "ops", LogOps.String())
	assert.Equal(t, "decisions", LogDecisions.String())
	assert.Equal(t, "everything", LogEverything.String())
	assert.Equal(t, "nothing", LogLevel(99).String())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "external", KindExternal.String())
	assert.Equal(t, "universal", KindUniversal.String())
	assert.Equal(t, "invalid", Kind(0).String())
}

func TestMissingFieldError(t *testing.T) {
	err := &MissingFieldError{Machine: "Foo", Field: "x"}

	assert.ErrorIs(t, err, ErrMissingField)
	assert.Equal(t, "missing required field: Foo.x", err.Error())
}
