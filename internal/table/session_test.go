package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditSessions(t *testing.T) {
	e := NewEditSessions()

	e.StartEditing("b", true)
	e.StartEditing("a", true)
	assert.Equal(t, []Key{"a", "b"}, e.Keys())

	e.StartEditing("c", false)
	assert.Equal(t, []Key{"c"}, e.Keys())

	e.StartEditingAll([]Key{"x", "y"})
	assert.Equal(t, 3, e.ActiveCount())

	e.StopEditing("x")
	assert.False(t, e.IsEditing("x"))
	assert.True(t, e.IsEditing("y"))

	e.Clear()
	assert.Zero(t, e.ActiveCount())
	assert.Empty(t, e.Keys())
}
