package view

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JonMunkholm/editgrid/internal/table"
)

func TestSelection(t *testing.T) {
	s := NewSelection()
	page := []table.Key{"1", "2", "3"}

	assert.True(t, s.Toggle("2"))
	assert.True(t, s.IsSelected("2"))
	assert.False(t, s.AllSelected(page))

	s.SetAll(page, true)
	assert.True(t, s.AllSelected(page))
	assert.Equal(t, 3, s.Count())

	assert.False(t, s.Toggle("1"))
	assert.Equal(t, []table.Key{"2", "3"}, s.Keys())

	s.Retain([]table.Key{"3", "4"})
	assert.Equal(t, []table.Key{"3"}, s.Keys())

	s.SetAll(page, false)
	assert.Zero(t, s.Count())
	assert.False(t, s.AllSelected(nil))

	s.Toggle("9")
	s.Clear()
	assert.Zero(t, s.Count())
}
