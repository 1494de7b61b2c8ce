package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPagination_ClientModeNeverNotifies(t *testing.T) {
	p := NewPagination(10, ModeClient)

	assert.False(t, p.SetPage(2))
	notify, err := p.SetPageSize(20)
	require.NoError(t, err)
	assert.False(t, notify)
	assert.Equal(t, PaginationState{PageIndex: 2, PageSize: 20, Mode: ModeClient}, p.State())

	assert.Equal(t, 3, p.PageCount(41))
	assert.Equal(t, 0, p.PageCount(0))
	assert.False(t, p.CanNext(41))
	assert.True(t, p.CanPrevious())
}

func TestPagination_ServerMode(t *testing.T) {
	p := NewPagination(0, ModeServer)
	assert.Equal(t, DefaultPageSize, p.State().PageSize)

	assert.True(t, p.SetPage(1))
	assert.False(t, p.SetPage(1))
	assert.True(t, p.SetPage(-3))
	assert.Equal(t, 0, p.State().PageIndex)

	notify, err := p.SetPageSize(20)
	require.NoError(t, err)
	assert.True(t, notify)

	_, err = p.SetPageSize(0)
	assert.ErrorIs(t, err, ErrInvalidPageSize)

	p.SetPageCount(4)
	assert.Equal(t, 4, p.PageCount(1000), "host count wins in server mode")
	assert.True(t, p.CanNext(0))
}

func TestPagination_SetMode(t *testing.T) {
	p := NewPagination(10, ModeClient)
	p.SetPage(5)

	assert.True(t, p.SetMode(ModeServer))
	assert.Equal(t, 0, p.State().PageIndex)
	assert.False(t, p.SetMode(ModeServer))

	p.SetPageCount(9)
	assert.False(t, p.SetMode(ModeClient))
	assert.Zero(t, p.State().PageCount)
}
