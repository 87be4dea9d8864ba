package effects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellact/cella/deferred"
)

func TestTable_DefaultCapacity(t *testing.T) {
	tbl := NewTable(0)
	assert.Equal(t, DefaultTableCapacity, tbl.Capacity())
}

func TestTable_AddAdvancesCursor(t *testing.T) {
	tbl := NewTable(3)

	for i := 0; i < 3; i++ {
		index, prev := tbl.Add(deferred.New())
		assert.Equal(t, i, index)
		assert.Nil(t, prev)
	}
}

func TestTable_WrapAroundReturnsPreviousOccupant(t *testing.T) {
	tbl := NewTable(2)

	first := deferred.New()
	index, prev := tbl.Add(first)
	assert.Equal(t, 0, index)
	assert.Nil(t, prev)

	tbl.Add(deferred.New())

	// The third allocation reuses slot 0 and surfaces its occupant.
	index, prev = tbl.Add(deferred.New())
	assert.Equal(t, 0, index)
	assert.Same(t, first, prev)
}

func TestTable_ClearFreesSlot(t *testing.T) {
	tbl := NewTable(2)
	d := deferred.New()
	index, _ := tbl.Add(d)

	occupant, err := tbl.Clear(index)
	require.NoError(t, err)
	assert.Same(t, d, occupant)

	occupant, err = tbl.Clear(index)
	require.NoError(t, err)
	assert.Nil(t, occupant)

	got, err := tbl.Get(index)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTable_IndexOutOfRange(t *testing.T) {
	tbl := NewTable(2)

	_, err := tbl.Get(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	_, err = tbl.Clear(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	err = tbl.Set(99, nil)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTable_EvictedHandleRejection(t *testing.T) {
	tbl := NewTable(1)

	first := deferred.New()
	tbl.Add(first)

	second := deferred.New()
	index, prev := tbl.Add(second)
	assert.Equal(t, 0, index)
	require.Same(t, first, prev)

	// The caller-side discipline: reject the displaced, unsettled handle.
	if !prev.Done() {
		prev.Reject(ErrEvicted)
	}
	_, err := first.AwaitTimeout(time.Second)
	assert.ErrorIs(t, err, ErrEvicted)
	assert.False(t, second.Done())
}
