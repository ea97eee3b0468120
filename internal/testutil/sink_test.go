package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingSink_Accept(t *testing.T) {
	sink := NewRecordingSink("")

	buf, err := sink.OutputBuffer("OUTPUT", []int64{1, 3}, 4)
	require.NoError(t, err)
	require.Len(t, buf, 4)
	copy(buf, []byte{9, 0, 0, 0})

	v, ok := sink.Int32("OUTPUT")
	assert.True(t, ok)
	assert.Equal(t, int32(9), v)
	assert.Equal(t, []OutputRequest{{Name: "OUTPUT", Shape: []int64{1, 3}, ElementSize: 4}}, sink.Requests())
}

func TestRecordingSink_Decline(t *testing.T) {
	sink := NewRecordingSink(SinkDecline)

	buf, err := sink.OutputBuffer("OUTPUT", []int64{3}, 4)
	require.NoError(t, err)
	assert.Nil(t, buf)

	_, ok := sink.Int32("OUTPUT")
	assert.False(t, ok)
	assert.Len(t, sink.Requests(), 1)
}

func TestRecordingSink_Fail(t *testing.T) {
	sink := NewRecordingSink(SinkFail)

	_, err := sink.OutputBuffer("OUTPUT", []int64{3}, 4)
	assert.ErrorIs(t, err, ErrSinkFailed)
}

func TestRecordingSink_BufferSize(t *testing.T) {
	sink := NewRecordingSink(SinkAccept).WithBufferSize(2)

	buf, err := sink.OutputBuffer("OUTPUT", []int64{3}, 4)
	require.NoError(t, err)
	assert.Len(t, buf, 2)

	_, ok := sink.Int32("OUTPUT")
	assert.False(t, ok)
}

func TestRecordingSink_UnknownMode(t *testing.T) {
	_, err := NewRecordingSink("bogus").OutputBuffer("OUTPUT", nil, 4)
	assert.Error(t, err)
}
