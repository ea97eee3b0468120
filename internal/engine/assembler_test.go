package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/louyanyang/tensorrt-inference-server/internal/testutil"
)

func TestAssemble_SingleChunk(t *testing.T) {
	src := testutil.NewChunkSource().AddInt32s("INPUT", []int32{2, 3, 4})

	buf, err := Assemble(src, "INPUT", 12, nil)
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 3, 4}, decodeInt32s(buf))
}

func TestAssemble_ChunkBoundariesDoNotMatter(t *testing.T) {
	values := []int32{7, -1, 300, 65536, 0}
	want := testutil.EncodeInt32s(values)

	splits := [][]int{
		nil,
		{1},
		{3, 3, 3},
		{4, 4, 4, 4},
		{0, 20},
		{19},
		{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1},
	}

	for _, split := range splits {
		src := testutil.NewChunkSource().AddInt32s("INPUT", values, split...)
		buf, err := Assemble(src, "INPUT", 20, nil)
		require.NoError(t, err, "split %v", split)
		assert.Equal(t, want, buf, "split %v", split)
	}
}

func TestAssemble_SizeHintIsRemainingBytes(t *testing.T) {
	src := testutil.NewChunkSource().AddInt32s("INPUT", []int32{1, 2, 3}, 4, 6)

	_, err := Assemble(src, "INPUT", 12, nil)
	require.NoError(t, err)

	hints := []uint64{}
	for _, r := range src.Requests() {
		hints = append(hints, r.SizeHint)
	}
	assert.Equal(t, []uint64{12, 8, 2, 0}, hints)
}

func TestAssemble_Exceeded(t *testing.T) {
	src := testutil.NewChunkSource().AddInt32s("INPUT", []int32{1, 2, 3}, 4, 4)

	_, err := Assemble(src, "INPUT", 8, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeSizeExceeded))

	// The overflowing chunk is rejected as soon as it arrives.
	assert.Len(t, src.Requests(), 3)
}

func TestAssemble_ShortInputIsMismatch(t *testing.T) {
	src := testutil.NewChunkSource().AddInt32s("INPUT", []int32{1, 2, 3, 4})

	_, err := Assemble(src, "INPUT", 20, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeSizeMismatch))

	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "INPUT", ee.Input)
	assert.Equal(t, -1, ee.Slot)
}

func TestAssemble_HugeExpectedIsMismatch(t *testing.T) {
	src := testutil.NewChunkSource().AddInt32s("INPUT", []int32{1})

	_, err := Assemble(src, "INPUT", uint64(1)<<62, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeSizeMismatch))
}

func TestAssemble_GrowsPastPrealloc(t *testing.T) {
	values := make([]int32, maxPrealloc/int32Size+3)
	for i := range values {
		values[i] = int32(i)
	}
	src := testutil.NewChunkSource().AddInt32s("INPUT", values, 1000, 64000)

	buf, err := Assemble(src, "INPUT", uint64(len(values))*int32Size, nil)
	require.NoError(t, err)
	assert.Equal(t, values, decodeInt32s(buf))
}

func TestAssemble_MissingInputIsMismatch(t *testing.T) {
	_, err := Assemble(testutil.NewChunkSource(), "START", 4, nil)
	assert.True(t, IsCode(err, ErrCodeSizeMismatch))
}

func TestAssemble_ZeroExpected(t *testing.T) {
	buf, err := Assemble(testutil.NewChunkSource(), "INPUT", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, buf)
}

func TestAssemble_SourceFailure(t *testing.T) {
	boom := errors.New("transport closed")
	src := testutil.NewChunkSource().FailOn("READY", boom)

	_, err := Assemble(src, "READY", 4, nil)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeSourceRead))
	assert.ErrorIs(t, err, boom)
}

func TestAssemble_NilSource(t *testing.T) {
	_, err := Assemble(nil, "INPUT", 4, nil)
	assert.True(t, IsCode(err, ErrCodeSourceRead))
}

func TestDecode(t *testing.T) {
	assert.Equal(t, int32(-2), decodeScalar([]byte{0xfe, 0xff, 0xff, 0xff}))
	assert.Equal(t, []int32{1, 256}, decodeInt32s([]byte{1, 0, 0, 0, 0, 1, 0, 0}))
	assert.Empty(t, decodeInt32s(nil))
}
