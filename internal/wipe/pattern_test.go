package wipe

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		in   string
		want Pattern
	}{
		{"zero", Pattern{Kind: PatternZero}},
		{"ZEROES", Pattern{Kind: PatternZero}},
		{"ones", Pattern{Kind: PatternOnes, Value: 0xFF}},
		{"random", Pattern{Kind: PatternRandom}},
		{"byte:0x55", Pattern{Kind: PatternByte, Value: 0x55}},
		{"byte:170", Pattern{Kind: PatternByte, Value: 0xAA}},
	}
	for _, tt := range tests {
		got, err := ParsePattern(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "gutmann", "byte:", "byte:0x100"} {
		_, err := ParsePattern(bad)
		assert.Error(t, err, bad)
	}
	assert.Equal(t, "byte:0x55", Pattern{Kind: PatternByte, Value: 0x55}.Name())

	_, err := ParsePattern("byte:0x100")
	assert.ErrorIs(t, err, strconv.ErrRange)
	assert.Contains(t, err.Error(), `invalid byte pattern "byte:0x100"`)

	_, err = ParsePattern("gutmann")
	assert.EqualError(t, err, `unknown pattern "gutmann"`)

	assert.EqualError(t, Pattern{Kind: "mystery"}.Fill(make([]byte, 8), 0), `unknown pattern kind "mystery"`)
}

func TestFixedPatternsFill(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	require.NoError(t, Pattern{Kind: PatternZero}.Fill(buf, 7))
	assert.Equal(t, []byte{0, 0, 0, 0}, buf)

	require.NoError(t, Pattern{Kind: PatternOnes}.Fill(buf, 0))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, buf)

	require.NoError(t, Pattern{Kind: PatternByte, Value: 0x5A}.Fill(buf, 0))
	assert.Equal(t, []byte{0x5A, 0x5A, 0x5A, 0x5A}, buf)
}

func keyedRandom(t *testing.T, seed byte, pass int) Pattern {
	t.Helper()
	var key [32]byte
	for i := range key {
		key[i] = seed + byte(i)
	}
	return Pattern{Kind: PatternRandom}.keyed(key, pass)
}

func TestRandomPatternIsOffsetAddressable(t *testing.T) {
	p := keyedRandom(t, 7, 0)

	const size = 8192
	sequential := make([]byte, size)
	require.NoError(t, p.Fill(sequential, 0))

	for _, off := range []uint64{0, 1, 63, 64, 65, 511, 512, 4000, 8191} {
		for _, n := range []int{1, 7, 64, 100} {
			if off+uint64(n) > size {
				continue
			}
			got := make([]byte, n)
			require.NoError(t, p.Fill(got, off))
			assert.Equal(t, sequential[off:off+uint64(n)], got, "offset %d len %d", off, n)
		}
	}
}

func TestRandomPatternDependsOnKeyAndPass(t *testing.T) {
	a := make([]byte, 256)
	b := make([]byte, 256)
	c := make([]byte, 256)
	require.NoError(t, keyedRandom(t, 1, 0).Fill(a, 0))
	require.NoError(t, keyedRandom(t, 1, 1).Fill(b, 0))
	require.NoError(t, keyedRandom(t, 2, 0).Fill(c, 0))

	assert.False(t, bytes.Equal(a, b), "different passes must not share a keystream")
	assert.False(t, bytes.Equal(a, c))
	assert.False(t, bytes.Equal(a, make([]byte, 256)))
}

func TestRandomPatternOverwritesDirtyBuffer(t *testing.T) {
	p := keyedRandom(t, 3, 0)
	clean := make([]byte, 128)
	require.NoError(t, p.Fill(clean, 1024))

	dirty := bytes.Repeat([]byte{0xEE}, 128)
	require.NoError(t, p.Fill(dirty, 1024))
	assert.Equal(t, clean, dirty)
}

func TestRandomPatternRange(t *testing.T) {
	p := keyedRandom(t, 9, 0)
	buf := make([]byte, 64)
	assert.NoError(t, p.Fill(buf, (1<<38)-64), "last block of the keystream is addressable")
	assert.Error(t, p.Fill(buf, 1<<38))
}
