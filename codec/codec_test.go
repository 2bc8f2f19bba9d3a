package codec

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUintRoundTripAndOrder(t *testing.T) {
	sizes := []int{1, 2, 3, 4, 8}
	for _, size := range sizes {
		size := size
		t.Run(ElementType(Uint).String(), func(t *testing.T) {
			values := []uint64{0, 1, MaxUint(size) / 2, MaxUint(size)}
			var prev []byte
			for _, v := range values {
				enc, err := EncodeUint(v, size)
				require.NoError(t, err)
				require.Len(t, enc, size)
				assert.Equal(t, v, DecodeUint(enc))
				if prev != nil {
					assert.True(t, bytes.Compare(prev, enc) < 0, "order not preserved for %d", v)
				}
				prev = enc
			}
			_, err := EncodeUint(MaxUint(size)+1, size)
			assert.Error(t, err)
		})
	}
}

func TestIntRoundTripAndOrder(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		size := size
		max := MaxInt(size)
		values := []int64{-max, -1, 0, 1, max}
		var prev []byte
		for _, v := range values {
			enc, err := EncodeInt(v, size)
			require.NoError(t, err)
			require.Len(t, enc, size)
			assert.Equal(t, v, DecodeInt(enc))
			if prev != nil {
				assert.True(t, bytes.Compare(prev, enc) < 0, "order not preserved for %d at size %d", v, size)
			}
			prev = enc
		}
		// the most-negative two's-complement value is explicitly rejected.
		_, err := EncodeInt(-max-1, size)
		assert.Error(t, err)
	}
}

func TestFloatRoundTripAndOrder(t *testing.T) {
	for _, size := range []int{4, 8} {
		size := size
		values := []float64{-1e10, -1.5, -0.0, 0.0, 1.5, 1e10}
		var prev []byte
		for _, v := range values {
			enc, err := EncodeFloat(v, size)
			require.NoError(t, err)
			got := DecodeFloat(enc)
			if size == 4 {
				assert.InDelta(t, v, got, 1e3)
			} else {
				assert.Equal(t, v, got)
			}
			if prev != nil {
				assert.True(t, bytes.Compare(prev, enc) <= 0, "order not preserved for %v at size %d", v, size)
			}
			prev = enc
		}
	}
}

func TestFloatNegativeZeroComparesEqualToZero(t *testing.T) {
	pos, err := EncodeFloat(0.0, 8)
	require.NoError(t, err)
	neg, err := EncodeFloat(math.Copysign(0, -1), 8)
	require.NoError(t, err)
	assert.Equal(t, pos, neg)
}

func TestFloat16StorageRoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1, -1, 2.5, -2.5, 65504, -65504} {
		enc, err := EncodeFloat(v, 2)
		require.NoError(t, err)
		require.Len(t, enc, 2)
		got := DecodeFloat(enc)
		assert.InDelta(t, v, got, 1)
	}
}

func TestCharCopiesVerbatim(t *testing.T) {
	for _, b := range []byte{0, 1, 'a', 0xff} {
		enc := EncodeChar(b)
		require.Len(t, enc, 1)
		assert.Equal(t, b, DecodeChar(enc))
	}
}

func TestZeroEncodesAllZeroForUint(t *testing.T) {
	for _, size := range []int{1, 2, 4, 8} {
		enc, err := EncodeUint(0, size)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, size), enc)
	}
}
