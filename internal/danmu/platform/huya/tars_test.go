package huya

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTarsIntWidths(t *testing.T) {
	cases := []struct {
		v    int64
		head byte
		size int
	}{
		{0, tarsZeroTag, 1},
		{-1, tarsInt1, 2},
		{127, tarsInt1, 2},
		{128, tarsInt2, 3},
		{math.MaxInt16 + 1, tarsInt4, 5},
		{math.MaxInt32 + 1, tarsInt8, 9},
	}
	for _, c := range cases {
		var w tarsWriter
		w.writeInt64(c.v, 2)
		b := w.Bytes()
		assert.Len(t, b, c.size, "value %d", c.v)
		assert.Equal(t, byte(2<<4)|c.head, b[0], "value %d", c.v)

		st, err := newTarsReader(b).readTop()
		require.NoError(t, err)
		got, err := st.getInt(2, 99)
		require.NoError(t, err)
		assert.Equal(t, c.v, got)
	}
}

func TestTarsStringsAndLargeTags(t *testing.T) {
	long := strings.Repeat("弹", 200)

	var w tarsWriter
	w.writeString("hi", 3)
	w.writeString(long, 20)
	w.writeBytes([]byte{1, 2, 3}, 4)

	b := w.Bytes()
	assert.Equal(t, []byte{0x36, 0x02, 'h', 'i'}, b[:4])

	st, err := newTarsReader(b).readTop()
	require.NoError(t, err)
	s, err := st.getString(3)
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
	s, err = st.getString(20)
	require.NoError(t, err)
	assert.Equal(t, long, s)
	raw, err := st.getBytes(4)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)
}

func TestTarsNestedStruct(t *testing.T) {
	var w tarsWriter
	w.writeStruct(0, func(w *tarsWriter) {
		w.writeInt64(42, 0)
		w.writeStruct(1, func(w *tarsWriter) {
			w.writeString("inner", 0)
		})
	})
	w.writeInt64(7, 1)

	st, err := newTarsReader(w.Bytes()).readTop()
	require.NoError(t, err)
	outer, err := st.getStruct(0)
	require.NoError(t, err)
	v, _ := outer.getInt(0, 0)
	assert.EqualValues(t, 42, v)
	inner, err := outer.getStruct(1)
	require.NoError(t, err)
	s, _ := inner.getString(0)
	assert.Equal(t, "inner", s)
	v, _ = st.getInt(1, 0)
	assert.EqualValues(t, 7, v)
}

func TestTarsListAndMap(t *testing.T) {
	// list<int>{1, 2}, map<string,int>{"a": 1}
	b := []byte{
		0x09, 0x00, 0x02, 0x00, 0x01, 0x00, 0x02,
		0x18, 0x00, 0x01, 0x06, 0x01, 'a', 0x10, 0x01,
	}
	st, err := newTarsReader(b).readTop()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, st[0])
	assert.Equal(t, map[any]any{"a": int64(1)}, st[1])
}

func TestTarsRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"truncated int":     {0x02, 0x00, 0x01},
		"string past end":   {0x06, 0x05, 'a'},
		"negative string4":  {0x07, 0xff, 0xff, 0xff, 0xff},
		"list too long":     {0x09, 0x02, 0x7f, 0xff, 0xff, 0xff},
		"simple list short": {0x1d, 0x00, 0x00, 0x69, 0x00},
		"unknown type":      {0x0e},
		"open struct":       {0x0a, 0x00, 0x01},
		"stray struct end":  {0x0b},
	}
	for name, b := range cases {
		_, err := newTarsReader(b).readTop()
		assert.Error(t, err, name)
	}
}

func TestTarsDepthLimit(t *testing.T) {
	b := make([]byte, 0, 2*(maxTarsDepth+2))
	for i := 0; i < maxTarsDepth+2; i++ {
		b = append(b, 0x0a)
	}
	for i := 0; i < maxTarsDepth+2; i++ {
		b = append(b, 0x0b)
	}
	_, err := newTarsReader(b).readTop()
	assert.ErrorIs(t, err, errTooDeep)
}

func TestTarsTypeMismatch(t *testing.T) {
	var w tarsWriter
	w.writeString("x", 0)
	st, err := newTarsReader(w.Bytes()).readTop()
	require.NoError(t, err)
	_, err = st.getInt(0, 0)
	assert.Error(t, err)
}
