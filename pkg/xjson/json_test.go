package xjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalString(t *testing.T) {
	s := MarshalString(map[string]int{"a": 1})
	assert.Equal(t, `{"a":1}`, s)

	var out map[string]int
	require.NoError(t, UnmarshalString(s, &out))
	assert.Equal(t, 1, out["a"])
}

func TestMarshalUnsupported(t *testing.T) {
	assert.Nil(t, Marshal(make(chan int)))
	assert.Equal(t, "", MarshalString(make(chan int)))
}
