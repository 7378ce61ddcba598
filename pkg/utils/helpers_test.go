package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInt64(t *testing.T) {
	n, ok := ParseInt64(" 42 ")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = ParseInt64("abc")
	assert.False(t, ok)

	_, ok = ParseInt64("")
	assert.False(t, ok)
}

func TestParseIntDefault(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 100},
		{"25", 25},
		{"-1", 100},
		{"x", 100},
		{"5000", 1000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIntDefault(tt.in, 100, 1000), tt.in)
	}
}

func TestField(t *testing.T) {
	rec := []string{"1", " Amy "}
	assert.Equal(t, "Amy", Field(rec, 1))
	assert.Equal(t, "", Field(rec, 3))
}
