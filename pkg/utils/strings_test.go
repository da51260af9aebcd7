package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "hello", TruncateUTF8("hello", 10))
	assert.Equal(t, "hello", TruncateUTF8("hello world", 5))

	// "héllo" — é is two bytes; a cut at byte 2 would split it.
	assert.Equal(t, "h", TruncateUTF8("héllo", 2))
	assert.Equal(t, "hé", TruncateUTF8("héllo", 3))

	// Cutting inside a 3-byte rune backs up to the previous boundary.
	assert.Equal(t, "日", TruncateUTF8("日本語", 5))
	assert.Equal(t, "", TruncateUTF8("日本語", 2))
}

func TestDedup(t *testing.T) {
	out := Dedup([]string{"https://a/", "https://a", "https://b"})
	assert.Equal(t, []string{"https://a", "https://b"}, out)
}
