package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashString(t *testing.T) {
	hash := HashString("visitor@example.com")
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashString("visitor@example.com"))
	assert.NotEqual(t, hash, HashString("Visitor@example.com"), "hashing is case sensitive")
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "v****@example.com", MaskEmail("visitor@example.com"))
	assert.Equal(t, "****", MaskEmail("not-an-email"))
	assert.Equal(t, "****", MaskEmail("@example.com"))
}
