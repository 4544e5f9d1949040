package errs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesCause(t *testing.T) {
	err := Wrapf(DigestMismatch, "file %s", "A.ts")
	assert.True(t, Is(err, DigestMismatch))
	assert.False(t, Is(err, IOError))
	assert.Contains(t, err.Error(), "A.ts")
}
