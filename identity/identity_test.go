package identity

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrCreateIsStable(t *testing.T) {
	dir, err := ioutil.TempDir("", "identity-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/sender.uuid"
	first, err := GetOrCreate(path)
	assert.NoError(t, err)
	assert.Len(t, first, 32)

	second, err := GetOrCreate(path)
	assert.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGetOrCreateRotatesAfterDelete(t *testing.T) {
	dir, err := ioutil.TempDir("", "identity-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/sender.uuid"
	first, err := GetOrCreate(path)
	assert.NoError(t, err)

	assert.NoError(t, os.Remove(path))

	second, err := GetOrCreate(path)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
}
