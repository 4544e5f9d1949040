package lock

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcquireReleaseAndReacquire(t *testing.T) {
	dir, err := ioutil.TempDir("", "lock-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/sender.lock"
	g, err := Acquire(path)
	assert.NoError(t, err)
	assert.NotNil(t, g)

	assert.NoError(t, g.Release())

	g2, err := Acquire(path)
	assert.NoError(t, err)
	assert.NoError(t, g2.Release())
}

func TestAcquireFailsWhileHeld(t *testing.T) {
	dir, err := ioutil.TempDir("", "lock-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/sender.lock"
	g, err := Acquire(path)
	assert.NoError(t, err)
	defer g.Release()

	_, err = Acquire(path)
	assert.Equal(t, ErrAlreadyRunning, err)
}
