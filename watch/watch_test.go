package watch

import (
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatcherHintsOnFileCreation(t *testing.T) {
	dir, err := ioutil.TempDir("", "watch-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	w, err := New([]string{dir})
	assert.NoError(t, err)
	defer w.Close()

	path := dir + "/new.ts"
	assert.NoError(t, ioutil.WriteFile(path, []byte("x"), 0644))

	select {
	case name := <-w.Hints:
		assert.Equal(t, path, name)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for creation hint")
	}
}

func TestWatcherHintsAreNonBlocking(t *testing.T) {
	dir, err := ioutil.TempDir("", "watch-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	w, err := New([]string{dir})
	assert.NoError(t, err)
	defer w.Close()

	for i := 0; i < 10; i++ {
		assert.NoError(t, ioutil.WriteFile(dir+"/f"+string(rune('a'+i))+".ts", []byte("x"), 0644))
	}

	// the channel must never block the watcher goroutine, regardless
	// of whether the test drains it promptly.
	time.Sleep(200 * time.Millisecond)
}
