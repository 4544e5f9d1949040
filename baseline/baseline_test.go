package baseline

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadMissingIsEmpty(t *testing.T) {
	paths, err := Read("/nonexistent/baseline")
	assert.NoError(t, err)
	assert.Empty(t, paths)
}

func TestReplaceThenRead(t *testing.T) {
	dir, err := ioutil.TempDir("", "baseline-test")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	path := dir + "/last.local"
	assert.NoError(t, Replace(path, []string{"/data/a/x.ts", "/data/a/y.ts"}))

	paths, err := Read(path)
	assert.NoError(t, err)
	assert.Len(t, paths, 2)
	_, ok := paths["/data/a/x.ts"]
	assert.True(t, ok)

	// replacing again must not leave a partially written file visible
	assert.NoError(t, Replace(path, []string{"/data/a/z.ts"}))
	paths, err = Read(path)
	assert.NoError(t, err)
	assert.Len(t, paths, 1)
	_, ok = paths["/data/a/z.ts"]
	assert.True(t, ok)
}
