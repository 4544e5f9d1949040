package config

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRequiresReceiverAndDataDirs(t *testing.T) {
	_, err := Parse([]string{})
	assert.Error(t, err)
}

func TestParseDataDirsAndGroups(t *testing.T) {
	dir, err := ioutil.TempDir("", "tsyncd-config")
	assert.NoError(t, err)
	defer os.RemoveAll(dir)

	groupsPath := dir + "/groups.yml"
	err = ioutil.WriteFile(groupsPath, []byte("groups:\n  /data/a: group_a\n  /data/b: group_b\n"), 0644)
	assert.NoError(t, err)

	cfg, err := Parse([]string{
		"-receiver=127.0.0.1:7777",
		"-datadirs=/data/a,/data/b",
		"-groups=" + groupsPath,
	})
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.ReceiverHost)
	assert.Equal(t, 7777, cfg.ReceiverPort)
	assert.Equal(t, []DataDir{{Path: "/data/a", Group: "group_a"}, {Path: "/data/b", Group: "group_b"}}, cfg.DataDirs)
	assert.Equal(t, defaultMaxSyncFileTry, cfg.MaxSyncFileTry)
}

func TestParseRejectsMalformedReceiverAddr(t *testing.T) {
	_, err := Parse([]string{
		"-receiver=not-a-host-port",
		"-datadirs=/data/a",
	})
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a,b,c"))
	assert.Nil(t, splitCSV(""))
}
