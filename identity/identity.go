// Package identity implements the sender's Identity Store: a stable
// 128-bit token, rendered as 32 lowercase hex characters, persisted on
// first run. Grounded on DataTransferManager.getOrCreateUUID in the
// original Java sender.
package identity

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/tsreplica/sender/errs"
)

// GetOrCreate returns the identity at path, creating one if the file
// does not yet exist. It never rotates an existing identity.
func GetOrCreate(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return create(path)
		}
		return "", errs.Wrapf(errs.IOError, "reading identity file %s", path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", errs.Wrapf(errs.IOError, "identity file %s is empty", path)
	}
	return scanner.Text(), nil
}

func create(path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", errs.Wrapf(errs.IOError, "creating identity directory for %s", path)
	}

	id, err := generate()
	if err != nil {
		return "", errs.Wrapf(errs.IOError, "generating identity")
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errs.Wrapf(errs.IOError, "creating identity file %s", path)
	}
	defer f.Close()

	if _, err := f.WriteString(id); err != nil {
		return "", errs.Wrapf(errs.IOError, "writing identity file %s", path)
	}
	return id, nil
}

func generate() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
