package historystore

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilStoreInsertAndCloseAreNoops(t *testing.T) {
	var s *Store
	err := s.Insert(CycleOutcome{
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Err:       errors.New("aborted"),
	})
	assert.NoError(t, err)
	assert.NoError(t, s.Close())
}

func TestOpenWithEmptyDSNIsDisabled(t *testing.T) {
	s, err := Open("")
	assert.NoError(t, err)
	assert.Nil(t, s)
}
