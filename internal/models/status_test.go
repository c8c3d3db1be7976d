package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	t.Run("known statuses", func(t *testing.T) {
		for _, s := range []string{"PENDING", "paid", " Failed "} {
			_, err := ParseStatus(s)
			assert.NoError(t, err, s)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := ParseStatus("SETTLED")
		assert.Error(t, err)
	})
}

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusPaid, StatusFailed}

	// Every distinct pair is a legal transition; reversals included.
	for _, from := range all {
		for _, to := range all {
			if from == to {
				assert.False(t, from.CanTransitionTo(to), "%s -> %s", from, to)
				continue
			}
			assert.True(t, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_IsSettled(t *testing.T) {
	assert.True(t, StatusPaid.IsSettled())
	assert.False(t, StatusPending.IsSettled())
	assert.False(t, StatusFailed.IsSettled())
}
