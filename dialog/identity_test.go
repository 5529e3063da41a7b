package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentity_Symmetric(t *testing.T) {
	cases := []struct {
		name           string
		callID, a, b   string
	}{
		{"simple", "call-1", "tagA", "tagB"},
		{"equal tags", "call-2", "same", "same"},
		{"unicode-ish", "call-3", "z-tag", "a-tag"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			forward := Identity(tc.callID, tc.a, tc.b)
			backward := Identity(tc.callID, tc.b, tc.a)
			assert.Equal(t, forward, backward, "id must be symmetric under tag swap")
			assert.Len(t, forward, 8)
		})
	}
}

func TestIdentity_DifferentCallsDiffer(t *testing.T) {
	a := Identity("call-1", "x", "y")
	b := Identity("call-2", "x", "y")
	assert.NotEqual(t, a, b)
}

func TestPendingIdentity(t *testing.T) {
	id, ok := PendingIdentity("call-1", "local", "pending")
	assert.True(t, ok)
	assert.Equal(t, Identity("call-1", "local", "pending"), id)

	_, ok = PendingIdentity("call-1", "local", "")
	assert.False(t, ok)
}

func TestNewAppID(t *testing.T) {
	a := NewAppID()
	b := NewAppID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
