package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_FindUpdateRemove(t *testing.T) {
	s := NewStore()

	_, ok := s.Find("missing")
	assert.False(t, ok)

	d := &Dialog{ID: "d1", Status: StatusInit, LocalSeq: 1}
	require.NoError(t, s.Update(d))

	got, ok := s.Find("d1")
	require.True(t, ok)
	assert.Equal(t, StatusInit, got.Status)

	s.Remove("d1")
	_, ok = s.Find("d1")
	assert.False(t, ok)
}

// TestStore_TerminalIsFinal covers P2: once a dialog is stopped, further
// updates are rejected rather than silently applied.
func TestStore_TerminalIsFinal(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Update(&Dialog{ID: "d1", Status: StatusStop, LocalSeq: 5}))

	err := s.Update(&Dialog{ID: "d1", Status: StatusConfirmed, LocalSeq: 6})
	assert.ErrorIs(t, err, ErrFinished)

	got, _ := s.Find("d1")
	assert.Equal(t, StatusStop, got.Status)
}

// TestStore_LocalSeqMonotonic covers P3: LocalSeq never decreases across
// updates to the same dialog.
func TestStore_LocalSeqMonotonic(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Update(&Dialog{ID: "d1", Status: StatusConfirmed, LocalSeq: 10}))
	require.NoError(t, s.Update(&Dialog{ID: "d1", Status: StatusConfirmed, LocalSeq: 3}))

	got, _ := s.Find("d1")
	assert.Equal(t, uint32(10), got.LocalSeq)
}

func TestStore_Len(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Update(&Dialog{ID: "a", Status: StatusInit}))
	require.NoError(t, s.Update(&Dialog{ID: "b", Status: StatusInit}))
	assert.Equal(t, 2, s.Len())
}
