package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFireEvent_LegalTransitions(t *testing.T) {
	cases := []struct {
		from  Status
		event string
		want  Status
	}{
		{StatusInit, eventRecvProvisional, StatusProceedingUAC},
		{StatusInit, eventRecvAccept, StatusAcceptedUAC},
		{StatusAcceptedUAC, eventLocalAckConfirm, StatusConfirmed},
		{StatusConfirmed, eventSendBye, StatusBye},
		{StatusConfirmed, eventNewInviteFromConfirm, StatusProceedingUAC},
		{StatusProceedingUAC, eventRecvTerminate, StatusStop},
	}
	for _, tc := range cases {
		got, err := fireEvent(tc.from, tc.event)
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestFireEvent_IllegalTransition(t *testing.T) {
	_, err := fireEvent(StatusInit, eventSendBye)
	assert.ErrorIs(t, err, ErrInvalidDialog)
}

// TestFireEvent_StopIsTerminal covers P2 at the event-firing layer: once a
// dialog is in StatusStop, firing any event returns ErrFinished rather than
// a new status.
func TestFireEvent_StopIsTerminal(t *testing.T) {
	_, err := fireEvent(StatusStop, eventRecvTerminate)
	assert.ErrorIs(t, err, ErrFinished)
}
