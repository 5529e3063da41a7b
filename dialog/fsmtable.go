package dialog

import (
	"errors"

	"github.com/looplab/fsm"
)

// Named events fired against the per-call *fsm.FSM. uac.go decides which of
// these to fire for a given incoming response or locally originated
// request; this file only encodes which transitions are legal, mirroring
// the split arzzra-soft_phone's dialog.go draws between its fsm.Events
// table and its own method/status-code dispatch.
const (
	eventRecvProvisional       = "recv_provisional"
	eventRecvAccept            = "recv_accept"
	eventLocalAckConfirm       = "local_ack_confirm"
	eventRecvRejectUnanswered  = "recv_reject_unanswered"
	eventRecvRejectAnswered    = "recv_reject_answered"
	eventSendBye               = "send_bye"
	eventRecvTerminate         = "recv_terminate"
	eventNewInviteFromConfirm  = "new_invite_from_confirmed"
)

// fsmEvents is the shared legal-transition table for every Dialog. It is
// rebuilt per call (newDialogFSM) rather than held inside Dialog itself, so
// that Dialog stays a plain, clonable value and the fsm library's job is
// reduced to "is this transition legal from this state", nothing more.
func fsmEvents() fsm.Events {
	return fsm.Events{
		{Name: eventRecvProvisional, Src: []string{
			StatusInit.String(), StatusProceedingUAC.String(),
		}, Dst: StatusProceedingUAC.String()},

		{Name: eventRecvAccept, Src: []string{
			StatusInit.String(), StatusProceedingUAC.String(),
		}, Dst: StatusAcceptedUAC.String()},

		{Name: eventLocalAckConfirm, Src: []string{
			StatusAcceptedUAC.String(),
		}, Dst: StatusConfirmed.String()},

		// A 3xx-6xx before any 2xx ever arrived kills the dialog outright.
		{Name: eventRecvRejectUnanswered, Src: []string{
			StatusInit.String(), StatusProceedingUAC.String(),
		}, Dst: StatusStop.String()},

		// The same class of response arriving after the dialog was already
		// confirmed (a failed re-INVITE) leaves the
		// existing dialog usable rather than tearing it down.
		{Name: eventRecvRejectAnswered, Src: []string{
			StatusConfirmed.String(),
		}, Dst: StatusConfirmed.String()},

		{Name: eventSendBye, Src: []string{
			StatusConfirmed.String(),
		}, Dst: StatusBye.String()},

		{Name: eventNewInviteFromConfirm, Src: []string{
			StatusConfirmed.String(),
		}, Dst: StatusProceedingUAC.String()},

		// recv_terminate covers the remaining paths to StatusStop: a BYE
		// response, a transaction timeout (408) or a 481 — any of them legal
		// from any non-terminal status. A CANCELled initial INVITE stops
		// through its 487, via recv_reject_unanswered.
		{Name: eventRecvTerminate, Src: nonTerminalStatuses, Dst: StatusStop.String()},
	}
}

// newDialogFSM builds an *fsm.FSM seeded at current, sharing the global
// transition table. Constructing one per call keeps Dialog itself a value
// type safe to clone and pass around; the fsm instance is a throwaway
// validator consulted only for the duration of a single transition.
func newDialogFSM(current Status) *fsm.FSM {
	return fsm.NewFSM(current.String(), fsmEvents(), fsm.Callbacks{})
}

// fireEvent drives event against a Dialog's current status and returns the
// resulting Status, or an error if the transition is illegal. Illegal
// transitions from looplab/fsm (fsm.InvalidEventError, fsm.NoTransitionError)
// collapse onto ErrInvalidDialog so callers never need to import the fsm
// package themselves.
func fireEvent(current Status, event string) (Status, error) {
	if current == StatusStop {
		return current, ErrFinished
	}
	f := newDialogFSM(current)
	if err := f.Event(nil, event); err != nil {
		var invalidEvent fsm.InvalidEventError
		var noTransition fsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return current, ErrInvalidDialog
		}
		return current, err
	}
	return Status(f.Current()), nil
}
