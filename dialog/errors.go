package dialog

import "errors"

// Error kinds surfaced by this package, per the propagation policy: illegal
// caller-initiated requests are surfaced (so the caller can back off, RFC
// 3261 §14.1); unexpected steady-state responses are absorbed silently and
// only logged (see Machine.log in uac.go).
var (
	// ErrUnknownDialog is returned when an operation names a dialog-id that
	// is not present in the Store.
	ErrUnknownDialog = errors.New("dialog: unknown dialog")

	// ErrFinished is returned by OnIncomingResponse, MakeInDialogRequest,
	// Bye and Store.Update for a dialog already in StatusStop.
	// OnOutgoingAck and OnOutgoingCancel report ErrInvalidDialog instead.
	ErrFinished = errors.New("dialog: finished")

	// ErrRequestPending names RFC 3261 §14.1's 491 case: a second INVITE
	// attempted while one is already in flight on the same dialog. No
	// function in this package returns it; MakeInDialogRequest builds an
	// INVITE in any status other than StatusStop.
	ErrRequestPending = errors.New("dialog: request pending")

	// ErrInvalidDialog is returned when an operation is illegal for the
	// dialog's current status, e.g. building an ACK before a 2xx arrived.
	ErrInvalidDialog = errors.New("dialog: invalid dialog state for operation")

	// ErrInvalidURI is returned by OnOutgoingRequest when the request has
	// no From or Call-ID header. Invalid caller-supplied Contacts are not
	// reported; MakeInDialogRequest discards them.
	ErrInvalidURI = errors.New("dialog: invalid uri")

	// ErrInvalidConfig names malformed caller-supplied options. No function
	// in this package validates options or returns it.
	ErrInvalidConfig = errors.New("dialog: invalid config")
)
