// Package dialog implements the UAC-side dialog state machine described in
// RFC 3261 §12: dialog identity, storage, CSeq/request bookkeeping and the
// transitions driven by locally originated requests, locally emitted ACKs
// and incoming responses. It does not perform any transport I/O or wire
// parsing; those are external collaborators reached through the Transport
// and Parser interfaces in ports.go.
package dialog

import (
	"fmt"
	"time"

	"github.com/sipcore/dialogcore/sip"
)

// Status is the lifecycle state of a Dialog.
type Status string

const (
	StatusInit          Status = "init"
	StatusProceedingUAC Status = "proceeding_uac"
	StatusProceedingUAS Status = "proceeding_uas"
	StatusAcceptedUAC   Status = "accepted_uac"
	StatusAcceptedUAS   Status = "accepted_uas"
	StatusConfirmed     Status = "confirmed"
	StatusBye           Status = "bye"
	StatusStop          Status = "stop"
)

func (s Status) String() string { return string(s) }

// nonTerminalStatuses lists every status from which the state machine still
// accepts events. StatusStop is intentionally excluded: a
// stopped dialog never transitions again.
var nonTerminalStatuses = []string{
	StatusInit.String(),
	StatusProceedingUAC.String(),
	StatusProceedingUAS.String(),
	StatusAcceptedUAC.String(),
	StatusAcceptedUAS.String(),
	StatusConfirmed.String(),
	StatusBye.String(),
}

// StopReason records why a Dialog transitioned to StatusStop.
type StopReason struct {
	Code   int
	Reason string
}

func (r StopReason) String() string {
	if r.Reason == "" {
		return fmt.Sprintf("code=%d", r.Code)
	}
	return fmt.Sprintf("code=%d reason=%s", r.Code, r.Reason)
}

// Dialog is the in-memory representation of an RFC 3261 §12 dialog, from
// the perspective of the peer that originated the INVITE (UAC role).
type Dialog struct {
	ID     string
	AppID  string
	CallID string
	Status Status

	// LocalSeq/RemoteSeq are the last CSeq numbers emitted/observed in
	// each direction. LocalSeq only ever increases.
	LocalSeq  uint32
	RemoteSeq uint32

	LocalURI  sip.Uri
	RemoteURI sip.Uri

	LocalTarget  sip.Uri
	RemoteTarget sip.Uri

	// RouteSet is the ordered loose-route set learned from Record-Route.
	RouteSet []sip.Uri

	// Request/Response are the latest INVITE request/response associated
	// with this dialog, kept for ACK construction and 2xx-retransmission
	// matching.
	Request  *sip.Request
	Response *sip.Response

	// Ack is the ACK this peer sent to confirm the dialog, recorded by
	// OnOutgoingAck. Nothing in this package clears it when a later INVITE
	// is built or received.
	Ack *sip.Request

	// Answered is set at the first 2xx response to this dialog's INVITE.
	Answered *time.Time

	LocalTag string
	Early    bool
	Secure   bool

	StopReason *StopReason

	Created time.Time
	Updated time.Time

	LocalSDP  []byte
	RemoteSDP []byte
}

// String renders a short, log-friendly summary of the dialog.
func (d *Dialog) String() string {
	if d == nil {
		return "<nil dialog>"
	}
	return fmt.Sprintf("Dialog{id=%s call_id=%s status=%s local_seq=%d remote_seq=%d}",
		d.ID, d.CallID, d.Status, d.LocalSeq, d.RemoteSeq)
}

// clone returns a shallow copy of the Dialog with its own copy of the
// RouteSet slice; Request, Response and Ack are shared. Every mutation path in this
// package operates on a cloned value and hands it to Store.Update, so that
// the invariant checks in Store.Update (monotonic LocalSeq, terminal Stop)
// run in exactly one place, matching the functional-update style called
// for by this package's design.
func (d *Dialog) clone() *Dialog {
	cp := *d
	cp.RouteSet = append([]sip.Uri(nil), d.RouteSet...)
	return &cp
}

// IsTerminal reports whether the dialog can no longer accept events.
func (d *Dialog) IsTerminal() bool {
	return d.Status == StatusStop
}
