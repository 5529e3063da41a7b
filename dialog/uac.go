package dialog

import (
	"log/slog"
	"time"

	"github.com/sipcore/dialogcore/sip"
)

// CallState is caller-owned bookkeeping threaded through every Machine
// entry point: which dialog (if any) a request/response belongs to, and
// the Store it should be read from/written to. One Store per
// Call, so CallState simply pairs the two rather than making Machine itself
// stateful per-call.
type CallState struct {
	Store *Store
	AppID string
}

// Machine implements the UAC-side dialog state machine: the three entry
// points driven by locally originated requests, locally emitted ACKs and
// incoming responses.
type Machine struct {
	Transport Transport
	Parser    Parser
	Seeder    CSeqSeeder
	Logger    *slog.Logger
}

// NewMachine builds a Machine. A nil Seeder defaults to DefaultCSeqSeeder(),
// a nil Logger defaults to sip.DefaultLogger().
func NewMachine(t Transport, p Parser, seeder CSeqSeeder) *Machine {
	if seeder == nil {
		seeder = DefaultCSeqSeeder()
	}
	return &Machine{Transport: t, Parser: p, Seeder: seeder}
}

func (m *Machine) log() *slog.Logger { return logger(m.Logger) }

// OnOutgoingRequest handles a locally originated out-of-dialog INVITE: it
// creates a fresh Dialog in StatusInit, seeds LocalSeq from the Machine's
// CSeqSeeder, and stores it keyed by pendingDialogID, derived from the
// Call-ID and the request's own From-tag since no To-tag exists yet.
func (m *Machine) OnOutgoingRequest(req *sip.Request, cs CallState) (*Dialog, error) {
	from, ok := req.From()
	if !ok || from.Params == nil {
		return nil, ErrInvalidURI
	}
	fromTag, _ := from.Params.Get("tag")
	callID, ok := req.CallID()
	if !ok {
		return nil, ErrInvalidURI
	}

	appID := cs.AppID
	if appID == "" {
		appID = NewAppID()
	}

	now := time.Now()
	d := &Dialog{
		ID:          pendingDialogID(string(*callID), fromTag),
		AppID:       appID,
		CallID:      string(*callID),
		Status:      StatusInit,
		LocalSeq:    m.Seeder(),
		LocalURI:    from.Address,
		LocalTarget: from.Address,
		LocalTag:    fromTag,
		Request:     req,
		Created:     now,
		Updated:     now,
	}
	if to, ok := req.To(); ok {
		d.RemoteURI = to.Address
		d.RemoteTarget = to.Address
	}
	if err := cs.Store.Update(d); err != nil {
		return nil, err
	}
	return d, nil
}

// pendingDialogID names a not-yet-confirmed dialog before a To-tag exists,
// distinct from the symmetric Identity used once both tags are known.
func pendingDialogID(callID, fromTag string) string {
	return "pending:" + hashID(callID, fromTag)
}

// OnIncomingResponse handles a response to the dialog-forming INVITE (or to
// a re-INVITE/BYE sent within an existing dialog), advancing Status per
// the dialog's response tables and, on the first 2xx, re-keying the
// Dialog from its pending id to the final symmetric Identity.
func (m *Machine) OnIncomingResponse(res *sip.Response, cs CallState, pendingID string) (*Dialog, error) {
	d, ok := cs.Store.Find(pendingID)
	if !ok {
		return nil, ErrUnknownDialog
	}
	if d.IsTerminal() {
		return nil, ErrFinished
	}

	cseq, ok := res.CSeq()
	if !ok {
		return d, nil
	}

	switch {
	case res.StatusCode == 408 || res.StatusCode == 481:
		// A transaction timeout or a 481 ends the dialog from any status.
		next, err := m.transition(d, cs, pendingID, eventRecvTerminate, res, nil)
		if err != nil {
			return d, err
		}
		if next.Status == StatusStop {
			next.StopReason = &StopReason{Code: res.StatusCode, Reason: res.Reason}
		}
		return next, nil
	case res.StatusCode < 101:
		// An unreliable provisional below 101 is a no-op.
		return d, nil
	case res.StatusCode < 200:
		return m.transition(d, cs, pendingID, eventRecvProvisional, res, cseq)
	case res.StatusCode < 300:
		return m.onAccept(d, cs, pendingID, res, cseq)
	case res.StatusCode < 400 && cseq.MethodName == sip.INVITE:
		// 3xx redirects of the initial INVITE are treated as rejections at
		// this layer; following the new targets is the Engine/caller's job.
		return m.onReject(d, cs, pendingID, res)
	default:
		return m.onReject(d, cs, pendingID, res)
	}
}

func (m *Machine) onAccept(d *Dialog, cs CallState, pendingID string, res *sip.Response, cseq *sip.CSeq) (*Dialog, error) {
	next := d.clone()
	next.Response = res
	next.RemoteSeq = cseq.SeqNo
	if to, ok := res.To(); ok {
		next.RemoteURI = to.Address
		next.RemoteTarget = to.Address
		toTag, _ := to.Params.Get("tag")
		if contact, ok := res.Contact(); ok {
			next.RemoteTarget = contact.Address
		}
		if next.Answered == nil {
			now := time.Now()
			next.Answered = &now
		}
		if d.ID == pendingID && (d.Status == StatusInit || d.Status == StatusProceedingUAC) {
			next.ID = Identity(d.CallID, d.LocalTag, toTag)
		}
	}
	next.Updated = time.Now()

	newStatus, err := fireEvent(d.Status, eventRecvAccept)
	if err != nil {
		m.log().Debug("dialog: ignoring accept in unexpected state", "dialog", d, "status_code", res.StatusCode)
		return d, nil
	}
	next.Status = newStatus

	if err := cs.Store.Update(next); err != nil {
		return d, err
	}
	if next.ID != pendingID {
		cs.Store.Remove(pendingID)
	}
	return next, nil
}

func (m *Machine) onReject(d *Dialog, cs CallState, pendingID string, res *sip.Response) (*Dialog, error) {
	event := eventRecvRejectUnanswered
	if d.Answered != nil {
		event = eventRecvRejectAnswered
	}
	next, err := m.transition(d, cs, pendingID, event, res, nil)
	if err != nil {
		return d, err
	}
	if next.Status == StatusStop {
		next.StopReason = &StopReason{Code: res.StatusCode, Reason: res.Reason}
	}
	return next, nil
}

// transition applies event to d, persists the resulting clone, and logs
// (rather than surfaces) any illegal-transition outcome, matching this
// package's silent-vs-surfaced propagation policy: an out-of-order
// response is absorbed, not returned as an error to the caller.
func (m *Machine) transition(d *Dialog, cs CallState, key, event string, res *sip.Response, cseq *sip.CSeq) (*Dialog, error) {
	newStatus, err := fireEvent(d.Status, event)
	if err != nil {
		m.log().Debug("dialog: ignoring out-of-order response", "dialog", d, "event", event, "status_code", res.StatusCode)
		return d, nil
	}
	next := d.clone()
	next.Status = newStatus
	next.Response = res
	if cseq != nil {
		next.RemoteSeq = cseq.SeqNo
	}
	next.Updated = time.Now()
	if err := cs.Store.Update(next); err != nil {
		return d, err
	}
	if key != next.ID {
		cs.Store.Remove(key)
	}
	return next, nil
}

// OnOutgoingAck handles the ACK a UAC sends once a 2xx has moved the
// dialog into StatusAcceptedUAC, confirming it.
// Retransmitting the stored Ack for a repeated 2xx is the caller's job
// (Transport.ResendRequest); this method only records the first Ack sent.
func (m *Machine) OnOutgoingAck(ack *sip.Request, cs CallState, dialogID string) (*Dialog, error) {
	d, ok := cs.Store.Find(dialogID)
	if !ok {
		return nil, ErrUnknownDialog
	}
	if d.Status != StatusAcceptedUAC {
		if d.Status == StatusConfirmed && d.Ack != nil {
			// Same ACK re-sent for a retransmitted 2xx: not a new event.
			return d, nil
		}
		return nil, ErrInvalidDialog
	}

	// the ACK's CSeq must equal the stored INVITE's CSeq;
	// anything else is logged and passed through unchanged rather than
	// surfaced, matching the silent-vs-surfaced steady-state policy.
	if ackCSeq, ok := ack.CSeq(); ok && d.Response != nil {
		if respCSeq, ok := d.Response.CSeq(); ok && ackCSeq.SeqNo != respCSeq.SeqNo {
			m.log().Debug("dialog: ignoring ACK with mismatched CSeq", "dialog", d)
			return d, nil
		}
	}

	newStatus, err := fireEvent(d.Status, eventLocalAckConfirm)
	if err != nil {
		return nil, err
	}
	next := d.clone()
	next.Status = newStatus
	next.Ack = ack
	next.Updated = time.Now()
	if err := cs.Store.Update(next); err != nil {
		return d, err
	}
	return next, nil
}

// OnOutgoingCancel records a locally originated CANCEL of the dialog's
// initial INVITE. It does not advance Status or LocalSeq: CANCEL shares
// the INVITE's CSeq number per RFC 3261 §9.1 and the dialog only actually
// terminates once the corresponding 487 (or equivalent) response arrives
// through OnIncomingResponse.
func (m *Machine) OnOutgoingCancel(cs CallState, dialogID string) (*Dialog, error) {
	d, ok := cs.Store.Find(dialogID)
	if !ok {
		return nil, ErrUnknownDialog
	}
	if d.Status != StatusInit && d.Status != StatusProceedingUAC {
		return nil, ErrInvalidDialog
	}
	return d, nil
}

// Bye builds the dialog-level bookkeeping for a locally originated BYE:
// moving a confirmed dialog into StatusBye. It does not construct the
// *sip.Request itself; see builder.go's MakeInDialogRequest for that.
func (m *Machine) Bye(cs CallState, dialogID string) (*Dialog, error) {
	d, ok := cs.Store.Find(dialogID)
	if !ok {
		return nil, ErrUnknownDialog
	}
	newStatus, err := fireEvent(d.Status, eventSendBye)
	if err != nil {
		return nil, err
	}
	next := d.clone()
	next.Status = newStatus
	next.Updated = time.Now()
	if err := cs.Store.Update(next); err != nil {
		return d, err
	}
	return next, nil
}

// OnByeResponse finalizes a dialog once its own BYE is answered, or once a
// peer-initiated BYE response completes; either way the dialog stops.
func (m *Machine) OnByeResponse(res *sip.Response, cs CallState, dialogID string) (*Dialog, error) {
	d, ok := cs.Store.Find(dialogID)
	if !ok {
		return nil, ErrUnknownDialog
	}
	return m.transition(d, cs, dialogID, eventRecvTerminate, res, nil)
}
