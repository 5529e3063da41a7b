package dialog

import (
	"github.com/sipcore/dialogcore/sip"
)

// RequestOptions carries the caller-supplied overrides for an in-dialog
// request: a literal Contact list (a nil or empty list takes the dialog's
// LocalTarget; there is no separate make-contact marker), and an optional
// explicit CSeq for replaying a request with its original sequence number.
type RequestOptions struct {
	Contact    []sip.ContactHeader
	ExplicitCSeq *uint32
}

// MakeInDialogRequest builds a request within an existing dialog, applying
// the CSeq/Contact/Auth rules an in-dialog request must follow:
//
//  1. method != ACK, != CANCEL: LocalSeq is incremented and used as CSeq.
//  2. method == ACK || method == CANCEL: CSeq is the dialog's last issued
//     INVITE CSeq (LocalSeq is not advanced).
//  3. opts.ExplicitCSeq overrides rule 1/2 outright (an explicit replay).
//  4. Request-URI is RemoteTarget; Route headers come from RouteSet in
//     order (loose routing, RFC 3261 §12.2.1.1).
//  5. Contact defaults to LocalTarget when opts.Contact is empty or every
//     supplied Contact URI fails to parse; invalid Contacts are discarded
//     silently rather than surfaced as an error.
func (m *Machine) MakeInDialogRequest(cs CallState, dialogID string, method sip.RequestMethod, opts RequestOptions) (*sip.Request, *Dialog, error) {
	d, ok := cs.Store.Find(dialogID)
	if !ok {
		return nil, nil, ErrUnknownDialog
	}
	if d.IsTerminal() {
		return nil, nil, ErrFinished
	}

	next := d.clone()
	seq := d.LocalSeq

	switch {
	case opts.ExplicitCSeq != nil:
		seq = *opts.ExplicitCSeq
	case method == sip.ACK || method == sip.CANCEL:
		if d.Request != nil {
			if cseq, ok := d.Request.CSeq(); ok {
				seq = cseq.SeqNo
			}
		}
	default:
		seq = d.LocalSeq + 1
		next.LocalSeq = seq
	}

	req := sip.NewRequest(method, d.RemoteTarget)
	if callID, ok := callIDHeader(d.CallID); ok {
		req.AppendHeader(callID)
	}
	fromParams := sip.HeaderParams{}
	fromParams = fromParams.Add("tag", d.LocalTag)
	req.AppendHeader(&sip.FromHeader{
		DisplayName: "",
		Address:     d.LocalURI,
		Params:      fromParams,
	})
	toParams := sip.HeaderParams{}
	if tag, ok := remoteTag(d); ok {
		toParams = toParams.Add("tag", tag)
	}
	req.AppendHeader(&sip.ToHeader{Address: d.RemoteURI, Params: toParams})
	req.AppendHeader(&sip.CSeq{SeqNo: seq, MethodName: method})

	contact := resolveContact(d, opts)
	req.AppendHeader(&contact)

	for i := len(d.RouteSet) - 1; i >= 0; i-- {
		req.PrependHeader(&sip.RouteHeader{Address: d.RouteSet[i]})
	}

	if method == sip.ACK {
		propagateAuth(d.Request, req)
	}

	if err := cs.Store.Update(next); err != nil {
		return nil, nil, err
	}
	return req, next, nil
}

func callIDHeader(callID string) (*sip.CallID, bool) {
	if callID == "" {
		return nil, false
	}
	h := sip.CallID(callID)
	return &h, true
}

func remoteTag(d *Dialog) (string, bool) {
	if d.Response == nil {
		return "", false
	}
	to, ok := d.Response.To()
	if !ok {
		return "", false
	}
	return to.Params.Get("tag")
}

// resolveContact implements rule 5: the first syntactically valid entry in
// opts.Contact wins; an empty or entirely-invalid list falls back to the
// dialog's own LocalTarget.
func resolveContact(d *Dialog, opts RequestOptions) sip.ContactHeader {
	for _, c := range opts.Contact {
		if c.Address.Host != "" {
			return c
		}
	}
	return sip.ContactHeader{Address: d.LocalTarget}
}

// propagateAuth copies Authorization/Proxy-Authorization from the stored
// INVITE onto an ACK: a challenged INVITE's
// credentials must ride along on its ACK since the ACK is never itself
// challenged (RFC 3261 §22.1).
func propagateAuth(invite *sip.Request, ack *sip.Request) {
	if invite == nil {
		return
	}
	for _, name := range []string{"Authorization", "Proxy-Authorization"} {
		for _, h := range invite.GetHeaders(name) {
			ack.AppendHeader(&sip.GenericHeader{HeaderName: h.Name(), Contents: h.Value()})
		}
	}
}
