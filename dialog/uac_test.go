package dialog

import (
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent    []*sip.Request
	resent  []*sip.Request
	failNext bool
}

func (f *fakeTransport) SendRequest(req *sip.Request) error {
	if f.failNext {
		return assertErr
	}
	f.sent = append(f.sent, req)
	return nil
}
func (f *fakeTransport) ResendRequest(ack *sip.Request) error {
	if f.failNext {
		return assertErr
	}
	f.resent = append(f.resent, ack)
	return nil
}
func (f *fakeTransport) AddVia(req *sip.Request) *sip.Request { return req }
func (f *fakeTransport) IsLocal(appID string, u sip.Uri) bool { return false }

var assertErr = assertError("transport failure")

type assertError string

func (e assertError) Error() string { return string(e) }

func newInvite(callID, fromTag string) *sip.Request {
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	cid := sip.CallID(callID)
	req.AppendHeader(&cid)
	fromParams := sip.HeaderParams{}
	fromParams = fromParams.Add("tag", fromTag)
	req.AppendHeader(&sip.FromHeader{Address: sip.Uri{User: "alice", Host: "example.com"}, Params: fromParams})
	req.AppendHeader(&sip.ToHeader{Address: sip.Uri{User: "bob", Host: "example.com"}})
	req.AppendHeader(&sip.CSeq{SeqNo: 1, MethodName: sip.INVITE})
	return req
}

func respondTo(req *sip.Request, code int, reason, toTag string) *sip.Response {
	res := sip.NewResponse(code, reason)
	cid, _ := req.CallID()
	res.AppendHeader(cid)
	from, _ := req.From()
	res.AppendHeader(from)
	toParams := sip.HeaderParams{}
	if toTag != "" {
		toParams = toParams.Add("tag", toTag)
	}
	res.AppendHeader(&sip.ToHeader{Address: sip.Uri{User: "bob", Host: "example.com"}, Params: toParams})
	cseq, _ := req.CSeq()
	res.AppendHeader(cseq)
	res.AppendHeader(&sip.ContactHeader{Address: sip.Uri{User: "bob", Host: "uas.example.com"}})
	return res
}

func TestMachine_HappyInvite(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, func() uint32 { return 1 })
	store := NewStore()
	cs := CallState{Store: store, AppID: "app1"}

	invite := newInvite("call-1", "fromtag")
	d, err := m.OnOutgoingRequest(invite, cs)
	require.NoError(t, err)
	assert.Equal(t, StatusInit, d.Status)
	pendingID := d.ID

	ringing := respondTo(invite, 180, "Ringing", "")
	d, err = m.OnIncomingResponse(ringing, cs, pendingID)
	require.NoError(t, err)
	assert.Equal(t, StatusProceedingUAC, d.Status)

	ok := respondTo(invite, 200, "OK", "totag")
	d, err = m.OnIncomingResponse(ok, cs, pendingID)
	require.NoError(t, err)
	assert.Equal(t, StatusAcceptedUAC, d.Status)
	assert.NotNil(t, d.Answered)
	finalID := d.ID
	assert.NotEqual(t, pendingID, finalID)

	ack := sip.NewRequest(sip.ACK, d.RemoteTarget)
	d, err = m.OnOutgoingAck(ack, cs, finalID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, d.Status)
	assert.Same(t, ack, d.Ack)
}

func TestMachine_2xxRetransmission(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, func() uint32 { return 1 })
	store := NewStore()
	cs := CallState{Store: store, AppID: "app1"}

	invite := newInvite("call-2", "fromtag")
	d, _ := m.OnOutgoingRequest(invite, cs)
	pendingID := d.ID
	ok := respondTo(invite, 200, "OK", "totag")
	d, _ = m.OnIncomingResponse(ok, cs, pendingID)
	ack := sip.NewRequest(sip.ACK, d.RemoteTarget)
	d, _ = m.OnOutgoingAck(ack, cs, d.ID)
	require.Equal(t, StatusConfirmed, d.Status)

	// A second 200 for the same CSeq must not change status; resend is the
	// caller's responsibility via Transport.ResendRequest.
	ok2 := respondTo(invite, 200, "OK", "totag")
	d2, err := m.OnIncomingResponse(ok2, cs, d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, d2.Status)
}

func TestMachine_408KillsDialog(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, func() uint32 { return 1 })
	store := NewStore()
	cs := CallState{Store: store, AppID: "app1"}

	invite := newInvite("call-3", "fromtag")
	d, _ := m.OnOutgoingRequest(invite, cs)
	pendingID := d.ID
	ok := respondTo(invite, 200, "OK", "totag")
	d, _ = m.OnIncomingResponse(ok, cs, pendingID)
	ack := sip.NewRequest(sip.ACK, d.RemoteTarget)
	d, _ = m.OnOutgoingAck(ack, cs, d.ID)

	timeout := respondTo(invite, 408, "Request Timeout", "totag")
	d, err := m.transition(d, cs, d.ID, eventRecvTerminate, timeout, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusStop, d.Status)
}

func TestMachine_Bye_RequiresConfirmed(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, func() uint32 { return 1 })
	store := NewStore()
	cs := CallState{Store: store, AppID: "app1"}
	require.NoError(t, store.Update(&Dialog{ID: "d1", Status: StatusProceedingUAC}))

	_, err := m.Bye(cs, "d1")
	assert.ErrorIs(t, err, ErrInvalidDialog)

	store.Update(&Dialog{ID: "d1", Status: StatusConfirmed})
	d, err := m.Bye(cs, "d1")
	require.NoError(t, err)
	assert.Equal(t, StatusBye, d.Status)
}

// TestMachine_OnOutgoingRequest_SynthesizesAppID verifies that a caller who
// doesn't supply CallState.AppID still gets a non-empty, unique identifier
// on the resulting Dialog rather than an empty string.
func TestMachine_OnOutgoingRequest_SynthesizesAppID(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, func() uint32 { return 1 })
	store := NewStore()
	cs := CallState{Store: store}

	d1, err := m.OnOutgoingRequest(newInvite("call-1", "fromtag1"), cs)
	require.NoError(t, err)
	assert.NotEmpty(t, d1.AppID)

	d2, err := m.OnOutgoingRequest(newInvite("call-2", "fromtag2"), cs)
	require.NoError(t, err)
	assert.NotEmpty(t, d2.AppID)
	assert.NotEqual(t, d1.AppID, d2.AppID)
}
