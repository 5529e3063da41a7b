package dialog

import (
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedDialog(t *testing.T, store *Store) *Dialog {
	t.Helper()
	invite := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	invite.AppendHeader(&sip.CSeq{SeqNo: 5, MethodName: sip.INVITE})
	invite.AppendHeader(&sip.GenericHeader{HeaderName: "Proxy-Authorization", Contents: "Digest realm=\"x\""})

	res := sip.NewResponse(200, "OK")
	toParams := sip.HeaderParams{}
	toParams = toParams.Add("tag", "totag")
	res.AppendHeader(&sip.ToHeader{Address: sip.Uri{User: "bob", Host: "example.com"}, Params: toParams})

	d := &Dialog{
		ID:           "d1",
		CallID:       "call-1",
		Status:       StatusConfirmed,
		LocalSeq:     5,
		LocalURI:     sip.Uri{User: "alice", Host: "example.com"},
		RemoteURI:    sip.Uri{User: "bob", Host: "example.com"},
		LocalTarget:  sip.Uri{User: "alice", Host: "ua.example.com"},
		RemoteTarget: sip.Uri{User: "bob", Host: "uas.example.com"},
		LocalTag:     "fromtag",
		Request:      invite,
		Response:     res,
	}
	require.NoError(t, store.Update(d))
	return d
}

func TestMakeInDialogRequest_CSeqIncrements(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	req, next, err := m.MakeInDialogRequest(cs, "d1", sip.BYE, RequestOptions{})
	require.NoError(t, err)
	cseq, ok := req.CSeq()
	require.True(t, ok)
	assert.Equal(t, uint32(6), cseq.SeqNo)
	assert.Equal(t, uint32(6), next.LocalSeq)
}

func TestMakeInDialogRequest_AckUsesStoredCSeq(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	req, next, err := m.MakeInDialogRequest(cs, "d1", sip.ACK, RequestOptions{})
	require.NoError(t, err)
	cseq, ok := req.CSeq()
	require.True(t, ok)
	assert.Equal(t, uint32(5), cseq.SeqNo)
	assert.Equal(t, uint32(5), next.LocalSeq, "ACK must not advance LocalSeq")
}

func TestMakeInDialogRequest_ExplicitCSeqReplay(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	explicit := uint32(99)
	req, next, err := m.MakeInDialogRequest(cs, "d1", sip.INFO, RequestOptions{ExplicitCSeq: &explicit})
	require.NoError(t, err)
	cseq, _ := req.CSeq()
	assert.Equal(t, uint32(99), cseq.SeqNo)
	assert.Equal(t, uint32(5), next.LocalSeq, "explicit replay must not bump local_seq")
}

func TestMakeInDialogRequest_ContactDefaultsToLocalTarget(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	req, _, err := m.MakeInDialogRequest(cs, "d1", sip.BYE, RequestOptions{})
	require.NoError(t, err)
	contact, ok := req.Contact()
	require.True(t, ok)
	assert.Equal(t, "ua.example.com", contact.Address.Host)
}

func TestMakeInDialogRequest_InvalidContactDiscarded(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	req, _, err := m.MakeInDialogRequest(cs, "d1", sip.BYE, RequestOptions{
		Contact: []sip.ContactHeader{{Address: sip.Uri{}}},
	})
	require.NoError(t, err)
	contact, ok := req.Contact()
	require.True(t, ok)
	assert.Equal(t, "ua.example.com", contact.Address.Host, "invalid contact must fall back to local target")
}

// TestMakeInDialogRequest_AckAuthPropagation verifies a stored
// INVITE's Proxy-Authorization rides along on the ACK built from it.
func TestMakeInDialogRequest_AckAuthPropagation(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	confirmedDialog(t, store)
	cs := CallState{Store: store, AppID: "app1"}

	req, _, err := m.MakeInDialogRequest(cs, "d1", sip.ACK, RequestOptions{})
	require.NoError(t, err)
	got := req.GetHeader("Proxy-Authorization")
	require.NotNil(t, got)
	assert.Contains(t, got.Value(), "Digest")
}

func TestMakeInDialogRequest_UnknownDialog(t *testing.T) {
	m := NewMachine(&fakeTransport{}, nil, nil)
	store := NewStore()
	cs := CallState{Store: store, AppID: "app1"}

	_, _, err := m.MakeInDialogRequest(cs, "missing", sip.BYE, RequestOptions{})
	assert.ErrorIs(t, err, ErrUnknownDialog)
}
