package dialog

import (
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInviteForAuth() *sip.Request {
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: "example.com"})
	cid := sip.CallID("call-auth")
	req.AppendHeader(&cid)
	params := sip.HeaderParams{}
	params = params.Add("tag", "fromtag")
	req.AppendHeader(&sip.FromHeader{Address: sip.Uri{User: "alice", Host: "example.com"}, Params: params})
	req.AppendHeader(&sip.ToHeader{Address: sip.Uri{User: "bob", Host: "example.com"}})
	req.AppendHeader(&sip.CSeq{SeqNo: 1, MethodName: sip.INVITE})
	req.AppendHeader(&sip.ViaHeader{Transport: "UDP", Host: "client.example.com", Params: sip.HeaderParams{}})
	return req
}

func TestBuildChallengeResponse_WWWAuthenticate(t *testing.T) {
	req := newInviteForAuth()
	res := sip.NewResponse(401, "Unauthorized")
	res.AppendHeader(sip.NewHeader("WWW-Authenticate",
		`Digest realm="example.com", nonce="abc123", algorithm=MD5, qop="auth"`))

	out, err := BuildChallengeResponse(req, res, Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	auth := out.GetHeader("Authorization")
	require.NotNil(t, auth)
	assert.Contains(t, auth.Value(), `username="alice"`)
	assert.Contains(t, auth.Value(), `realm="example.com"`)

	assert.Nil(t, out.GetHeader("Via"))

	cseq, ok := out.CSeq()
	require.True(t, ok)
	assert.Equal(t, uint32(2), cseq.SeqNo)
}

func TestBuildChallengeResponse_ProxyAuthenticate(t *testing.T) {
	req := newInviteForAuth()
	res := sip.NewResponse(407, "Proxy Authentication Required")
	res.AppendHeader(sip.NewHeader("Proxy-Authenticate",
		`Digest realm="proxy.example.com", nonce="xyz789", algorithm=MD5`))

	out, err := BuildChallengeResponse(req, res, Credentials{Username: "alice", Password: "secret"})
	require.NoError(t, err)

	require.Nil(t, out.GetHeader("Authorization"))
	auth := out.GetHeader("Proxy-Authorization")
	require.NotNil(t, auth)
	assert.Contains(t, auth.Value(), `username="alice"`)
}

func TestBuildChallengeResponse_MissingChallengeHeader(t *testing.T) {
	req := newInviteForAuth()
	res := sip.NewResponse(401, "Unauthorized")

	_, err := BuildChallengeResponse(req, res, Credentials{Username: "alice", Password: "secret"})
	assert.Error(t, err)
}

func TestBuildChallengeResponse_UnparsableChallenge(t *testing.T) {
	req := newInviteForAuth()
	res := sip.NewResponse(401, "Unauthorized")
	res.AppendHeader(sip.NewHeader("WWW-Authenticate", "not-a-digest-challenge"))

	_, err := BuildChallengeResponse(req, res, Credentials{Username: "alice", Password: "secret"})
	assert.Error(t, err)
}
