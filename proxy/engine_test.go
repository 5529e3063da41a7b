package proxy

import (
	"errors"
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sent      []*sip.Request
	responses []*sip.Response
	local     map[string]bool
	sendErr   error
}

func (f *fakeTransport) SendRequest(req *sip.Request) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, req)
	return nil
}

func (f *fakeTransport) ResendRequest(req *sip.Request) error { return f.SendRequest(req) }

func (f *fakeTransport) AddVia(req *sip.Request) *sip.Request {
	via := &sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Transport: "UDP", Host: "proxy.example.com"}
	req.PrependHeader(via)
	return req
}

func (f *fakeTransport) IsLocal(appID string, u sip.Uri) bool {
	return f.local[u.Host]
}

func (f *fakeTransport) SendResponse(res *sip.Response) error {
	f.responses = append(f.responses, res)
	return nil
}

type fakeForker struct {
	result CallState
	err    error
	called bool
}

func (f *fakeForker) Fork(req *sip.Request, set URISet, opts Options, cs CallState) (CallState, error) {
	f.called = true
	return f.result, f.err
}

func newInvite(target string) *sip.Request {
	req := sip.NewRequest(sip.INVITE, sip.Uri{User: "bob", Host: target})
	req.AppendHeader(new(sip.CallID))
	return req
}

func withMaxForwards(req *sip.Request, n int) *sip.Request {
	mf := sip.MaxForwards(n)
	req.AppendHeader(&mf)
	return req
}

func replyErrorCode(t *testing.T, err error) int {
	t.Helper()
	var re *ReplyError
	require.True(t, errors.As(err, &re), "expected *ReplyError, got %T: %v", err, err)
	return re.Code
}

func TestEngine_Start_NoTarget(t *testing.T) {
	e := &Engine{Transport: &fakeTransport{}}
	_, err := e.Start(newInvite("bob.example.com"), nil, Options{}, CallState{})
	assert.Equal(t, 480, replyErrorCode(t, err))
}

// TestEngine_MaxForwards covers P6: decrementing by exactly 1, and the two
// zero-forwards outcomes (OPTIONS gets a 200 reply token, anything else gets
// 483).
func TestEngine_MaxForwards(t *testing.T) {
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	t.Run("decrements by exactly one", func(t *testing.T) {
		tr := &fakeTransport{local: map[string]bool{}}
		forker := &fakeForker{result: CallState{AppID: "app1"}}
		e := &Engine{Transport: tr, Forker: forker}
		req := withMaxForwards(newInvite("bob.example.com"), 10)

		_, err := e.Start(req, target, Options{}, CallState{AppID: "app1"})
		require.NoError(t, err)
		mf, ok := req.GetHeader("Max-Forwards").(*sip.MaxForwards)
		require.True(t, ok)
		assert.Equal(t, sip.MaxForwards(9), *mf)
	})

	t.Run("zero forwards on OPTIONS yields 200 reply token", func(t *testing.T) {
		tr := &fakeTransport{}
		e := &Engine{Transport: tr}
		req := withMaxForwards(sip.NewRequest(sip.OPTIONS, target), 0)

		_, err := e.Start(req, target, Options{}, CallState{})
		assert.Equal(t, 200, replyErrorCode(t, err))
	})

	t.Run("zero forwards on other methods yields too many hops", func(t *testing.T) {
		tr := &fakeTransport{}
		e := &Engine{Transport: tr}
		req := withMaxForwards(newInvite("bob.example.com"), 0)

		_, err := e.Start(req, target, Options{}, CallState{})
		assert.Equal(t, 483, replyErrorCode(t, err))
	})
}

func TestEngine_ProxyRequireConflict(t *testing.T) {
	tr := &fakeTransport{}
	e := &Engine{Transport: tr, Forker: &fakeForker{}}
	req := newInvite("bob.example.com")
	req.AppendHeader(&sip.GenericHeader{HeaderName: "Proxy-Require", Contents: "timer, gin"})
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	_, err := e.Start(req, target, Options{ProxyRequire: []string{"timer"}}, CallState{})
	var re *ReplyError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, 420, re.Code)
	assert.Equal(t, []string{"gin"}, re.Tokens)
}

func TestEngine_LoopDetected(t *testing.T) {
	tr := &fakeTransport{local: map[string]bool{"bob.example.com": true}}
	e := &Engine{Transport: tr}
	req := newInvite("bob.example.com")
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	_, err := e.Start(req, target, Options{Stateless: true}, CallState{AppID: "app1"})
	assert.Equal(t, 482, replyErrorCode(t, err))
}

func TestEngine_StatelessForwardSuccess(t *testing.T) {
	tr := &fakeTransport{local: map[string]bool{}}
	e := &Engine{Transport: tr}
	req := newInvite("bob.example.com")
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	res, err := e.Start(req, target, Options{Stateless: true}, CallState{AppID: "app1"})
	require.NoError(t, err)
	assert.True(t, res.Stateless)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, target, tr.sent[0].Recipient)
}

func TestEngine_StatelessForwardTransportFailure(t *testing.T) {
	tr := &fakeTransport{local: map[string]bool{}, sendErr: assert.AnError}
	e := &Engine{Transport: tr}
	req := newInvite("bob.example.com")
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	_, err := e.Start(req, target, Options{Stateless: true}, CallState{AppID: "app1"})
	assert.Equal(t, 503, replyErrorCode(t, err))
}

func TestEngine_NoForkerYieldsServiceUnavailable(t *testing.T) {
	tr := &fakeTransport{local: map[string]bool{}}
	e := &Engine{Transport: tr}
	req := newInvite("bob.example.com")
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	_, err := e.Start(req, target, Options{}, CallState{AppID: "app1"})
	assert.Equal(t, 503, replyErrorCode(t, err))
}

func TestEngine_ForkerInvokedForStatefulRouting(t *testing.T) {
	tr := &fakeTransport{local: map[string]bool{}}
	forker := &fakeForker{result: CallState{AppID: "app1"}}
	e := &Engine{Transport: tr, Forker: forker}
	req := newInvite("bob.example.com")
	target := sip.Uri{User: "bob", Host: "bob.example.com"}

	res, err := e.Start(req, target, Options{}, CallState{AppID: "app1"})
	require.NoError(t, err)
	assert.True(t, forker.called)
	assert.False(t, res.Stateless)
}

// TestEngine_ResponseStateless_PopsVia covers the normal case: the proxy's
// own top Via is stripped and the rest forwarded unchanged.
func TestEngine_ResponseStateless_PopsVia(t *testing.T) {
	tr := &fakeTransport{}
	e := &Engine{Transport: tr}
	res := sip.NewResponse(200, "OK")
	res.AppendHeader(&sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Host: "proxy.example.com"})
	res.AppendHeader(&sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Host: "client.example.com"})

	err := e.ResponseStateless(res)
	require.NoError(t, err)
	require.Len(t, tr.responses, 1)
	remaining := res.GetHeaders("Via")
	require.Len(t, remaining, 1)
	via, ok := remaining[0].(*sip.ViaHeader)
	require.True(t, ok)
	assert.Equal(t, "client.example.com", via.Host)
}

// TestEngine_ResponseStateless_ExhaustedViaDrops covers the single-Via case:
// nothing is left to route on, so the response is dropped rather than sent.
func TestEngine_ResponseStateless_ExhaustedViaDrops(t *testing.T) {
	tr := &fakeTransport{}
	e := &Engine{Transport: tr}
	res := sip.NewResponse(200, "OK")
	res.AppendHeader(&sip.ViaHeader{ProtocolName: "SIP", ProtocolVersion: "2.0", Host: "proxy.example.com"})

	err := e.ResponseStateless(res)
	require.NoError(t, err)
	assert.Empty(t, tr.responses)
}

func TestEngine_ResponseStateless_NoViaDrops(t *testing.T) {
	tr := &fakeTransport{}
	e := &Engine{Transport: tr}
	res := sip.NewResponse(200, "OK")

	err := e.ResponseStateless(res)
	require.NoError(t, err)
	assert.Empty(t, tr.responses)
}
