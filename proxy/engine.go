package proxy

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/sipcore/dialogcore/sip"
)

// Transport is the narrow transport surface the Engine needs, mirroring
// the dialog package's own Transport contract but kept as a
// separate type so this package has no import dependency on dialog.
// SendResponse is not part of the enumerated transport surface (which
// only names request-side operations), but response_stateless needs a way
// to actually dispatch the popped-Via response; it is added here as a
// minimal, narrowly-scoped extension rather than left unimplemented.
type Transport interface {
	SendRequest(req *sip.Request) error
	ResendRequest(ack *sip.Request) error
	AddVia(req *sip.Request) *sip.Request
	IsLocal(appID string, u sip.Uri) bool
	SendResponse(res *sip.Response) error
}

// Forker is the stateful forking collaborator: given a request already
// preprocessed by the Engine and a normalized URI-set, it forks across
// every group/target in order and reports the outcome. A concrete
// implementation lives outside this core; only the contract is defined
// here.
type Forker interface {
	Fork(req *sip.Request, set URISet, opts Options, cs CallState) (CallState, error)
}

// CallState is the caller-owned context threaded through Engine calls.
type CallState struct {
	AppID string
}

// Result is what Engine.Start reports back: whether routing went stateful
// or stateless, and the (possibly updated) CallState.
type Result struct {
	Stateless bool
	CallState CallState
}

// Engine implements the proxy routing algorithm.
type Engine struct {
	Transport Transport
	Forker    Forker
	Logger    *slog.Logger
}

func (e *Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return sip.DefaultLogger()
}

// Start routes req toward spec, a caller-supplied target specification
// normalized internally via Normalize.
func (e *Engine) Start(req *sip.Request, spec any, opts Options, cs CallState) (Result, error) {
	nus := Normalize(spec)

	if nus.Empty() {
		e.log().Info("proxy: no routable target", "call_id", callIDOf(req))
		return Result{}, ErrTemporarilyUnavailable()
	}

	if req.Method == sip.ACK {
		if err := e.checkMaxForwards(req); err != nil {
			return Result{}, err
		}
		target := firstTarget(nus)
		return e.forwardStateless(req, target, cs)
	}

	if opts.RecordRoute && req.Method == sip.INVITE {
		markRecordRoute(req)
	}

	if err := e.checkMaxForwards(req); err != nil {
		return Result{}, err
	}

	if bad := proxyRequireConflict(req, opts.ProxyRequire); len(bad) > 0 {
		return Result{}, ErrBadExtension(bad)
	}

	e.preprocess(req, opts)

	if opts.Stateless {
		target := firstTarget(nus)
		return e.forwardStateless(req, target, cs)
	}

	if e.Forker == nil {
		return Result{}, ErrServiceUnavailable()
	}
	next, err := e.Forker.Fork(req, nus, opts, cs)
	if err != nil {
		return Result{}, err
	}
	return Result{Stateless: false, CallState: next}, nil
}

// checkMaxForwards implements the Max-Forwards check. It does not
// decrement; decrementing happens in preprocess, once, after every other
// check has passed.
func (e *Engine) checkMaxForwards(req *sip.Request) error {
	mf, ok := maxForwardsOf(req)
	if !ok {
		// Absent Max-Forwards is treated as a fresh request; RFC 3261
		// §16.6 step 4 has the proxy insert a default before forwarding,
		// which preprocess does unconditionally.
		return nil
	}
	switch {
	case mf > 0:
		return nil
	case req.Method == sip.OPTIONS:
		// The Engine reports the reply rather than sending it: building and
		// dispatching the actual 200 response (with Supported/Accept/Allow
		// headers) is the caller's job, same as every other
		// ReplyError outcome.
		return &ReplyError{Code: 200, Reason: "Max Forwards"}
	default:
		return ErrTooManyHops()
	}
}

func maxForwardsOf(req *sip.Request) (int, bool) {
	h := req.GetHeader("Max-Forwards")
	if h == nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(h.Value()))
	if err != nil {
		return 0, false
	}
	return n, true
}

func allowedMethods() string {
	return "INVITE, ACK, CANCEL, BYE, OPTIONS"
}

// preprocess applies the preprocessing pipeline: decrement
// Max-Forwards, honor RemoveRoutes/RemoveHeaders, then prepend the
// caller-supplied Headers/Route options.
func (e *Engine) preprocess(req *sip.Request, opts Options) {
	decrementMaxForwards(req)

	if opts.RemoveRoutes {
		for _, h := range req.GetHeaders("Route") {
			req.RemoveHeader(h.Name())
		}
	}
	if opts.RemoveHeaders {
		removeNonSystemHeaders(req)
	}
	for i := len(opts.Headers) - 1; i >= 0; i-- {
		req.PrependHeader(opts.Headers[i])
	}
	for i := len(opts.Route) - 1; i >= 0; i-- {
		req.PrependHeader(&sip.RouteHeader{Address: opts.Route[i]})
	}
}

func decrementMaxForwards(req *sip.Request) {
	n, ok := maxForwardsOf(req)
	if !ok {
		n = 70
	} else if n > 0 {
		n--
	}
	req.RemoveHeader("Max-Forwards")
	mf := sip.MaxForwards(n)
	req.AppendHeader(&mf)
}

func removeNonSystemHeaders(req *sip.Request) {
	for _, h := range append([]sip.Header(nil), req.Headers()...) {
		if !systemHeaders[h.Name()] {
			req.RemoveHeader(h.Name())
		}
	}
}

func proxyRequireConflict(req *sip.Request, supported []string) []string {
	h := req.GetHeader("Proxy-Require")
	if h == nil {
		return nil
	}
	required := strings.Split(h.Value(), ",")
	supportedSet := make(map[string]bool, len(supported))
	for _, s := range supported {
		supportedSet[strings.TrimSpace(s)] = true
	}
	var bad []string
	for _, tok := range required {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !supportedSet[tok] {
			bad = append(bad, tok)
		}
	}
	return bad
}

func markRecordRoute(req *sip.Request) {
	req.AppendHeader(&sip.GenericHeader{HeaderName: "X-Record-Route", Contents: "true"})
}

func firstTarget(nus URISet) sip.Uri {
	for _, group := range nus {
		if len(group) > 0 {
			return group[0]
		}
	}
	return sip.Uri{}
}

// forwardStateless implements the stateless-forwarding steps:
// rewrite the Request-URI, loop-check, add a new top Via, send.
func (e *Engine) forwardStateless(req *sip.Request, target sip.Uri, cs CallState) (Result, error) {
	req.Recipient = target
	if e.Transport.IsLocal(cs.AppID, target) {
		return Result{}, ErrLoopDetected()
	}
	e.Transport.AddVia(req)
	if err := e.Transport.SendRequest(req); err != nil {
		e.log().Error("proxy: stateless forward failed", "target", target.String(), "err", err)
		return Result{}, ErrServiceUnavailable()
	}
	e.log().Info("proxy: stateless forward", "target", target.String())
	return Result{Stateless: true, CallState: cs}, nil
}

// ResponseStateless pops the top
// Via and forward to what remains, or drop with a log if none remain
// (the severity of that drop is a tunable; this core logs it
// at Error per the open question's recommendation over the source's
// plain notice).
func (e *Engine) ResponseStateless(res *sip.Response) error {
	vias := res.GetHeaders("Via")
	if len(vias) == 0 {
		e.log().Error("proxy: stateless response has no Via to route on, dropping")
		return nil
	}
	res.RemoveHeader(vias[0].Name())
	if len(vias) == 1 {
		e.log().Error("proxy: stateless response exhausted Via set, dropping")
		return nil
	}
	return e.Transport.SendResponse(res)
}

func callIDOf(req *sip.Request) string {
	if req == nil {
		return ""
	}
	if cid, ok := req.CallID(); ok {
		return string(*cid)
	}
	return ""
}
