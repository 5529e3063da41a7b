package proxy

import "github.com/sipcore/dialogcore/sip"

// Options holds the routing knobs a caller of Engine.Start may set, the
// typed equivalent of the routing option list.
type Options struct {
	// Stateless forces first-target-of-first-group forwarding with no Fork
	// collaborator involved.
	Stateless bool

	// RecordRoute marks an INVITE for Via/Record-Route insertion by the
	// transport layer; ignored for any other method.
	RecordRoute bool

	// FollowRedirects is accepted for forward-compatibility with a future
	// redirect-handling Fork collaborator; this core does not itself chase
	// 3xx responses for proxied requests (only the dialog package's own
	// INVITE-rejection handling reacts to 3xx, and only for dialogs it
	// owns).
	FollowRedirects bool

	// Headers are prepended to the outgoing request's header set, ahead of
	// whatever the request still carries after RemoveHeaders has been
	// applied.
	Headers []sip.Header

	// Route is prepended to the dialog/request's existing Route set.
	Route []sip.Uri

	// RemoveRoutes clears the request's existing Route set before Route is
	// prepended.
	RemoveRoutes bool

	// RemoveHeaders clears the request's non-system headers before
	// Headers is prepended. "System" headers (Via, From, To, Call-ID,
	// CSeq, Max-Forwards) are never removed.
	RemoveHeaders bool

	// ProxyRequire lists the option tags this proxy supports. Any token in
	// the request's own Proxy-Require header that is not listed here
	// aborts routing with ErrBadExtension carrying those tokens; with an
	// empty list every Proxy-Require token is unsupported.
	ProxyRequire []string
}

var systemHeaders = map[string]bool{
	"Via":          true,
	"From":         true,
	"To":           true,
	"Call-ID":      true,
	"CSeq":         true,
	"Max-Forwards": true,
}
