package dialog

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/sipcore/dialogcore/sip"
)

// Transport is the narrow surface this package needs from the transport
// layer. It is satisfied by a thin adapter over the sip package's
// transaction/transport layers; dialog itself never touches a socket.
type Transport interface {
	SendRequest(req *sip.Request) error
	ResendRequest(ack *sip.Request) error
	AddVia(req *sip.Request) *sip.Request
	IsLocal(appID string, u sip.Uri) bool
}

// Parser is the narrow surface this package needs from the wire-format
// parser, used only to turn a Contact/Route header value into structured
// URIs when building in-dialog requests.
type Parser interface {
	ParseURIs(s string) ([]sip.Uri, error)
}

// CSeqSeeder produces the initial CSeq number for a fresh dialog. The
// default implementation draws from crypto/rand rather than math/rand.
type CSeqSeeder func() uint32

// DefaultCSeqSeeder returns a CSeqSeeder backed by crypto/rand, masked to
// stay within the 31-bit range RFC 3261 §8.1.1.5 recommends so a handful of
// in-dialog requests can be sent before any wraparound concern arises.
func DefaultCSeqSeeder() CSeqSeeder {
	return func() uint32 {
		var buf [4]byte
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is fatal to the whole process in practice;
			// degrade to a fixed seed rather than panic here so a single
			// dialog creation can't bring down a caller that ignores this
			// edge case.
			return 1
		}
		return binary.BigEndian.Uint32(buf[:]) & 0x7fffffff
	}
}
