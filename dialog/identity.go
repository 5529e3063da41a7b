package dialog

import (
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// NewAppID synthesizes an application identifier for a call that didn't
// supply one via CallState.AppID, so every Dialog this package creates
// carries a stable, unique value for correlating it in logs even when the
// caller has no application-level identifier of its own.
func NewAppID() string {
	return uuid.NewString()
}

// Identity computes the symmetric dialog-id hash:
// id(call_id, from_tag, to_tag) = H(call_id, min(tagA,tagB), max(tagA,tagB))
// for a deterministic H, so that the UAC and UAS derive the same id
// regardless of which side's from/to tag is passed first (RFC 3261 §12).
//
// Both tags must be non-empty; with an empty tag the id is undefined and
// callers should use PendingIdentity instead.
func Identity(callID, tagA, tagB string) string {
	low, high := tagA, tagB
	if high < low {
		low, high = high, low
	}
	return hashID(callID, low, high)
}

// PendingIdentity computes a provisional dialog-id for an INVITE that has
// not yet received a To-tag, keyed off a caller-supplied pending tag. It
// reports false when pendingTag is empty.
func PendingIdentity(callID, localTag, pendingTag string) (string, bool) {
	if pendingTag == "" {
		return "", false
	}
	return Identity(callID, localTag, pendingTag), true
}

// hashID is the deterministic 32-bit hash H. It is built on xxhash rather
// than a hand-rolled FNV loop since xxhash is already the short-key hashing
// library of choice across the example corpus this package is grounded on.
func hashID(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(0)
		}
		b.WriteString(p)
	}
	sum := xxhash.Sum64String(b.String())
	// Fold to 32 bits since only a 32-bit hash is required; XOR-folding
	// the upper half keeps both halves of the 64-bit digest relevant.
	h32 := uint32(sum) ^ uint32(sum>>32)
	return formatHash(h32)
}

const hexDigits = "0123456789abcdef"

func formatHash(h uint32) string {
	buf := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		buf[i] = hexDigits[h&0xf]
		h >>= 4
	}
	return string(buf)
}
