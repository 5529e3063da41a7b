package proxy

import (
	"testing"

	"github.com/sipcore/dialogcore/sip"
	"github.com/stretchr/testify/assert"
)

// uri builds a test fixture by parsing through sip.ParseUri so it carries
// the same Scheme/UriParams/Headers zero values Normalize's own string
// parsing produces, keeping equality checks meaningful when a test mixes
// literal URIs with parsed ones in the same group.
func uri(user string) sip.Uri {
	var u sip.Uri
	_ = sip.ParseUri("sip:"+user+"@example.com", &u)
	return u
}

func TestNormalize_EmptyInput(t *testing.T) {
	assert.Equal(t, URISet{{}}, Normalize(nil))
	assert.Equal(t, URISet{{}}, Normalize([]sip.Uri{}))
	assert.Equal(t, URISet{{}}, Normalize([]any{}))
}

func TestNormalize_SingleURI(t *testing.T) {
	got := Normalize(uri("a"))
	assert.Equal(t, URISet{{uri("a")}}, got)
}

func TestNormalize_FlatList(t *testing.T) {
	got := Normalize([]sip.Uri{uri("a"), uri("b"), uri("c"), uri("d"), uri("e")})
	assert.Equal(t, URISet{{uri("a"), uri("b"), uri("c"), uri("d"), uri("e")}}, got)
}

// TestNormalize_MultiMode verifies a nested list mixing
// single URIs and sub-groups produces one serial group per top-level
// element, forking within any sub-group.
func TestNormalize_MultiMode(t *testing.T) {
	input := [][]sip.Uri{
		{uri("a")},
		{uri("b"), uri("c")},
		{uri("d")},
		{uri("e")},
	}
	got := Normalize(input)
	want := URISet{{uri("a")}, {uri("b"), uri("c")}, {uri("d")}, {uri("e")}}
	assert.Equal(t, want, got)
}

// TestNormalize_HeterogeneousFlatList covers a mixed string/URI flat list
// ["sip:a","sip:b",UriC,"sip:d","sip:e"] -> one parallel group with all
// five URIs, the shape a caller building a Go literal target list actually
// produces.
func TestNormalize_HeterogeneousFlatList(t *testing.T) {
	input := []any{"sip:a@example.com", "sip:b@example.com", uri("c"), "sip:d@example.com", "sip:e@example.com"}
	got := Normalize(input)
	want := URISet{{uri("a"), uri("b"), uri("c"), uri("d"), uri("e")}}
	assert.Equal(t, want, got)
}

// TestNormalize_HeterogeneousMultiMode covers a mixed list with a nested
// sub-group in the middle: ["sip:a",["sip:b",UriC],"sip:d",["sip:e"]] ->
// one group per top-level element, folding the sub-group's contents into
// a single parallel group.
func TestNormalize_HeterogeneousMultiMode(t *testing.T) {
	input := []any{
		"sip:a@example.com",
		[]any{"sip:b@example.com", uri("c")},
		"sip:d@example.com",
		[]any{"sip:e@example.com"},
	}
	got := Normalize(input)
	want := URISet{{uri("a")}, {uri("b"), uri("c")}, {uri("d")}, {uri("e")}}
	assert.Equal(t, want, got)
}

// TestNormalize_HeterogeneousLeadingGroup covers a nested sub-group that
// comes first: [["sip:a","sip:b",UriC],"sip:d","sip:e"] -> the sub-group
// folds into one parallel group, the trailing bare elements each get
// their own one-element group.
func TestNormalize_HeterogeneousLeadingGroup(t *testing.T) {
	input := []any{
		[]any{"sip:a@example.com", "sip:b@example.com", uri("c")},
		"sip:d@example.com",
		"sip:e@example.com",
	}
	got := Normalize(input)
	want := URISet{{uri("a"), uri("b"), uri("c")}, {uri("d")}, {uri("e")}}
	assert.Equal(t, want, got)
}

// TestNormalize_CommaSeparatedString covers a single string carrying
// multiple comma-separated URIs, which must parse into one group of N
// URIs rather than a single unparsable URI.
func TestNormalize_CommaSeparatedString(t *testing.T) {
	got := Normalize("sip:a@example.com,sip:b@example.com, sip:c@example.com")
	want := URISet{{uri("a"), uri("b"), uri("c")}}
	assert.Equal(t, want, got)
}

// TestNormalize_Idempotent verifies that normalizing an already-normal
// value is a no-op.
func TestNormalize_Idempotent(t *testing.T) {
	inputs := []any{
		URISet{{}},
		URISet{{uri("a")}},
		URISet{{uri("a"), uri("b")}, {uri("c")}},
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice)
	}
}

func TestNormalize_UnrecognizedShape(t *testing.T) {
	assert.Equal(t, URISet{{}}, Normalize(42))
}

// TestNormalize_ParsesURIString verifies a raw SIP-URI string is
// parsed into a single-URI group.
func TestNormalize_ParsesURIString(t *testing.T) {
	got := Normalize("sip:a@example.com")
	want := URISet{{uri("a")}}
	assert.Equal(t, want, got)
}

func TestNormalize_UnparsableStringYieldsEmptyGroup(t *testing.T) {
	got := Normalize("not-a-uri")
	assert.Equal(t, URISet{{}}, got)
	assert.True(t, got.Empty())
}

func TestURISet_Flatten(t *testing.T) {
	s := URISet{{uri("a")}, {uri("b"), uri("c")}}
	assert.Equal(t, []sip.Uri{uri("a"), uri("b"), uri("c")}, s.Flatten())
}

func TestURISet_Empty(t *testing.T) {
	assert.True(t, URISet{}.Empty())
	assert.True(t, URISet{{}}.Empty())
	assert.False(t, URISet{{uri("a")}}.Empty())
}
