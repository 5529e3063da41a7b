// Package proxy implements the forking/forwarding proxy routing engine:
// normalizing a caller-supplied target specification into an ordered set
// of serial groups of parallel URIs, and driving a request through them.
// Transport I/O, transaction timers and DNS resolution remain external
// collaborators reached through the same style of narrow interface the
// dialog package uses.
package proxy

import (
	"strings"

	"github.com/sipcore/dialogcore/sip"
)

// URISet is the normalized routing target: an ordered list of groups,
// where every URI within a group is tried in parallel (forking) and
// groups are tried in order (serial forking) until one succeeds.
type URISet [][]sip.Uri

// Normalize converts a caller-supplied target specification into a URISet.
//
// Rules, in order:
//
//  1. A single sip.Uri -> one group with one URI.
//  2. A string parsing to one or more comma-separated URIs -> one group
//     containing those URIs; a string that parses to zero URIs (empty, or
//     unparsable) -> URISet{{}}, the "no routable target" sentinel.
//  3. A flat list (every element a URI or a string) -> every URI
//     concatenated into a single group, forked in parallel.
//  4. A nested list (any element itself a list) -> "multi" mode: the
//     surrounding list becomes a sequence of parallel groups, one per
//     element. A bare URI or string element becomes its own one-element
//     group (or many, if a comma-separated string); a nested element
//     collapses its own contents into a single parallel group.
//  5. Anything else (nil, an empty list, or an unrecognized type) ->
//     URISet{{}}.
func Normalize(spec any) URISet {
	switch v := spec.(type) {
	case nil:
		return URISet{{}}
	case string:
		return normalizeString(v)
	case sip.Uri:
		return URISet{{v}}
	case []string:
		return normalizeList(toAnySlice(v))
	case []sip.Uri:
		if len(v) == 0 {
			return URISet{{}}
		}
		return URISet{append([]sip.Uri(nil), v...)}
	case [][]sip.Uri:
		if len(v) == 0 {
			return URISet{{}}
		}
		out := make(URISet, len(v))
		for i, group := range v {
			out[i] = append([]sip.Uri(nil), group...)
		}
		return out
	case URISet:
		return Normalize([][]sip.Uri(v))
	case []any:
		return normalizeList(v)
	default:
		return URISet{{}}
	}
}

func toAnySlice[T any](v []T) []any {
	out := make([]any, len(v))
	for i, item := range v {
		out[i] = item
	}
	return out
}

// normalizeString parses s as one or more comma-separated SIP URIs into a
// single group. An empty or wholly unparsable string yields the "no
// routable target" sentinel URISet{{}}, which Engine.Start answers with
// the no-target 480 before any other check.
func normalizeString(s string) URISet {
	group := parseURIList(s)
	if len(group) == 0 {
		return URISet{{}}
	}
	return URISet{group}
}

func parseURIList(s string) []sip.Uri {
	var group []sip.Uri
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var u sip.Uri
		if err := sip.ParseUri(part, &u); err != nil {
			continue
		}
		group = append(group, u)
	}
	return group
}

// normalizeList normalizes a heterogeneous list whose elements may each be
// a URI, a string, or a nested list. A flat list folds into one parallel
// group; a list containing any nested element switches to multi mode,
// where every element of the surrounding list becomes its own group.
func normalizeList(items []any) URISet {
	if len(items) == 0 {
		return URISet{{}}
	}
	if !hasNestedElement(items) {
		return URISet{flattenGroup(items)}
	}
	out := make(URISet, 0, len(items))
	for _, item := range items {
		out = append(out, itemToGroup(item))
	}
	return out
}

func hasNestedElement(items []any) bool {
	for _, item := range items {
		switch item.(type) {
		case []any, []sip.Uri, [][]sip.Uri, URISet, []string:
			return true
		}
	}
	return false
}

// itemToGroup normalizes one element of a multi-mode list into a single
// serial group.
func itemToGroup(item any) []sip.Uri {
	switch v := item.(type) {
	case []any:
		return flattenGroup(v)
	case []string:
		return flattenGroup(toAnySlice(v))
	case []sip.Uri:
		return append([]sip.Uri(nil), v...)
	case [][]sip.Uri:
		return URISet(v).Flatten()
	case URISet:
		return v.Flatten()
	default:
		return flattenGroup([]any{item})
	}
}

// flattenGroup parses every element of a flat (non-nested) list into URIs
// and concatenates them into a single parallel group.
func flattenGroup(items []any) []sip.Uri {
	var group []sip.Uri
	for _, item := range items {
		switch v := item.(type) {
		case sip.Uri:
			group = append(group, v)
		case string:
			group = append(group, parseURIList(v)...)
		}
	}
	return group
}

// Flatten returns every URI across every group, in order, useful for
// loop-detection scans that don't care about fork structure.
func (s URISet) Flatten() []sip.Uri {
	var out []sip.Uri
	for _, group := range s {
		out = append(out, group...)
	}
	return out
}

// Empty reports whether the set has no targets at all, across all groups.
func (s URISet) Empty() bool {
	for _, group := range s {
		if len(group) > 0 {
			return false
		}
	}
	return true
}
