// Copyright (c) 2026 the msgbroker authors.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package netaddr provides the broker's address value type and the
// client-side connect helper described in SPEC_FULL.md §4.2. It is
// deliberately small and has no knowledge of the wire codec or the
// broker: it's the "external collaborator" boundary spec.md §1 calls
// out as out of scope for the core engineering, specified only here.
package netaddr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidAddress reports that an IPv6 construction was given
// something other than exactly eight 16-bit unsigned quartets, or a
// display string that doesn't parse to that shape.
var ErrInvalidAddress = errors.New("netaddr: invalid IPv6 address")

// IPv6 is a tuple of exactly eight 16-bit unsigned quartets.
type IPv6 [8]uint16

// NewIPv6 constructs an IPv6 address from eight quartets. All inputs are
// already uint16, so the only possible failure mode here is arity;
// FromString below is the entry point that validates quartet range.
func NewIPv6(q0, q1, q2, q3, q4, q5, q6, q7 uint16) IPv6 {
	return IPv6{q0, q1, q2, q3, q4, q5, q6, q7}
}

// String renders the address as eight uppercase 4-hex-digit groups
// separated by ':', e.g. "0000:0000:0000:0000:0000:0000:0000:0001".
func (a IPv6) String() string {
	parts := make([]string, 8)
	for i, q := range a {
		parts[i] = fmt.Sprintf("%04X", q)
	}
	return strings.Join(parts, ":")
}

// FromString parses a standard IPv6 literal, including the "::"
// zero-compression form, into an IPv6 value. It returns ErrInvalidAddress
// for anything that isn't exactly eight 16-bit groups once compression
// is expanded.
//
// The original implementation this broker is modeled on only ever needs
// to parse "::1"; this repository generalizes FromString to arbitrary
// IPv6 literals since a broker that binds to a configurable address
// needs that (see SPEC_FULL.md §4.2).
func FromString(s string) (IPv6, error) {
	if s == "" {
		return IPv6{}, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}

	if idx := strings.Index(s, "::"); idx >= 0 {
		head := s[:idx]
		tail := s[idx+2:]
		var headGroups, tailGroups []string
		if head != "" {
			headGroups = strings.Split(head, ":")
		}
		if tail != "" {
			tailGroups = strings.Split(tail, ":")
		}
		fill := 8 - len(headGroups) - len(tailGroups)
		if fill < 0 {
			return IPv6{}, fmt.Errorf("%w: %q has too many groups for \"::\"", ErrInvalidAddress, s)
		}

		groups := make([]string, 0, 8)
		groups = append(groups, headGroups...)
		for i := 0; i < fill; i++ {
			groups = append(groups, "0")
		}
		groups = append(groups, tailGroups...)
		return quartetsFromGroups(s, groups)
	}

	groups := strings.Split(s, ":")
	return quartetsFromGroups(s, groups)
}

func quartetsFromGroups(original string, groups []string) (IPv6, error) {
	if len(groups) != 8 {
		return IPv6{}, fmt.Errorf("%w: %q does not have 8 groups", ErrInvalidAddress, original)
	}
	var addr IPv6
	for i, g := range groups {
		if g == "" {
			return IPv6{}, fmt.Errorf("%w: %q has an empty group", ErrInvalidAddress, original)
		}
		v, err := strconv.ParseUint(g, 16, 32)
		if err != nil || v > 0xFFFF {
			return IPv6{}, fmt.Errorf("%w: %q: group %q is not a valid quartet", ErrInvalidAddress, original, g)
		}
		addr[i] = uint16(v)
	}
	return addr, nil
}
