// Package marketref parses the dotted venue specifiers used on the CLI
// (e.g. "binance.spot", "okx.swap.linear") into their exchange/type/subtype
// components.
package marketref

import (
	"fmt"
	"strings"
)

// Ref identifies a venue market by exchange name, instrument type, and an
// optional subtype (used by venues that distinguish e.g. swap.linear from
// swap.inverse).
type Ref struct {
	Exchange string
	Type     string
	Subtype  string // empty when the spec had only two components
}

// HasSubtype reports whether the ref carries a subtype component.
func (r Ref) HasSubtype() bool {
	return r.Subtype != ""
}

func (r Ref) String() string {
	if r.Subtype == "" {
		return r.Exchange + "." + r.Type
	}
	return r.Exchange + "." + r.Type + "." + r.Subtype
}

// Parse splits a market spec of the form "<exchange>.<type>" or
// "<exchange>.<type>.<subtype>" into its components.
//
// Any other number of dot-separated parts is a configuration error, not a
// recoverable one: Parse returns it unwrapped so the CLI can print it and
// exit non-zero.
func Parse(spec string) (Ref, error) {
	parts := strings.Split(spec, ".")
	switch len(parts) {
	case 2:
		return Ref{Exchange: parts[0], Type: parts[1]}, nil
	case 3:
		return Ref{Exchange: parts[0], Type: parts[1], Subtype: parts[2]}, nil
	default:
		return Ref{}, fmt.Errorf(
			"market parameter %q must match one of:\n"+
				"\t- <exchange>.<type> (e.g. binance.spot)\n"+
				"\t- <exchange>.<type>.<subtype> (e.g. okx.swap.linear)", spec)
	}
}
