package domain

import (
	"net/netip"
	"strconv"
	"strings"
)

// ParseTargets expands a range expression into target addresses.
//
// Accepted forms, checked in this order:
//
//	10.0.0.0/30          every address in the prefix, network and broadcast included
//	10.0.0.1-20          inclusive range over the final octet
//	10.0.0.1,10.0.0.9    comma separated list, entries kept verbatim
//	10.0.0.1             single address, kept verbatim
//
// Malformed input returns nil. Callers treat an empty result as invalid input.
func ParseTargets(expr string) []string {
	targets, _ := expand(expr, 0)
	return targets
}

// ParseTargetsLimit is ParseTargets with a ceiling on the number of
// addresses. Prefixes larger than limit are rejected before expansion.
func ParseTargetsLimit(expr string, limit int) ([]string, error) {
	targets, err := expand(expr, limit)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrInvalidRange
	}
	if limit > 0 && len(targets) > limit {
		return nil, ErrTooManyTargets
	}
	return targets, nil
}

func expand(expr string, limit int) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	switch {
	case strings.Contains(expr, "/"):
		return expandPrefix(expr, limit)
	case strings.Contains(expr, "-"):
		return expandOctetRange(expr), nil
	case strings.Contains(expr, ","):
		var targets []string
		for _, part := range strings.Split(expr, ",") {
			if part = strings.TrimSpace(part); part != "" {
				targets = append(targets, part)
			}
		}
		return targets, nil
	default:
		return []string{expr}, nil
	}
}

// expandPrefix lists every IPv4 address in a CIDR block. Host bits in the
// input are masked off.
func expandPrefix(expr string, limit int) ([]string, error) {
	prefix, err := netip.ParsePrefix(expr)
	if err != nil || !prefix.Addr().Is4() {
		return nil, nil
	}
	prefix = prefix.Masked()

	size := 1 << (32 - prefix.Bits())
	if limit > 0 && size > limit {
		return nil, ErrTooManyTargets
	}
	targets := make([]string, 0, size)
	for addr := prefix.Addr(); prefix.Contains(addr); addr = addr.Next() {
		targets = append(targets, addr.String())
		// 255.255.255.255 has no successor
		if !addr.Next().IsValid() {
			break
		}
	}
	return targets, nil
}

// expandOctetRange handles a.b.c.start-end.
func expandOctetRange(expr string) []string {
	dot := strings.LastIndex(expr, ".")
	if dot < 0 {
		return nil
	}
	base, span := expr[:dot], expr[dot+1:]

	if len(strings.Split(base, ".")) != 3 {
		return nil
	}
	for _, octet := range strings.Split(base, ".") {
		if !validOctet(octet) {
			return nil
		}
	}

	bounds := strings.SplitN(span, "-", 2)
	if len(bounds) != 2 || !validOctet(bounds[0]) || !validOctet(bounds[1]) {
		return nil
	}
	start, _ := strconv.Atoi(strings.TrimSpace(bounds[0]))
	end, _ := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if start > end {
		return nil
	}

	targets := make([]string, 0, end-start+1)
	for i := start; i <= end; i++ {
		targets = append(targets, base+"."+strconv.Itoa(i))
	}
	return targets
}

func validOctet(s string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil && n >= 0 && n <= 255
}
