package safety

import (
	"context"
	"net"
	"net/netip"

	perr "fedigate/internal/platform/errors"
)

// LookupFunc resolves a hostname; seam for tests
type LookupFunc func(ctx context.Context, host string) ([]netip.Addr, error)

func defaultLookup(ctx context.Context, host string) ([]netip.Addr, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]netip.Addr, 0, len(addrs))
	for _, a := range addrs {
		if ip, ok := netip.AddrFromSlice(a.IP); ok {
			out = append(out, ip.Unmap())
		}
	}
	return out, nil
}

// isInternal reports whether an address falls in a range outbound requests
// must never reach: loopback, RFC1918/ULA, link-local, multicast,
// or unspecified
func isInternal(ip netip.Addr) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified()
}

// vetHost enforces the SSRF policy for one host. Literal IP hosts are
// rejected unless the operator opted in, and even then internal ranges
// stay rejected
func vetHost(ctx context.Context, host string, allowIPLiterals bool, lookup LookupFunc) error {
	if ip, err := netip.ParseAddr(host); err == nil {
		if !allowIPLiterals {
			return perr.SsrfBlockedf("literal IP host %s rejected", host)
		}
		if isInternal(ip) {
			return perr.SsrfBlockedf("host %s is in an internal range", host)
		}
		return nil
	}

	addrs, err := lookup(ctx, host)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeNetwork, "resolve %s failed", host)
	}
	for _, ip := range addrs {
		if isInternal(ip) {
			return perr.SsrfBlockedf("host %s resolves to internal address %s", host, ip)
		}
	}
	return nil
}
