// Package netutil resolves client addresses and matches them against allow-lists.
package netutil

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address the request came from. Forwarding headers
// are only honoured when trustProxy is set, i.e. when the service runs
// behind a reverse proxy that overwrites them.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyFunc returns a ClientIP bound to the proxy trust setting.
func KeyFunc(trustProxy bool) func(r *http.Request) string {
	return func(r *http.Request) string {
		return ClientIP(r, trustProxy)
	}
}

// AllowList is an immutable set of networks.
type AllowList struct {
	prefixes []netip.Prefix
}

// ParseAllowList accepts single addresses and CIDRs.
func ParseAllowList(entries []string) (*AllowList, error) {
	al := &AllowList{prefixes: make([]netip.Prefix, 0, len(entries))}

	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		if strings.Contains(e, "/") {
			p, err := netip.ParsePrefix(e)
			if err != nil {
				return nil, fmt.Errorf("parse network %q: %w", e, err)
			}
			al.prefixes = append(al.prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(e)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", e, err)
		}
		addr = addr.Unmap()
		al.prefixes = append(al.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}

	return al, nil
}

// Contains reports whether ip belongs to any listed network.
func (al *AllowList) Contains(ip string) bool {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, p := range al.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of listed networks.
func (al *AllowList) Len() int {
	return len(al.prefixes)
}
