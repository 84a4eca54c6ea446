package middleware

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	havenAuth "github.com/MrEthical07/havenAuth"
	"golang.org/x/time/rate"
)

// ProxyTrust lists the reverse proxies whose X-Forwarded-For header is
// believed. A nil ProxyTrust believes no one and uses the socket address.
type ProxyTrust struct {
	prefixes []netip.Prefix
}

// NewProxyTrust parses CIDRs or bare addresses. An empty list yields nil.
func NewProxyTrust(cidrs []string) (*ProxyTrust, error) {
	if len(cidrs) == 0 {
		return nil, nil
	}
	p := &ProxyTrust{prefixes: make([]netip.Prefix, 0, len(cidrs))}
	for _, raw := range cidrs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
			}
			p.prefixes = append(p.prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", raw, err)
		}
		p.prefixes = append(p.prefixes, prefix.Masked())
	}
	return p, nil
}

func (p *ProxyTrust) trusted(ip string) bool {
	if p == nil {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the socket peer, unless that peer is a trusted proxy. Then
// X-Forwarded-For is walked from the right and the first hop that is not a
// trusted proxy wins.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	peer := remoteHost(r)
	if !p.trusted(peer) {
		return peer
	}
	xff := r.Header.Values("X-Forwarded-For")
	hops := strings.Split(strings.Join(xff, ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !p.trusted(hop) {
			return hop
		}
		peer = hop
	}
	return peer
}

// RequestMeta records the client address, as resolved by p, and the user
// agent in the request context.
func (p *ProxyTrust) RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := havenAuth.WithClientIP(r.Context(), p.ClientIP(r))
		ctx = havenAuth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RateLimit is [RateLimit] keyed by the address p resolves.
func (p *ProxyTrust) RateLimit(perSecond rate.Limit, burst int) func(http.Handler) http.Handler {
	return rateLimit(perSecond, burst, p.ClientIP)
}

// ClientIP is the socket peer address. Forwarding headers are ignored; use a
// [ProxyTrust] behind a reverse proxy.
func ClientIP(r *http.Request) string {
	return (*ProxyTrust)(nil).ClientIP(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
