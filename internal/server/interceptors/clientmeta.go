package interceptors

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/tmmosher/ApHinity-Java-AWS-sub000/internal/identity/service"
)

// ClientMetaResolver resolves the caller's IP and user agent. X-Forwarded-For is honored
// only when the direct peer is a trusted proxy.
type ClientMetaResolver struct {
	trusted []netip.Prefix
}

// NewClientMetaResolver parses trusted proxy entries; each is an IP or a CIDR.
func NewClientMetaResolver(trustedProxies []string) (*ClientMetaResolver, error) {
	r := &ClientMetaResolver{}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
			}
			r.trusted = append(r.trusted, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted proxy %q: %w", entry, err)
		}
		addr = addr.Unmap()
		r.trusted = append(r.trusted, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return r, nil
}

func (c *ClientMetaResolver) isTrusted(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ClientIP returns the first non-empty X-Forwarded-For entry when the peer is trusted,
// otherwise the peer address. Returns "unknown" when RemoteAddr is empty.
func (c *ClientMetaResolver) ClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if peer == "" {
		return "unknown"
	}
	if !c.isTrusted(peer) {
		return peer
	}
	for _, v := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return peer
}

// Resolve returns the client IP and user agent of r.
func (c *ClientMetaResolver) Resolve(r *http.Request) service.ClientMeta {
	return service.ClientMeta{
		IPAddress: c.ClientIP(r),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}
}

// Middleware stores the resolved ClientMeta in the request context.
func (c *ClientMetaResolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(withClientMeta(r.Context(), c.Resolve(r))))
	})
}

// ClientMetaFrom returns the ClientMeta stored by Middleware, resolving it from r when absent.
func (c *ClientMetaResolver) ClientMetaFrom(r *http.Request) service.ClientMeta {
	if meta, ok := GetClientMeta(r.Context()); ok {
		return meta
	}
	return c.Resolve(r)
}
