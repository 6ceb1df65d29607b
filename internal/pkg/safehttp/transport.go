package safehttp

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Blocked reports whether ip is in a loopback, private or link-local range.
func Blocked(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified()
}

// DialContext connects like net.Dialer but rejects private destinations to
// reduce SSRF risk.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	ip := net.ParseIP(host)
	if ip == nil {
		conn.Close()
		return nil, fmt.Errorf("failed to parse remote IP for %q", addr)
	}

	if Blocked(ip) {
		conn.Close()
		return nil, fmt.Errorf("access to private IP %s is denied", ip)
	}

	return conn, nil
}

// NewTransport returns a transport that refuses private destinations.
func NewTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = DialContext
	return t
}
