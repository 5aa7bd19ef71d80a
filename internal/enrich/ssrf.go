package enrich

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"
)

// errDisallowedAddress marks a connection attempt to a private, loopback, or
// otherwise non-public address. Link targets are untrusted input; without
// this check a note containing http://169.254.169.254/ would let the
// enrichment worker read cloud instance metadata.
var errDisallowedAddress = errors.New("target resolves to a disallowed address")

// ParseTarget validates a link URL before any connection is attempted.
// Only http and https are allowed, and host names that are literal IPs are
// rejected immediately when non-public. Host names that resolve to private
// addresses are caught later by the dialer control hook.
func ParseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("url has no host")
	}
	if ip := net.ParseIP(u.Hostname()); ip != nil && isDisallowedIP(ip) {
		return nil, fmt.Errorf("%w: %s", errDisallowedAddress, ip)
	}
	return u, nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

// NewFetchClient builds the HTTP client used for link enrichment. The dialer
// re-checks every connection target after DNS resolution, so a public host
// name resolving to 127.0.0.1 is refused at dial time. Redirects pass through
// the same dialer, and are capped to avoid redirect loops.
func NewFetchClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: func(network, address string, _ syscall.RawConn) error {
			host, _, err := net.SplitHostPort(address)
			if err != nil {
				return fmt.Errorf("splitting dial address: %w", err)
			}
			ip := net.ParseIP(host)
			if ip == nil || isDisallowedIP(ip) {
				return fmt.Errorf("%w: %s", errDisallowedAddress, host)
			}
			return nil
		},
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext:       dialer.DialContext,
			MaxIdleConns:      10,
			IdleConnTimeout:   30 * time.Second,
			ForceAttemptHTTP2: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}
}

// isDisallowedTarget reports whether err stems from the SSRF guard.
func isDisallowedTarget(err error) bool {
	return errors.Is(err, errDisallowedAddress)
}
