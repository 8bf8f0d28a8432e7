package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"
)

// ErrBlockedAddress is the cause of an Error for URLs that resolve to loopback,
// private, link-local or otherwise non-public addresses.
var ErrBlockedAddress = errors.New("job postings must be on a public address")

// nonPublic lists ranges not covered by the netip.Addr predicates.
var nonPublic = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // carrier-grade NAT
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"), // NAT64 can reach IPv4 private space
}

// lookupIP resolves host names for CheckHost. Tests replace it.
var lookupIP = net.DefaultResolver.LookupNetIP

func checkAddr(addr netip.Addr) error {
	addr = addr.Unmap()
	if !addr.IsValid() || addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() || addr.IsMulticast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
	}
	for _, p := range nonPublic {
		if p.Contains(addr) {
			return fmt.Errorf("%w: %s", ErrBlockedAddress, addr)
		}
	}
	return nil
}

// dialControl runs after DNS resolution for every connection, so redirects
// and rebinding are checked against the address actually dialed.
func dialControl(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return checkAddr(addr)
}

// publicTransport is an http.Transport that only connects to public addresses.
// Proxies are ignored since the proxy would make the connection instead.
func publicTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   dialControl,
	}
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	t.DialContext = dialer.DialContext
	return t
}

// CheckHost resolves the host of rawURL and fails with ErrBlockedAddress when
// any of its addresses is not public. It guards fetchers that dial on their
// own, such as the headless browser.
func CheckHost(ctx context.Context, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return &Error{URL: rawURL, Message: "invalid URL", Cause: ErrInvalidURL}
	}

	host := u.Hostname()
	if addr, err := netip.ParseAddr(host); err == nil {
		if err := checkAddr(addr); err != nil {
			return &Error{URL: rawURL, Message: "blocked address", Cause: err}
		}
		return nil
	}

	addrs, err := lookupIP(ctx, "ip", host)
	if err != nil {
		return &Error{URL: rawURL, Message: "DNS lookup failed", Cause: err}
	}
	for _, addr := range addrs {
		if err := checkAddr(addr); err != nil {
			return &Error{URL: rawURL, Message: "blocked address", Cause: err}
		}
	}
	return nil
}
