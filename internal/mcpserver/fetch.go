package mcpserver

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/starford/casedesk/internal/docservice"
)

const (
	fetchTimeout   = 30 * time.Second
	fetchRedirects = 5
)

var (
	blockedHostnames = map[string]bool{
		"localhost":                true,
		"metadata":                 true,
		"metadata.google.internal": true,
	}

	// 100.64.0.0/10 carrier-grade NAT, not covered by netip.Addr.IsPrivate.
	sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")
)

// publicAddr reports whether a may be fetched from: anything outside
// loopback, private, link-local, multicast and shared address space.
func publicAddr(a netip.Addr) bool {
	a = a.Unmap()
	switch {
	case !a.IsValid(),
		a.IsUnspecified(),
		a.IsLoopback(),
		a.IsPrivate(),
		a.IsLinkLocalUnicast(),
		a.IsLinkLocalMulticast(),
		a.IsInterfaceLocalMulticast(),
		a.IsMulticast():
		return false
	}
	return !sharedAddressSpace.Contains(a)
}

// remoteFetcher downloads import sources over http(s). Every address a
// host name resolves to must pass allow, and each dial re-checks the
// address actually connected to.
type remoteFetcher struct {
	client *http.Client
	allow  func(netip.Addr) bool
	lookup func(ctx context.Context, host string) ([]netip.Addr, error)
}

func newRemoteFetcher(allow func(netip.Addr) bool) *remoteFetcher {
	f := &remoteFetcher{
		allow: allow,
		lookup: func(ctx context.Context, host string) ([]netip.Addr, error) {
			return net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		},
	}
	dialer := &net.Dialer{Timeout: 10 * time.Second, Control: f.control}
	f.client = &http.Client{
		Timeout: fetchTimeout,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= fetchRedirects {
				return fmt.Errorf("too many redirects (max %d)", fetchRedirects)
			}
			return f.checkURL(req.Context(), req.URL)
		},
	}
	return f
}

func (f *remoteFetcher) control(_, address string, _ syscall.RawConn) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("blocked address %s", address)
	}
	if !f.allow(ap.Addr()) {
		return fmt.Errorf("blocked address %s", ap.Addr())
	}
	return nil
}

// checkURL rejects non-http schemes, known internal names and hosts with
// any resolved address outside the allowed set.
func (f *remoteFetcher) checkURL(ctx context.Context, u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (only http and https)", u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("url has no host")
	}
	if blockedHostnames[host] {
		return fmt.Errorf("blocked host %s", host)
	}

	var addrs []netip.Addr
	if a, err := netip.ParseAddr(host); err == nil {
		addrs = []netip.Addr{a}
	} else {
		if addrs, err = f.lookup(ctx, host); err != nil {
			return fmt.Errorf("resolve %s: %w", host, err)
		}
		if len(addrs) == 0 {
			return fmt.Errorf("resolve %s: no addresses", host)
		}
	}
	for _, a := range addrs {
		if !f.allow(a) {
			return fmt.Errorf("blocked host %s (%s)", host, a)
		}
	}
	return nil
}

// get downloads rawURL, capped at docservice.MaxDocumentBytes.
func (f *remoteFetcher) get(ctx context.Context, rawURL string) (*source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if err := f.checkURL(ctx, u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, docservice.MaxDocumentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) > docservice.MaxDocumentBytes {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", docservice.MaxDocumentBytes)
	}

	src := &source{data: data}
	src.mediaType, _, _ = mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if base := path.Base(resp.Request.URL.Path); strings.Contains(base, ".") {
		src.name = base
	}
	return src, nil
}
