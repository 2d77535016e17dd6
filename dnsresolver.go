//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/bassosimone/nop/blob/main/dnsoverudp.go
//

package gateway

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/minest"
	"github.com/miekg/dns"
	"go.uber.org/multierr"
)

// NewDNSResolver returns a new [*DNSResolver] querying server.
//
// The resolver dials using cfg.Dialer, so cfg.Resolver may safely point
// back to the returned value.
func NewDNSResolver(cfg *Config, server netip.AddrPort, logger SLogger) *DNSResolver {
	return &DNSResolver{
		Dial: Apply(Compose3(
			NewConnectFunc(cfg, "udp", logger),
			NewObserveConnFunc(cfg, logger),
			NewCancelWatchFunc(),
		), server),
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		Server:        server,
		Timeout:       minest.DefaultResolverTimeout,
		TimeNow:       cfg.TimeNow,
	}
}

// DNSResolver implements [Resolver] using DNS over UDP.
//
// Each query dials a fresh connection, performs a single exchange, and
// closes the connection. Truncated responses are not retried over TCP.
//
// All fields are safe to modify after construction but before first use.
type DNSResolver struct {
	// Dial returns a connection to the DNS server.
	Dial Func[Unit, net.Conn]

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	Logger SLogger

	// Server is the DNS server endpoint.
	Server netip.AddrPort

	// Timeout bounds each query. Zero means relying on the context.
	//
	// Set by [NewDNSResolver] to [minest.DefaultResolverTimeout].
	Timeout time.Duration

	// TimeNow is the function to get the current time.
	TimeNow func() time.Time
}

var _ Resolver = &DNSResolver{}

// LookupHost returns the IPv4 and IPv6 addresses of host.
//
// An IP address literal is returned as is without querying.
func (r *DNSResolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []string{addr.String()}, nil
	}
	var (
		addrs []string
		errs  error
	)
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		resp, err := r.lookup(ctx, dnscodec.NewQuery(host, qtype))
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		records := resp.RecordsA
		if qtype == dns.TypeAAAA {
			records = resp.RecordsAAAA
		}
		values, err := records()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		addrs = append(addrs, values...)
	}
	if len(addrs) <= 0 {
		return nil, errs
	}
	return addrs, nil
}

// LookupAddr returns the names pointing to addr, with the trailing dot.
func (r *DNSResolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	arpa, err := dns.ReverseAddr(addr)
	if err != nil {
		return nil, err
	}
	resp, err := r.lookup(ctx, dnscodec.NewQuery(arpa, dns.TypePTR))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, rr := range resp.ValidRRs {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	if len(names) <= 0 {
		return nil, dnscodec.ErrNoData
	}
	return names, nil
}

// lookup performs an exchange on a freshly dialed connection.
func (r *DNSResolver) lookup(ctx context.Context, query *dnscodec.Query) (*dnscodec.Response, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	conn, err := r.Dial.Call(ctx, Unit{})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return r.exchange(ctx, conn, query)
}

// exchange sends query over conn and waits for the response.
func (r *DNSResolver) exchange(ctx context.Context, conn net.Conn, query *dnscodec.Query) (*dnscodec.Response, error) {
	deadline, _ := ctx.Deadline()
	lc := newDNSExchangeLog(r, conn, query)

	// The transport only sees conn, so its dialer must never run.
	txp := minest.NewDNSOverUDPTransport(dnsNoDialer{}, r.Server)
	txp.ObserveRawQuery = lc.query
	txp.ObserveRawResponse = lc.response

	lc.start(deadline)
	resp, err := txp.ExchangeWithConn(ctx, conn, query)
	lc.done(deadline, resp, err)
	return resp, err
}

// dnsNoDialer is a [minest.NetDialer] that refuses to dial.
type dnsNoDialer struct{}

var _ minest.NetDialer = dnsNoDialer{}

// DialContext always panics: dialing here is a programming error.
func (dnsNoDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	panic("gateway: DNS exchanges must reuse the dialed connection")
}
