// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/bassosimone/minest"
	"github.com/bassosimone/netstub"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newDNSConn returns a connection that answers each written query with
// the message built by reply.
func newDNSConn(t *testing.T, reply func(query *dns.Msg) *dns.Msg) (*netstub.FuncConn, *int) {
	conn := newMinimalConn()
	closed := 0
	var pending []byte
	conn.WriteFunc = func(b []byte) (int, error) {
		query := new(dns.Msg)
		require.NoError(t, query.Unpack(b))
		resp := reply(query)
		raw, err := resp.Pack()
		require.NoError(t, err)
		pending = raw
		return len(b), nil
	}
	conn.ReadFunc = func(b []byte) (int, error) {
		return copy(b, pending), nil
	}
	conn.SetDeadlineFunc = func(time.Time) error { return nil }
	conn.CloseFunc = func() error {
		closed++
		return nil
	}
	return conn, &closed
}

func newTestDNSResolver(conn net.Conn) (*DNSResolver, *[]slog.Record) {
	logger, records := newCapturingLogger()
	r := NewDNSResolver(NewConfig(), netip.MustParseAddrPort("127.0.0.1:53"), logger)
	r.Dial = FuncAdapter[Unit, net.Conn](func(ctx context.Context, _ Unit) (net.Conn, error) {
		return conn, nil
	})
	return r, records
}

func TestNewDNSResolver(t *testing.T) {
	r := NewDNSResolver(NewConfig(), netip.MustParseAddrPort("8.8.8.8:53"), DefaultSLogger())

	require.NotNil(t, r)
	assert.NotNil(t, r.Dial)
	assert.NotNil(t, r.ErrClassifier)
	assert.NotNil(t, r.Logger)
	assert.Equal(t, netip.MustParseAddrPort("8.8.8.8:53"), r.Server)
	assert.Equal(t, minest.DefaultResolverTimeout, r.Timeout)
	assert.NotNil(t, r.TimeNow)
}

func TestDNSResolverLookupAddr(t *testing.T) {
	conn, closed := newDNSConn(t, func(query *dns.Msg) *dns.Msg {
		assert.Equal(t, dns.TypePTR, query.Question[0].Qtype)
		assert.Equal(t, "1.0.0.127.in-addr.arpa.", query.Question[0].Name)
		resp := new(dns.Msg)
		resp.SetReply(query)
		resp.Answer = append(resp.Answer, &dns.PTR{
			Hdr: dns.RR_Header{Name: query.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
			Ptr: "shark.example.com.",
		})
		return resp
	})
	r, records := newTestDNSResolver(conn)

	names, err := r.LookupAddr(context.Background(), "127.0.0.1")

	require.NoError(t, err)
	assert.Equal(t, []string{"shark.example.com."}, names)
	assert.Equal(t, 1, *closed)
	assert.Equal(t, []string{"dnsExchangeStart", "dnsQuery", "dnsResponse", "dnsExchangeDone"}, recordMessages(*records))
}

func TestDNSResolverLookupHost(t *testing.T) {
	conn, closed := newDNSConn(t, func(query *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(query)
		hdr := dns.RR_Header{Name: query.Question[0].Name, Rrtype: query.Question[0].Qtype, Class: dns.ClassINET, Ttl: 60}
		switch query.Question[0].Qtype {
		case dns.TypeA:
			resp.Answer = append(resp.Answer, &dns.A{Hdr: hdr, A: net.ParseIP("192.0.2.1")})
		case dns.TypeAAAA:
			resp.Answer = append(resp.Answer, &dns.AAAA{Hdr: hdr, AAAA: net.ParseIP("2001:db8::1")})
		}
		return resp
	})
	r, _ := newTestDNSResolver(conn)

	addrs, err := r.LookupHost(context.Background(), "shark.example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1", "2001:db8::1"}, addrs)
	assert.Equal(t, 2, *closed)
}

func TestDNSResolverLookupHostLiteral(t *testing.T) {
	r := NewDNSResolver(NewConfig(), netip.MustParseAddrPort("127.0.0.1:53"), DefaultSLogger())
	r.Dial = FuncAdapter[Unit, net.Conn](func(ctx context.Context, _ Unit) (net.Conn, error) {
		t.Fatal("should not dial")
		return nil, nil
	})

	addrs, err := r.LookupHost(context.Background(), "::1")

	require.NoError(t, err)
	assert.Equal(t, []string{"::1"}, addrs)
}

func TestDNSResolverErrors(t *testing.T) {
	tests := []struct {
		name    string
		reply   func(query *dns.Msg) *dns.Msg
		wantErr error
	}{
		{
			name: "nxdomain",
			reply: func(query *dns.Msg) *dns.Msg {
				resp := new(dns.Msg)
				resp.SetRcode(query, dns.RcodeNameError)
				return resp
			},
			wantErr: dnscodec.ErrNoName,
		},

		{
			name: "servfail",
			reply: func(query *dns.Msg) *dns.Msg {
				resp := new(dns.Msg)
				resp.SetRcode(query, dns.RcodeServerFailure)
				return resp
			},
			wantErr: dnscodec.ErrServerTemporarilyMisbehaving,
		},

		{
			name: "id mismatch",
			reply: func(query *dns.Msg) *dns.Msg {
				resp := new(dns.Msg)
				resp.SetReply(query)
				resp.Id = query.Id + 1
				return resp
			},
			wantErr: dnscodec.ErrInvalidResponse,
		},

		{
			name: "empty answer",
			reply: func(query *dns.Msg) *dns.Msg {
				resp := new(dns.Msg)
				resp.SetReply(query)
				return resp
			},
			wantErr: dnscodec.ErrNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, closed := newDNSConn(t, tt.reply)
			r, _ := newTestDNSResolver(conn)

			names, err := r.LookupAddr(context.Background(), "192.0.2.1")

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, names)
			assert.Equal(t, 1, *closed)
		})
	}
}

func TestDNSResolverDialError(t *testing.T) {
	wantErr := errors.New("network unreachable")
	r := NewDNSResolver(NewConfig(), netip.MustParseAddrPort("127.0.0.1:53"), DefaultSLogger())
	r.Dial = FuncAdapter[Unit, net.Conn](func(ctx context.Context, _ Unit) (net.Conn, error) {
		return nil, wantErr
	})

	addrs, err := r.LookupHost(context.Background(), "shark.example.com")

	require.ErrorIs(t, err, wantErr)
	assert.Nil(t, addrs)
}

func TestDNSResolverInvalidReverseAddr(t *testing.T) {
	r := NewDNSResolver(NewConfig(), netip.MustParseAddrPort("127.0.0.1:53"), DefaultSLogger())

	_, err := r.LookupAddr(context.Background(), "not-an-address")

	require.Error(t, err)
}

func TestDNSResolverLookupHostNoAddresses(t *testing.T) {
	conn, _ := newDNSConn(t, func(query *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(query)
		return resp
	})
	r, _ := newTestDNSResolver(conn)

	addrs, err := r.LookupHost(context.Background(), "shark.example.com")

	require.ErrorIs(t, err, dnscodec.ErrNoData)
	assert.Nil(t, addrs)
}

func TestDNSResolverExchangeDeadline(t *testing.T) {
	conn, _ := newDNSConn(t, func(query *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(query)
		resp.Answer = append(resp.Answer, &dns.PTR{
			Hdr: dns.RR_Header{Name: query.Question[0].Name, Rrtype: dns.TypePTR, Class: dns.ClassINET, Ttl: 60},
			Ptr: "shark.example.com.",
		})
		return resp
	})
	var deadlines []time.Time
	conn.SetDeadlineFunc = func(d time.Time) error {
		deadlines = append(deadlines, d)
		return nil
	}
	r, _ := newTestDNSResolver(conn)
	r.Timeout = time.Minute

	t0 := time.Now()
	_, err := r.LookupAddr(context.Background(), "192.0.2.1")

	require.NoError(t, err)
	require.NotEmpty(t, deadlines)
	assert.WithinDuration(t, t0.Add(time.Minute), deadlines[0], 10*time.Second)
	assert.True(t, deadlines[len(deadlines)-1].IsZero())
}

func TestDNSResolverUnresponsiveServer(t *testing.T) {
	pconn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pconn.Close()

	logger, records := newCapturingLogger()
	server := netip.MustParseAddrPort(pconn.LocalAddr().String())
	r := NewDNSResolver(NewConfig(), server, logger)
	r.Timeout = 50 * time.Millisecond

	names, err := r.LookupAddr(context.Background(), "192.0.2.1")

	// The read deadline and the context watcher expire together: either
	// one may interrupt the read first.
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, net.ErrClosed), err.Error())
	assert.Nil(t, names)
	var done slog.Record
	for _, record := range *records {
		if record.Message == "dnsExchangeDone" {
			done = record
		}
	}
	assert.Contains(t, []string{"ETIMEDOUT", "EINTR"}, recordAttrs(done)["errClass"])
}

func TestDNSNoDialerPanics(t *testing.T) {
	assert.Panics(t, func() {
		dnsNoDialer{}.DialContext(context.Background(), "udp", "127.0.0.1:53")
	})
}
