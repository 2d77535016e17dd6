// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"
)

// dnsExchangeLog emits the events of a single DNS exchange.
//
// The query and response methods are installed as the raw message
// observers of the transport performing the exchange.
type dnsExchangeLog struct {
	endpt         connEndpoints
	errClassifier ErrClassifier
	logger        SLogger
	qname         string
	qtype         string
	rawQuery      []byte
	t0            time.Time
	timeNow       func() time.Time
}

func newDNSExchangeLog(r *DNSResolver, conn net.Conn, query *dnscodec.Query) *dnsExchangeLog {
	return &dnsExchangeLog{
		endpt:         newConnEndpoints(conn),
		errClassifier: r.ErrClassifier,
		logger:        r.Logger,
		qname:         dns.Fqdn(query.Name),
		qtype:         dns.TypeToString[query.Type],
		t0:            r.TimeNow(),
		timeNow:       r.TimeNow,
	}
}

func (lc *dnsExchangeLog) start(deadline time.Time) {
	lc.logger.Info(
		"dnsExchangeStart",
		lc.endpt.attrs(
			slog.Time("deadline", deadline),
			slog.String("dnsQueryName", lc.qname),
			slog.String("dnsQueryType", lc.qtype),
			slog.Time("t", lc.t0),
		)...,
	)
}

func (lc *dnsExchangeLog) query(raw []byte) {
	lc.rawQuery = raw
	lc.logger.Info(
		"dnsQuery",
		lc.endpt.attrs(
			slog.Any("dnsRawQuery", raw),
			slog.Time("t", lc.t0),
		)...,
	)
}

func (lc *dnsExchangeLog) response(raw []byte) {
	lc.logger.Info(
		"dnsResponse",
		lc.endpt.attrs(
			slog.Any("dnsRawQuery", lc.rawQuery),
			slog.Any("dnsRawResponse", raw),
			slog.Time("t0", lc.t0),
			slog.Time("t", lc.timeNow()),
		)...,
	)
}

func (lc *dnsExchangeLog) done(deadline time.Time, resp *dnscodec.Response, err error) {
	answers := 0
	if resp != nil {
		answers = len(resp.ValidRRs)
	}
	lc.logger.Info(
		"dnsExchangeDone",
		lc.endpt.attrs(
			slog.Time("deadline", deadline),
			slog.Int("dnsAnswers", answers),
			slog.String("dnsQueryName", lc.qname),
			slog.String("dnsQueryType", lc.qtype),
			slog.Any("err", err),
			slog.String("errClass", lc.errClassifier.Classify(err)),
			slog.Time("t0", lc.t0),
			slog.Time("t", lc.timeNow()),
		)...,
	)
}
