// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// observedBody emits httpBodyStreamStart on the first Read and
// httpBodyStreamDone on the first Close, the latter only when the
// body was actually read.
type observedBody struct {
	body      io.ReadCloser
	closeOnce sync.Once
	didRead   atomic.Bool
	endpt     connEndpoints
	hc        *HTTPConn
	readOnce  sync.Once
	t0        time.Time
}

var _ io.ReadCloser = &observedBody{}

func newObservedBody(hc *HTTPConn, body io.ReadCloser) *observedBody {
	return &observedBody{body: body, endpt: newConnEndpoints(hc.conn), hc: hc}
}

// Read implements [io.Reader].
func (b *observedBody) Read(buffer []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.hc.TimeNow()
		b.didRead.Store(true) // publishes t0 to Close
		b.hc.Logger.Info("httpBodyStreamStart", b.endpt.attrs(slog.Time("t", b.t0))...)
	})
	return b.body.Read(buffer)
}

// Close implements [io.Closer].
func (b *observedBody) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if !b.didRead.Load() {
			return
		}
		b.hc.Logger.Info(
			"httpBodyStreamDone",
			b.endpt.attrs(
				slog.Any("err", err),
				slog.String("errClass", b.hc.ErrClassifier.Classify(err)),
				slog.Time("t0", b.t0),
				slog.Time("t", b.hc.TimeNow()),
			)...,
		)
	})
	return
}
