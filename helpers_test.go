// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/mock"
)

// newCapturingLogger returns a logger that captures all log records into the
// returned slice. The caller can inspect the slice after exercising the code
// under test to verify which events were emitted.
func newCapturingLogger() (*slog.Logger, *[]slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record)
			mu.Unlock()
			return nil
		},
	}
	return slog.New(handler), &records
}

// recordAttrs flattens the attributes of a record into a map of strings.
func recordAttrs(record slog.Record) map[string]string {
	attrs := make(map[string]string)
	record.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.String()
		return true
	})
	return attrs
}

// recordMessages returns the messages of the captured records, in order.
func recordMessages(records []slog.Record) []string {
	var messages []string
	for _, record := range records {
		messages = append(messages, record.Message)
	}
	return messages
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 8080} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 54321} },
	}
}

// scriptedConn is a connection that returns a fixed request on the first
// Read, records everything written to it, and counts Close calls.
type scriptedConn struct {
	*netstub.FuncConn
	closed  int
	request []byte
	reads   int
	written bytes.Buffer
}

// newScriptedConn returns a [*scriptedConn] serving the given request.
func newScriptedConn(request string) *scriptedConn {
	sc := &scriptedConn{FuncConn: newMinimalConn(), request: []byte(request)}
	sc.ReadFunc = func(b []byte) (int, error) {
		sc.reads++
		if sc.reads > 1 || len(sc.request) == 0 {
			return 0, io.EOF
		}
		return copy(b, sc.request), nil
	}
	sc.WriteFunc = func(b []byte) (int, error) {
		return sc.written.Write(b)
	}
	sc.CloseFunc = func() error {
		sc.closed++
		return nil
	}
	sc.SetDeadlineFunc = func(t time.Time) error { return nil }
	sc.SetReadDeadFunc = func(t time.Time) error { return nil }
	sc.SetWriteDeaFunc = func(t time.Time) error { return nil }
	return sc
}

// mockListener is a [net.Listener] mocked with testify.
type mockListener struct {
	mock.Mock
}

var _ net.Listener = &mockListener{}

func (m *mockListener) Accept() (net.Conn, error) {
	args := m.Called()
	c, _ := args.Get(0).(net.Conn)
	return c, args.Error(1)
}

func (m *mockListener) expectAccept(c net.Conn, err error) *mock.Call {
	return m.On("Accept").Return(c, err)
}

func (m *mockListener) Close() error {
	return m.Called().Error(0)
}

func (m *mockListener) expectClose(err error) *mock.Call {
	return m.On("Close").Return(err)
}

func (m *mockListener) Addr() net.Addr {
	args := m.Called()
	a, _ := args.Get(0).(net.Addr)
	return a
}

func (m *mockListener) expectAddr(a net.Addr) *mock.Call {
	return m.On("Addr").Return(a)
}
