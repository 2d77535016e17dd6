// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReadRequestFunc(t *testing.T) {
	cfg := NewConfig()
	cfg.ReadTimeout = time.Second

	fn := NewReadRequestFunc(cfg, DefaultSLogger())

	require.NotNil(t, fn)
	assert.Equal(t, DefaultReadBufferSize, fn.BufferSize)
	assert.Equal(t, time.Second, fn.ReadTimeout)
	assert.NotNil(t, fn.ErrClassifier)
	assert.NotNil(t, fn.Logger)
	assert.NotNil(t, fn.TimeNow)
}

func TestReadRequestFunc(t *testing.T) {
	tests := []struct {
		// name describes what this test case verifies.
		name string

		// request is what the peer sends.
		request string

		// bufferSize overrides the default buffer size when positive.
		bufferSize int

		// wantText is the expected request text.
		wantText string

		// wantErr is the expected error.
		wantErr error

		// wantEvents are the expected log messages.
		wantEvents []string
	}{
		{
			name:       "complete request",
			request:    "GET /shark HTTP/1.1\r\nHost: x\r\n\r\n",
			wantText:   "GET /shark HTTP/1.1\r\nHost: x\r\n\r\n",
			wantEvents: []string{"readRequestStart", "readRequestDone", "httpRequest"},
		},

		{
			name:       "empty request",
			request:    "",
			wantErr:    ErrEmptyRequest,
			wantEvents: []string{"readRequestStart", "readRequestDone"},
		},

		{
			name:       "invalid utf-8",
			request:    "GET /\xff\xfe HTTP/1.1\r\n\r\n",
			wantErr:    ErrInvalidEncoding,
			wantEvents: []string{"readRequestStart", "readRequestDone"},
		},

		{
			name:       "request larger than the buffer is truncated",
			request:    "GET /shark HTTP/1.1\r\n\r\n",
			bufferSize: 10,
			wantText:   "GET /shark",
			wantEvents: []string{"readRequestStart", "readRequestDone", "httpRequest"},
		},

		{
			name:       "two-byte character cut by the buffer end is dropped",
			request:    "GET /\u00e9 HTTP/1.1\r\n\r\n",
			bufferSize: 6,
			wantText:   "GET /",
			wantEvents: []string{"readRequestStart", "readRequestDone", "httpRequest"},
		},

		{
			name:       "four-byte character cut by the buffer end is dropped",
			request:    "GET /\U0001f988 HTTP/1.1\r\n\r\n",
			bufferSize: 8,
			wantText:   "GET /",
			wantEvents: []string{"readRequestStart", "readRequestDone", "httpRequest"},
		},

		{
			name:       "character ending at the buffer end is kept",
			request:    "GET /\u00e9 HTTP/1.1\r\n\r\n",
			bufferSize: 7,
			wantText:   "GET /\u00e9",
			wantEvents: []string{"readRequestStart", "readRequestDone", "httpRequest"},
		},

		{
			name:       "invalid byte at the buffer end is rejected",
			request:    "GET /\xff HTTP/1.1\r\n\r\n",
			bufferSize: 6,
			wantErr:    ErrInvalidEncoding,
			wantEvents: []string{"readRequestStart", "readRequestDone"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newScriptedConn(tt.request)
			logger, records := newCapturingLogger()
			fn := NewReadRequestFunc(NewConfig(), logger)
			if tt.bufferSize > 0 {
				fn.BufferSize = tt.bufferSize
			}

			raw, err := fn.Call(context.Background(), conn)

			assert.Equal(t, 1, conn.reads)
			assert.Equal(t, tt.wantEvents, recordMessages(*records))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, raw.Text)
			assert.Equal(t, conn, raw.Conn)
		})
	}
}

func TestReadRequestFuncReadError(t *testing.T) {
	t.Run("error without data", func(t *testing.T) {
		conn := newScriptedConn("")
		conn.ReadFunc = func(b []byte) (int, error) {
			return 0, syscall.ECONNRESET
		}

		raw, err := NewReadRequestFunc(NewConfig(), DefaultSLogger()).Call(context.Background(), conn)

		require.ErrorIs(t, err, syscall.ECONNRESET)
		assert.Nil(t, raw)
	})

	t.Run("error with data keeps the data", func(t *testing.T) {
		conn := newScriptedConn("")
		conn.ReadFunc = func(b []byte) (int, error) {
			return copy(b, "GET / HTTP/1.0\r\n\r\n"), syscall.ECONNRESET
		}

		raw, err := NewReadRequestFunc(NewConfig(), DefaultSLogger()).Call(context.Background(), conn)

		require.NoError(t, err)
		assert.Equal(t, "GET / HTTP/1.0\r\n\r\n", raw.Text)
	})
}

func TestReadRequestFuncReadTimeout(t *testing.T) {
	t.Run("deadline is set", func(t *testing.T) {
		var deadline time.Time
		conn := newScriptedConn("GET / HTTP/1.1\r\n\r\n")
		conn.SetReadDeadFunc = func(t time.Time) error {
			deadline = t
			return nil
		}
		fn := NewReadRequestFunc(NewConfig(), DefaultSLogger())
		fn.ReadTimeout = time.Minute

		_, err := fn.Call(context.Background(), conn)

		require.NoError(t, err)
		assert.False(t, deadline.IsZero())
	})

	t.Run("deadline error", func(t *testing.T) {
		wantErr := errors.New("use of closed network connection")
		conn := newScriptedConn("GET / HTTP/1.1\r\n\r\n")
		conn.SetReadDeadFunc = func(t time.Time) error {
			return wantErr
		}
		fn := NewReadRequestFunc(NewConfig(), DefaultSLogger())
		fn.ReadTimeout = time.Minute

		_, err := fn.Call(context.Background(), conn)

		require.ErrorIs(t, err, wantErr)
		assert.Equal(t, 0, conn.reads)
	})
}

func TestTrimPartialRune(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"ascii", "abc", "abc"},
		{"complete two-byte", "a\u00e9", "a\u00e9"},
		{"cut two-byte", "a\xc3", "a"},
		{"cut three-byte after one byte", "a\xe2", "a"},
		{"cut three-byte after two bytes", "a\xe2\x82", "a"},
		{"cut four-byte after three bytes", "a\xf0\x9f\xa6", "a"},
		{"complete four-byte", "a\U0001f988", "a\U0001f988"},
		{"stray continuation byte", "a\x82", "a\x82"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(trimPartialRune([]byte(tt.input))))
		})
	}
}
