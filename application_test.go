// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedTime is the clock used by tests checking the Date header.
var fixedTime = time.Date(2026, time.October, 19, 12, 30, 0, 0, time.UTC)

func TestStartResponse(t *testing.T) {
	t.Run("gateway headers follow application headers", func(t *testing.T) {
		state := &ResponseState{}
		start := newStartResponse(state, DefaultServerSoftware, func() time.Time { return fixedTime })
		assert.False(t, state.Started())

		start("200 OK", []HeaderField{{Name: "A", Value: "1"}, {Name: "B", Value: "2"}}, nil)

		require.True(t, state.Started())
		assert.Equal(t, "200 OK", state.Status)
		assert.Equal(t, []HeaderField{
			{Name: "A", Value: "1"},
			{Name: "B", Value: "2"},
			{Name: "Date", Value: "Mon, 19 Oct 2026 12:30:00 GMT"},
			{Name: "Server", Value: "WSGI Server 1.0"},
		}, state.Headers)
	})

	t.Run("date is rendered in UTC", func(t *testing.T) {
		state := &ResponseState{}
		zone := time.FixedZone("PST", -8*60*60)
		start := newStartResponse(state, DefaultServerSoftware, func() time.Time { return fixedTime.In(zone) })

		start("200 OK", nil, nil)

		assert.Equal(t, HeaderField{Name: "Date", Value: "Mon, 19 Oct 2026 12:30:00 GMT"}, state.Headers[0])
	})

	t.Run("later call replaces the earlier one", func(t *testing.T) {
		state := &ResponseState{}
		start := newStartResponse(state, DefaultServerSoftware, func() time.Time { return fixedTime })

		start("200 OK", []HeaderField{{Name: "A", Value: "1"}}, nil)
		start("500 Internal Server Error", nil, errors.New("boom"))

		assert.Equal(t, "500 Internal Server Error", state.Status)
		assert.Len(t, state.Headers, 2)
	})

	t.Run("caller headers are copied", func(t *testing.T) {
		state := &ResponseState{}
		start := newStartResponse(state, DefaultServerSoftware, func() time.Time { return fixedTime })
		headers := []HeaderField{{Name: "A", Value: "1"}}

		start("200 OK", headers, nil)
		headers[0].Value = "changed"

		assert.Equal(t, "1", state.Headers[0].Value)
	})

	t.Run("write callable records copies of the data", func(t *testing.T) {
		state := &ResponseState{}
		start := newStartResponse(state, DefaultServerSoftware, func() time.Time { return fixedTime })
		write := start("200 OK", nil, nil)
		data := []byte("abc")

		require.NoError(t, write(data))
		data[0] = 'x'
		require.NoError(t, write([]byte("def")))

		assert.Equal(t, [][]byte{[]byte("abc"), []byte("def")}, state.Written)
	})
}

func TestServerBanner(t *testing.T) {
	assert.Equal(t, "WSGI Server 1.0", serverBanner(DefaultServerSoftware))
	assert.Equal(t, "shark 1.0", serverBanner("shark"))
}
