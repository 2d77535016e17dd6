// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// The server opens one span per accepted connection: every event after
// acceptDone, up to and including closeDone, carries the same spanID.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
