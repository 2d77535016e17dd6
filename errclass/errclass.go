// SPDX-License-Identifier: GPL-3.0-or-later

// Package errclass maps gateway errors to short categorical labels.
//
// Errors that know their own class implement [Classer]. Socket errors
// that matter to a listening server (bind failures, peer resets) are
// mapped to their errno name. DNS response errors that upstream does not
// know are mapped here. Everything else, including "no such host" and
// "no answer", is delegated to [github.com/bassosimone/errclass].
package errclass

import (
	"errors"

	"github.com/bassosimone/dnscodec"
	upstream "github.com/bassosimone/errclass"
)

// Classes assigned to gateway errors.
const (
	EEMPTYREQUEST = "EEMPTYREQUEST"
	EMALFORMED    = "EMALFORMED"
	EAPPLICATION  = "EAPPLICATION"
	ENOTSTARTED   = "ENOTSTARTED"
	EENCODING     = "EENCODING"
	EHEADER       = "EHEADER"
)

// Classes assigned to DNS lookup errors.
const (
	EDNSFAILURE  = "EDNSFAILURE"
	EDNSMISMATCH = "EDNSMISMATCH"
)

// Classes assigned to socket errors.
const (
	EACCES        = "EACCES"
	EADDRINUSE    = "EADDRINUSE"
	EADDRNOTAVAIL = "EADDRNOTAVAIL"
	ECONNABORTED  = "ECONNABORTED"
	ECONNRESET    = "ECONNRESET"
	EPIPE         = "EPIPE"
	ETIMEDOUT     = "ETIMEDOUT"
)

// Classer is implemented by errors carrying their own class.
type Classer interface {
	ErrClass() string
}

var dnsErrors = []struct {
	err   error
	class string
}{
	{dnscodec.ErrInvalidResponse, EDNSMISMATCH},
	{dnscodec.ErrCannotUnmarshalMessage, EDNSMISMATCH},
	{dnscodec.ErrServerMisbehaving, EDNSFAILURE},
	{dnscodec.ErrServerTemporarilyMisbehaving, EDNSFAILURE},
}

var errnos = []struct {
	errno error
	class string
}{
	{errEACCES, EACCES},
	{errEADDRINUSE, EADDRINUSE},
	{errEADDRNOTAVAIL, EADDRNOTAVAIL},
	{errECONNABORTED, ECONNABORTED},
	{errECONNRESET, ECONNRESET},
	{errEPIPE, EPIPE},
	{errETIMEDOUT, ETIMEDOUT},
}

// Classify returns the class of err, or the empty string for a nil error.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var classer Classer
	if errors.As(err, &classer) {
		return classer.ErrClass()
	}
	for _, entry := range errnos {
		if errors.Is(err, entry.errno) {
			return entry.class
		}
	}
	for _, entry := range dnsErrors {
		if errors.Is(err, entry.err) {
			return entry.class
		}
	}
	return upstream.New(err)
}
