//go:build windows

//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/errclass/windows.go
//

package errclass

import "golang.org/x/sys/windows"

const (
	errEACCES        = windows.WSAEACCES
	errEADDRINUSE    = windows.WSAEADDRINUSE
	errEADDRNOTAVAIL = windows.WSAEADDRNOTAVAIL
	errECONNABORTED  = windows.WSAECONNABORTED
	errECONNRESET    = windows.WSAECONNRESET
	errEPIPE         = windows.ERROR_BROKEN_PIPE
	errETIMEDOUT     = windows.WSAETIMEDOUT
)
