// SPDX-License-Identifier: GPL-3.0-or-later

package gateway

// Unit is a type not containing any value.
//
// The last stage of the request pipeline writes the response and returns
// Unit, since there is nothing left to hand over to the caller.
type Unit struct{}
