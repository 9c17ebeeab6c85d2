// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import "context"

// Client declares the functionality of a DF1 client regardless of the
// underlying byte stream. Addresses are symbols accepted by ParseAddress.
type Client interface {
	// ProtectedRead reads count elements, or subelements, starting at
	// address. Values are int16, int32, float32, [3]int16, string or []byte
	// depending on the file type, and 0 or 1 when the address names a bit.
	ProtectedRead(ctx context.Context, address string, count int) (values []any, err error)
	// ProtectedWrite writes values starting at address.
	ProtectedWrite(ctx context.Context, address string, values ...any) error
	// ProtectedBitWrite sets or clears the bit named by address.
	ProtectedBitWrite(ctx context.Context, address string, set bool) error
	// Send runs a raw request and returns its matched reply.
	Send(ctx context.Context, request PDU) (reply PDU, err error)
	// Close stops the link.
	Close() error
}

// Drive declares the functionality of a drive controller client.
type Drive interface {
	// ReadParameter reads the value of a drive parameter.
	ReadParameter(ctx context.Context, parameter int) (float64, error)
	// WriteParameter sends value to a drive parameter and returns the
	// value the drive echoed.
	WriteParameter(ctx context.Context, parameter int, value float64) (float64, error)
	// ControlCommand sends a numbered control command.
	ControlCommand(ctx context.Context, code int) error
	// Close stops the link.
	Close() error
}
