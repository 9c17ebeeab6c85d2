// Copyright 2018 xft. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import (
	"context"
	"io"
	"net"
	"time"
)

// Default TCP dial timeout
const tcpTimeout = 10 * time.Second

// DF1OverTCPClientHandler implements Packager and Opener for a PLC behind
// a serial device server.
type DF1OverTCPClientHandler struct {
	BinaryPackager
	TCPPort
	LinkSettings
}

// NewDF1OverTCPClientHandler allocates and initializes a DF1OverTCPClientHandler.
func NewDF1OverTCPClientHandler(address string) *DF1OverTCPClientHandler {
	return &DF1OverTCPClientHandler{
		BinaryPackager: BinaryPackager{Destination: 1},
		TCPPort:        NewTCPPort(address),
	}
}

// Settings returns the link settings with defaults applied.
func (mb *DF1OverTCPClientHandler) Settings() LinkSettings {
	return mb.LinkSettings.withDefaults(df1Timeout)
}

// DF1OverTCPClient creates a DF1 over TCP client with default handler and given host:port.
func DF1OverTCPClient(address string) Client {
	handler := NewDF1OverTCPClientHandler(address)
	return NewClient(handler)
}

// DriveOverTCPClientHandler implements Packager and Opener for a drive
// behind a serial device server.
type DriveOverTCPClientHandler struct {
	DrivePackager
	TCPPort
	LinkSettings
}

// NewDriveOverTCPClientHandler allocates and initializes a DriveOverTCPClientHandler.
func NewDriveOverTCPClientHandler(address string) *DriveOverTCPClientHandler {
	return &DriveOverTCPClientHandler{
		DrivePackager: DrivePackager{Address: 1},
		TCPPort:       NewTCPPort(address),
	}
}

// Settings returns the link settings with defaults applied.
func (mb *DriveOverTCPClientHandler) Settings() LinkSettings {
	return mb.LinkSettings.withDefaults(driveTimeout)
}

var _ Opener = (*TCPPort)(nil)

// DialFunc opens a network connection.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// TCPPort opens a raw TCP stream to a serial device server.
type TCPPort struct {
	// Connect string, host:port
	Address string
	// Dial timeout
	DialTimeout time.Duration
	// Dial replaces net.Dialer when set.
	Dial DialFunc
}

// NewTCPPort creates a TCPPort with default values.
func NewTCPPort(address string) TCPPort {
	return TCPPort{Address: address, DialTimeout: tcpTimeout}
}

// Open dials the device server.
func (mb *TCPPort) Open() (io.ReadWriteCloser, error) {
	ctx := context.Background()
	if mb.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mb.DialTimeout)
		defer cancel()
	}
	dial := mb.Dial
	if dial == nil {
		var dialer net.Dialer
		dial = dialer.DialContext
	}
	return dial(ctx, "tcp", mb.Address)
}
