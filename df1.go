// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

/*
Package df1 provides a client for the Allen-Bradley DF1 full-duplex serial
protocol and for the ASCII parameter protocol spoken by MTrim drive
controllers.
*/
package df1

import (
	"errors"
	"fmt"
	"io"
)

// Link control bytes.
const (
	STX = 0x02
	ETX = 0x03
	ENQ = 0x05
	ACK = 0x06
	DLE = 0x10
	NAK = 0x15
)

const (
	// CommandProtectedTyped carries the protected typed logical functions.
	CommandProtectedTyped = 0x0F
	// CommandReplyFlag is set in the command byte of every reply.
	CommandReplyFlag = 0x40

	// FuncProtectedTypedRead reads with three address fields
	FuncProtectedTypedRead = 0xA2
	// FuncProtectedTypedWrite writes with three address fields
	FuncProtectedTypedWrite = 0xAA
	// FuncProtectedBitWrite sets or clears the masked bits of one word
	FuncProtectedBitWrite = 0xAB
)

// STS codes reported by the local (low nibble) and remote (high nibble) node.
const (
	StatusSuccess              = 0x00
	StatusDstOutOfBuffer       = 0x01
	StatusDstNoAck             = 0x02
	StatusDuplicateToken       = 0x03
	StatusLocalPortDown        = 0x04
	StatusApplicationTimeout   = 0x05
	StatusDuplicateNode        = 0x06
	StatusStationOffline       = 0x07
	StatusHardwareFault        = 0x08
	StatusIllegalCommand       = 0x10
	StatusHostNoComm           = 0x20
	StatusRemoteNodeMissing    = 0x30
	StatusHostHardwareFault    = 0x40
	StatusAddressProblem       = 0x50
	StatusFunctionNotAllowed   = 0x60
	StatusProcessorProgramMode = 0x70
	StatusCompatFileMissing    = 0x80
	StatusRemoteNodeBuffer     = 0x90
	StatusWaitACK              = 0xA0
	StatusDownloadProblem      = 0xB0
	StatusWaitACK2             = 0xC0
	StatusExtended             = 0xF0
)

var (
	// ErrAddressSyntax is wrapped by every address parse failure.
	ErrAddressSyntax = errors.New("df1: address syntax error")
	// ErrCRCMismatch reports a binary frame whose CRC does not match its contents.
	ErrCRCMismatch = errors.New("df1: crc mismatch")
	// ErrTruncatedFrame reports a frame too short for the fields it declares.
	ErrTruncatedFrame = errors.New("df1: truncated frame")
	// ErrProtocol reports an exhausted NAK budget.
	ErrProtocol = errors.New("df1: protocol error")
	// ErrConnectionLost fails every pending request when the transport breaks.
	ErrConnectionLost = errors.New("df1: connection lost")
	// ErrTimeout reports a request that got no reply after all polls.
	ErrTimeout = errors.New("df1: timeout")
	// ErrClosed is returned once the client has been closed.
	ErrClosed = errors.New("df1: client closed")
	// ErrUnknownCommand reports an inbound command without a decoder.
	ErrUnknownCommand = errors.New("df1: unknown command")
	// ErrValueRange reports a value that does not fit its wire format.
	ErrValueRange = errors.New("df1: value out of range")
)

// Error is the status of a PLC reply with a non-zero STS byte.
type Error struct {
	Command   byte
	Status    byte
	ExtStatus byte
}

// Error converts known DF1 status codes to an error message.
func (e *Error) Error() string {
	var name string
	switch e.Status {
	case StatusDstOutOfBuffer:
		name = "destination node out of buffer space"
	case StatusDstNoAck:
		name = "destination node did not acknowledge"
	case StatusDuplicateToken:
		name = "duplicate token holder"
	case StatusLocalPortDown:
		name = "local port disconnected"
	case StatusApplicationTimeout:
		name = "application layer timed out"
	case StatusDuplicateNode:
		name = "duplicate node detected"
	case StatusStationOffline:
		name = "station offline"
	case StatusHardwareFault:
		name = "hardware fault"
	case StatusIllegalCommand:
		name = "illegal command or format"
	case StatusHostNoComm:
		name = "host has a problem and will not communicate"
	case StatusRemoteNodeMissing:
		name = "remote node host is missing"
	case StatusHostHardwareFault:
		name = "host could not complete function due to hardware fault"
	case StatusAddressProblem:
		name = "addressing problem or memory protect rungs"
	case StatusFunctionNotAllowed:
		name = "function not allowed due to command protection"
	case StatusProcessorProgramMode:
		name = "processor is in program mode"
	case StatusCompatFileMissing:
		name = "compatibility mode file missing"
	case StatusRemoteNodeBuffer:
		name = "remote node cannot buffer command"
	case StatusWaitACK, StatusWaitACK2:
		name = "wait ACK"
	case StatusDownloadProblem:
		name = "remote node problem due to download"
	case StatusExtended:
		return fmt.Sprintf("df1: status '%#02x' (extended status '%#02x'), command '%#02x'", e.Status, e.ExtStatus, e.Command&^CommandReplyFlag)
	default:
		name = "unknown"
	}
	return fmt.Sprintf("df1: status '%#02x' (%s), command '%#02x'", e.Status, name, e.Command&^CommandReplyFlag)
}

// DriveError is the error character of a drive reply other than '@'.
type DriveError struct {
	Code byte
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("df1: drive replied with error %q", e.Code)
}

// AddressError reports a symbol that matches none of the address grammars.
type AddressError struct {
	Address string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("df1: address syntax error in %q", e.Address)
}

// Unwrap returns ErrAddressSyntax.
func (e *AddressError) Unwrap() error {
	return ErrAddressSyntax
}

// Packager specifies the dialect spoken on a link.
type Packager interface {
	Encode(pdu PDU) (frame []byte, err error)
	Decode(frame []byte) (pdu PDU, err error)
	// Match completes the reply to req, failing when the remote reported an error.
	Match(req PDU, reply PDU) (PDU, error)
	// Control returns the link control sequence for kind, or nil if the dialect has none.
	Control(kind FrameKind) []byte
	NewFramer() Framer
	NewTransactionManager() TransactionManager
}

// Opener opens the byte stream a link runs over.
type Opener interface {
	Open() (io.ReadWriteCloser, error)
}
