// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

const (
	// STX, address, type or error, parameter, 4 digits, format, ETX
	asciiMinSize = 12
	asciiMaxSize = 13

	// driveOK is the error character of an accepted request.
	driveOK = '@'

	driveTimeout = 5 * time.Second
)

// Drive message types.
const (
	driveControlCommand = '1'
	driveDataInquiry    = '2'
	driveParameterSend  = '3'
)

var pow10 = [...]float64{1, 10, 100, 1000}

// DriveClientHandler implements Packager and Opener for a drive controller
// on a serial port.
type DriveClientHandler struct {
	DrivePackager
	SerialPort
	LinkSettings
}

// NewDriveClientHandler allocates and initializes a DriveClientHandler.
func NewDriveClientHandler(address string) *DriveClientHandler {
	handler := &DriveClientHandler{
		DrivePackager: DrivePackager{Address: 1},
		SerialPort:    *NewSerialPort(address),
	}
	handler.ReplyTimeout = driveTimeout
	return handler
}

// Settings returns the link settings with defaults applied.
func (mb *DriveClientHandler) Settings() LinkSettings {
	return mb.LinkSettings.withDefaults(driveTimeout)
}

// DriveClient creates a drive client with default handler and given serial device.
func DriveClient(address string) Drive {
	handler := NewDriveClientHandler(address)
	return NewDriveClient(handler)
}

// DrivePackager implements Packager for the ASCII drive protocol.
type DrivePackager struct {
	// Address is the drive address, 0 to 99.
	Address byte
}

// SetAddress sets the drive for the next requests.
func (mb *DrivePackager) SetAddress(address byte) {
	mb.Address = address
}

// Encode encodes a PDU in a drive frame:
//
//	STX             : 1 char
//	Address         : 2 chars
//	Message type    : 1 char
//	Parameter       : 2 chars
//	Data            : 4 or 5 chars
//	Format          : 1 char
//	ETX             : 1 char
func (mb *DrivePackager) Encode(pdu PDU) ([]byte, error) {
	if mb.Address > 99 {
		return nil, fmt.Errorf("df1: drive address '%v' must be between 0 and 99", mb.Address)
	}
	var (
		msgType   byte
		parameter int
		data      string
		format    byte = '0'
	)
	switch req := pdu.(type) {
	case *ParameterReadRequest:
		msgType, parameter, data = driveDataInquiry, req.Parameter, "0000"
	case *ParameterWriteRequest:
		msgType, parameter = driveParameterSend, req.Parameter
		var err error
		if data, format, err = EncodeDriveValue(req.Value); err != nil {
			return nil, err
		}
	case *ControlCommandRequest:
		if req.Code < 0 || req.Code > 99 {
			return nil, fmt.Errorf("df1: control command '%v' must be between 0 and 99", req.Code)
		}
		msgType, data = driveControlCommand, fmt.Sprintf("%04d", req.Code)
	default:
		return nil, fmt.Errorf("df1: %v is not a drive message", pdu.Kind())
	}
	if parameter < 0 || parameter > 99 {
		return nil, fmt.Errorf("df1: drive parameter '%v' must be between 0 and 99", parameter)
	}
	pdu.header().Destination = mb.Address

	frame := make([]byte, 0, asciiMaxSize)
	frame = append(frame, STX)
	frame = append(frame, fmt.Sprintf("%02d", mb.Address)...)
	frame = append(frame, msgType)
	frame = append(frame, fmt.Sprintf("%02d", parameter)...)
	frame = append(frame, data...)
	frame = append(frame, format, ETX)
	return frame, nil
}

// Decode parses a drive reply. The error character replaces the message type.
func (mb *DrivePackager) Decode(frame []byte) (PDU, error) {
	length := len(frame)
	if length < asciiMinSize || length > asciiMaxSize {
		return nil, fmt.Errorf("df1: drive frame length '%v' must be between '%v' and '%v': %w", length, asciiMinSize, asciiMaxSize, ErrTruncatedFrame)
	}
	if frame[0] != STX || frame[length-1] != ETX {
		return nil, fmt.Errorf("df1: drive frame %q is not delimited by STX and ETX: %w", frame, ErrTruncatedFrame)
	}
	code, _ := frameStatus(frame)
	address, err := atoiField(frame[1:3])
	if err != nil {
		return nil, err
	}
	parameter, err := atoiField(frame[4:6])
	if err != nil {
		return nil, err
	}
	value, err := DecodeDriveValue(string(frame[6:length-2]), frame[length-2])
	if err != nil {
		return nil, err
	}
	return &DriveReply{
		Header:    Header{Destination: byte(address)},
		ErrorCode: code,
		Parameter: parameter,
		Value:     value,
		Format:    frame[length-2],
	}, nil
}

// Match checks that reply comes from the addressed drive and accepted req.
func (mb *DrivePackager) Match(req PDU, reply PDU) (PDU, error) {
	r, ok := reply.(*DriveReply)
	if !ok {
		return nil, fmt.Errorf("df1: unexpected %v in reply to %v: %w", reply.Kind(), req.Kind(), ErrProtocol)
	}
	if r.Destination != req.header().Destination {
		return nil, fmt.Errorf("df1: reply from drive '%v' does not match request '%v': %w", r.Destination, req.header().Destination, ErrProtocol)
	}
	if r.ErrorCode != driveOK {
		return nil, &DriveError{Code: r.ErrorCode}
	}
	r.TNS = req.header().TNS
	var parameter int
	switch q := req.(type) {
	case *ParameterReadRequest:
		parameter = q.Parameter
	case *ParameterWriteRequest:
		parameter = q.Parameter
	default:
		return r, nil
	}
	if r.Parameter != parameter {
		return nil, fmt.Errorf("df1: reply parameter '%v' does not match request '%v': %w", r.Parameter, parameter, ErrProtocol)
	}
	return r, nil
}

// Control returns nil: the drive protocol has no link control sequences.
func (mb *DrivePackager) Control(FrameKind) []byte {
	return nil
}

// NewFramer returns an STX/ETX framer.
func (mb *DrivePackager) NewFramer() Framer {
	return newASCIIFramer()
}

// NewTransactionManager returns a FIFO manager since replies carry no id.
func (mb *DrivePackager) NewTransactionManager() TransactionManager {
	return NewFIFOTransactionManager()
}

// EncodeDriveValue strips the decimal point of v. The format digit holds
// the number of decimals, plus 4 when v is negative.
func EncodeDriveValue(v float64) (data string, format byte, err error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", 0, fmt.Errorf("df1: drive value %v: %w", v, ErrValueRange)
	}
	abs := math.Abs(v)
	// five data digits at most, the decimal point position goes in format
	decimals := -1
	for d := 0; d < len(pow10); d++ {
		m := math.Round(abs * pow10[d])
		if m > 99999 {
			break
		}
		decimals = d
		if math.Abs(m/pow10[d]-abs) < 1e-9 {
			break
		}
	}
	if decimals < 0 {
		return "", 0, fmt.Errorf("df1: drive value %v: %w", v, ErrValueRange)
	}
	digits := int64(math.Round(abs * pow10[decimals]))
	format = '0' + byte(decimals)
	if v < 0 && digits != 0 {
		format += 4
	}
	return fmt.Sprintf("%04d", digits), format, nil
}

// DecodeDriveValue is the inverse of EncodeDriveValue.
func DecodeDriveValue(data string, format byte) (float64, error) {
	if format < '0' || format > '7' {
		return 0, fmt.Errorf("df1: drive data format %q: %w", format, ErrTruncatedFrame)
	}
	digits, err := atoiField([]byte(data))
	if err != nil {
		return 0, err
	}
	f := format - '0'
	v := float64(digits) / pow10[f%4]
	if f >= 4 {
		v = -v
	}
	return v, nil
}

func atoiField(b []byte) (int, error) {
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("df1: drive field %q is not decimal: %w", b, ErrTruncatedFrame)
		}
	}
	return strconv.Atoi(string(b))
}
