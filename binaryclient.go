// Copyright 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD license. See the LICENSE file for details.

package df1

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"time"
)

const (
	// header: destination, source, command, status, TNS
	binaryHeaderSize = 6
	// DLE STX, header, DLE ETX, CRC
	binaryMinSize = 2 + binaryHeaderSize + 2 + 2
	// size escape of an address field
	fieldEscape = 0xFF

	df1Timeout = 1 * time.Second
)

// DF1ClientHandler implements Packager and Opener for a PLC on a serial port.
type DF1ClientHandler struct {
	BinaryPackager
	SerialPort
	LinkSettings
}

// NewDF1ClientHandler allocates and initializes a DF1ClientHandler.
func NewDF1ClientHandler(address string) *DF1ClientHandler {
	handler := &DF1ClientHandler{
		BinaryPackager: BinaryPackager{Destination: 1},
		SerialPort:     *NewSerialPort(address),
	}
	handler.ReplyTimeout = df1Timeout
	return handler
}

// Settings returns the link settings with defaults applied.
func (mb *DF1ClientHandler) Settings() LinkSettings {
	return mb.LinkSettings.withDefaults(df1Timeout)
}

// DF1Client creates a DF1 client with default handler and given serial device.
func DF1Client(address string) Client {
	handler := NewDF1ClientHandler(address)
	return NewClient(handler)
}

// BinaryPackager implements Packager for DF1 full-duplex frames.
type BinaryPackager struct {
	// Destination is the PLC node address.
	Destination byte
	// Source is the node address of this client.
	Source byte
}

// SetDestination sets the PLC node for the next requests.
func (mb *BinaryPackager) SetDestination(node byte) {
	mb.Destination = node
}

// Encode encodes a PDU in a DF1 frame:
//
//	DLE STX         : 2 bytes
//	Destination     : 1 byte
//	Source          : 1 byte
//	Command         : 1 byte
//	Status          : 1 byte
//	TNS             : 2 bytes (big-endian)
//	Function        : 1 byte
//	Size            : 1 byte
//	File number     : 1 or 3 bytes
//	File type       : 1 byte
//	Element         : 1 or 3 bytes
//	Subelement      : 1 or 3 bytes
//	Data            : 0 up to 255 bytes
//	DLE ETX         : 2 bytes
//	CRC             : 2 bytes
//
// Every DLE between DLE STX and DLE ETX is doubled on the wire.
func (mb *BinaryPackager) Encode(pdu PDU) ([]byte, error) {
	var interior []byte
	var err error
	switch req := pdu.(type) {
	case *ProtectedReadRequest:
		interior, err = mb.encodeRead(req)
	case *ProtectedWriteRequest:
		interior, err = mb.encodeWrite(req)
	case *ProtectedBitWriteRequest:
		interior, err = mb.encodeBitWrite(req)
	case *Reply:
		interior = appendHeader(nil, &req.Header)
		if req.Status == StatusExtended {
			interior = append(interior, req.ExtStatus)
		}
		interior = append(interior, req.Data...)
	default:
		err = fmt.Errorf("df1: %v is not a DF1 message", pdu.Kind())
	}
	if err != nil {
		return nil, err
	}
	return buildFrame(interior), nil
}

func (mb *BinaryPackager) requestHeader(h *Header) {
	h.Destination = mb.Destination
	h.Source = mb.Source
	h.Command = CommandProtectedTyped
	h.Status = StatusSuccess
}

func (mb *BinaryPackager) encodeRead(req *ProtectedReadRequest) ([]byte, error) {
	size, err := req.Address.byteCount(req.Count)
	if err != nil {
		return nil, err
	}
	mb.requestHeader(&req.Header)
	buf := appendHeader(nil, &req.Header)
	buf = append(buf, FuncProtectedTypedRead, size)
	return appendAddress(buf, req.Address), nil
}

func (mb *BinaryPackager) encodeWrite(req *ProtectedWriteRequest) ([]byte, error) {
	if req.Address.HasBit {
		// a typed write replaces whole elements
		return nil, fmt.Errorf("df1: typed write to bit %v, use a bit write: %w", req.Address, ErrValueRange)
	}
	size, err := req.Address.byteCount(len(req.Values))
	if err != nil {
		return nil, err
	}
	data, err := encodeValues(req.Address, req.Values)
	if err != nil {
		return nil, err
	}
	mb.requestHeader(&req.Header)
	buf := appendHeader(nil, &req.Header)
	buf = append(buf, FuncProtectedTypedWrite, size)
	buf = appendAddress(buf, req.Address)
	return append(buf, data...), nil
}

// encodeBitWrite sends the mask of the addressed bit followed by the new
// word, which is the mask when setting and zero when clearing.
func (mb *BinaryPackager) encodeBitWrite(req *ProtectedBitWriteRequest) ([]byte, error) {
	if !req.Address.HasBit {
		return nil, fmt.Errorf("df1: bit write to %v without a bit number", req.Address)
	}
	mask := uint16(1) << req.Address.Bit
	var value uint16
	if req.Set {
		value = mask
	}
	mb.requestHeader(&req.Header)
	buf := appendHeader(nil, &req.Header)
	buf = append(buf, FuncProtectedBitWrite, 2)
	buf = appendAddress(buf, req.Address)
	buf = binary.LittleEndian.AppendUint16(buf, mask)
	return binary.LittleEndian.AppendUint16(buf, value), nil
}

// Decode verifies and parses a frame as extracted by the binary framer,
// whose interior is already unescaped.
func (mb *BinaryPackager) Decode(frame []byte) (PDU, error) {
	length := len(frame)
	if length < binaryMinSize {
		return nil, fmt.Errorf("df1: frame length '%v' does not meet minimum '%v': %w", length, binaryMinSize, ErrTruncatedFrame)
	}
	if frame[0] != DLE || frame[1] != STX || frame[length-4] != DLE || frame[length-3] != ETX {
		return nil, fmt.Errorf("df1: frame % x is not delimited by DLE STX and DLE ETX: %w", frame, ErrTruncatedFrame)
	}
	interior := frame[2 : length-4]
	checksum := binary.BigEndian.Uint16(frame[length-2:])
	if !CheckCRC(interior, checksum) {
		return nil, fmt.Errorf("df1: frame crc '%#04x' does not match expected '%#04x': %w", checksum, ComputeCRC(interior, ETX), ErrCRCMismatch)
	}
	h := Header{
		Destination: interior[0],
		Source:      interior[1],
		Command:     interior[2],
		Status:      interior[3],
		TNS:         binary.BigEndian.Uint16(interior[4:]),
	}
	body := interior[binaryHeaderSize:]
	if h.IsReply() {
		if h.Status == StatusExtended && len(body) > 0 {
			h.ExtStatus = body[0]
			body = body[1:]
		}
		return &Reply{Header: h, Data: append([]byte(nil), body...)}, nil
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("df1: command '%#02x' without function code: %w", h.Command, ErrTruncatedFrame)
	}
	decode, ok := commandDecoders[opcode{h.Command, body[0]}]
	if !ok {
		return nil, fmt.Errorf("df1: command '%#02x' function '%#02x': %w", h.Command, body[0], ErrUnknownCommand)
	}
	return decode(h, body[1:])
}

// Match completes reply with the values read by req.
func (mb *BinaryPackager) Match(req PDU, reply PDU) (PDU, error) {
	r, ok := reply.(*Reply)
	if !ok {
		return nil, fmt.Errorf("df1: unexpected %v in reply to %v: %w", reply.Kind(), req.Kind(), ErrProtocol)
	}
	if r.Status != StatusSuccess {
		return nil, &Error{Command: r.Command, Status: r.Status, ExtStatus: r.ExtStatus}
	}
	if read, ok := req.(*ProtectedReadRequest); ok {
		values, err := decodeValues(read.Address, read.Count, r.Data)
		if err != nil {
			return nil, err
		}
		r.Values = values
	}
	return r, nil
}

// Control returns the DLE sequence of kind.
func (mb *BinaryPackager) Control(kind FrameKind) []byte {
	switch kind {
	case FrameACK:
		return []byte{DLE, ACK}
	case FrameNAK:
		return []byte{DLE, NAK}
	case FrameENQ:
		return []byte{DLE, ENQ}
	}
	return nil
}

// NewFramer returns a DLE-aware framer.
func (mb *BinaryPackager) NewFramer() Framer {
	return newBinaryFramer()
}

// NewTransactionManager returns a manager keyed by TNS.
func (mb *BinaryPackager) NewTransactionManager() TransactionManager {
	return NewKeyedTransactionManager()
}

// ReplyTo builds the reply to an inbound command. Values are packed for a
// read command and ignored otherwise.
func ReplyTo(cmd PDU, status byte, values ...any) (*Reply, error) {
	h := cmd.header()
	reply := &Reply{
		Header: Header{
			Destination: h.Source,
			Source:      h.Destination,
			Command:     h.Command | CommandReplyFlag,
			Status:      status,
			TNS:         h.TNS,
		},
	}
	if read, ok := cmd.(*ProtectedReadRequest); ok && status == StatusSuccess {
		data, err := encodeValues(read.Address, values)
		if err != nil {
			return nil, err
		}
		reply.Data = data
	}
	return reply, nil
}

func appendHeader(buf []byte, h *Header) []byte {
	buf = append(buf, h.Destination, h.Source, h.Command, h.Status)
	return binary.BigEndian.AppendUint16(buf, h.TNS)
}

func appendAddress(buf []byte, a WireAddress) []byte {
	buf = appendField(buf, a.FileNumber)
	buf = append(buf, byte(a.FileType))
	buf = appendField(buf, a.Element)
	return appendField(buf, a.SubElement)
}

// appendField writes v in one byte, or as 0xFF and a little-endian word
// when it does not fit below the escape.
func appendField(buf []byte, v uint16) []byte {
	if v < fieldEscape {
		return append(buf, byte(v))
	}
	buf = append(buf, fieldEscape)
	return binary.LittleEndian.AppendUint16(buf, v)
}

func readField(b []byte) (uint16, []byte, error) {
	if len(b) == 0 {
		return 0, nil, ErrTruncatedFrame
	}
	if b[0] != fieldEscape {
		return uint16(b[0]), b[1:], nil
	}
	if len(b) < 3 {
		return 0, nil, ErrTruncatedFrame
	}
	return binary.LittleEndian.Uint16(b[1:]), b[3:], nil
}

func readAddress(b []byte) (a WireAddress, rest []byte, err error) {
	if a.FileNumber, rest, err = readField(b); err != nil {
		return
	}
	if len(rest) == 0 {
		err = ErrTruncatedFrame
		return
	}
	a.FileType = FileType(rest[0])
	if a.Element, rest, err = readField(rest[1:]); err != nil {
		return
	}
	a.SubElement, rest, err = readField(rest)
	return
}

// buildFrame appends the CRC of interior and escapes it for the wire.
func buildFrame(interior []byte) []byte {
	crc := ComputeCRC(interior, ETX)
	frame := make([]byte, 0, len(interior)+8)
	frame = append(frame, DLE, STX)
	for _, b := range interior {
		frame = append(frame, b)
		if b == DLE {
			frame = append(frame, DLE)
		}
	}
	frame = append(frame, DLE, ETX)
	return binary.BigEndian.AppendUint16(frame, crc)
}

type opcode struct {
	command  byte
	function byte
}

type commandDecoder func(h Header, body []byte) (PDU, error)

// commandDecoders decodes commands initiated by the remote node.
var commandDecoders = map[opcode]commandDecoder{
	{CommandProtectedTyped, FuncProtectedTypedRead}:  decodeProtectedRead,
	{CommandProtectedTyped, FuncProtectedTypedWrite}: decodeProtectedWrite,
	{CommandProtectedTyped, FuncProtectedBitWrite}:   decodeProtectedBitWrite,
}

func decodeCommandAddress(body []byte) (size int, a WireAddress, itemSize int, rest []byte, err error) {
	if len(body) == 0 {
		err = ErrTruncatedFrame
		return
	}
	size = int(body[0])
	if a, rest, err = readAddress(body[1:]); err != nil {
		err = fmt.Errorf("df1: command address: %w", err)
		return
	}
	if itemSize, _, err = a.layout(); err != nil {
		return
	}
	return
}

func decodeProtectedRead(h Header, body []byte) (PDU, error) {
	size, a, itemSize, _, err := decodeCommandAddress(body)
	if err != nil {
		return nil, err
	}
	return &ProtectedReadRequest{Header: h, Address: a, Count: size / itemSize}, nil
}

func decodeProtectedWrite(h Header, body []byte) (PDU, error) {
	size, a, itemSize, rest, err := decodeCommandAddress(body)
	if err != nil {
		return nil, err
	}
	values, err := decodeValues(a, size/itemSize, rest)
	if err != nil {
		return nil, err
	}
	return &ProtectedWriteRequest{Header: h, Address: a, Values: values}, nil
}

func decodeProtectedBitWrite(h Header, body []byte) (PDU, error) {
	_, a, _, rest, err := decodeCommandAddress(body)
	if err != nil {
		return nil, err
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("df1: bit write without mask and value: %w", ErrTruncatedFrame)
	}
	mask := binary.LittleEndian.Uint16(rest)
	value := binary.LittleEndian.Uint16(rest[2:])
	if mask != 0 {
		a.Bit = uint8(bits.TrailingZeros16(mask))
		a.HasBit = true
	}
	return &ProtectedBitWriteRequest{Header: h, Address: a, Set: value&mask != 0}, nil
}
