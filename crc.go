package df1

import (
	"github.com/sigurn/crc16"
)

// CRC-16/ARC: reflected polynomial 0xA001, seed 0, no final xor.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

// ComputeCRC returns the CRC of data followed by trailer, byte-swapped so
// that writing it big-endian puts the low byte first on the wire.
func ComputeCRC(data []byte, trailer byte) uint16 {
	crc := crc16.Init(crcTable)
	crc = crc16.Update(crc, data, crcTable)
	crc = crc16.Update(crc, []byte{trailer}, crcTable)
	crc = crc16.Complete(crc, crcTable)
	return crc<<8 | crc>>8
}

// CheckCRC reports whether candidate is the CRC of data followed by ETX.
func CheckCRC(data []byte, candidate uint16) bool {
	return ComputeCRC(data, ETX) == candidate
}
