package df1

import (
	"testing"

	"pgregory.net/rapid"
)

// referenceCRC is the bitwise CRC-16/ARC.
func referenceCRC(data []byte) uint16 {
	var crc uint16
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

func TestCRC(t *testing.T) {
	// CRC-16/ARC check value of "123456789" is 0xBB3D, low byte first on the wire
	crc := ComputeCRC([]byte("12345678"), '9')
	if crc != 0x3DBB {
		t.Fatalf("crc expected %#04x, actual %#04x", 0x3DBB, crc)
	}
}

func TestCRCEmpty(t *testing.T) {
	crc := ComputeCRC(nil, ETX)
	expected := referenceCRC([]byte{ETX})
	if crc != expected<<8|expected>>8 {
		t.Fatalf("crc expected %#04x, actual %#04x", expected, crc)
	}
}

func TestCRCMatchesReference(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		ref := referenceCRC(append(append([]byte(nil), data...), ETX))
		crc := ComputeCRC(data, ETX)
		if crc != ref<<8|ref>>8 {
			t.Fatalf("crc of % x expected %#04x, actual %#04x", data, ref<<8|ref>>8, crc)
		}
		if !CheckCRC(data, crc) {
			t.Fatalf("crc %#04x of % x does not check", crc, data)
		}
	})
}

func TestCRCDetectsBitFlip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "data")
		bit := rapid.IntRange(0, 8*len(data)-1).Draw(t, "bit")
		crc := ComputeCRC(data, ETX)
		flipped := append([]byte(nil), data...)
		flipped[bit/8] ^= 1 << (bit % 8)
		if CheckCRC(flipped, crc) {
			t.Fatalf("flipping bit %d of % x was not detected", bit, data)
		}
	})
}
