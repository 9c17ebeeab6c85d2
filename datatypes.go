package df1

import (
	"encoding/binary"
	"fmt"
	"math"
)

// FileType is the data-table file type code carried in the address fields.
type FileType byte

// File type codes of the protected typed logical functions.
const (
	FileStatus          FileType = 0x84
	FileBit             FileType = 0x85
	FileTimer           FileType = 0x86
	FileCounter         FileType = 0x87
	FileControl         FileType = 0x88
	FileInteger         FileType = 0x89
	FileFloat           FileType = 0x8A
	FileOutput          FileType = 0x8B
	FileInput           FileType = 0x8C
	FileString          FileType = 0x8D
	FileASCII           FileType = 0x8E
	FileBCD             FileType = 0x8F
	FileLong            FileType = 0x91
	FileMessage         FileType = 0x92
	FilePID             FileType = 0x93
	FileProgLimitSwitch FileType = 0x94
)

// format selects how one element or subelement is packed.
type format uint8

const (
	formatWord   format = iota // int16
	formatWords3               // [3]int16
	formatFloat                // float32
	formatLong                 // int32
	formatString               // LEN word then byte-swapped character pairs
	formatBytes                // raw bytes
)

// dataType describes the elements of one file type.
type dataType struct {
	prefix         string
	elementSize    int
	elementFormat  format
	subElementSize int
	subFormat      format
}

// The string element is the LEN word followed by 82 characters.
const stringElementSize = 84

var dataTypes = map[FileType]dataType{
	FileStatus:          {"S", 2, formatWord, 2, formatWord},
	FileBit:             {"B", 2, formatWord, 2, formatWord},
	FileTimer:           {"T", 6, formatWords3, 2, formatWord},
	FileCounter:         {"C", 6, formatWords3, 2, formatWord},
	FileControl:         {"R", 6, formatWords3, 2, formatWord},
	FileInteger:         {"N", 2, formatWord, 2, formatWord},
	FileFloat:           {"F", 4, formatFloat, 4, formatFloat},
	FileOutput:          {"O", 2, formatWord, 2, formatWord},
	FileInput:           {"I", 2, formatWord, 2, formatWord},
	FileString:          {"ST", stringElementSize, formatString, 2, formatWord},
	FileASCII:           {"A", 2, formatWord, 2, formatWord},
	FileBCD:             {"D", 2, formatWord, 2, formatWord},
	FileLong:            {"L", 4, formatLong, 4, formatLong},
	FileMessage:         {"MG", 50, formatBytes, 2, formatWord},
	FilePID:             {"PD", 2, formatWord, 2, formatWord},
	FileProgLimitSwitch: {"PLS", 2, formatWord, 2, formatWord},
}

// String returns the address prefix of the file type.
func (t FileType) String() string {
	if dt, ok := dataTypes[t]; ok {
		return dt.prefix
	}
	return fmt.Sprintf("FileType(%#02x)", byte(t))
}

// layout returns the wire size and format of one item at a.
func (a WireAddress) layout() (size int, f format, err error) {
	dt, ok := dataTypes[a.FileType]
	if !ok {
		return 0, 0, fmt.Errorf("df1: unknown file type '%#02x'", byte(a.FileType))
	}
	if a.SubElement > 0 {
		return dt.subElementSize, dt.subFormat, nil
	}
	return dt.elementSize, dt.elementFormat, nil
}

// byteCount returns the size field of a request for count items at a.
func (a WireAddress) byteCount(count int) (byte, error) {
	size, _, err := a.layout()
	if err != nil {
		return 0, err
	}
	n := size * count
	if count <= 0 || n > math.MaxUint8 {
		return 0, fmt.Errorf("df1: %d items of %d bytes do not fit in one frame: %w", count, size, ErrValueRange)
	}
	return byte(n), nil
}

// decodeValues unpacks count items at a from data.
func decodeValues(a WireAddress, count int, data []byte) ([]any, error) {
	size, f, err := a.layout()
	if err != nil {
		return nil, err
	}
	if len(data) < size*count {
		return nil, fmt.Errorf("df1: response data length '%v' does not meet expected '%v': %w", len(data), size*count, ErrTruncatedFrame)
	}
	values := make([]any, 0, count)
	for i := 0; i < count; i++ {
		item := data[i*size : (i+1)*size]
		if a.HasBit {
			word := binary.LittleEndian.Uint16(item)
			values = append(values, int16(word>>a.Bit&1))
			continue
		}
		values = append(values, unpackValue(f, item))
	}
	return values, nil
}

func unpackValue(f format, item []byte) any {
	switch f {
	case formatWords3:
		var w [3]int16
		for i := range w {
			w[i] = int16(binary.LittleEndian.Uint16(item[2*i:]))
		}
		return w
	case formatFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(item))
	case formatLong:
		return int32(binary.LittleEndian.Uint32(item))
	case formatString:
		n := int(binary.LittleEndian.Uint16(item))
		chars := make([]byte, 0, len(item)-2)
		for i := 2; i+1 < len(item); i += 2 {
			chars = append(chars, item[i+1], item[i])
		}
		if n > len(chars) {
			n = len(chars)
		}
		return string(chars[:n])
	case formatBytes:
		return append([]byte(nil), item...)
	default:
		return int16(binary.LittleEndian.Uint16(item))
	}
}

// encodeValues packs values for a write at a.
func encodeValues(a WireAddress, values []any) ([]byte, error) {
	size, f, err := a.layout()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 0, size*len(values))
	for _, v := range values {
		item, err := packValue(f, size, v)
		if err != nil {
			return nil, fmt.Errorf("df1: %v at %v: %w", v, a, err)
		}
		buf = append(buf, item...)
	}
	return buf, nil
}

func packValue(f format, size int, v any) ([]byte, error) {
	item := make([]byte, size)
	switch f {
	case formatWords3:
		w, ok := v.([3]int16)
		if !ok {
			return nil, fmt.Errorf("expected [3]int16, got %T: %w", v, ErrValueRange)
		}
		for i := range w {
			binary.LittleEndian.PutUint16(item[2*i:], uint16(w[i]))
		}
	case formatFloat:
		x, err := toFloat(v)
		if err != nil {
			return nil, err
		}
		if math.Abs(x) > math.MaxFloat32 {
			return nil, ErrValueRange
		}
		binary.LittleEndian.PutUint32(item, math.Float32bits(float32(x)))
	case formatLong:
		x, err := toInt(v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(item, uint32(int32(x)))
	case formatString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T: %w", v, ErrValueRange)
		}
		if len(s) > size-2 {
			return nil, fmt.Errorf("string of %d characters: %w", len(s), ErrValueRange)
		}
		binary.LittleEndian.PutUint16(item, uint16(len(s)))
		for i := 0; i < len(s); i++ {
			// characters are stored high byte first within each word
			item[(2+i)^1] = s[i]
		}
	case formatBytes:
		b, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("expected []byte, got %T: %w", v, ErrValueRange)
		}
		if len(b) > size {
			return nil, fmt.Errorf("%d bytes: %w", len(b), ErrValueRange)
		}
		copy(item, b)
	default:
		x, err := toInt(v, math.MinInt16, math.MaxUint16)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint16(item, uint16(x))
	}
	return item, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	}
	i, err := toInt(v, math.MinInt64, math.MaxInt64)
	return float64(i), err
}

func toInt(v any, lo, hi int64) (int64, error) {
	var x int64
	switch n := v.(type) {
	case int:
		x = int64(n)
	case int8:
		x = int64(n)
	case int16:
		x = int64(n)
	case int32:
		x = int64(n)
	case int64:
		x = n
	case uint8:
		x = int64(n)
	case uint16:
		x = int64(n)
	case uint32:
		x = int64(n)
	case bool:
		if n {
			x = 1
		}
	case float32, float64:
		f, _ := toFloat(n)
		if f != math.Trunc(f) || f < float64(lo) || f > float64(hi) {
			return 0, fmt.Errorf("%v: %w", f, ErrValueRange)
		}
		return int64(f), nil
	default:
		return 0, fmt.Errorf("unsupported value type %T: %w", v, ErrValueRange)
	}
	if x < lo || x > hi {
		return 0, fmt.Errorf("%d: %w", x, ErrValueRange)
	}
	return x, nil
}
