package df1

import (
	"regexp"
	"strconv"
	"strings"
)

// WireAddress is the structured form of a symbolic data-table address.
type WireAddress struct {
	FileNumber uint16
	FileType   FileType
	Element    uint16
	// SubElement is 0 when the address names a whole element.
	SubElement uint16
	Bit        uint8
	HasBit     bool
}

var prefixFileTypes = map[string]FileType{
	"S":   FileStatus,
	"B":   FileBit,
	"T":   FileTimer,
	"C":   FileCounter,
	"R":   FileControl,
	"N":   FileInteger,
	"F":   FileFloat,
	"O":   FileOutput,
	"I":   FileInput,
	"ST":  FileString,
	"A":   FileASCII,
	"D":   FileBCD,
	"L":   FileLong,
	"MG":  FileMessage,
	"PD":  FilePID,
	"PLS": FileProgLimitSwitch,
}

// Default file numbers of the I/O and status files.
var fixedFileNumbers = map[string]uint16{
	"O": 0,
	"I": 1,
	"S": 2,
}

var subElementNames = map[string]uint16{
	"PRE": 1,
	"ACC": 2,
	"EN":  15,
	"TT":  14,
	"DN":  13,
	"CU":  15,
	"CD":  14,
	"OV":  12,
	"UN":  11,
	"UA":  10,
}

// Status bits of a timer or counter control word by bit number.
var (
	timerBitNames   = map[uint8]string{15: "EN", 14: "TT", 13: "DN"}
	counterBitNames = map[uint8]string{15: "CU", 14: "CD", 13: "DN", 12: "OV", 11: "UN", 10: "UA"}
)

// Address grammars, tried in order.
var (
	generalAddress = regexp.MustCompile(`(?i)^\s*(ST|MG|PD|PLS|[SBCTRNFAIOLD])(\d{1,3}):(\d{1,3})(?:/(\d{1,4}))?\s*$`)
	bitAddress     = regexp.MustCompile(`(?i)^\s*([BN])(\d{1,3})/(\d{1,4})\s*$`)
	namedAddress   = regexp.MustCompile(`(?i)^\s*([CT])(\d{1,3}):(\d{1,3})\.(ACC|PRE|EN|DN|TT|CU|CD|OV|UN|UA)\s*$`)
	fixedAddress   = regexp.MustCompile(`(?i)^\s*([IOS]):(\d{1,3})(?:\.([0-7]))?(?:/(\d{1,4}))?\s*$`)
)

// ParseAddress converts a symbol such as "N7:0", "B3/20", "T4:2.ACC" or
// "I:1.2/3" into a WireAddress. Matching is case-insensitive.
func ParseAddress(symbol string) (WireAddress, error) {
	var a WireAddress
	if m := generalAddress.FindStringSubmatch(symbol); m != nil {
		a.FileType = prefixFileTypes[strings.ToUpper(m[1])]
		a.FileNumber = atou(m[2])
		a.Element = atou(m[3])
		if m[4] != "" {
			a.setBit(atou(m[4]))
		}
		return a, nil
	}
	if m := bitAddress.FindStringSubmatch(symbol); m != nil {
		a.FileType = prefixFileTypes[strings.ToUpper(m[1])]
		a.FileNumber = atou(m[2])
		a.setBit(atou(m[3]))
		return a, nil
	}
	if m := namedAddress.FindStringSubmatch(symbol); m != nil {
		a.FileType = prefixFileTypes[strings.ToUpper(m[1])]
		a.FileNumber = atou(m[2])
		a.Element = atou(m[3])
		a.setSubElement(subElementNames[strings.ToUpper(m[4])])
		return a, nil
	}
	if m := fixedAddress.FindStringSubmatch(symbol); m != nil {
		prefix := strings.ToUpper(m[1])
		a.FileType = prefixFileTypes[prefix]
		a.FileNumber = fixedFileNumbers[prefix]
		a.Element = atou(m[2])
		if m[4] != "" {
			a.setBit(atou(m[4]))
		}
		if m[3] != "" {
			a.setSubElement(atou(m[3]))
		}
		return a, nil
	}
	return WireAddress{}, &AddressError{Address: symbol}
}

// MustParseAddress is like ParseAddress but panics if the symbol is invalid.
func MustParseAddress(symbol string) WireAddress {
	a, err := ParseAddress(symbol)
	if err != nil {
		panic(err)
	}
	return a
}

// setBit folds bit numbers of 16 and above into the element.
func (a *WireAddress) setBit(bit uint16) {
	a.Element += bit >> 4
	a.Bit = uint8(bit % 16)
	a.HasBit = true
}

// setSubElement stores sub, or its bit when sub names a status bit.
func (a *WireAddress) setSubElement(sub uint16) {
	if sub > 4 {
		a.Bit = uint8(sub)
		a.HasBit = true
		a.SubElement = 0
		return
	}
	a.SubElement = sub
}

// String renders the canonical symbol of the address.
func (a WireAddress) String() string {
	prefix := a.FileType.String()
	var sb strings.Builder
	sb.WriteString(prefix)
	fixed, isFixed := fixedFileNumbers[prefix]
	switch {
	case isFixed && fixed == a.FileNumber:
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(int(a.Element)))
		if a.SubElement > 0 {
			sb.WriteString(".")
			sb.WriteString(strconv.Itoa(int(a.SubElement)))
		}
	default:
		sb.WriteString(strconv.Itoa(int(a.FileNumber)))
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(int(a.Element)))
		if name, ok := a.subElementName(); ok {
			sb.WriteString(".")
			sb.WriteString(name)
			return sb.String()
		}
	}
	if a.HasBit {
		sb.WriteString("/")
		sb.WriteString(strconv.Itoa(int(a.Bit)))
	}
	return sb.String()
}

func (a WireAddress) subElementName() (string, bool) {
	if a.FileType != FileTimer && a.FileType != FileCounter {
		return "", false
	}
	switch a.SubElement {
	case 1:
		return "PRE", !a.HasBit
	case 2:
		return "ACC", !a.HasBit
	case 0:
		if !a.HasBit {
			return "", false
		}
		names := timerBitNames
		if a.FileType == FileCounter {
			names = counterBitNames
		}
		name, ok := names[a.Bit]
		return name, ok
	}
	return "", false
}

// atou parses a digit string already validated by the grammar.
func atou(s string) uint16 {
	n, _ := strconv.ParseUint(s, 10, 16)
	return uint16(n)
}
