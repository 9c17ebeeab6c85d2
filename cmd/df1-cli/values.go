package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/grid-x/df1"
)

// parseValue converts a command line argument to the value type written at a.
func parseValue(a df1.WireAddress, s string) (any, error) {
	if a.SubElement > 0 {
		return parseInt(s, 16)
	}
	switch a.FileType {
	case df1.FileFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q for %v", s, a)
		}
		return float32(f), nil
	case df1.FileLong:
		return parseInt(s, 32)
	case df1.FileString:
		return s, nil
	case df1.FileMessage:
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("invalid hex %q for %v", s, a)
		}
		return b, nil
	case df1.FileTimer, df1.FileCounter, df1.FileControl:
		// CTL,PRE,ACC
		parts := strings.Split(s, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("%v needs three comma separated words, got %q", a, s)
		}
		var w [3]int16
		for i, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 0, 16)
			if err != nil {
				return nil, fmt.Errorf("invalid word %q for %v", p, a)
			}
			w[i] = int16(n)
		}
		return w, nil
	}
	return parseInt(s, 16)
}

// parseInt accepts signed and unsigned words, including hex with 0x.
func parseInt(s string, bits int) (any, error) {
	n, err := strconv.ParseInt(s, 0, bits+1)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return n, nil
}

// formatValue renders one value returned by ProtectedRead.
func formatValue(v any) string {
	switch x := v.(type) {
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case string:
		return strconv.Quote(x)
	case []byte:
		return hex.EncodeToString(x)
	case [3]int16:
		return fmt.Sprintf("%d,%d,%d", x[0], x[1], x[2])
	}
	return fmt.Sprint(v)
}
