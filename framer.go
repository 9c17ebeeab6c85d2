package df1

// FrameKind distinguishes data frames from link control sequences.
type FrameKind uint8

const (
	// FrameData is a complete data frame.
	FrameData FrameKind = iota
	// FrameACK is a DLE ACK sequence.
	FrameACK
	// FrameNAK is a DLE NAK sequence.
	FrameNAK
	// FrameENQ is a DLE ENQ sequence.
	FrameENQ
)

func (k FrameKind) String() string {
	switch k {
	case FrameACK:
		return "ACK"
	case FrameNAK:
		return "NAK"
	case FrameENQ:
		return "ENQ"
	}
	return "data"
}

// Frame is one unit extracted from the byte stream. For binary data frames
// Bytes holds DLE STX, the unescaped interior, DLE ETX and the CRC.
type Frame struct {
	Kind  FrameKind
	Bytes []byte
}

// Framer turns a fragmented byte stream into frames.
type Framer interface {
	// Feed appends bytes received from the link.
	Feed(p []byte)
	// FrameReady reports whether enough bytes are buffered to attempt a parse.
	FrameReady() bool
	// Extract returns the next complete frame, if any.
	Extract() (Frame, bool)
	// Reset drops everything buffered.
	Reset()
}

const (
	stateIdle = 1 << iota
	stateStarted
	stateEnded
)

// binaryFramer extracts DF1 frames. It unescapes DLE DLE in-stream and
// keeps the interior of a partially received frame across Feed calls.
type binaryFramer struct {
	buf      []byte
	pos      int
	state    int
	interior []byte
	// Abandoned counts frames dropped because a new DLE STX started mid-frame.
	abandoned int
}

func newBinaryFramer() *binaryFramer {
	return &binaryFramer{state: stateIdle}
}

func (f *binaryFramer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

func (f *binaryFramer) FrameReady() bool {
	return len(f.buf)-f.pos > 1
}

func (f *binaryFramer) Reset() {
	f.buf = f.buf[:0]
	f.pos = 0
	f.state = stateIdle
	f.interior = f.interior[:0]
}

func (f *binaryFramer) Extract() (Frame, bool) {
	defer f.compact()
	for f.pos < len(f.buf) {
		b := f.buf[f.pos]
		if f.state == stateEnded {
			if len(f.buf)-f.pos < 2 {
				return Frame{}, false
			}
			frame := make([]byte, 0, len(f.interior)+6)
			frame = append(frame, DLE, STX)
			frame = append(frame, f.interior...)
			frame = append(frame, DLE, ETX, f.buf[f.pos], f.buf[f.pos+1])
			f.pos += 2
			f.state = stateIdle
			f.interior = f.interior[:0]
			return Frame{Kind: FrameData, Bytes: frame}, true
		}
		if b != DLE {
			if f.state == stateStarted {
				f.interior = append(f.interior, b)
			}
			// bytes outside a frame are line noise
			f.pos++
			continue
		}
		if len(f.buf)-f.pos < 2 {
			return Frame{}, false
		}
		next := f.buf[f.pos+1]
		f.pos += 2
		switch next {
		case STX:
			if f.state == stateStarted {
				f.abandoned++
			}
			f.state = stateStarted
			f.interior = f.interior[:0]
		case ETX:
			if f.state == stateStarted {
				f.state = stateEnded
			}
		case DLE:
			if f.state == stateStarted {
				f.interior = append(f.interior, DLE)
			}
		case ACK:
			return Frame{Kind: FrameACK}, true
		case NAK:
			return Frame{Kind: FrameNAK}, true
		case ENQ:
			return Frame{Kind: FrameENQ}, true
		default:
			// an undefined DLE sequence breaks the current frame
			f.state = stateIdle
			f.interior = f.interior[:0]
		}
	}
	return Frame{}, false
}

// compact drops consumed bytes.
func (f *binaryFramer) compact() {
	if f.pos == 0 {
		return
	}
	n := copy(f.buf, f.buf[f.pos:])
	f.buf = f.buf[:n]
	f.pos = 0
}

// asciiFramer extracts STX ... ETX drive frames.
type asciiFramer struct {
	buf []byte
}

func newASCIIFramer() *asciiFramer {
	return &asciiFramer{}
}

func (f *asciiFramer) Feed(p []byte) {
	f.buf = append(f.buf, p...)
}

func (f *asciiFramer) FrameReady() bool {
	return len(f.buf) > 1
}

func (f *asciiFramer) Reset() {
	f.buf = f.buf[:0]
}

func (f *asciiFramer) Extract() (Frame, bool) {
	start := -1
	for i, b := range f.buf {
		if b == STX {
			start = i
			break
		}
	}
	if start < 0 {
		f.buf = f.buf[:0]
		return Frame{}, false
	}
	if start > 0 {
		n := copy(f.buf, f.buf[start:])
		f.buf = f.buf[:n]
	}
	for i := 1; i < len(f.buf); i++ {
		switch f.buf[i] {
		case ETX:
			frame := append([]byte(nil), f.buf[:i+1]...)
			n := copy(f.buf, f.buf[i+1:])
			f.buf = f.buf[:n]
			return Frame{Kind: FrameData, Bytes: frame}, true
		case STX:
			// restart on a new STX, dropping the unterminated frame
			n := copy(f.buf, f.buf[i:])
			f.buf = f.buf[:n]
			i = 0
		}
	}
	return Frame{}, false
}

// frameStatus returns the error indicator of a drive frame.
func frameStatus(frame []byte) (byte, bool) {
	if len(frame) < 4 {
		return 0, false
	}
	return frame[3], true
}
