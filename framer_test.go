package df1

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// readReply is the wire form of a reply carrying 42 to TNS 1.
var readReply = []byte{DLE, STX, 0x00, 0x01, 0x4F, 0x00, 0x00, 0x01, 0x2A, 0x00, DLE, ETX, 0x1F, 0x3D}

func drain(f Framer) []Frame {
	var frames []Frame
	for f.FrameReady() {
		frame, ok := f.Extract()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}
	return frames
}

func TestBinaryFramerChunks(t *testing.T) {
	// an escaped TNS and CRC bytes that look like link control
	packager := BinaryPackager{Destination: DLE}
	req := &ProtectedReadRequest{Address: MustParseAddress("N7:0"), Count: 1}
	req.TNS = 0x1010
	wire, err := packager.Encode(req)
	require.NoError(t, err)
	stream := append(append([]byte{0x55, 0xAA}, wire...), DLE, ACK)
	stream = append(stream, readReply...)

	for n := 1; n <= len(stream); n++ {
		f := newBinaryFramer()
		var frames []Frame
		for i := 0; i < len(stream); i += n {
			f.Feed(stream[i:min(i+n, len(stream))])
			frames = append(frames, drain(f)...)
		}
		require.Len(t, frames, 3, "chunk size %d", n)
		assert.Equal(t, FrameData, frames[0].Kind)
		assert.Equal(t, extract(t, wire), frames[0].Bytes, "chunk size %d", n)
		assert.Equal(t, FrameACK, frames[1].Kind)
		assert.Equal(t, readReply, frames[2].Bytes, "chunk size %d", n)
	}
}

func TestBinaryFramerControl(t *testing.T) {
	f := newBinaryFramer()
	f.Feed([]byte{DLE, ACK, DLE, NAK, DLE, ENQ})
	frames := drain(f)
	require.Len(t, frames, 3)
	assert.Equal(t, FrameACK, frames[0].Kind)
	assert.Equal(t, FrameNAK, frames[1].Kind)
	assert.Equal(t, FrameENQ, frames[2].Kind)
}

func TestBinaryFramerControlMidFrame(t *testing.T) {
	f := newBinaryFramer()
	f.Feed(readReply[:6])
	f.Feed([]byte{DLE, ACK})
	f.Feed(readReply[6:])
	frames := drain(f)
	require.Len(t, frames, 2)
	assert.Equal(t, FrameACK, frames[0].Kind)
	assert.Equal(t, readReply, frames[1].Bytes)
}

func TestBinaryFramerRestart(t *testing.T) {
	f := newBinaryFramer()
	f.Feed([]byte{DLE, STX, 0x01, 0x02, 0x03})
	f.Feed(readReply)
	frames := drain(f)
	require.Len(t, frames, 1)
	assert.Equal(t, readReply, frames[0].Bytes)
	assert.Equal(t, 1, f.abandoned)
}

func TestBinaryFramerUndefinedSequence(t *testing.T) {
	f := newBinaryFramer()
	f.Feed([]byte{DLE, STX, 0x01, DLE, 0x7F, 0x02, DLE, ETX, 0x00, 0x00})
	f.Feed(readReply)
	frames := drain(f)
	require.Len(t, frames, 1)
	assert.Equal(t, readReply, frames[0].Bytes)
}

func TestBinaryFramerReset(t *testing.T) {
	f := newBinaryFramer()
	f.Feed(readReply[:7])
	f.Reset()
	f.Feed(readReply[7:])
	assert.Empty(t, drain(f))
	f.Feed(readReply)
	assert.Len(t, drain(f), 1)
}

func TestBinaryFramerProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		interior := rapid.SliceOfN(rapid.Byte(), 6, 64).Draw(t, "interior")
		wire := buildFrame(interior)
		f := newBinaryFramer()
		rest := wire
		var frames []Frame
		for len(rest) > 0 {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			f.Feed(rest[:n])
			rest = rest[n:]
			frames = append(frames, drain(f)...)
		}
		if len(frames) != 1 {
			t.Fatalf("expected one frame from % x, got %v", wire, frames)
		}
		if !bytes.Equal(frames[0].Bytes, unescapedFrame(interior)) {
			t.Fatalf("expected % x, actual % x", unescapedFrame(interior), frames[0].Bytes)
		}
	})
}

func TestASCIIFramer(t *testing.T) {
	reply := []byte("\x0201@0712345\x03")
	f := newASCIIFramer()
	f.Feed([]byte("noise"))
	f.Feed(reply[:5])
	assert.Empty(t, drain(f))
	f.Feed(reply[5:])
	frames := drain(f)
	require.Len(t, frames, 1)
	assert.Equal(t, reply, frames[0].Bytes)

	// an unterminated frame is dropped on the next STX
	f.Feed([]byte("\x0201@07"))
	f.Feed(reply)
	frames = drain(f)
	require.Len(t, frames, 1)
	assert.Equal(t, reply, frames[0].Bytes)

	code, ok := frameStatus(frames[0].Bytes)
	assert.True(t, ok)
	assert.Equal(t, byte('@'), code)
}

func TestASCIIFramerChunks(t *testing.T) {
	stream := []byte("\x0201@0712345\x03\x0201@0800100\x03")
	for n := 1; n <= len(stream); n++ {
		f := newASCIIFramer()
		var frames []Frame
		for i := 0; i < len(stream); i += n {
			f.Feed(stream[i:min(i+n, len(stream))])
			frames = append(frames, drain(f)...)
		}
		require.Len(t, frames, 2, "chunk size %d", n)
		assert.Equal(t, stream[:12], frames[0].Bytes)
		assert.Equal(t, stream[12:], frames[1].Bytes)
	}
}
