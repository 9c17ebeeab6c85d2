package df1

// Kind tags the concrete type of a PDU.
type Kind uint8

// PDU kinds of both dialects.
const (
	KindProtectedRead Kind = iota + 1
	KindProtectedWrite
	KindProtectedBitWrite
	KindReply
	KindParameterRead
	KindParameterWrite
	KindControlCommand
	KindDriveReply
)

func (k Kind) String() string {
	switch k {
	case KindProtectedRead:
		return "protected typed read"
	case KindProtectedWrite:
		return "protected typed write"
	case KindProtectedBitWrite:
		return "protected bit write"
	case KindReply:
		return "reply"
	case KindParameterRead:
		return "parameter read"
	case KindParameterWrite:
		return "parameter write"
	case KindControlCommand:
		return "control command"
	case KindDriveReply:
		return "drive reply"
	}
	return "unknown"
}

// Header is common to every PDU. Drive PDUs only use Destination and TNS.
type Header struct {
	Destination byte
	Source      byte
	Command     byte
	Status      byte
	ExtStatus   byte
	// TNS is the transaction number; assigned by the client on send.
	TNS uint16
}

// PDU (protocol data unit) is one request or reply of either dialect.
type PDU interface {
	Kind() Kind
	header() *Header
}

func (h *Header) header() *Header { return h }

// IsReply reports whether the command byte marks a reply.
func (h *Header) IsReply() bool { return h.Command&CommandReplyFlag != 0 }

// ProtectedReadRequest reads Count items starting at Address.
type ProtectedReadRequest struct {
	Header
	Address WireAddress
	Count   int
}

// Kind returns KindProtectedRead.
func (*ProtectedReadRequest) Kind() Kind { return KindProtectedRead }

// ProtectedWriteRequest writes Values starting at Address.
type ProtectedWriteRequest struct {
	Header
	Address WireAddress
	Values  []any
}

// Kind returns KindProtectedWrite.
func (*ProtectedWriteRequest) Kind() Kind { return KindProtectedWrite }

// ProtectedBitWriteRequest sets or clears the bit named by Address.
type ProtectedBitWriteRequest struct {
	Header
	Address WireAddress
	Set     bool
}

// Kind returns KindProtectedBitWrite.
func (*ProtectedBitWriteRequest) Kind() Kind { return KindProtectedBitWrite }

// Reply is the answer to any binary command. Data is the raw payload,
// Values is filled once the reply is matched with its request.
type Reply struct {
	Header
	Data   []byte
	Values []any
}

// Kind returns KindReply.
func (*Reply) Kind() Kind { return KindReply }

// ParameterReadRequest asks the drive for the value of Parameter.
type ParameterReadRequest struct {
	Header
	Parameter int
}

// Kind returns KindParameterRead.
func (*ParameterReadRequest) Kind() Kind { return KindParameterRead }

// ParameterWriteRequest sends Value to Parameter of the drive.
type ParameterWriteRequest struct {
	Header
	Parameter int
	Value     float64
}

// Kind returns KindParameterWrite.
func (*ParameterWriteRequest) Kind() Kind { return KindParameterWrite }

// ControlCommandRequest sends a numbered control command to the drive.
type ControlCommandRequest struct {
	Header
	Code int
}

// Kind returns KindControlCommand.
func (*ControlCommandRequest) Kind() Kind { return KindControlCommand }

// DriveReply is a drive answer. ErrorCode is '@' when the drive accepted it.
type DriveReply struct {
	Header
	ErrorCode byte
	Parameter int
	Value     float64
	Format    byte
}

// Kind returns KindDriveReply.
func (*DriveReply) Kind() Kind { return KindDriveReply }
