package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame layout: an 8-byte header (code u32 LE, flags u32 LE) followed by
// the optional fields the flags announce, in this fixed order:
//
//	Value0 Value1 Value2 Value3 Value4 Value10
//	DataLength Data ErrorCode Name Session
//
// Value10 sits right after Value4 on the wire even though its flag is
// bit 10. Data is only read when DataLength is also present.
const (
	headerSize = 8

	// MaxDataLength caps the Data field's declared length, terminator
	// included.
	MaxDataLength = 0x200

	// MaxNameLength is the fixed width of the Name field.
	MaxNameLength = 20
)

const (
	flagValue0 uint32 = 1 << iota
	flagValue1
	flagValue2
	flagValue3
	flagValue4
	flagDataLength
	flagData
	flagErrorCode
	flagName
	flagSession
	flagValue10
)

// Packet is one decoded or to-be-encoded frame. Fields are optional;
// presence is tracked in the flags word. Build outbound packets with
// NewPacket and the With* setters.
type Packet struct {
	code  Code
	flags uint32

	value0  uint32
	value1  uint32
	value2  uint32
	value3  uint32
	value4  uint32
	value10 uint32
	dataLen uint32
	data    string
	errCode uint32
	name    string
	session SessionInfo
}

// NewPacket starts a packet for the given verb.
func NewPacket(code Code) *Packet {
	return &Packet{code: code}
}

func (p *Packet) Code() Code { return p.code }

func (p *Packet) WithValue0(v uint32) *Packet {
	p.value0 = v
	p.flags |= flagValue0
	return p
}

func (p *Packet) WithValue1(v uint32) *Packet {
	p.value1 = v
	p.flags |= flagValue1
	return p
}

func (p *Packet) WithValue2(v uint32) *Packet {
	p.value2 = v
	p.flags |= flagValue2
	return p
}

func (p *Packet) WithValue3(v uint32) *Packet {
	p.value3 = v
	p.flags |= flagValue3
	return p
}

func (p *Packet) WithValue4(v uint32) *Packet {
	p.value4 = v
	p.flags |= flagValue4
	return p
}

func (p *Packet) WithValue10(v uint32) *Packet {
	p.value10 = v
	p.flags |= flagValue10
	return p
}

// WithData sets the Data field. The empty string sets nothing: the field
// is omitted from the wire entirely.
func (p *Packet) WithData(s string) *Packet {
	if s == "" {
		return p
	}
	p.data = s
	p.flags |= flagDataLength | flagData
	return p
}

func (p *Packet) WithError(code uint32) *Packet {
	p.errCode = code
	p.flags |= flagErrorCode
	return p
}

func (p *Packet) WithName(s string) *Packet {
	p.name = s
	p.flags |= flagName
	return p
}

func (p *Packet) WithSession(s SessionInfo) *Packet {
	p.session = s
	p.flags |= flagSession
	return p
}

func (p *Packet) Value0() (uint32, bool)  { return p.value0, p.flags&flagValue0 != 0 }
func (p *Packet) Value1() (uint32, bool)  { return p.value1, p.flags&flagValue1 != 0 }
func (p *Packet) Value2() (uint32, bool)  { return p.value2, p.flags&flagValue2 != 0 }
func (p *Packet) Value3() (uint32, bool)  { return p.value3, p.flags&flagValue3 != 0 }
func (p *Packet) Value4() (uint32, bool)  { return p.value4, p.flags&flagValue4 != 0 }
func (p *Packet) Value10() (uint32, bool) { return p.value10, p.flags&flagValue10 != 0 }

// Data reports the Data field. Absent Data reads as the empty string,
// mirroring WithData's treatment of "".
func (p *Packet) Data() (string, bool) { return p.data, p.flags&flagData != 0 }

func (p *Packet) ErrorCode() (uint32, bool) { return p.errCode, p.flags&flagErrorCode != 0 }

func (p *Packet) Name() (string, bool) { return p.name, p.flags&flagName != 0 }

func (p *Packet) Session() (SessionInfo, bool) { return p.session, p.flags&flagSession != 0 }

// Encode renders the canonical wire form. Text conversion is the only
// thing that can fail.
func (p *Packet) Encode() ([]byte, error) {
	buf := make([]byte, 0, headerSize+len(p.data)+MaxNameLength+sessionSize+32)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.code))
	buf = binary.LittleEndian.AppendUint32(buf, p.flags)

	if p.flags&flagValue0 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value0)
	}
	if p.flags&flagValue1 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value1)
	}
	if p.flags&flagValue2 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value2)
	}
	if p.flags&flagValue3 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value3)
	}
	if p.flags&flagValue4 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value4)
	}
	if p.flags&flagValue10 != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.value10)
	}

	if p.flags&flagDataLength != 0 {
		if p.flags&flagData != 0 {
			data, err := encodeText(p.data)
			if err != nil {
				return nil, fmt.Errorf("encoding data field: %w", err)
			}
			data = append(data, 0)
			if len(data) > MaxDataLength {
				return nil, fmt.Errorf("%w: %d bytes", ErrDataTooLong, len(data))
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(data)))
			buf = append(buf, data...)
		} else {
			// Length with no payload, as decoded.
			buf = binary.LittleEndian.AppendUint32(buf, p.dataLen)
		}
	}

	if p.flags&flagErrorCode != 0 {
		buf = binary.LittleEndian.AppendUint32(buf, p.errCode)
	}

	if p.flags&flagName != 0 {
		name, err := encodeText(p.name)
		if err != nil {
			return nil, fmt.Errorf("encoding name field: %w", err)
		}
		var field [MaxNameLength]byte
		copy(field[:], name)
		buf = append(buf, field[:]...)
	}

	if p.flags&flagSession != 0 {
		buf = p.session.appendTo(buf)
	}

	return buf, nil
}
