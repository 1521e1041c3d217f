package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame errors. Any of them means the stream is unrecoverable and the
// connection must be dropped.
var (
	ErrDataTooLong = errors.New("data field over limit")
	ErrBadSession  = errors.New("malformed session block")
	ErrBadText     = errors.New("byte outside codepage")
)

// Decode peeks one frame out of buf.
//
// Returns (nil, 0, nil) when buf does not yet hold a complete frame; buf
// is never consumed in that case. On success the frame and its exact byte
// length are returned and the caller advances by that length. A non-nil
// error means the frame is malformed beyond recovery.
func Decode(buf []byte) (*Packet, int, error) {
	if len(buf) < headerSize {
		return nil, 0, nil
	}

	p := &Packet{
		code:  Code(binary.LittleEndian.Uint32(buf[0:4])),
		flags: binary.LittleEndian.Uint32(buf[4:8]),
	}
	off := headerSize

	u32s := []struct {
		flag uint32
		dst  *uint32
	}{
		{flagValue0, &p.value0},
		{flagValue1, &p.value1},
		{flagValue2, &p.value2},
		{flagValue3, &p.value3},
		{flagValue4, &p.value4},
		{flagValue10, &p.value10},
	}
	for _, f := range u32s {
		if p.flags&f.flag == 0 {
			continue
		}
		if len(buf) < off+4 {
			return nil, 0, nil
		}
		*f.dst = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}

	if p.flags&flagDataLength != 0 {
		if len(buf) < off+4 {
			return nil, 0, nil
		}
		declared := binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
		if declared > MaxDataLength {
			return nil, 0, fmt.Errorf("%w: %d bytes declared", ErrDataTooLong, declared)
		}
		if p.flags&flagData != 0 {
			n := int(declared)
			if len(buf) < off+n {
				return nil, 0, nil
			}
			s, err := decodeText(buf[off : off+n])
			if err != nil {
				return nil, 0, fmt.Errorf("data field: %w", err)
			}
			p.data = stripNUL(s)
			off += n
		} else {
			// Length with no payload; kept so re-encoding reproduces it.
			p.dataLen = declared
		}
	}

	if p.flags&flagErrorCode != 0 {
		if len(buf) < off+4 {
			return nil, 0, nil
		}
		p.errCode = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}

	if p.flags&flagName != 0 {
		if len(buf) < off+MaxNameLength {
			return nil, 0, nil
		}
		s, err := decodeText(buf[off : off+MaxNameLength])
		if err != nil {
			return nil, 0, fmt.Errorf("name field: %w", err)
		}
		p.name = stripNUL(s)
		off += MaxNameLength
	}

	if p.flags&flagSession != 0 {
		if len(buf) < off+sessionSize {
			return nil, 0, nil
		}
		info, err := decodeSession(buf[off : off+sessionSize])
		if err != nil {
			return nil, 0, err
		}
		p.session = info
		off += sessionSize
	}

	return p, off, nil
}
