package protocol

import (
	"encoding/binary"
	"fmt"
)

// SessionType tags what kind of entity a session block describes.
type SessionType uint8

const (
	SessionRoom SessionType = 1
	SessionGame SessionType = 4
	SessionUser SessionType = 5
)

// SessionAccess is the visibility byte of a session block.
type SessionAccess uint8

const (
	AccessPublic    SessionAccess = 1
	AccessProtected SessionAccess = 2
)

// Session block layout, 50 bytes on the wire:
// two magic u32s, nation, version, release, type, access, 0x01, 0x00 and
// 35 bytes of zero padding. The magic values never vary.
const (
	sessionSize = 50

	sessionCRC1 = 0x17171717
	sessionCRC2 = 0x02010101

	// game_version byte. The frontend only ever shipped one, so the
	// encoder pins it and the decoder ignores it.
	sessionVersion = 49

	// DefaultRelease is the game_release byte written unless the session
	// carries another one.
	DefaultRelease = 49
)

// SessionInfo is the decoded form of the 50-byte session block.
type SessionInfo struct {
	Nation      Nation
	GameRelease uint8
	Type        SessionType
	Access      SessionAccess
}

// NewSession builds a public session with the default release byte.
func NewSession(nation Nation, typ SessionType) SessionInfo {
	return SessionInfo{
		Nation:      nation,
		GameRelease: DefaultRelease,
		Type:        typ,
		Access:      AccessPublic,
	}
}

// NewSessionWithAccess builds a session with an explicit access byte.
func NewSessionWithAccess(nation Nation, typ SessionType, access SessionAccess) SessionInfo {
	s := NewSession(nation, typ)
	s.Access = access
	return s
}

func (s SessionInfo) appendTo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, sessionCRC1)
	buf = binary.LittleEndian.AppendUint32(buf, sessionCRC2)
	buf = append(buf,
		byte(s.Nation),
		sessionVersion,
		s.GameRelease,
		byte(s.Type),
		byte(s.Access),
		0x01,
		0x00,
	)
	var pad [35]byte
	return append(buf, pad[:]...)
}

// decodeSession validates and decodes a 50-byte session block.
// b must hold at least sessionSize bytes.
func decodeSession(b []byte) (SessionInfo, error) {
	if crc := binary.LittleEndian.Uint32(b[0:4]); crc != sessionCRC1 {
		return SessionInfo{}, fmt.Errorf("%w: first magic 0x%08x", ErrBadSession, crc)
	}
	if crc := binary.LittleEndian.Uint32(b[4:8]); crc != sessionCRC2 {
		return SessionInfo{}, fmt.Errorf("%w: second magic 0x%08x", ErrBadSession, crc)
	}

	var info SessionInfo
	info.Nation = NationFromByte(b[8])
	// b[9] is game_version, ignored.
	info.GameRelease = b[10]

	switch SessionType(b[11]) {
	case SessionRoom, SessionGame, SessionUser:
		info.Type = SessionType(b[11])
	default:
		return SessionInfo{}, fmt.Errorf("%w: session type %d", ErrBadSession, b[11])
	}

	switch SessionAccess(b[12]) {
	case AccessPublic, AccessProtected:
		info.Access = SessionAccess(b[12])
	default:
		return SessionInfo{}, fmt.Errorf("%w: access %d", ErrBadSession, b[12])
	}

	if b[13] != 0x01 || b[14] != 0x00 {
		return SessionInfo{}, fmt.Errorf("%w: tail bytes %d %d", ErrBadSession, b[13], b[14])
	}
	for i := 15; i < sessionSize; i++ {
		if b[i] != 0 {
			return SessionInfo{}, fmt.Errorf("%w: padding byte at offset %d", ErrBadSession, i)
		}
	}

	return info, nil
}
