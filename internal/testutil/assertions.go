package testutil

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/wormnetgo/server/internal/protocol"
)

// RequireCode проверяет, что verb пакета соответствует ожидаемому.
func RequireCode(t testing.TB, expected protocol.Code, pkt *protocol.Packet) {
	t.Helper()

	if pkt == nil {
		t.Fatalf("packet is nil, expected %s", expected)
	}
	if pkt.Code() != expected {
		t.Fatalf("packet code mismatch: expected %s, got %s", expected, pkt.Code())
	}
}

// RequireErrorCode проверяет, что пакет несёт поле ErrorCode с ожидаемым значением.
func RequireErrorCode(t testing.TB, expected uint32, pkt *protocol.Packet) {
	t.Helper()

	code, ok := pkt.ErrorCode()
	if !ok {
		t.Fatalf("%s packet has no error code, expected %d", pkt.Code(), expected)
	}
	if code != expected {
		t.Fatalf("%s error code mismatch: expected %d, got %d", pkt.Code(), expected, code)
	}
}

// RequireValue1 проверяет поле Value1 пакета.
func RequireValue1(t testing.TB, expected uint32, pkt *protocol.Packet) {
	t.Helper()

	v, ok := pkt.Value1()
	if !ok {
		t.Fatalf("%s packet has no value1, expected %d", pkt.Code(), expected)
	}
	if v != expected {
		t.Fatalf("%s value1 mismatch: expected %d, got %d", pkt.Code(), expected, v)
	}
}

// RequireValue2 проверяет поле Value2 пакета.
func RequireValue2(t testing.TB, expected uint32, pkt *protocol.Packet) {
	t.Helper()

	v, ok := pkt.Value2()
	if !ok {
		t.Fatalf("%s packet has no value2, expected %d", pkt.Code(), expected)
	}
	if v != expected {
		t.Fatalf("%s value2 mismatch: expected %d, got %d", pkt.Code(), expected, v)
	}
}

// RequireValue10 проверяет поле Value10 пакета.
func RequireValue10(t testing.TB, expected uint32, pkt *protocol.Packet) {
	t.Helper()

	v, ok := pkt.Value10()
	if !ok {
		t.Fatalf("%s packet has no value10, expected %d", pkt.Code(), expected)
	}
	if v != expected {
		t.Fatalf("%s value10 mismatch: expected %d, got %d", pkt.Code(), expected, v)
	}
}

// RequireData проверяет поле Data пакета.
func RequireData(t testing.TB, expected string, pkt *protocol.Packet) {
	t.Helper()

	s, ok := pkt.Data()
	if !ok {
		t.Fatalf("%s packet has no data, expected %q", pkt.Code(), expected)
	}
	if s != expected {
		t.Fatalf("%s data mismatch: expected %q, got %q", pkt.Code(), expected, s)
	}
}

// RequireName проверяет поле Name пакета.
func RequireName(t testing.TB, expected string, pkt *protocol.Packet) {
	t.Helper()

	s, ok := pkt.Name()
	if !ok {
		t.Fatalf("%s packet has no name, expected %q", pkt.Code(), expected)
	}
	if s != expected {
		t.Fatalf("%s name mismatch: expected %q, got %q", pkt.Code(), expected, s)
	}
}

// DecodeFrame декодирует ровно один frame и проверяет, что он занял весь
// буфер. Для проверки frames, снятых напрямую с mailbox.
func DecodeFrame(t testing.TB, frame []byte) *protocol.Packet {
	t.Helper()

	pkt, n, err := protocol.Decode(frame)
	if err != nil {
		t.Fatalf("malformed frame: %v\n%s", err, DumpFrame(frame))
	}
	if pkt == nil {
		t.Fatalf("frame truncated at %d bytes\n%s", len(frame), DumpFrame(frame))
	}
	if n != len(frame) {
		t.Fatalf("frame has %d trailing bytes\n%s", len(frame)-n, DumpFrame(frame))
	}
	return pkt
}

// DumpFrame возвращает hex dump frame для отладки.
func DumpFrame(frame []byte) string {
	var buf bytes.Buffer
	for i := 0; i < len(frame); i += 16 {
		end := i + 16
		if end > len(frame) {
			end = len(frame)
		}
		chunk := frame[i:end]

		// Offset
		fmt.Fprintf(&buf, "%04x  ", i)

		// Hex
		for j, b := range chunk {
			if j == 8 {
				buf.WriteString(" ")
			}
			fmt.Fprintf(&buf, "%02x ", b)
		}

		// Padding
		for j := len(chunk); j < 16; j++ {
			if j == 8 {
				buf.WriteString(" ")
			}
			buf.WriteString("   ")
		}

		// ASCII
		buf.WriteString(" |")
		for _, b := range chunk {
			if b >= 32 && b <= 126 {
				buf.WriteByte(b)
			} else {
				buf.WriteByte('.')
			}
		}
		buf.WriteString("|\n")
	}
	return buf.String()
}
