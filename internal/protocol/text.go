package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Wire text is Windows-1251. The frontend predates Unicode; every string
// field goes through these two helpers.

func encodeText(s string) ([]byte, error) {
	if isASCII(s) {
		return []byte(s), nil
	}
	b, err := charmap.Windows1251.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("encoding text to windows-1251: %w", err)
	}
	return b, nil
}

func decodeText(b []byte) (string, error) {
	if isASCIIBytes(b) {
		return string(b), nil
	}
	decoded, err := charmap.Windows1251.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decoding windows-1251 text: %w", err)
	}
	s := string(decoded)
	// charmap substitutes U+FFFD for bytes the codepage leaves undefined.
	if strings.ContainsRune(s, utf8.RuneError) {
		return "", fmt.Errorf("decoding windows-1251 text: %w", ErrBadText)
	}
	return s, nil
}

// stripNUL drops every NUL, not just padding, matching the frontend's
// tolerance for garbage after the terminator.
func stripNUL(s string) string {
	return strings.ReplaceAll(s, "\x00", "")
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isASCIIBytes(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
