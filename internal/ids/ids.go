// Package ids generates member ids, room codes and host keys.
package ids

import (
	"crypto/rand"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// RoomAlphabet omits I, O, 0 and 1 so codes survive being read aloud.
const RoomAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const RoomCodeLength = 6

// NewMemberID returns a stable member/session id the client keeps across reconnects.
func NewMemberID() string {
	return uuid.NewString()
}

// NewRoomCode returns a random code like "K7X3QZ".
func NewRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(RoomAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = RoomAlphabet[n.Int64()]
	}
	return string(code), nil
}

// NewHostKey returns a 128-bit secret handed to the room creator.
func NewHostKey() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "hk_" + hex.EncodeToString(b), nil
}

// NormalizeCode canonicalizes user input before lookup or validation.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether an already-normalized code has the accepted shape.
func ValidRoomCode(code string) bool {
	if len(code) != RoomCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(RoomAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
