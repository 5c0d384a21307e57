package services

import (
	"crypto/rand"
	"encoding/hex"
)

const meetingTokenBytes = 32

// NewMeetingToken mints the capability token a candidate invite link
// carries. 64 hex characters from a CSPRNG; collisions are handled by the
// unique index on the meetings table, not here.
func NewMeetingToken() string {
	buf := make([]byte, meetingTokenBytes)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
