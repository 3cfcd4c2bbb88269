package message

import (
	"encoding/hex"
	"strings"

	"github.com/zeebo/blake3"
)

// Digest fingerprints the client-supplied fields of m. Two deliveries with the
// same message_id but different digests are conflicting duplicates.
func Digest(m Message) string {
	var b strings.Builder
	for _, field := range []string{m.MessageID, m.From, m.To, m.Timestamp} {
		b.WriteString(field)
		b.WriteByte(0x1f)
	}
	if m.Text != nil {
		b.WriteByte('1')
		b.WriteString(*m.Text)
	} else {
		b.WriteByte('0')
	}

	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
