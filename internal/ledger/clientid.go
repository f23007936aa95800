package ledger

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ParseClientID parses a textual client identifier. Both the canonical
// hyphenated form and the plain 32-hex form are accepted.
func ParseClientID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// FormatClientID renders a client identifier in the plain 32-hex form
// used on the wire.
func FormatClientID(id uuid.UUID) string {
	return hex.EncodeToString(id[:])
}
