package internal

import (
	"encoding/base32"

	"github.com/google/uuid"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz156789"

var customEncoding = base32.NewEncoding(alphabet).WithPadding(base32.NoPadding)

// newOpID returns a random id tying together the events and log lines of
// one operation. It is a v4 UUID in a 26 character lower case encoding.
func newOpID() string {
	id := uuid.New()
	return customEncoding.EncodeToString(id[:])
}
