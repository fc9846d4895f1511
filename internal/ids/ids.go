// Package ids provides record and operation identifier generation.
//
// Newly created records carry a temporary identifier until the remote store
// assigns a permanent one; temporary IDs are distinguishable by prefix so the
// sync engine can tell which records have never been acknowledged remotely.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TempPrefix marks locally generated identifiers awaiting remote assignment.
const TempPrefix = "tmp_"

// New generates a new UUID v4 string, used for operation IDs and
// idempotency keys.
func New() string {
	return uuid.New().String()
}

// NewTemp generates a temporary record identifier.
func NewTemp() string {
	return TempPrefix + uuid.New().String()
}

// IsTemp reports whether id is a temporary identifier.
func IsTemp(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Validate returns an error if id is neither a UUID v4 nor a temporary id.
func Validate(id string) error {
	raw := strings.TrimPrefix(id, TempPrefix)
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", id, err)
	}
	if parsed.Version() != 4 {
		return fmt.Errorf("invalid id %q: expected UUID v4, got v%d", id, parsed.Version())
	}
	return nil
}
