// README: Opaque identifiers shared across modules.
package types

import "github.com/google/uuid"

type ID string

// NewID returns a random identifier. IDs are never recycled.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}
