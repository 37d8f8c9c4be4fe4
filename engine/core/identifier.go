package core

import (
	"fmt"

	"github.com/google/uuid"
)

// Identifier uniquely names an engine object for its whole lifetime.
type Identifier struct {
	uuid.UUID
}

func NewIdentifier() Identifier {
	return Identifier{UUID: uuid.New()}
}

// Short is the first block of the identifier, enough for log lines.
func (id Identifier) Short() string {
	return id.String()[:8]
}

// DebugName returns name, or a name derived from kind and the identifier when empty.
func (id Identifier) DebugName(kind, name string) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("%s-%s", kind, id.Short())
}
