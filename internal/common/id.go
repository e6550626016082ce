package common

import (
	"github.com/google/uuid"
)

// NewPrefixedID generates a unique id of the form "<prefix>_<uuid>", the
// same shape the teacher used for document ids, reused here for job and
// audit-event ids.
func NewPrefixedID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
