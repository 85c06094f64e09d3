package util

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier, optionally namespaced by prefix.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
