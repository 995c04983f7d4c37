package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string for queue messages.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// TaskIDToString converts a diff task primary key to its string representation.
func TaskIDToString(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseTaskID converts a string back to a diff task primary key.
func ParseTaskID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrValidation("invalid task id %q", s)
	}
	return id, nil
}
