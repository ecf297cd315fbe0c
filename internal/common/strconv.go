package common

import (
	"strconv"
	"strings"
)

// OptionalInt parses value as an integer, returning nil when value is blank.
func OptionalInt(value string) (*int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
