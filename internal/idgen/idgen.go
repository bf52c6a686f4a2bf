// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes of generated IDs.
const (
	TaskPrefix        = "task-"
	CustomBuildPrefix = "custom-build-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// TaskID returns a new build task ID.
func TaskID() (string, error) {
	return GenerateWithPrefix(TaskPrefix)
}

// CustomBuildID returns a new ID for a custom toolchain build request.
func CustomBuildID() (string, error) {
	return GenerateWithPrefix(CustomBuildPrefix)
}

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
