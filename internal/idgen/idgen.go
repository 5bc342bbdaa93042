// Package idgen generates short, URL-safe IDs for readings and bus clients.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the kinds of IDs the relay hands out.
const (
	ReadingPrefix = "mo-"
	ClientPrefix  = "motionrelay-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 10

// Reading returns a new reading ID.
func Reading() (string, error) {
	return WithPrefix(ReadingPrefix)
}

// Client returns a new ID suitable for an MQTT client or Kafka client name.
func Client() (string, error) {
	return WithPrefix(ClientPrefix)
}

// WithPrefix returns a new unique ID with the given prefix.
func WithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}
