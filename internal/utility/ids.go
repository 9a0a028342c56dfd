package utility

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// IDGenerator produces short random identifiers used both as store keys
// and as public URL suffixes.
//
// Symbols are drawn without replacement from the alphabet repeated Length
// times, so a single id never holds one symbol more than Length times.
// No uniqueness check against live keys is made.
type IDGenerator struct {
	Alphabet string
	Length   int
}

// NewIDGenerator returns a generator for ids of the given length over the
// given alphabet.
func NewIDGenerator(alphabet string, length int) (*IDGenerator, error) {
	if alphabet == "" {
		return nil, errors.New("id alphabet must not be empty")
	}
	if length < 1 {
		return nil, errors.New("id length must be positive")
	}
	return &IDGenerator{Alphabet: alphabet, Length: length}, nil
}

// Generate returns a new id.
func (g *IDGenerator) Generate() (string, error) {
	pool := []byte(strings.Repeat(g.Alphabet, g.Length))

	// partial Fisher-Yates: only the first Length slots are needed
	for i := 0; i < g.Length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return "", fmt.Errorf("id: %w", err)
		}
		j := i + int(n.Int64())
		pool[i], pool[j] = pool[j], pool[i]
	}
	return string(pool[:g.Length]), nil
}
