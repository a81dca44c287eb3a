package mutate

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	DefaultPrefix = "client"
	idAlphabet    = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength      = 8
)

// NewID returns prefix-xxxxxxxx with eight random characters from [a-z0-9].
// An empty prefix falls back to DefaultPrefix.
func NewID(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	var b strings.Builder
	b.Grow(len(prefix) + 1 + idLength)
	b.WriteString(prefix)
	b.WriteByte('-')
	n := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < idLength; i++ {
		r, err := rand.Int(rand.Reader, n)
		if err != nil {
			// crypto/rand only fails when the OS source is unavailable.
			panic(err)
		}
		b.WriteByte(idAlphabet[r.Int64()])
	}
	return b.String()
}
