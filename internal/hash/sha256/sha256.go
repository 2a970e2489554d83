// Package sha256 names archived articles by the SHA-256 digest of their URL.
package sha256

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
)

// Hasher implements harvest.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash returns the hex digest of data. Absolute URLs are digested without
// their fragment so every anchor of one article maps to the same name.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(canonical(data))
	return hex.EncodeToString(sum[:]), nil
}

func canonical(data []byte) []byte {
	trimmed := bytes.TrimSpace(data)
	if bytes.IndexByte(trimmed, '#') < 0 {
		return trimmed
	}
	u, err := url.Parse(string(trimmed))
	if err != nil || !u.IsAbs() {
		return trimmed
	}
	u.Fragment = ""
	u.RawFragment = ""
	return []byte(u.String())
}
