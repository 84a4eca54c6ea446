package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
)

const (
	sessionTokenSize = 20

	// CodeAlphabet is the lowercase alphanumeric set used for one-time codes.
	CodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var lowerBase32 = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// NewSessionToken returns a fresh raw session token: 20 random bytes,
// base32 lowercase without padding.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return lowerBase32.EncodeToString(raw[:]), nil
}

// EncodeToken maps a raw token to its stored form, hex(sha256(raw)).
func EncodeToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewCode draws length characters uniformly from alphabet.
func NewCode(length int, alphabet string) (string, error) {
	if length <= 0 {
		return "", errors.New("invalid code length")
	}
	if len(alphabet) < 2 {
		return "", errors.New("invalid code alphabet")
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String(), nil
}

// NewChallenge returns size random bytes.
func NewChallenge(size int) ([]byte, error) {
	if size < 16 {
		return nil, errors.New("challenge too short")
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
