package password

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16

	// MinLength is the shortest accepted password, in bytes.
	MinLength = 10
)

// ErrTooShort is returned by Hash for passwords under [MinLength] bytes.
var ErrTooShort = errors.New("password must be at least 10 bytes")

// Config holds Argon2id cost parameters. Memory is in KiB.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig is the baseline cost used by havenAuth.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher is safe for concurrent use.
type Hasher struct {
	config Config

	dummyOnce sync.Once
	dummy     phc
}

// New validates cfg and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash returns the PHC string of plaintext. Bytes are used as given, with
// no Unicode normalization.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) < MinLength {
		return "", ErrTooShort
	}
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	return h.derive(plaintext, salt).String(), nil
}

func (h *Hasher) derive(plaintext string, salt []byte) phc {
	c := h.config
	return phc{
		memory:      c.Memory,
		time:        c.Time,
		parallelism: c.Parallelism,
		salt:        salt,
		key:         argon2.IDKey([]byte(plaintext), salt, c.Time, c.Memory, c.Parallelism, c.KeyLength),
	}
}

// Verify reports whether plaintext matches encoded. A malformed hash is an
// error, a mismatch is not.
func (h *Hasher) Verify(plaintext, encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	computed := argon2.IDKey([]byte(plaintext), p.salt, p.time, p.memory, p.parallelism, uint32(len(p.key)))
	return subtle.ConstantTimeCompare(computed, p.key) == 1, nil
}

// VerifyDummy burns the same work as a real Verify against a hash that can
// never match. Sign-in calls it for unknown accounts so response time does
// not reveal whether an account exists.
func (h *Hasher) VerifyDummy(plaintext string) {
	h.dummyOnce.Do(func() {
		h.dummy = h.derive("havenauth-dummy-password", make([]byte, h.config.SaltLength))
	})
	d := h.dummy
	computed := argon2.IDKey([]byte(plaintext), d.salt, d.time, d.memory, d.parallelism, uint32(len(d.key)))
	_ = subtle.ConstantTimeCompare(computed, d.key)
}

// NeedsRehash reports whether encoded was produced with weaker parameters
// than the Hasher's.
func (h *Hasher) NeedsRehash(encoded string) (bool, error) {
	p, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}
	c := h.config
	return c.Memory > p.memory ||
		c.Time > p.time ||
		c.Parallelism > p.parallelism ||
		c.KeyLength != uint32(len(p.key)), nil
}
