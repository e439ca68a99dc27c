// Package keystore guards the admin HTTP surface: operator API keys are
// bcrypt-hashed for storage and verification, with a SHA-256 lookup hash
// for O(1) database lookup, exactly as the teacher hashes its plugin API
// keys.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	randomBytesSize = 32
	keyPrefix       = "mfk_"
	apiKeyLength    = len(keyPrefix) + randomBytesSize*2
	prefixLen       = 8
	suffixLen       = 4

	bcryptCost  = 10
	bcryptLimit = 72
)

var (
	// ErrKeyNil is returned by Add and HashKey when the plaintext key is empty.
	ErrKeyNil = errors.New("keystore: operator key cannot be nil")
	// ErrKeyNotFound is returned when an operation targets a missing key.
	ErrKeyNotFound = errors.New("keystore: operator key not found")
	// ErrKeyAlreadyExists is returned by Add when the plaintext key already has an entry.
	ErrKeyAlreadyExists = errors.New("keystore: operator key already exists")
	// ErrKeyStringEmpty is returned by ParseKey on an empty key string.
	ErrKeyStringEmpty = errors.New("keystore: key string cannot be empty")
	// ErrInvalidKeyFormat is returned by ParseKey when the key doesn't match mfk_<hex> shape.
	ErrInvalidKeyFormat = errors.New("keystore: invalid operator key format")
)

// OperatorKey is one admin-surface credential. Stores keep only the bcrypt
// hash of the plaintext; the OperatorKey values returned by FindByKey and Add
// carry the masked plaintext (MaskKey) in Key, never the plaintext itself.
type OperatorKey struct {
	ID        int64
	Key       string // masked plaintext
	Label     string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the key is usable for authentication right now.
func (k *OperatorKey) Active() bool {
	return k.RevokedAt == nil
}

// Store is the persistence contract for operator keys. PostgresStore and
// MemoryStore both satisfy it.
type Store interface {
	FindByKey(ctx context.Context, plaintext string) (*OperatorKey, bool)
	Add(ctx context.Context, label, plaintext string) (*OperatorKey, error)
	Revoke(ctx context.Context, id int64) error
	HealthCheck(ctx context.Context) error
}

// GenerateKey creates a new secure operator key: "mfk_" followed by 64 hex
// characters of cryptographically random bytes.
func GenerateKey() (string, error) {
	buf := make([]byte, randomBytesSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("keystore: generate key: %w", err)
	}

	return keyPrefix + hex.EncodeToString(buf), nil
}

// ParseKey validates that keyString has the expected mfk_<hex> shape.
func ParseKey(keyString string) (string, error) {
	if keyString == "" {
		return "", ErrKeyStringEmpty
	}

	if !strings.HasPrefix(keyString, keyPrefix) || len(keyString) != apiKeyLength {
		return "", ErrInvalidKeyFormat
	}

	if _, err := hex.DecodeString(keyString[len(keyPrefix):]); err != nil {
		return "", ErrInvalidKeyFormat
	}

	return keyString, nil
}

// HashKey bcrypt-hashes plaintext for storage. Bcrypt's 72-byte input limit
// is worked around by pre-hashing with SHA-256 for longer inputs.
func HashKey(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrKeyNil
	}

	hash, err := bcrypt.GenerateFromPassword(bcryptInput(plaintext), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("keystore: hash key: %w", err)
	}

	return string(hash), nil
}

// CompareKeyHash performs constant-time comparison of plaintext against a
// bcrypt hash.
func CompareKeyHash(hash, plaintext string) bool {
	if hash == "" || plaintext == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), bcryptInput(plaintext)) == nil
}

func bcryptInput(plaintext string) []byte {
	if len(plaintext) <= bcryptLimit {
		return []byte(plaintext)
	}

	sum := sha256.Sum256([]byte(plaintext))

	return sum[:]
}

// LookupHash computes the SHA-256 hash of plaintext for O(1) database
// lookup. It is not a substitute for the bcrypt comparison in CompareKeyHash
// — a lookup-hash match only narrows the query to a single candidate row.
func LookupHash(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))

	return hex.EncodeToString(sum[:])
}

// MaskKey masks a plaintext operator key for logging, showing only a short
// prefix and suffix.
func MaskKey(key string) string {
	if len(key) <= prefixLen+suffixLen {
		return strings.Repeat("*", len(key))
	}

	masked := len(key) - prefixLen - suffixLen

	return key[:prefixLen] + strings.Repeat("*", masked) + key[len(key)-suffixLen:]
}
