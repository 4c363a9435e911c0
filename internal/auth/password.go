package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	saltLength = 16
	keyLength  = 32
)

// ErrMalformedHash is returned when a stored digest cannot be parsed.
var ErrMalformedHash = errors.New("malformed password hash")

// Params are the argon2id cost parameters.
type Params struct {
	MemoryKB    uint32
	Iterations  uint32
	Parallelism uint8
}

// DefaultParams follow the OWASP recommendation for argon2id.
var DefaultParams = Params{
	MemoryKB:    64 * 1024,
	Iterations:  3,
	Parallelism: 2,
}

// Hasher derives and checks salted argon2id password digests.
// At most `concurrency` derivations run at the same time.
type Hasher struct {
	params Params
	sem    *semaphore.Weighted
}

// NewHasher creates a Hasher. A concurrency below 1 is treated as 1.
func NewHasher(params Params, concurrency int) *Hasher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Hasher{
		params: params,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// Hash generates an encoded argon2id digest with a fresh random salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(password), salt, h.params.Iterations, h.params.MemoryKB, h.params.Parallelism, keyLength)
	h.sem.Release(1)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.MemoryKB, h.params.Iterations, h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Matches reports whether password produces digest. The cost parameters are
// read from the digest itself, so digests created with older settings keep working.
// bcrypt digests are accepted as well.
func (h *Hasher) Matches(ctx context.Context, password, digest string) (bool, error) {
	if isBcrypt(digest) {
		if err := h.sem.Acquire(ctx, 1); err != nil {
			return false, err
		}
		defer h.sem.Release(1)

		err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
		}
		return true, nil
	}

	params, salt, want, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), salt, params.Iterations, params.MemoryKB, params.Parallelism, uint32(len(want)))
	h.sem.Release(1)

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

func isBcrypt(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

func decodeArgon2(digest string) (Params, []byte, []byte, error) {
	var p Params

	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if version != argon2.Version {
		return p, nil, nil, fmt.Errorf("%w: unsupported argon2 version %d", ErrMalformedHash, version)
	}

	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return p, nil, nil, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	key, err := base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrMalformedHash
	}

	return Params{MemoryKB: memory, Iterations: iterations, Parallelism: parallelism}, salt, key, nil
}
