// Package file provides an encrypted file-backed token store, the desktop
// analogue of a platform secure key-value store. The credential pair is
// sealed with AES-256-GCM under a key derived from a passphrase via
// argon2id; a fresh salt and nonce are drawn on every write.
package file

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/loopchat/authkit/tokenstore"
)

const (
	envelopeVersion = 1
	keyLen          = 32
	saltLen         = 16
)

// KDFParams are the argon2id cost parameters recorded in the envelope so
// reads survive future default changes.
type KDFParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
}

// DefaultKDFParams returns the write-side argon2id costs.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:        1,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
	}
}

type envelope struct {
	Version int       `json:"version"`
	Salt    []byte    `json:"salt"`
	KDF     KDFParams `json:"kdf"`
	// Sealed is nonce || ciphertext as produced by AES-GCM.
	Sealed []byte `json:"sealed"`
}

// Store persists one encrypted credential pair at a fixed path.
type Store struct {
	path       string
	passphrase string
	params     KDFParams

	mu sync.Mutex
}

var _ tokenstore.Store = (*Store)(nil)

// New returns a store writing to path, sealing with the given passphrase.
func New(path, passphrase string) *Store {
	return &Store{
		path:       path,
		passphrase: passphrase,
		params:     DefaultKDFParams(),
	}
}

func (s *Store) Read(_ context.Context) (*tokenstore.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", tokenstore.ErrUnavailable, s.path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: corrupt envelope: %v", tokenstore.ErrUnavailable, err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %d", tokenstore.ErrUnavailable, env.Version)
	}

	plain, err := open(env.Sealed, s.deriveKey(env.Salt, env.KDF))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}

	var pair tokenstore.Pair
	if err := json.Unmarshal(plain, &pair); err != nil {
		return nil, fmt.Errorf("%w: corrupt pair: %v", tokenstore.ErrUnavailable, err)
	}
	return &pair, nil
}

func (s *Store) Write(_ context.Context, pair tokenstore.Pair) error {
	if err := pair.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	plain, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("%w: encoding pair: %v", tokenstore.ErrUnavailable, err)
	}

	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("%w: generating salt: %v", tokenstore.ErrUnavailable, err)
	}

	sealed, err := seal(plain, s.deriveKey(salt, s.params))
	if err != nil {
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}

	raw, err := json.Marshal(envelope{
		Version: envelopeVersion,
		Salt:    salt,
		KDF:     s.params,
		Sealed:  sealed,
	})
	if err != nil {
		return fmt.Errorf("%w: encoding envelope: %v", tokenstore.ErrUnavailable, err)
	}

	// tmp+rename so a crash mid-write never leaves a torn pair behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credentials-*")
	if err != nil {
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return fmt.Errorf("%w: %v", tokenstore.ErrUnavailable, err)
}

func (s *Store) deriveKey(salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(s.passphrase), salt, p.Time, p.MemoryKiB, p.Parallelism, keyLen)
}

func seal(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %v", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %v", err)
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func open(sealed, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %v", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %v", err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("sealed blob shorter than nonce")
	}
	nonce, ct := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("opening sealed blob: %v", err)
	}
	return plain, nil
}
