// Package securestore persists client-side credentials (refresh tokens, the
// remembered session) encrypted at rest. Values are sealed with AES-GCM under
// a key derived from the device passphrase; a record that fails to decrypt is
// treated as absent rather than surfaced as an error, so a corrupted or
// tampered file can never leak partial plaintext or wedge the client.
package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"

	appErrors "github.com/altavia-air/altavia-api/pkg/errors"
)

const (
	nonceSize = 12
	keySize   = 32
	saltSize  = 16
)

// DeriveKey stretches a device passphrase into an AES-256 key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

// NewSalt returns a fresh random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

type sealedRecord struct {
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

type fileFormat struct {
	Version int                     `json:"version"`
	Records map[string]sealedRecord `json:"records"`
}

// Store is a file-backed encrypted key-value store.
type Store struct {
	mu   sync.Mutex
	path string
	aead cipher.AEAD
}

// Open loads or creates the store file at path with the given key.
func Open(path string, key []byte) (*Store, error) {
	if len(key) != keySize {
		return nil, appErrors.Clone(appErrors.ErrConfiguration, "secure store key must be 32 bytes")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	s := &Store{path: path, aead: aead}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return s, nil
}

func (s *Store) load() fileFormat {
	ff := fileFormat{Version: 1, Records: map[string]sealedRecord{}}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return ff
	}
	if err := json.Unmarshal(raw, &ff); err != nil || ff.Records == nil {
		// An unreadable file is indistinguishable from an empty one.
		return fileFormat{Version: 1, Records: map[string]sealedRecord{}}
	}
	return ff
}

func (s *Store) save(ff fileFormat) error {
	raw, err := json.Marshal(ff)
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

// Put seals value under key. The key name is stored in the clear; only values
// are encrypted.
func (s *Store) Put(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}

	ff := s.load()
	ff.Records[key] = sealedRecord{
		Nonce:      nonce,
		Ciphertext: s.aead.Seal(nil, nonce, value, []byte(key)),
	}
	return s.save(ff)
}

// Get opens the value stored under key. A missing key, a record whose
// ciphertext fails authentication, or a malformed record all report absent.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.load().Records[key]
	if !ok || len(rec.Nonce) != nonceSize {
		return nil, false
	}
	plaintext, err := s.aead.Open(nil, rec.Nonce, rec.Ciphertext, []byte(key))
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// Remove deletes the record under key. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ff := s.load()
	if _, ok := ff.Records[key]; !ok {
		return nil
	}
	delete(ff.Records, key)
	return s.save(ff)
}

// Clear wipes every record, used on logout.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(fileFormat{Version: 1, Records: map[string]sealedRecord{}})
}
