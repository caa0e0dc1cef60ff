// Package keystore keeps one symmetric key per user in a flat XML file and
// uses it to seal the user's address fields.
//
// The file may be rewritten by another process (the keys command) while a
// server has it open, so writes re-read the file before changing it and
// reads reload it when it changed on disk.
package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrNoKey = errors.New("keystore: no key for user")

type keyEntry struct {
	User uint   `xml:"user,attr"`
	Key  string `xml:",chardata"`
}

type keyFile struct {
	XMLName xml.Name   `xml:"keys"`
	Keys    []keyEntry `xml:"key"`
}

// stamp identifies the version of the file the key map was read from
type stamp struct {
	modTime time.Time
	size    int64
}

type Store struct {
	path string

	mu     sync.Mutex
	keys   map[uint][]byte
	loaded stamp
}

// Open loads the key file at path. A missing file yields an empty store that
// is created on the first write.
func Open(path string) (*Store, error) {
	s := &Store{path: path, keys: make(map[uint][]byte)}
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// loadLocked replaces the key map with the file's content
func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.keys = make(map[uint][]byte)
		s.loaded = stamp{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read key file: %w", err)
	}

	var f keyFile
	if err := xml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse key file: %w", err)
	}

	keys := make(map[uint][]byte, len(f.Keys))
	for _, e := range f.Keys {
		key, err := base64.StdEncoding.DecodeString(e.Key)
		if err != nil || len(key) != chacha20poly1305.KeySize {
			return fmt.Errorf("invalid key for user %d", e.User)
		}
		keys[e.User] = key
	}

	s.keys = keys
	s.loaded = s.stat()
	return nil
}

func (s *Store) stat() stamp {
	info, err := os.Stat(s.path)
	if err != nil {
		return stamp{}
	}
	return stamp{modTime: info.ModTime(), size: info.Size()}
}

// refreshLocked reloads the file when it changed since it was last read
func (s *Store) refreshLocked() error {
	if s.stat() == s.loaded {
		return nil
	}
	return s.loadLocked()
}

func (s *Store) Has(userID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return false
	}
	_, ok := s.keys[userID]
	return ok
}

// Users returns the ids holding a key, in ascending order
func (s *Store) Users() ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(s.keys))
	for id := range s.keys {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// KeyFor returns the user's key, generating and persisting one if needed
func (s *Store) KeyFor(userID uint) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keyForLocked(userID)
}

// keyForLocked always starts from the file on disk: the key it returns is
// about to seal data that outlives this process.
func (s *Store) keyForLocked(userID uint) ([]byte, error) {
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	if key, ok := s.keys[userID]; ok {
		return key, nil
	}

	key, err := newKey()
	if err != nil {
		return nil, err
	}
	s.keys[userID] = key

	if err := s.saveLocked(); err != nil {
		delete(s.keys, userID)
		return nil, err
	}
	return key, nil
}

// Remove drops the user's key. Values sealed under it can no longer be opened.
func (s *Store) Remove(userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(); err != nil {
		return err
	}
	key, ok := s.keys[userID]
	if !ok {
		return nil
	}
	delete(s.keys, userID)

	if err := s.saveLocked(); err != nil {
		s.keys[userID] = key
		return err
	}
	return nil
}

// Seal encrypts plaintext under the user's key. Empty input stays empty.
func (s *Store) Seal(userID uint, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	key, err := s.KeyFor(userID)
	if err != nil {
		return "", err
	}
	return seal(key, userID, plaintext)
}

// Unseal decrypts a value produced by Seal for the same user. A value that
// does not open under the cached key is retried once against the file, which
// may have been rotated within the file system's timestamp resolution.
func (s *Store) Unseal(userID uint, sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.refreshLocked(); err != nil {
		return "", err
	}
	if key, ok := s.keys[userID]; ok {
		plain, err := unseal(key, userID, sealed)
		if !errors.Is(err, ErrCorrupt) {
			return plain, err
		}
	}

	if err := s.loadLocked(); err != nil {
		return "", err
	}
	key, ok := s.keys[userID]
	if !ok {
		return "", ErrNoKey
	}
	return unseal(key, userID, sealed)
}

// Rotate replaces the user's key and re-seals fields in place. Nothing
// changes if any field fails to decrypt or the key file cannot be written.
func (s *Store) Rotate(userID uint, fields ...*string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	oldKey, err := s.keyForLocked(userID)
	if err != nil {
		return err
	}

	newKey, err := newKey()
	if err != nil {
		return err
	}

	resealed := make([]string, len(fields))
	for i, f := range fields {
		if *f == "" {
			continue
		}
		plain, err := unseal(oldKey, userID, *f)
		if err != nil {
			return err
		}
		if resealed[i], err = seal(newKey, userID, plain); err != nil {
			return err
		}
	}

	s.keys[userID] = newKey
	if err := s.saveLocked(); err != nil {
		s.keys[userID] = oldKey
		return err
	}

	for i, f := range fields {
		*f = resealed[i]
	}
	return nil
}

func (s *Store) saveLocked() error {
	f := keyFile{Keys: make([]keyEntry, 0, len(s.keys))}
	for id, key := range s.keys {
		f.Keys = append(f.Keys, keyEntry{User: id, Key: base64.StdEncoding.EncodeToString(key)})
	}
	sort.Slice(f.Keys, func(i, j int) bool { return f.Keys[i].User < f.Keys[j].User })

	data, err := xml.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	data = append([]byte(xml.Header), data...)

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace key file: %w", err)
	}

	s.loaded = s.stat()
	return nil
}

func newKey() ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}
