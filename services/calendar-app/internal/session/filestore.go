package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	saltLen  = 16
	nonceLen = 24
	keyLen   = 32
)

var ErrCorruptStore = errors.New("session file corrupt or passphrase wrong")

// FileStore keeps credentials in a single file sealed with secretbox under a
// key derived from a passphrase with scrypt. Layout: salt | nonce | box.
type FileStore struct {
	path       string
	passphrase []byte
}

func NewFileStore(path, passphrase string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("session file path required")
	}
	if passphrase == "" {
		return nil, errors.New("session passphrase required")
	}
	return &FileStore{path: path, passphrase: []byte(passphrase)}, nil
}

func (f *FileStore) deriveKey(salt []byte) (*[keyLen]byte, error) {
	raw, err := scrypt.Key(f.passphrase, salt, 1<<15, 8, 1, keyLen)
	if err != nil {
		return nil, err
	}
	var key [keyLen]byte
	copy(key[:], raw)
	return &key, nil
}

func (f *FileStore) Load(context.Context) (State, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read session file: %w", err)
	}
	if len(data) < saltLen+nonceLen+secretbox.Overhead {
		return State{}, false, ErrCorruptStore
	}
	key, err := f.deriveKey(data[:saltLen])
	if err != nil {
		return State{}, false, err
	}
	var nonce [nonceLen]byte
	copy(nonce[:], data[saltLen:saltLen+nonceLen])
	plain, ok := secretbox.Open(nil, data[saltLen+nonceLen:], &nonce, key)
	if !ok {
		return State{}, false, ErrCorruptStore
	}
	var st State
	if err := json.Unmarshal(plain, &st); err != nil {
		return State{}, false, ErrCorruptStore
	}
	return st, true, nil
}

func (f *FileStore) Save(_ context.Context, st State) error {
	plain, err := json.Marshal(st)
	if err != nil {
		return err
	}
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	var nonce [nonceLen]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}
	key, err := f.deriveKey(salt)
	if err != nil {
		return err
	}
	out := make([]byte, 0, saltLen+nonceLen+len(plain)+secretbox.Overhead)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain, &nonce, key)

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".session-*")
	if err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *FileStore) Clear(context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
