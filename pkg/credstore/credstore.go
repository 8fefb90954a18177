// Package credstore persists the session credential between runs.
//
// The token is opaque to this package. File keeps it in a single 0600 file
// written atomically; Memory keeps it in process for tests and mock runs.
package credstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrEmptyToken is returned by Write for an empty token. Use Clear instead.
var ErrEmptyToken = errors.New("credstore: empty token")

// File stores the credential at a fixed path.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store for path. The file and its directory are
// created on the first Write.
func NewFile(path string) *File {
	return &File{path: path}
}

// DefaultPath returns $XDG_STATE_HOME/research-pulse/credentials, falling
// back to ~/.local/state.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	state := os.Getenv("XDG_STATE_HOME")
	if state == "" {
		state = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(state, "research-pulse", "credentials")
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Read returns the stored token, or "" if none is stored.
func (f *File) Read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("credstore: read %s: %w", f.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the stored token.
func (f *File) Write(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("credstore: create directory %s: %w", dir, err)
	}
	if err := atomicWrite(f.path, []byte(token+"\n"), dir); err != nil {
		return fmt.Errorf("credstore: write %s: %w", f.path, err)
	}
	return nil
}

// Clear removes the stored token. Clearing an empty store is not an error.
func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("credstore: clear %s: %w", f.path, err)
	}
	return nil
}

// atomicWrite writes data to path via a 0600 temporary file and rename, so a
// concurrent Read sees either the old token or the new one.
func atomicWrite(path string, data []byte, tmpDir string) error {
	tmp, err := os.CreateTemp(tmpDir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}

// Memory is an in-process store. The Fail fields inject errors.
type Memory struct {
	mu    sync.Mutex
	token string

	FailRead  error
	FailWrite error
	FailClear error
}

// NewMemory returns a Memory store holding token ("" for empty).
func NewMemory(token string) *Memory {
	return &Memory{token: token}
}

func (m *Memory) Read() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRead != nil {
		return "", m.FailRead
	}
	return m.token, nil
}

func (m *Memory) Write(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrite != nil {
		return m.FailWrite
	}
	m.token = token
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailClear != nil {
		return m.FailClear
	}
	m.token = ""
	return nil
}

// Token returns the stored token without going through the fault fields.
func (m *Memory) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}
