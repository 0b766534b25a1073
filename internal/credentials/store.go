package credentials

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Credentials is the persisted bearer token plus the identity it was issued to
type Credentials struct {
	Token    string    `yaml:"token"`
	Identity string    `yaml:"identity,omitempty"`
	SavedAt  time.Time `yaml:"saved_at"`
}

// Store is a single process-wide slot for the current credentials
type Store interface {
	Load() (Credentials, bool, error)
	Save(c Credentials) error
	Clear() error
}

// FileStore keeps the credentials in a YAML file readable only by the owner
type FileStore struct {
	fs   afero.Fs
	path string
	mu   sync.RWMutex
}

func NewFileStore(fs afero.Fs, path string) *FileStore {
	return &FileStore{
		fs:   fs,
		path: path,
	}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load returns the stored credentials. A missing or empty file is not an error.
func (s *FileStore) Load() (Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, s.path)
	if os.IsNotExist(err) {
		return Credentials{}, false, nil
	}
	if err != nil {
		return Credentials{}, false, fmt.Errorf("failed to read credentials: %w", err)
	}

	var c Credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Credentials{}, false, fmt.Errorf("failed to parse credentials file %s: %w", s.path, err)
	}
	if c.Token == "" {
		return Credentials{}, false, nil
	}
	return c, true, nil
}

func (s *FileStore) Save(c Credentials) error {
	if c.Token == "" {
		return fmt.Errorf("refusing to save empty token")
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = time.Now().UTC()
	}

	data, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

// Clear removes the stored credentials; clearing an empty slot succeeds
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
