package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"esnafpanel-core/internal/model"
)

// Stored is the durable mirror of the credential store. The three entries
// are always written and removed together.
type Stored struct {
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user,omitempty"`
}

// Storage is the durable key/value layer behind the credential store. Only
// the store writes it; everything else reads tokens through the store.
type Storage interface {
	Read() (Stored, error)
	Write(Stored) error
	Clear() error
}

// FileStorage keeps the session in a JSON file under the user config dir.
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// DefaultStatePath resolves the session file location, honoring
// XDG_CONFIG_HOME.
func DefaultStatePath() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "esnafpanel", "session.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "esnafpanel", "session.json")
}

func (f *FileStorage) Read() (Stored, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Stored{}, nil
		}
		return Stored{}, err
	}
	var s Stored
	if err := json.Unmarshal(data, &s); err != nil {
		return Stored{}, err
	}
	return s, nil
}

func (f *FileStorage) Write(s Stored) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *FileStorage) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// MemoryStorage backs tests.
type MemoryStorage struct {
	mu     sync.Mutex
	stored Stored
	set    bool
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) Read() (Stored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Stored{}, nil
	}
	return m.stored, nil
}

func (m *MemoryStorage) Write(s Stored) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = s
	m.set = true
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = Stored{}
	m.set = false
	return nil
}
