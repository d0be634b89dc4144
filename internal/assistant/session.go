package assistant

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Session is the durable backend dialogue thread. The id comes from the
// first reply and must be replayed on every following turn.
type Session struct {
	ID        string    `json:"id"`
	Lane      string    `json:"lane"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SessionStore interface {
	Load() (Session, bool, error)
	Save(session Session) error
	Clear() error
}

type FileSessionStore struct {
	path string
	mu   sync.Mutex
}

func NewFileSessionStore(path string) (*FileSessionStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileSessionStore{path: path}, nil
}

func (s *FileSessionStore) Load() (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return Session{}, false, fmt.Errorf("open: %w", err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	var session Session
	dec := json.NewDecoder(f)
	if err := dec.Decode(&session); err != nil {
		if err == io.EOF {
			return Session{}, false, nil
		}
		return Session{}, false, nil
	}
	if session.ID == "" {
		return Session{}, false, nil
	}
	return session, true, nil
}

func (s *FileSessionStore) Save(session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
		}
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(session)
}

// Clear forgets the stored session; the next turn starts a new backend
// dialogue.
func (s *FileSessionStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return os.Truncate(s.path, 0)
}
