package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"traktfm/models"
)

// ErrNotRegistered is returned when a Discord user has not linked a Trakt account.
var ErrNotRegistered = errors.New("user not registered")

// Service keeps the Discord user → Trakt username mapping in a JSON file.
// The whole file is read on every lookup and rewritten on every registration.
type Service struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

// NewService returns a Service persisting to path on fs.
func NewService(fs afero.Fs, path string) *Service {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Service{fs: fs, path: path}
}

func (s *Service) load() (map[string]string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read users file: %w", err)
	}

	links := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return links, nil
	}
	if err := json.Unmarshal(data, &links); err != nil {
		return nil, fmt.Errorf("decode users file: %w", err)
	}
	return links, nil
}

func (s *Service) save(links map[string]string) error {
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return fmt.Errorf("encode users file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create users dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write users file: %w", err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace users file: %w", err)
	}
	return nil
}

// Get returns the link for userID, or ErrNotRegistered.
func (s *Service) Get(userID string) (models.UserLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.load()
	if err != nil {
		return models.UserLink{}, err
	}
	username, ok := links[userID]
	if !ok || username == "" {
		return models.UserLink{}, ErrNotRegistered
	}
	return models.UserLink{UserID: userID, Username: username}, nil
}

// Set links userID to username, replacing any previous link.
func (s *Service) Set(userID, username string) (models.UserLink, error) {
	username = strings.TrimSpace(username)
	if userID == "" || username == "" {
		return models.UserLink{}, fmt.Errorf("user id and username are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	links, err := s.load()
	if err != nil {
		return models.UserLink{}, err
	}
	links[userID] = username
	if err := s.save(links); err != nil {
		return models.UserLink{}, err
	}
	return models.UserLink{UserID: userID, Username: username}, nil
}

// All returns a copy of every stored link.
func (s *Service) All() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}
