package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TranscriptStore persists per-channel chat history. Append is called on
// every broadcast chat line, ReadAll on every join so the history can be
// replayed into the join frame. Implementations serialize concurrent
// access per channel; nothing stronger is promised.
type TranscriptStore interface {
	Append(channelName, text string) error
	ReadAll(channelName string) (string, error)
}

// FileStore keeps one append-only text file per channel under a directory,
// the way the original server kept "<channel>.txt" next to the binary.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create transcript directory: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

// Append appends text to the channel's transcript file, creating it on
// first use.
func (s *FileStore) Append(channelName, text string) error {
	lock := s.channelLock(channelName)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.OpenFile(s.path(channelName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open transcript for %s: %w", channelName, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("failed to append transcript for %s: %w", channelName, err)
	}
	return nil
}

// ReadAll returns the channel's full transcript, creating an empty file
// when the channel has no history yet.
func (s *FileStore) ReadAll(channelName string) (string, error) {
	lock := s.channelLock(channelName)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(channelName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		f, createErr := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if createErr != nil {
			return "", fmt.Errorf("failed to create transcript for %s: %w", channelName, createErr)
		}
		f.Close()
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read transcript for %s: %w", channelName, err)
	}
	return string(data), nil
}

func (s *FileStore) path(channelName string) string {
	// Channel names come straight off the wire; keep them inside dir.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '.', 0:
			return '_'
		}
		return r
	}, channelName)
	return filepath.Join(s.dir, safe+".txt")
}

func (s *FileStore) channelLock(channelName string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[channelName]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[channelName] = lock
	}
	return lock
}
