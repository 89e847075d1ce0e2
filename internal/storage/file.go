package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"invitation-site/internal/models"
)

// fileDocument is the on-disk layout, the guests collection keyed by id
type fileDocument struct {
	Guests map[string]models.Guest `json:"guests"`
}

// FileStore keeps the guests collection in a single JSON file
type FileStore struct {
	mu     sync.Mutex
	guests map[string]models.Guest
	file   string
	feed   feed
}

// NewFileStore creates a new file backed store
func NewFileStore(filePath string) (*FileStore, error) {
	s := &FileStore{
		guests: make(map[string]models.Guest),
		file:   filePath,
	}

	// Load existing data if file exists
	if _, err := os.Stat(filePath); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("failed to load storage: %w", err)
		}
	}

	return s, nil
}

// Push appends a guest under a new key and notifies subscribers
func (s *FileStore) Push(ctx context.Context, guest models.Guest) (models.Guest, error) {
	if err := ctx.Err(); err != nil {
		return models.Guest{}, err
	}
	if s.feed.isClosed() {
		return models.Guest{}, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	guest.ID = newID()
	if guest.Date.IsZero() {
		guest.Date = time.Now()
	}
	guest.Date = guest.Date.UTC()

	s.guests[guest.ID] = guest
	if err := s.save(); err != nil {
		delete(s.guests, guest.ID)
		return models.Guest{}, err
	}

	s.feed.publish(Snapshot{Guests: copyGuests(s.guests)})
	return guest, nil
}

// Get returns the current collection
func (s *FileStore) Get(ctx context.Context) (map[string]models.Guest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.feed.isClosed() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return copyGuests(s.guests), nil
}

// Subscribe delivers the collection now and after every change
func (s *FileStore) Subscribe(ctx context.Context) (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed.subscribe(ctx, Snapshot{Guests: copyGuests(s.guests)})
}

// Refresh reloads the file, which another process may have written, and
// notifies subscribers
func (s *FileStore) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		s.feed.publish(Snapshot{Err: err})
		return err
	}
	s.feed.publish(Snapshot{Guests: copyGuests(s.guests)})
	return nil
}

// Close ends all subscriptions
func (s *FileStore) Close() error {
	s.feed.close()
	return nil
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(fileDocument{Guests: s.guests}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	// Ensure directory exists
	dir := filepath.Dir(s.file)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, s.file)
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if len(data) == 0 {
		s.guests = make(map[string]models.Guest)
		return nil
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	if doc.Guests == nil {
		doc.Guests = make(map[string]models.Guest)
	}
	s.guests = doc.Guests

	return nil
}
