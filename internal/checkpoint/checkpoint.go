// Package checkpoint persists scan progress so that restarts never
// reclassify or re-move a message already handled.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// document is the on-disk checkpoint format
type document struct {
	InitialScanDone bool                 `json:"initial_scan_done"`
	LastCheck       map[string]time.Time `json:"last_check"`
	Processed       []string             `json:"processed"`
	LastUpdate      time.Time            `json:"last_update"`
}

// Store is the in-process checkpoint. Single writer; reads tolerate
// concurrent appends via the mutex.
type Store struct {
	mu              sync.RWMutex
	initialScanDone bool
	lastCheck       map[string]time.Time
	processed       map[string]struct{}

	path   string
	logger *zap.Logger
}

// Load reads the checkpoint document at path, or initializes an empty one
// when the file does not exist. A corrupt document is an error: silently
// starting over would re-move every message in the store.
func Load(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{
		lastCheck: map[string]time.Time{},
		processed: map[string]struct{}{},
		path:      path,
		logger:    logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid checkpoint document %s: %w", path, err)
	}
	s.initialScanDone = doc.InitialScanDone
	if doc.LastCheck != nil {
		s.lastCheck = doc.LastCheck
	}
	for _, key := range doc.Processed {
		s.processed[key] = struct{}{}
	}

	logger.Info("checkpoint loaded",
		zap.String("path", path),
		zap.Bool("initial_scan_done", s.initialScanDone),
		zap.Int("processed", len(s.processed)))
	return s, nil
}

// IsProcessed reports whether the message identity was already handled
func (s *Store) IsProcessed(id core.MessageID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.processed[id.Key()]
	return ok
}

// MarkProcessed records a message identity. Entries are only ever added.
func (s *Store) MarkProcessed(id core.MessageID) {
	s.mu.Lock()
	s.processed[id.Key()] = struct{}{}
	s.mu.Unlock()
}

// ProcessedCount returns the size of the processed set
func (s *Store) ProcessedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.processed)
}

// InitialScanDone reports whether the first full scan has completed
func (s *Store) InitialScanDone() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialScanDone
}

// SetInitialScanDone marks the first full scan as complete
func (s *Store) SetInitialScanDone() {
	s.mu.Lock()
	s.initialScanDone = true
	s.mu.Unlock()
}

// TouchFolder records when a folder pass last finished
func (s *Store) TouchFolder(folder string) {
	s.mu.Lock()
	s.lastCheck[folder] = time.Now()
	s.mu.Unlock()
}

// LastCheck returns when a folder was last scanned
func (s *Store) LastCheck(folder string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.lastCheck[folder]
	return t, ok
}

// Save rewrites the checkpoint document wholesale via temp-file rename.
// On failure the in-memory state stays authoritative and the next save
// reconciles.
func (s *Store) Save() error {
	s.mu.RLock()
	doc := document{
		InitialScanDone: s.initialScanDone,
		LastCheck:       make(map[string]time.Time, len(s.lastCheck)),
		Processed:       make([]string, 0, len(s.processed)),
		LastUpdate:      time.Now(),
	}
	for folder, t := range s.lastCheck {
		doc.LastCheck[folder] = t
	}
	for key := range s.processed {
		doc.Processed = append(doc.Processed, key)
	}
	s.mu.RUnlock()
	sort.Strings(doc.Processed)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved", zap.Int("processed", len(doc.Processed)))
	return nil
}
