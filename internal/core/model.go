package core

import (
	"fmt"
	"strings"
	"time"
)

// CategoryUnknown is the reserved category for messages no tier could place.
// It never has a destination folder.
const CategoryUnknown = "UNKNOWN"

// Category represents one configured classification target
type Category struct {
	Name                string   `json:"name"`
	Folder              string   `json:"folder"`
	Keywords            []string `json:"keywords"`
	ConfidenceThreshold float64  `json:"confidence_threshold"`
	Priority            int      `json:"priority"`
	Description         string   `json:"description"`
}

// CategorySet is the closed set of categories loaded once at startup
type CategorySet struct {
	byName map[string]Category
	names  []string
}

// NewCategorySet validates and indexes a category list
func NewCategorySet(categories []Category) (*CategorySet, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("empty category set")
	}
	byName := make(map[string]Category, len(categories))
	names := make([]string, 0, len(categories))
	for _, cat := range categories {
		name := strings.ToUpper(strings.TrimSpace(cat.Name))
		if name == "" {
			return nil, fmt.Errorf("category with empty name")
		}
		if name == CategoryUnknown {
			return nil, fmt.Errorf("category name %s is reserved", CategoryUnknown)
		}
		if _, dup := byName[name]; dup {
			return nil, fmt.Errorf("duplicate category %s", name)
		}
		if cat.Folder == "" {
			return nil, fmt.Errorf("category %s has no destination folder", name)
		}
		cat.Name = name
		byName[name] = cat
		names = append(names, name)
	}
	return &CategorySet{byName: byName, names: names}, nil
}

// Names returns the category names in configuration order
func (s *CategorySet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Get returns the category with the given name
func (s *CategorySet) Get(name string) (Category, bool) {
	cat, ok := s.byName[name]
	return cat, ok
}

// Contains reports whether name is a member of the configured set
func (s *CategorySet) Contains(name string) bool {
	_, ok := s.byName[name]
	return ok
}

// FolderFor resolves the destination folder for a category.
// UNKNOWN and unconfigured names have no destination.
func (s *CategorySet) FolderFor(name string) (string, bool) {
	if name == CategoryUnknown {
		return "", false
	}
	cat, ok := s.byName[name]
	if !ok || cat.Folder == "" {
		return "", false
	}
	return cat.Folder, true
}

// All returns the categories in configuration order
func (s *CategorySet) All() []Category {
	out := make([]Category, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.byName[name])
	}
	return out
}

// MessageID is the composite identity of a message within the mail store.
// Both fields are strings; UIDs are rendered to decimal once, at the adapter
// boundary, so every producer and consumer compares the same representation.
type MessageID struct {
	Folder string
	UID    string
}

// Key returns the canonical string form used for checkpoint membership
func (id MessageID) Key() string {
	return id.Folder + ":" + id.UID
}

func (id MessageID) String() string {
	return id.Key()
}

// Message is a decoded mail message ready for classification
type Message struct {
	ID      MessageID
	From    string
	Subject string
	Body    string
	Date    time.Time
}

// Method identifies which tier produced a classification result
type Method string

const (
	MethodCached       Method = "cached"
	MethodRule         Method = "rule"
	MethodKeyword      Method = "keyword"
	MethodRemoteSingle Method = "remote-single"
	MethodRemoteBatch  Method = "remote-batch"
	MethodFallback     Method = "fallback"
)

// Result is the outcome of classifying one message. It is produced exactly
// once per message per scan pass and never mutated afterwards; corrections
// flow through the feedback path as new observations instead.
type Result struct {
	ID          MessageID
	Category    string
	Confidence  float64
	Method      Method
	Explanation string
	Timestamp   time.Time
}

// Fallback builds the terminal UNKNOWN result for a message
func Fallback(id MessageID, explanation string) Result {
	return Result{
		ID:          id,
		Category:    CategoryUnknown,
		Confidence:  0,
		Method:      MethodFallback,
		Explanation: explanation,
		Timestamp:   time.Now(),
	}
}

// CachedPattern is one fingerprint entry in the pattern cache
type CachedPattern struct {
	Fingerprint string
	Category    string
	Confidence  float64
	HitCount    int
	LastUsed    time.Time
	FromDomain  string
}

// RemoteResult is a single entry of a batch response from the remote
// classification service, already validated against the category set
type RemoteResult struct {
	Category    string
	Confidence  float64
	Explanation string
}

// CorrectionExample is a user correction surfaced for prompt enrichment
type CorrectionExample struct {
	Sender   string
	Subject  string
	Category string
}
