package core

import (
	"context"
	"time"
)

// RemoteClassifier defines the interface for the external classification
// service. An empty result map means "no information", never a category
// assignment.
type RemoteClassifier interface {
	// ClassifyBatch submits one combined request for the given messages and
	// returns a result per message it could place. Returned categories are
	// guaranteed to be members of validCategories or UNKNOWN.
	ClassifyBatch(ctx context.Context, msgs []Message, validCategories []string) (map[MessageID]RemoteResult, error)
}

// PatternCache defines the interface for the fingerprint pattern cache.
// Entries are never evicted; the fingerprint's semantic narrowness bounds
// growth.
type PatternCache interface {
	// Hit retrieves the entry for a fingerprint, incrementing its hit count
	// and refreshing last_used. Returns ErrNotFound from the implementing
	// package when the fingerprint is absent.
	Hit(ctx context.Context, fingerprint string) (*CachedPattern, error)

	// Store inserts or replaces an entry
	Store(ctx context.Context, pattern *CachedPattern) error

	// Close releases the backing store
	Close() error
}

// RulePredictor is the read path of the adaptive rule store
type RulePredictor interface {
	// Predict returns a learned (category, confidence) for the sender and
	// subject, or ok=false when no rule applies
	Predict(sender, subject string) (category string, confidence float64, ok bool)
}

// RateLimiter bounds outbound calls to the remote classification service
type RateLimiter interface {
	// Wait blocks until a call slot is available within the sliding window,
	// or the context is cancelled
	Wait(ctx context.Context) error
}

// PromptHints exposes learned context for prompt enrichment. Implementations
// must tolerate concurrent readers.
type PromptHints interface {
	// FewShot returns up to max recent, category-diverse corrections
	FewShot(max int) []CorrectionExample

	// SenderHints returns up to max learned sender rules
	SenderHints(max int) map[string]string

	// DomainHints returns up to max learned domain rules
	DomainHints(max int) map[string]string
}

// SearchScope selects which messages a folder search enumerates
type SearchScope int

const (
	ScopeAll SearchScope = iota
	ScopeUnseen
)

// MailStore defines the mail-protocol collaborator at its boundary. Calls
// must follow the select, search, fetch/copy/store, expunge order per folder
// pass; implementations surface out-of-order use as ordinary errors.
type MailStore interface {
	// Folders lists all folder paths on the server
	Folders(ctx context.Context) ([]string, error)

	// Select opens a folder for subsequent search/fetch/copy/store calls
	Select(ctx context.Context, folder string) error

	// Search enumerates message UIDs in the selected folder
	Search(ctx context.Context, scope SearchScope) ([]string, error)

	// FetchDate returns the internal date of a message in the selected folder
	FetchDate(ctx context.Context, uid string) (time.Time, error)

	// FetchMessage fetches and decodes a message in the selected folder
	FetchMessage(ctx context.Context, uid string) (*Message, error)

	// Copy copies a message from the selected folder to dest
	Copy(ctx context.Context, uid string, dest string) error

	// MarkDeleted flags a message in the selected folder for expunge
	MarkDeleted(ctx context.Context, uid string) error

	// Expunge permanently removes messages flagged deleted
	Expunge(ctx context.Context) error

	// Create creates a folder (single level; callers create ancestors first)
	Create(ctx context.Context, folder string) error

	// Close logs out and closes the connection
	Close() error
}
