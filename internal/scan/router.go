package scan

import (
	"context"
	"strings"

	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

// FolderRouter moves classified messages to their destination folders,
// creating folder hierarchies on demand. Not safe for concurrent use; the
// coordinator serializes all mailbox access.
type FolderRouter struct {
	store  core.MailStore
	logger *zap.Logger
	known  map[string]bool
}

// NewFolderRouter creates a router with an empty folder cache
func NewFolderRouter(store core.MailStore, logger *zap.Logger) *FolderRouter {
	return &FolderRouter{
		store:  store,
		logger: logger,
		known:  map[string]bool{},
	}
}

// Refresh reloads the known-folder cache from the server
func (r *FolderRouter) Refresh(ctx context.Context) error {
	folders, err := r.store.Folders(ctx)
	if err != nil {
		return err
	}
	r.known = make(map[string]bool, len(folders))
	for _, folder := range folders {
		r.known[folder] = true
	}
	return nil
}

// EnsureFolder creates the folder and any missing ancestors, outermost
// first. Create failures are tolerated and the path is cached anyway: on
// most servers the common failure is "already exists", and a genuinely
// missing folder surfaces as a copy error right after.
func (r *FolderRouter) EnsureFolder(ctx context.Context, folder string) {
	if r.known[folder] {
		return
	}

	parts := strings.Split(folder, "/")
	for i := range parts {
		path := strings.Join(parts[:i+1], "/")
		if r.known[path] {
			continue
		}
		if err := r.store.Create(ctx, path); err != nil {
			r.logger.Debug("folder create returned error, assuming it exists",
				zap.String("folder", path),
				zap.Error(err))
		} else {
			r.logger.Info("created folder", zap.String("folder", path))
		}
		r.known[path] = true
	}
}

// Move copies the message to dest and flags the original deleted. It
// reports whether the copy succeeded; only then may the caller mark the
// message processed. A failed deleted-flag store leaves a duplicate behind,
// which is recoverable, so it does not fail the move.
func (r *FolderRouter) Move(ctx context.Context, id core.MessageID, dest string) bool {
	r.EnsureFolder(ctx, dest)

	if err := r.store.Copy(ctx, id.UID, dest); err != nil {
		r.logger.Warn("failed to copy message",
			zap.String("id", id.Key()),
			zap.String("dest", dest),
			zap.Error(err))
		return false
	}
	if err := r.store.MarkDeleted(ctx, id.UID); err != nil {
		r.logger.Warn("copied but failed to flag original deleted",
			zap.String("id", id.Key()),
			zap.String("dest", dest),
			zap.Error(err))
	}
	return true
}
