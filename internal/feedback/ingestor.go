// Package feedback ingests user corrections: a message dropped into
// Feedback/<CATEGORY> means "this should have been classified CATEGORY".
// Each ingested message becomes a correction in the rule store and is then
// removed from the feedback folder.
package feedback

import (
	"context"
	"strings"

	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/rules"
	"go.uber.org/zap"
)

// FolderPrefix is the hierarchy under which feedback folders live
const FolderPrefix = "Feedback/"

// Ingestor drains feedback folders into the rule store. Not safe for
// concurrent use; callers serialize it with other mailbox access.
type Ingestor struct {
	store      core.MailStore
	rules      *rules.Store
	categories *core.CategorySet
	logger     *zap.Logger
}

// NewIngestor creates a feedback ingestor
func NewIngestor(store core.MailStore, ruleStore *rules.Store, categories *core.CategorySet, logger *zap.Logger) *Ingestor {
	return &Ingestor{
		store:      store,
		rules:      ruleStore,
		categories: categories,
		logger:     logger,
	}
}

// EnsureFolders creates the feedback folder per configured category so users
// have a drop target from the first cycle on
func (i *Ingestor) EnsureFolders(ctx context.Context) {
	if err := i.store.Create(ctx, strings.TrimSuffix(FolderPrefix, "/")); err != nil {
		i.logger.Debug("feedback root create returned error, assuming it exists", zap.Error(err))
	}
	for _, name := range i.categories.Names() {
		if err := i.store.Create(ctx, FolderPrefix+name); err != nil {
			i.logger.Debug("feedback folder create returned error, assuming it exists",
				zap.String("category", name), zap.Error(err))
		}
	}
}

// RunCycle drains every feedback folder once. A failure in one folder is
// logged and the cycle continues.
func (i *Ingestor) RunCycle(ctx context.Context) error {
	folders, err := i.store.Folders(ctx)
	if err != nil {
		return err
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		category, ok := i.categoryFor(folder)
		if !ok {
			continue
		}
		if err := i.drainFolder(ctx, folder, category); err != nil {
			i.logger.Warn("feedback folder pass failed",
				zap.String("folder", folder),
				zap.Error(err))
		}
	}
	return nil
}

// categoryFor maps a feedback folder path to its configured category
func (i *Ingestor) categoryFor(folder string) (string, bool) {
	name, ok := strings.CutPrefix(folder, FolderPrefix)
	if !ok {
		return "", false
	}
	name = strings.ToUpper(name)
	if !i.categories.Contains(name) {
		return "", false
	}
	return name, true
}

// drainFolder turns every message in a feedback folder into a correction
// and removes it. Messages that fail to ingest stay for the next cycle.
func (i *Ingestor) drainFolder(ctx context.Context, folder, category string) error {
	if err := i.store.Select(ctx, folder); err != nil {
		return err
	}
	uids, err := i.store.Search(ctx, core.ScopeAll)
	if err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}

	ingested := 0
	for _, uid := range uids {
		if ctx.Err() != nil {
			break
		}
		id := core.MessageID{Folder: folder, UID: uid}

		msg, err := i.store.FetchMessage(ctx, uid)
		if err != nil {
			i.logger.Warn("failed to fetch feedback message",
				zap.String("id", id.Key()),
				zap.Error(err))
			continue
		}
		msg.ID = id

		if err := i.rules.LearnFromCorrection(
			id.Key(), msg.From, msg.Subject, msg.Body, "", category,
		); err != nil {
			i.logger.Warn("failed to record correction",
				zap.String("id", id.Key()),
				zap.Error(err))
			continue
		}
		if err := i.store.MarkDeleted(ctx, uid); err != nil {
			// Already learned; a duplicate ingest next cycle only re-appends
			// the same evidence
			i.logger.Warn("failed to remove ingested feedback message",
				zap.String("id", id.Key()),
				zap.Error(err))
		}
		ingested++
	}

	if ingested > 0 {
		if err := i.store.Expunge(ctx); err != nil {
			i.logger.Warn("failed to expunge feedback folder",
				zap.String("folder", folder),
				zap.Error(err))
		}
		i.logger.Info("ingested feedback",
			zap.String("folder", folder),
			zap.String("category", category),
			zap.Int("count", ingested))
	}
	return ctx.Err()
}
