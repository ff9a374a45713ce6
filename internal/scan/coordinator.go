// Package scan drives the per-folder classification passes: enumerate
// candidates, classify them through the engine, move them to their
// category folders, and record progress in the checkpoint.
package scan

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mailsift/mailsift/internal/checkpoint"
	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

const (
	defaultMaxPerFolder   = 100
	defaultSpamTrashLimit = 10

	minWorkers = 1
	maxWorkers = 10
)

// spamTrashMarkers identifies folders whose backlog is worth at most a
// trickle of remote calls per cycle
var spamTrashMarkers = []string{"spam", "trash", "junk", "corbeille"}

// Config tunes one scan coordinator
type Config struct {
	// MaxPerFolder caps candidates per folder per cycle; the newest win
	MaxPerFolder int

	// SpamTrashLimit caps candidates in spam and trash folders
	SpamTrashLimit int

	// Workers bounds parallel classification, clamped to [1, 10]
	Workers int

	// SkipFolders are folder paths never scanned
	SkipFolders []string

	// UnseenOnly restricts searches to UNSEEN once the initial full scan
	// is done; when false every cycle enumerates ALL
	UnseenOnly bool

	// DryRun classifies and logs but never moves or records progress
	DryRun bool
}

// Coordinator runs classification cycles over the mail store. Mailbox calls
// are serialized on the coordinator goroutine; only classification fans out.
type Coordinator struct {
	store      core.MailStore
	engine     *core.Engine
	router     *FolderRouter
	checkpoint *checkpoint.Store
	categories *core.CategorySet
	logger     *zap.Logger

	maxPerFolder   int
	spamTrashLimit int
	workers        int
	skip           map[string]bool
	unseenOnly     bool
	dryRun         bool
}

// NewCoordinator creates a scan coordinator
func NewCoordinator(
	store core.MailStore,
	engine *core.Engine,
	router *FolderRouter,
	cp *checkpoint.Store,
	categories *core.CategorySet,
	cfg Config,
	logger *zap.Logger,
) *Coordinator {
	maxPerFolder := cfg.MaxPerFolder
	if maxPerFolder <= 0 {
		maxPerFolder = defaultMaxPerFolder
	}
	spamTrashLimit := cfg.SpamTrashLimit
	if spamTrashLimit <= 0 {
		spamTrashLimit = defaultSpamTrashLimit
	}
	workers := cfg.Workers
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	skip := make(map[string]bool, len(cfg.SkipFolders))
	for _, folder := range cfg.SkipFolders {
		skip[folder] = true
	}

	return &Coordinator{
		store:          store,
		engine:         engine,
		router:         router,
		checkpoint:     cp,
		categories:     categories,
		logger:         logger,
		maxPerFolder:   maxPerFolder,
		spamTrashLimit: spamTrashLimit,
		workers:        workers,
		skip:           skip,
		unseenOnly:     cfg.UnseenOnly,
		dryRun:         cfg.DryRun,
	}
}

// RunCycle scans every eligible folder once. A failure in one folder is
// folder-local: it is logged and the cycle continues with the next folder.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	folders, err := c.store.Folders(ctx)
	if err != nil {
		return err
	}
	if err := c.router.Refresh(ctx); err != nil {
		return err
	}

	for _, folder := range folders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if c.shouldSkip(folder) {
			continue
		}
		if err := c.processFolder(ctx, folder); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("folder pass failed",
				zap.String("folder", folder),
				zap.Error(err))
		}
		if err := c.checkpoint.Save(); err != nil {
			c.logger.Error("failed to save checkpoint", zap.Error(err))
		}
	}

	// The one-time full scan only completes with a clean cycle; a cycle that
	// could not even list folders must not flip the flag, or pre-existing
	// mail would never be enumerated
	if !c.dryRun && !c.checkpoint.InitialScanDone() {
		c.checkpoint.SetInitialScanDone()
		c.logger.Info("initial full scan complete")
	}
	return nil
}

// shouldSkip excludes configured folders, feedback folders, and the
// destination folders the router moves messages into
func (c *Coordinator) shouldSkip(folder string) bool {
	if c.skip[folder] {
		return true
	}
	if strings.HasPrefix(folder, "Feedback/") || folder == "Feedback" {
		return true
	}
	if strings.HasPrefix(folder, "Training/") || folder == "Training" {
		return true
	}
	for _, cat := range c.categories.All() {
		if folder == cat.Folder {
			return true
		}
	}
	return false
}

// processFolder runs one folder pass: select, enumerate, cap, fetch,
// classify, route, expunge, touch.
func (c *Coordinator) processFolder(ctx context.Context, folder string) error {
	if err := c.store.Select(ctx, folder); err != nil {
		return err
	}

	scope := core.ScopeAll
	if c.unseenOnly && c.checkpoint.InitialScanDone() {
		scope = core.ScopeUnseen
	}
	uids, err := c.store.Search(ctx, scope)
	if err != nil {
		return err
	}

	candidates := make([]core.MessageID, 0, len(uids))
	for _, uid := range uids {
		id := core.MessageID{Folder: folder, UID: uid}
		if !c.checkpoint.IsProcessed(id) {
			candidates = append(candidates, id)
		}
	}
	if len(candidates) == 0 {
		c.checkpoint.TouchFolder(folder)
		return nil
	}

	limit := c.maxPerFolder
	if isSpamTrashFolder(folder) {
		limit = c.spamTrashLimit
	}
	if len(candidates) > limit {
		candidates, err = c.newestN(ctx, candidates, limit)
		if err != nil {
			return err
		}
	}

	msgs := c.fetchAll(ctx, candidates)
	if len(msgs) == 0 {
		c.checkpoint.TouchFolder(folder)
		return ctx.Err()
	}

	c.logger.Info("scanning folder",
		zap.String("folder", folder),
		zap.Int("candidates", len(msgs)),
		zap.Int("enumerated", len(uids)))

	results := c.classify(ctx, msgs)

	moved := 0
	for _, msg := range msgs {
		res, ok := results[msg.ID]
		if !ok {
			res = core.Fallback(msg.ID, "no result produced")
		}

		dest, routable := c.categories.FolderFor(res.Category)
		if !routable || dest == folder {
			// UNKNOWN and same-folder results stay in place but still count
			// as handled, so they are not reclassified every cycle
			if !c.dryRun {
				c.checkpoint.MarkProcessed(msg.ID)
			}
			continue
		}

		if c.dryRun {
			c.logger.Info("dry run, would move message",
				zap.String("id", msg.ID.Key()),
				zap.String("category", res.Category),
				zap.String("dest", dest))
			continue
		}

		if c.router.Move(ctx, msg.ID, dest) {
			c.checkpoint.MarkProcessed(msg.ID)
			moved++
		}
		// A failed move leaves the message unprocessed; the next cycle
		// retries it
	}

	if moved > 0 {
		if err := c.store.Expunge(ctx); err != nil {
			c.logger.Warn("failed to expunge folder",
				zap.String("folder", folder),
				zap.Error(err))
		}
	}

	c.checkpoint.TouchFolder(folder)
	c.logger.Info("folder pass complete",
		zap.String("folder", folder),
		zap.Int("classified", len(msgs)),
		zap.Int("moved", moved))
	return nil
}

// newestN fetches internal dates and keeps the n most recent candidates.
// Candidates whose date cannot be fetched sort oldest and fall off first.
func (c *Coordinator) newestN(ctx context.Context, candidates []core.MessageID, n int) ([]core.MessageID, error) {
	type dated struct {
		id   core.MessageID
		date time.Time
	}
	all := make([]dated, 0, len(candidates))
	for _, id := range candidates {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var date time.Time
		err := withRetry(ctx, c.logger, "fetch date", func() error {
			var ferr error
			date, ferr = c.store.FetchDate(ctx, id.UID)
			return ferr
		})
		if err != nil {
			c.logger.Debug("failed to fetch message date",
				zap.String("id", id.Key()),
				zap.Error(err))
		}
		all = append(all, dated{id: id, date: date})
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].date.After(all[j].date)
	})

	out := make([]core.MessageID, 0, n)
	for _, d := range all[:n] {
		out = append(out, d.id)
	}
	return out, nil
}

// fetchAll fetches candidates one at a time on the coordinator goroutine.
// A message that cannot be fetched is dropped from this pass and retried
// next cycle.
func (c *Coordinator) fetchAll(ctx context.Context, candidates []core.MessageID) []core.Message {
	msgs := make([]core.Message, 0, len(candidates))
	for _, id := range candidates {
		if ctx.Err() != nil {
			return msgs
		}
		var msg *core.Message
		err := withRetry(ctx, c.logger, "fetch message", func() error {
			var ferr error
			msg, ferr = c.store.FetchMessage(ctx, id.UID)
			return ferr
		})
		if err != nil {
			c.logger.Warn("failed to fetch message",
				zap.String("id", id.Key()),
				zap.Error(err))
			continue
		}
		msg.ID = id
		msgs = append(msgs, *msg)
	}
	return msgs
}

// classify fans the messages out over the worker pool. The engine and its
// collaborators are safe for concurrent batches; mailbox access is not part
// of classification.
func (c *Coordinator) classify(ctx context.Context, msgs []core.Message) map[core.MessageID]core.Result {
	workers := c.workers
	if workers > len(msgs) {
		workers = len(msgs)
	}
	if workers <= 1 {
		return c.engine.ClassifyBatch(ctx, msgs)
	}

	chunkSize := (len(msgs) + workers - 1) / workers
	results := make(map[core.MessageID]core.Result, len(msgs))

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for start := 0; start < len(msgs); start += chunkSize {
		end := start + chunkSize
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk := msgs[start:end]

		wg.Add(1)
		go func() {
			defer wg.Done()
			chunkResults := c.engine.ClassifyBatch(ctx, chunk)
			mu.Lock()
			for id, res := range chunkResults {
				results[id] = res
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func isSpamTrashFolder(folder string) bool {
	lower := strings.ToLower(folder)
	for _, marker := range spamTrashMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
