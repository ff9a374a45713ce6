package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mailsift/mailsift/internal/adapters/cache"
	"github.com/mailsift/mailsift/internal/checkpoint"
	"github.com/mailsift/mailsift/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeStore is a scripted in-memory MailStore
type fakeStore struct {
	folders    []string
	foldersErr error
	uids       map[string][]string
	msgs       map[string]core.Message
	dates      map[string]time.Time
	selected   string

	searchScopes []core.SearchScope
	fetched      []string
	copies       []string
	copyErr      error
	deleted      []string
	deleteErr    error
	expunges     int
	created      []string
}

func newFakeStore(folders ...string) *fakeStore {
	return &fakeStore{
		folders: folders,
		uids:    map[string][]string{},
		msgs:    map[string]core.Message{},
		dates:   map[string]time.Time{},
	}
}

func (s *fakeStore) addMessage(folder, uid, from, subject string, date time.Time) {
	s.uids[folder] = append(s.uids[folder], uid)
	key := folder + ":" + uid
	s.msgs[key] = core.Message{From: from, Subject: subject, Date: date}
	s.dates[key] = date
}

func (s *fakeStore) Folders(context.Context) ([]string, error) {
	if s.foldersErr != nil {
		return nil, s.foldersErr
	}
	return s.folders, nil
}

func (s *fakeStore) Select(_ context.Context, folder string) error {
	s.selected = folder
	return nil
}

func (s *fakeStore) Search(_ context.Context, scope core.SearchScope) ([]string, error) {
	s.searchScopes = append(s.searchScopes, scope)
	return s.uids[s.selected], nil
}

func (s *fakeStore) FetchDate(_ context.Context, uid string) (time.Time, error) {
	return s.dates[s.selected+":"+uid], nil
}

func (s *fakeStore) FetchMessage(_ context.Context, uid string) (*core.Message, error) {
	msg, ok := s.msgs[s.selected+":"+uid]
	if !ok {
		return nil, fmt.Errorf("no message %s in %s", uid, s.selected)
	}
	s.fetched = append(s.fetched, s.selected+":"+uid)
	cp := msg
	return &cp, nil
}

func (s *fakeStore) Copy(_ context.Context, uid string, dest string) error {
	if s.copyErr != nil {
		return s.copyErr
	}
	s.copies = append(s.copies, s.selected+":"+uid+"->"+dest)
	return nil
}

func (s *fakeStore) MarkDeleted(_ context.Context, uid string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, s.selected+":"+uid)
	return nil
}

func (s *fakeStore) Expunge(context.Context) error {
	s.expunges++
	return nil
}

func (s *fakeStore) Create(_ context.Context, folder string) error {
	s.created = append(s.created, folder)
	return nil
}

func (s *fakeStore) Close() error { return nil }

func scanCategories(t *testing.T) *core.CategorySet {
	t.Helper()
	set, err := core.NewCategorySet([]core.Category{
		{Name: "SPAM", Folder: "Spam", Keywords: []string{"unsubscribe"}},
		{Name: "PRO", Folder: "Travail", Keywords: []string{"deadline"}},
	})
	require.NoError(t, err)
	return set
}

func newTestCoordinator(t *testing.T, store *fakeStore, cfg Config) (*Coordinator, *checkpoint.Store) {
	t.Helper()
	logger := zap.NewNop()
	categories := scanCategories(t)
	engine := core.NewEngine(categories, cache.NewMemoryCache(logger), nil, nil, nil, logger)
	cp, err := checkpoint.Load(filepath.Join(t.TempDir(), "checkpoint.json"), logger)
	require.NoError(t, err)
	router := NewFolderRouter(store, logger)
	return NewCoordinator(store, engine, router, cp, categories, cfg, logger), cp
}

func TestCycleMovesClassifiedMessages(t *testing.T) {
	store := newFakeStore("INBOX", "Spam", "Travail")
	store.addMessage("INBOX", "1", "ads@shop.example", "Unsubscribe from offers", time.Now())
	store.addMessage("INBOX", "2", "boss@corp.example", "project deadline tomorrow", time.Now())
	store.addMessage("INBOX", "3", "friend@mail.example", "lunch?", time.Now())

	coord, cp := newTestCoordinator(t, store, Config{})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.ElementsMatch(t, []string{"INBOX:1->Spam", "INBOX:2->Travail"}, store.copies)
	assert.ElementsMatch(t, []string{"INBOX:1", "INBOX:2"}, store.deleted)
	// One expunge for the whole folder pass, not one per move
	assert.Equal(t, 1, store.expunges)

	// Moved and UNKNOWN messages alike are recorded
	assert.True(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "1"}))
	assert.True(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "2"}))
	assert.True(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "3"}))
}

func TestCycleIsIdempotent(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "ads@shop.example", "Unsubscribe from offers", time.Now())

	coord, _ := newTestCoordinator(t, store, Config{})
	require.NoError(t, coord.RunCycle(context.Background()))
	firstFetched := len(store.fetched)
	firstCopies := len(store.copies)

	// The server still reports the UID; the checkpoint suppresses rework
	require.NoError(t, coord.RunCycle(context.Background()))
	assert.Equal(t, firstFetched, len(store.fetched))
	assert.Equal(t, firstCopies, len(store.copies))
}

func TestUnknownStaysInPlace(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "friend@mail.example", "nothing classifiable", time.Now())

	coord, cp := newTestCoordinator(t, store, Config{})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.Empty(t, store.copies)
	assert.Empty(t, store.deleted)
	assert.Equal(t, 0, store.expunges)
	assert.True(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "1"}))
}

func TestFailedMoveIsRetriedNextCycle(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "ads@shop.example", "Unsubscribe from offers", time.Now())
	store.copyErr = errors.New("server says no")

	coord, cp := newTestCoordinator(t, store, Config{})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.Empty(t, store.copies)
	assert.Equal(t, 0, store.expunges)
	assert.False(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "1"}))

	// Once the server recovers, the same message moves
	store.copyErr = nil
	require.NoError(t, coord.RunCycle(context.Background()))
	assert.Equal(t, []string{"INBOX:1->Spam"}, store.copies)
	assert.True(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "1"}))
}

func TestPerFolderCapKeepsNewest(t *testing.T) {
	store := newFakeStore("INBOX")
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		store.addMessage("INBOX", fmt.Sprintf("%d", i), "friend@mail.example", "hello",
			base.Add(time.Duration(i)*time.Hour))
	}

	coord, _ := newTestCoordinator(t, store, Config{MaxPerFolder: 2})
	require.NoError(t, coord.RunCycle(context.Background()))

	// Only the two most recent messages were fetched for classification
	assert.ElementsMatch(t, []string{"INBOX:4", "INBOX:5"}, store.fetched)
}

func TestSpamTrashFoldersGetTighterCap(t *testing.T) {
	store := newFakeStore("Trash")
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 4; i++ {
		store.addMessage("Trash", fmt.Sprintf("%d", i), "friend@mail.example", "hello",
			base.Add(time.Duration(i)*time.Hour))
	}

	coord, _ := newTestCoordinator(t, store, Config{MaxPerFolder: 100, SpamTrashLimit: 1})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.Equal(t, []string{"Trash:4"}, store.fetched)
}

func TestSkipsDestinationAndFeedbackAndConfiguredFolders(t *testing.T) {
	store := newFakeStore("INBOX", "Spam", "Travail", "Feedback/SPAM", "Training/SPAM", "Drafts")
	for _, folder := range []string{"Spam", "Travail", "Feedback/SPAM", "Training/SPAM", "Drafts"} {
		store.addMessage(folder, "1", "x@y.example", "Unsubscribe now", time.Now())
	}

	coord, _ := newTestCoordinator(t, store, Config{SkipFolders: []string{"Drafts"}})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.Empty(t, store.fetched)
	assert.Empty(t, store.copies)
}

func TestSearchScopeFollowsInitialScan(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "friend@mail.example", "hello", time.Now())

	coord, cp := newTestCoordinator(t, store, Config{UnseenOnly: true})
	require.NoError(t, coord.RunCycle(context.Background()))
	require.Equal(t, []core.SearchScope{core.ScopeAll}, store.searchScopes)

	// A clean cycle ends the initial full scan; later cycles go unseen-only
	require.True(t, cp.InitialScanDone())
	require.NoError(t, coord.RunCycle(context.Background()))
	assert.Equal(t, []core.SearchScope{core.ScopeAll, core.ScopeUnseen}, store.searchScopes)
}

func TestSearchScopeStaysAllWithoutUnseenOnly(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "friend@mail.example", "hello", time.Now())

	coord, cp := newTestCoordinator(t, store, Config{UnseenOnly: false})
	require.NoError(t, coord.RunCycle(context.Background()))
	require.True(t, cp.InitialScanDone())

	require.NoError(t, coord.RunCycle(context.Background()))
	assert.Equal(t, []core.SearchScope{core.ScopeAll, core.ScopeAll}, store.searchScopes)
}

func TestFailedCycleDoesNotEndInitialScan(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "friend@mail.example", "hello", time.Now())
	store.foldersErr = errors.New("connection dropped")

	coord, cp := newTestCoordinator(t, store, Config{UnseenOnly: true})
	require.Error(t, coord.RunCycle(context.Background()))
	assert.False(t, cp.InitialScanDone())

	// The recovered cycle still enumerates ALL, so backlog mail is seen
	store.foldersErr = nil
	require.NoError(t, coord.RunCycle(context.Background()))
	assert.Equal(t, []core.SearchScope{core.ScopeAll}, store.searchScopes)
	assert.True(t, cp.InitialScanDone())
}

func TestDryRunNeverMutates(t *testing.T) {
	store := newFakeStore("INBOX")
	store.addMessage("INBOX", "1", "ads@shop.example", "Unsubscribe from offers", time.Now())

	coord, cp := newTestCoordinator(t, store, Config{DryRun: true})
	require.NoError(t, coord.RunCycle(context.Background()))

	assert.Empty(t, store.copies)
	assert.Empty(t, store.deleted)
	assert.Equal(t, 0, store.expunges)
	assert.False(t, cp.IsProcessed(core.MessageID{Folder: "INBOX", UID: "1"}))
	assert.False(t, cp.InitialScanDone())
}

func TestWorkerCountIsClamped(t *testing.T) {
	store := newFakeStore("INBOX")
	coord, _ := newTestCoordinator(t, store, Config{Workers: 99})
	assert.Equal(t, maxWorkers, coord.workers)

	coord, _ = newTestCoordinator(t, store, Config{Workers: -1})
	assert.Equal(t, minWorkers, coord.workers)
}
