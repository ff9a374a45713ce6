package feedback

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	folders  []string
	uids     map[string][]string
	msgs     map[string]core.Message
	selected string

	deleted  []string
	expunges int
	created  []string
}

func newFakeStore(folders ...string) *fakeStore {
	return &fakeStore{
		folders: folders,
		uids:    map[string][]string{},
		msgs:    map[string]core.Message{},
	}
}

func (s *fakeStore) addMessage(folder, uid, from, subject string) {
	s.uids[folder] = append(s.uids[folder], uid)
	s.msgs[folder+":"+uid] = core.Message{From: from, Subject: subject, Date: time.Now()}
}

func (s *fakeStore) Folders(context.Context) ([]string, error) { return s.folders, nil }

func (s *fakeStore) Select(_ context.Context, folder string) error {
	s.selected = folder
	return nil
}

func (s *fakeStore) Search(_ context.Context, _ core.SearchScope) ([]string, error) {
	return s.uids[s.selected], nil
}

func (s *fakeStore) FetchDate(_ context.Context, uid string) (time.Time, error) {
	return s.msgs[s.selected+":"+uid].Date, nil
}

func (s *fakeStore) FetchMessage(_ context.Context, uid string) (*core.Message, error) {
	msg, ok := s.msgs[s.selected+":"+uid]
	if !ok {
		return nil, fmt.Errorf("no message %s in %s", uid, s.selected)
	}
	cp := msg
	return &cp, nil
}

func (s *fakeStore) Copy(_ context.Context, _ string, _ string) error { return nil }

func (s *fakeStore) MarkDeleted(_ context.Context, uid string) error {
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

func feedbackCategories(t *testing.T) *core.CategorySet {
	t.Helper()
	set, err := core.NewCategorySet([]core.Category{
		{Name: "SPAM", Folder: "Spam"},
		{Name: "BANQUE", Folder: "Banque"},
	})
	require.NoError(t, err)
	return set
}

func newTestIngestor(t *testing.T, store *fakeStore) (*Ingestor, *rules.Store) {
	t.Helper()
	ruleStore, err := rules.Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return NewIngestor(store, ruleStore, feedbackCategories(t), zap.NewNop()), ruleStore
}

func TestEnsureFoldersCreatesDropTargets(t *testing.T) {
	store := newFakeStore()
	ing, _ := newTestIngestor(t, store)

	ing.EnsureFolders(context.Background())
	assert.Equal(t, []string{"Feedback", "Feedback/SPAM", "Feedback/BANQUE"}, store.created)
}

func TestCycleTurnsFeedbackIntoRules(t *testing.T) {
	store := newFakeStore("INBOX", "Feedback/SPAM")
	store.addMessage("Feedback/SPAM", "5", "Promo@deals.example", "Last chance offer")

	ing, ruleStore := newTestIngestor(t, store)
	require.NoError(t, ing.RunCycle(context.Background()))

	// The sender now predicts the feedback category
	category, confidence, ok := ruleStore.Predict("promo@deals.example", "anything")
	require.True(t, ok)
	assert.Equal(t, "SPAM", category)
	assert.InDelta(t, 0.95, confidence, 1e-9)

	// The feedback message is gone from the drop folder
	assert.Equal(t, []string{"Feedback/SPAM:5"}, store.deleted)
	assert.Equal(t, 1, store.expunges)
}

func TestCycleMatchesFolderCaseInsensitively(t *testing.T) {
	store := newFakeStore("Feedback/banque")
	store.addMessage("Feedback/banque", "1", "bank@acme.example", "Releve de compte")

	ing, ruleStore := newTestIngestor(t, store)
	require.NoError(t, ing.RunCycle(context.Background()))

	category, _, ok := ruleStore.Predict("bank@acme.example", "anything")
	require.True(t, ok)
	assert.Equal(t, "BANQUE", category)
}

func TestCycleIgnoresUnknownFeedbackFolders(t *testing.T) {
	store := newFakeStore("Feedback/NOPE", "Feedback", "INBOX")
	store.addMessage("Feedback/NOPE", "1", "a@x.example", "ignored")
	store.addMessage("INBOX", "2", "b@x.example", "ignored")

	ing, ruleStore := newTestIngestor(t, store)
	require.NoError(t, ing.RunCycle(context.Background()))

	assert.Empty(t, store.deleted)
	assert.Equal(t, 0, store.expunges)
	_, _, ok := ruleStore.Predict("a@x.example", "ignored")
	assert.False(t, ok)
}

func TestCycleSkipsUnfetchableMessages(t *testing.T) {
	store := newFakeStore("Feedback/SPAM")
	store.uids["Feedback/SPAM"] = []string{"9"} // no message body scripted

	ing, _ := newTestIngestor(t, store)
	require.NoError(t, ing.RunCycle(context.Background()))

	// Nothing ingested, so nothing deleted or expunged
	assert.Empty(t, store.deleted)
	assert.Equal(t, 0, store.expunges)
}
