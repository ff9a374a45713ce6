package llm

import (
	"strings"
	"testing"

	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var validCategories = []string{"SPAM", "BANQUE", "PRO"}

func batchMessages() []core.Message {
	return []core.Message{
		{ID: core.MessageID{Folder: "INBOX", UID: "10"}, From: "a@x.example", Subject: "one"},
		{ID: core.MessageID{Folder: "INBOX", UID: "11"}, From: "b@y.example", Subject: "two"},
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[1,2]\n```", "[1,2]"},
		{"bare fence", "```\n[1,2]\n```", "[1,2]"},
		{"fence with prose before", "Here you go:\n```json\n[]\n```", "[]"},
		{"whitespace", "  [1]  ", "[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.content))
		})
	}
}

func TestDecodeBatchResponseByIndex(t *testing.T) {
	body := `[
		{"email_index": 0, "category": "SPAM", "confidence": 0.9, "explanation": "ads"},
		{"email_index": 1, "category": "banque", "confidence": 0.8, "explanation": "invoice"}
	]`
	msgs := batchMessages()

	results, err := DecodeBatchResponse(body, msgs, validCategories)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "SPAM", results[msgs[0].ID].Category)
	// Category comparison is case-normalized
	assert.Equal(t, "BANQUE", results[msgs[1].ID].Category)
	assert.InDelta(t, 0.8, results[msgs[1].ID].Confidence, 1e-9)
}

func TestDecodeBatchResponseByEmailID(t *testing.T) {
	body := `[{"email_id": "11", "category": "PRO", "confidence": 0.7, "explanation": "work"}]`
	msgs := batchMessages()

	results, err := DecodeBatchResponse(body, msgs, validCategories)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PRO", results[msgs[1].ID].Category)
}

func TestDecodeBatchResponseInvalidCategory(t *testing.T) {
	body := `[{"email_index": 0, "category": "PHISHING", "confidence": 0.99, "explanation": "bad"}]`
	msgs := batchMessages()

	results, err := DecodeBatchResponse(body, msgs, validCategories)
	require.NoError(t, err)

	res := results[msgs[0].ID]
	assert.Equal(t, core.CategoryUnknown, res.Category)
	assert.Zero(t, res.Confidence)
	assert.Contains(t, res.Explanation, "PHISHING")
}

func TestDecodeBatchResponseClampsConfidence(t *testing.T) {
	body := `[
		{"email_index": 0, "category": "SPAM", "confidence": 1.7},
		{"email_index": 1, "category": "SPAM", "confidence": -0.2}
	]`
	msgs := batchMessages()

	results, err := DecodeBatchResponse(body, msgs, validCategories)
	require.NoError(t, err)
	assert.Equal(t, 1.0, results[msgs[0].ID].Confidence)
	assert.Equal(t, 0.0, results[msgs[1].ID].Confidence)
}

func TestDecodeBatchResponseSkipsUnmatchable(t *testing.T) {
	body := `[
		{"email_index": 99, "category": "SPAM", "confidence": 0.9},
		{"email_id": "nope", "category": "SPAM", "confidence": 0.9},
		{"category": "SPAM", "confidence": 0.9}
	]`
	results, err := DecodeBatchResponse(body, batchMessages(), validCategories)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDecodeBatchResponseRejectsNonJSON(t *testing.T) {
	_, err := DecodeBatchResponse("I could not classify these.", batchMessages(), validCategories)
	assert.Error(t, err)
}

func TestBuildBatchPrompt(t *testing.T) {
	categories, err := core.NewCategorySet([]core.Category{
		{Name: "SPAM", Folder: "Spam", Description: "Unsolicited email"},
		{Name: "BANQUE", Folder: "Banque"},
		{Name: "PRO", Folder: "Travail"},
	})
	require.NoError(t, err)

	tp := utils.NewTextProcessor(zap.NewNop())
	msgs := []core.Message{
		{ID: core.MessageID{Folder: "INBOX", UID: "10"}, From: "a@x.example", Subject: "Line one\nLine two", Body: "some \"quoted\" body"},
	}

	prompt := BuildBatchPrompt(msgs, categories, categories.Names(), nil, tp, 4096)

	assert.Contains(t, prompt, "Classify these 1 emails")
	assert.Contains(t, prompt, "- SPAM: Unsolicited email")
	assert.Contains(t, prompt, "- BANQUE\n")
	assert.Contains(t, prompt, "Email 0:")
	// Sanitization collapses newlines and strips quotes from message content
	assert.Contains(t, prompt, "Line one Line two")
	assert.Contains(t, prompt, "some quoted body")
	assert.Contains(t, prompt, "SPAM, BANQUE, PRO")
}

func TestBuildBatchPromptIncludesHints(t *testing.T) {
	categories, err := core.NewCategorySet([]core.Category{
		{Name: "SPAM", Folder: "Spam"},
	})
	require.NoError(t, err)

	hints := stubHints{
		examples: []core.CorrectionExample{{Sender: "x@y.example", Subject: "deal", Category: "SPAM"}},
		senders:  map[string]string{"x@y.example": "SPAM"},
		domains:  map[string]string{"y.example": "SPAM"},
	}
	tp := utils.NewTextProcessor(zap.NewNop())

	prompt := BuildBatchPrompt(batchMessages(), categories, categories.Names(), hints, tp, 4096)
	assert.Contains(t, prompt, "past user corrections")
	assert.Contains(t, prompt, "Emails from x@y.example should be categorized as SPAM")
	assert.Contains(t, prompt, "Emails from domain y.example should be categorized as SPAM")
}

type stubHints struct {
	examples []core.CorrectionExample
	senders  map[string]string
	domains  map[string]string
}

func (s stubHints) FewShot(int) []core.CorrectionExample { return s.examples }
func (s stubHints) SenderHints(int) map[string]string    { return s.senders }
func (s stubHints) DomainHints(int) map[string]string    { return s.domains }

func TestSystemPrompt(t *testing.T) {
	p := SystemPrompt(validCategories)
	assert.True(t, strings.Contains(p, "SPAM, BANQUE, PRO"))
	assert.Contains(t, p, "JSON")
}
