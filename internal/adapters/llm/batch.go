// Package llm holds the batch prompt and response codec shared by the
// remote classifier providers. Each provider owns its transport; the
// instruction format and the category-closure validation are identical
// across them.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mailsift/mailsift/internal/core"
	"github.com/mailsift/mailsift/internal/utils"
)

const (
	// maxFewShot bounds the correction examples embedded per prompt
	maxFewShot = 5
	// maxRuleHints bounds the learned rules embedded per prompt
	maxRuleHints = 3
	// subjectPromptLen bounds each subject inside the batch prompt
	subjectPromptLen = 120
)

// SystemPrompt returns the fixed system instruction for a batch request
func SystemPrompt(validCategories []string) string {
	return fmt.Sprintf("Email classifier. Valid categories: %s. Output JSON only.",
		strings.Join(validCategories, ", "))
}

// BuildBatchPrompt renders the combined instruction for one batch of
// sanitized messages, the closed category list, and any learned hints
func BuildBatchPrompt(
	msgs []core.Message,
	categories *core.CategorySet,
	validCategories []string,
	hints core.PromptHints,
	tp *utils.TextProcessor,
	maxBodySize int,
) string {
	var b strings.Builder

	if hints != nil {
		writeHints(&b, hints)
	}

	fmt.Fprintf(&b, "Classify these %d emails into categories:\n", len(msgs))
	for _, name := range validCategories {
		if cat, ok := categories.Get(name); ok && cat.Description != "" {
			fmt.Fprintf(&b, "- %s: %s\n", cat.Name, cat.Description)
		} else {
			fmt.Fprintf(&b, "- %s\n", name)
		}
	}
	b.WriteString("\n")

	for idx, msg := range msgs {
		fmt.Fprintf(&b, "Email %d:\nSubject: %s\nFrom: %s\nBody: %s\n\n",
			idx,
			tp.SanitizeForPrompt(msg.Subject, subjectPromptLen),
			tp.SanitizeForPrompt(msg.From, subjectPromptLen),
			tp.SanitizeForPrompt(msg.Body, maxBodySize))
	}

	fmt.Fprintf(&b, `Return ONLY a JSON array with this format:
[
  {"email_index": 0, "category": "CATEGORY_NAME", "confidence": 0.9, "explanation": "reason"}
]

RULES:
1. ONLY use these categories: %s
2. Return ALL emails in order (0 to %d)
3. Output MUST be a valid JSON array`,
		strings.Join(validCategories, ", "), len(msgs)-1)

	return b.String()
}

func writeHints(b *strings.Builder, hints core.PromptHints) {
	examples := hints.FewShot(maxFewShot)
	if len(examples) > 0 {
		b.WriteString("Here are examples of past user corrections you should learn from:\n")
		for i, ex := range examples {
			fmt.Fprintf(b, "Example %d: Subject=%s, From=%s, Correct Category=%s\n",
				i+1, ex.Subject, ex.Sender, ex.Category)
		}
		b.WriteString("\n")
	}

	senders := hints.SenderHints(maxRuleHints)
	domains := hints.DomainHints(maxRuleHints)
	if len(senders) > 0 || len(domains) > 0 {
		b.WriteString("Important rules learned from user behavior:\n")
		for sender, cat := range senders {
			fmt.Fprintf(b, "- Emails from %s should be categorized as %s\n", sender, cat)
		}
		for domain, cat := range domains {
			fmt.Fprintf(b, "- Emails from domain %s should be categorized as %s\n", domain, cat)
		}
		b.WriteString("\n")
	}
}

// batchItem is one entry of the remote response array
type batchItem struct {
	EmailIndex  *int    `json:"email_index"`
	EmailID     string  `json:"email_id"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// DecodeBatchResponse parses a batch response body and joins it back to the
// submitted messages. Entries are matched by email_index, falling back to
// email_id. Categories outside validCategories normalize to UNKNOWN with
// confidence 0; they are never trusted as-is.
func DecodeBatchResponse(content string, msgs []core.Message, validCategories []string) (map[core.MessageID]core.RemoteResult, error) {
	content = StripFences(content)

	var items []batchItem
	if err := json.Unmarshal([]byte(content), &items); err != nil {
		return nil, fmt.Errorf("failed to parse batch response as JSON: %w", err)
	}

	valid := make(map[string]bool, len(validCategories))
	for _, name := range validCategories {
		valid[name] = true
	}
	byUID := make(map[string]core.Message, len(msgs))
	for _, msg := range msgs {
		byUID[msg.ID.UID] = msg
	}

	out := make(map[core.MessageID]core.RemoteResult, len(items))
	for _, item := range items {
		var msg core.Message
		switch {
		case item.EmailIndex != nil && *item.EmailIndex >= 0 && *item.EmailIndex < len(msgs):
			msg = msgs[*item.EmailIndex]
		case item.EmailID != "":
			m, ok := byUID[item.EmailID]
			if !ok {
				continue
			}
			msg = m
		default:
			continue
		}

		category := strings.ToUpper(strings.TrimSpace(item.Category))
		if !valid[category] {
			out[msg.ID] = core.RemoteResult{
				Category:    core.CategoryUnknown,
				Confidence:  0,
				Explanation: fmt.Sprintf("remote classifier returned invalid category %q", item.Category),
			}
			continue
		}
		out[msg.ID] = core.RemoteResult{
			Category:    category,
			Confidence:  clamp01(item.Confidence),
			Explanation: item.Explanation,
		}
	}
	return out, nil
}

// StripFences removes a Markdown code fence wrapper from a response body
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	if idx := strings.Index(content, "```json"); idx >= 0 {
		content = content[idx+len("```json"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[idx+len("```"):]
		if end := strings.Index(content, "```"); end >= 0 {
			content = content[:end]
		}
		return strings.TrimSpace(content)
	}
	return content
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
