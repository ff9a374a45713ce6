// Package rules holds the adaptive rule store: user corrections are appended
// to an immutable log and promoted into sender, domain and subject-keyword
// prediction rules once enough corroborating evidence exists.
package rules

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mailsift/mailsift/internal/core"
	"go.uber.org/zap"
)

const (
	// Confidence tiers of the read path: exact sender > domain > keyword
	senderRuleConfidence  = 0.95
	domainRuleConfidence  = 0.85
	keywordRuleConfidence = 0.75

	// Promotion gate for domain and keyword rules
	minCorroborations = 2
	minAgreement      = 0.7

	// Subject words considered as keyword-rule candidates
	minKeywordRunes      = 5
	maxKeywordCandidates = 5

	bodyPreviewLen = 200
)

// Correction is one immutable entry of the correction log
type Correction struct {
	EmailID         string    `json:"email_id"`
	Sender          string    `json:"sender"`
	Subject         string    `json:"subject"`
	BodyPreview     string    `json:"body_preview"`
	WrongCategory   string    `json:"wrong_category"`
	CorrectCategory string    `json:"correct_category"`
	Timestamp       time.Time `json:"timestamp"`
}

// patterns is the persisted active rule table
type patterns struct {
	SenderRules     map[string]string `json:"sender_rules"`
	DomainRules     map[string]string `json:"domain_rules"`
	SubjectKeywords map[string]string `json:"subject_keywords"`
}

// Store is the adaptive rule store. Single writer, concurrent readers.
type Store struct {
	mu          sync.RWMutex
	corrections []Correction
	patterns    patterns

	patternsPath    string
	correctionsPath string
	logger          *zap.Logger
}

// Open loads (or initializes) the rule store under dir
func Open(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rules directory: %w", err)
	}
	s := &Store{
		patternsPath:    filepath.Join(dir, "learned_patterns.json"),
		correctionsPath: filepath.Join(dir, "user_corrections.jsonl"),
		patterns: patterns{
			SenderRules:     map[string]string{},
			DomainRules:     map[string]string{},
			SubjectKeywords: map[string]string{},
		},
		logger: logger,
	}
	if err := s.loadPatterns(); err != nil {
		return nil, err
	}
	if err := s.loadCorrections(); err != nil {
		return nil, err
	}
	logger.Info("rule store loaded",
		zap.Int("corrections", len(s.corrections)),
		zap.Int("sender_rules", len(s.patterns.SenderRules)),
		zap.Int("domain_rules", len(s.patterns.DomainRules)),
		zap.Int("subject_keywords", len(s.patterns.SubjectKeywords)))
	return s, nil
}

func (s *Store) loadPatterns() error {
	data, err := os.ReadFile(s.patternsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.patternsPath, err)
	}
	var p patterns
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid rule table %s: %w", s.patternsPath, err)
	}
	if p.SenderRules != nil {
		s.patterns.SenderRules = p.SenderRules
	}
	if p.DomainRules != nil {
		s.patterns.DomainRules = p.DomainRules
	}
	if p.SubjectKeywords != nil {
		s.patterns.SubjectKeywords = p.SubjectKeywords
	}
	return nil
}

func (s *Store) loadCorrections() error {
	f, err := os.Open(s.correctionsPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.correctionsPath, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var c Correction
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			s.logger.Warn("skipping malformed correction log line",
				zap.Int("line", line), zap.Error(err))
			continue
		}
		s.corrections = append(s.corrections, c)
	}
	return scanner.Err()
}

// Predict returns a learned (category, confidence) for the sender and
// subject. Rules apply in confidence order: exact sender, then domain, then
// subject keyword.
func (s *Store) Predict(sender, subject string) (string, float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sender = strings.ToLower(strings.TrimSpace(sender))
	if category, ok := s.patterns.SenderRules[sender]; ok {
		return category, senderRuleConfidence, true
	}

	if domain := core.SenderDomain(sender); domain != "" {
		if category, ok := s.patterns.DomainRules[domain]; ok {
			return category, domainRuleConfidence, true
		}
	}

	subjectLower := strings.ToLower(subject)
	for keyword, category := range s.patterns.SubjectKeywords {
		if strings.Contains(subjectLower, keyword) {
			return category, keywordRuleConfidence, true
		}
	}

	return "", 0, false
}

// LearnFromCorrection appends a correction to the immutable log and promotes
// any rule candidates that now clear their evidence threshold.
func (s *Store) LearnFromCorrection(emailID, sender, subject, bodyPreview, wrongCategory, correctCategory string) error {
	preview := bodyPreview
	if len(preview) > bodyPreviewLen {
		preview = preview[:bodyPreviewLen]
	}
	correction := Correction{
		EmailID:         emailID,
		Sender:          strings.ToLower(strings.TrimSpace(sender)),
		Subject:         subject,
		BodyPreview:     preview,
		WrongCategory:   wrongCategory,
		CorrectCategory: correctCategory,
		Timestamp:       time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.corrections = append(s.corrections, correction)
	if err := s.appendCorrection(correction); err != nil {
		// In-memory state stays authoritative; the next append retries the file
		s.logger.Error("failed to append correction log", zap.Error(err))
	}

	s.extractPatterns(correction)
	if err := s.savePatterns(); err != nil {
		s.logger.Error("failed to save rule table", zap.Error(err))
	}

	s.logger.Info("learned from correction",
		zap.String("sender", correction.Sender),
		zap.String("subject", truncate(subject, 40)),
		zap.String("wrong", wrongCategory),
		zap.String("correct", correctCategory))
	return nil
}

// extractPatterns updates the active rule table from one correction.
// Caller holds mu.
func (s *Store) extractPatterns(c Correction) {
	// Exact sender address is a high-precision signal: one correction suffices
	if c.Sender != "" {
		if _, exists := s.patterns.SenderRules[c.Sender]; !exists {
			s.patterns.SenderRules[c.Sender] = c.CorrectCategory
			s.logger.Debug("sender rule added",
				zap.String("sender", c.Sender), zap.String("category", c.CorrectCategory))
		}
	}

	// Domain rules need corroboration before being trusted
	if domain := core.SenderDomain(c.Sender); domain != "" && strings.Contains(c.Sender, "@") {
		if _, exists := s.patterns.DomainRules[domain]; !exists {
			if dominant, ok := s.corroborated(func(corr Correction) bool {
				return core.SenderDomain(corr.Sender) == domain
			}); ok && dominant == c.CorrectCategory {
				s.patterns.DomainRules[domain] = c.CorrectCategory
				s.logger.Debug("domain rule added",
					zap.String("domain", domain), zap.String("category", c.CorrectCategory))
			}
		}
	}

	// Subject keywords: significant words, same corroboration gate
	for _, word := range keywordCandidates(c.Subject) {
		if _, exists := s.patterns.SubjectKeywords[word]; exists {
			continue
		}
		if dominant, ok := s.corroborated(func(corr Correction) bool {
			return strings.Contains(strings.ToLower(corr.Subject), word)
		}); ok && dominant == c.CorrectCategory {
			s.patterns.SubjectKeywords[word] = c.CorrectCategory
			s.logger.Debug("subject keyword rule added",
				zap.String("keyword", word), zap.String("category", c.CorrectCategory))
		}
	}
}

// corroborated reports the dominant correct category among corrections
// matching the predicate, provided at least minCorroborations match and the
// dominant category exceeds minAgreement of them.
func (s *Store) corroborated(match func(Correction) bool) (string, bool) {
	counts := map[string]int{}
	total := 0
	for _, c := range s.corrections {
		if match(c) {
			counts[c.CorrectCategory]++
			total++
		}
	}
	if total < minCorroborations {
		return "", false
	}
	dominant, best := "", 0
	for category, n := range counts {
		if n > best {
			dominant, best = category, n
		}
	}
	if float64(best)/float64(total) <= minAgreement {
		return "", false
	}
	return dominant, true
}

// keywordCandidates extracts significant subject words eligible to become
// keyword rules
func keywordCandidates(subject string) []string {
	var out []string
	for _, word := range strings.Fields(strings.ToLower(subject)) {
		word = strings.Trim(word, ".,:;!?\"'()[]")
		if len([]rune(word)) < minKeywordRunes {
			continue
		}
		out = append(out, word)
		if len(out) == maxKeywordCandidates {
			break
		}
	}
	return out
}

// FewShot returns up to max recent corrections, at most two per category,
// for prompt enrichment
func (s *Store) FewShot(max int) []core.CorrectionExample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]Correction, len(s.corrections))
	copy(sorted, s.corrections)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	perCategory := map[string]int{}
	var out []core.CorrectionExample
	for _, c := range sorted {
		if perCategory[c.CorrectCategory] >= 2 {
			continue
		}
		perCategory[c.CorrectCategory]++
		out = append(out, core.CorrectionExample{
			Sender:   c.Sender,
			Subject:  truncate(c.Subject, 50),
			Category: c.CorrectCategory,
		})
		if len(out) == max {
			break
		}
	}
	return out
}

// SenderHints returns up to max learned sender rules
func (s *Store) SenderHints(max int) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCapped(s.patterns.SenderRules, max)
}

// DomainHints returns up to max learned domain rules
func (s *Store) DomainHints(max int) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyCapped(s.patterns.DomainRules, max)
}

// Stats summarizes the store for logging
func (s *Store) Stats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]int{
		"corrections":      len(s.corrections),
		"sender_rules":     len(s.patterns.SenderRules),
		"domain_rules":     len(s.patterns.DomainRules),
		"subject_keywords": len(s.patterns.SubjectKeywords),
	}
}

// appendCorrection writes one JSON line to the correction log. Caller holds mu.
func (s *Store) appendCorrection(c Correction) error {
	f, err := os.OpenFile(s.correctionsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// savePatterns rewrites the rule table wholesale. Caller holds mu.
func (s *Store) savePatterns() error {
	data, err := json.MarshalIndent(s.patterns, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.patternsPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.patternsPath)
}

func copyCapped(src map[string]string, max int) map[string]string {
	out := make(map[string]string, max)
	for k, v := range src {
		if len(out) == max {
			break
		}
		out[k] = v
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
