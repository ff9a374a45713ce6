package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// keywordAccept is the confidence a keyword-tier result must clear to
	// stop the ladder before the remote tier
	keywordAccept = 0.75

	defaultBatchSize     = 15
	defaultRemoteTimeout = 30 * time.Second
)

// EngineMetrics accumulates per-cycle classification counters
type EngineMetrics struct {
	Total            int64
	CacheHits        int64
	RuleHits         int64
	KeywordAccepts   int64
	RemoteAccepts    int64
	RemoteBatchCalls int64
	Fallbacks        int64
}

// Engine composes the tiered classification decision: cache, learned rules,
// keyword heuristics, then the rate-limited remote service.
type Engine struct {
	categories *CategorySet
	cache      PatternCache
	rules      RulePredictor
	keywords   *KeywordScorer
	remote     RemoteClassifier
	limiter    RateLimiter
	logger     *zap.Logger

	batchSize     int
	remoteTimeout time.Duration

	mu      sync.Mutex
	metrics EngineMetrics
}

// EngineOption adjusts engine construction
type EngineOption func(*Engine)

// WithBatchSize bounds how many messages share one remote request
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRemoteTimeout bounds each remote classification call
func WithRemoteTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.remoteTimeout = d
		}
	}
}

// NewEngine creates a classification engine. remote and limiter may be nil,
// in which case the remote tier is skipped entirely.
func NewEngine(
	categories *CategorySet,
	cache PatternCache,
	rules RulePredictor,
	remote RemoteClassifier,
	limiter RateLimiter,
	logger *zap.Logger,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		categories:    categories,
		cache:         cache,
		rules:         rules,
		keywords:      NewKeywordScorer(categories),
		remote:        remote,
		limiter:       limiter,
		logger:        logger,
		batchSize:     defaultBatchSize,
		remoteTimeout: defaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify resolves a single message through the tier ladder
func (e *Engine) Classify(ctx context.Context, msg Message) Result {
	results := e.ClassifyBatch(ctx, []Message{msg})
	res, ok := results[msg.ID]
	if !ok {
		return Fallback(msg.ID, "no result produced")
	}
	if res.Method == MethodRemoteBatch {
		res.Method = MethodRemoteSingle
	}
	return res
}

// ClassifyBatch resolves every message to exactly one result, keyed by
// message identity. Messages the local tiers cannot place are grouped into
// bounded batches for the remote classifier.
func (e *Engine) ClassifyBatch(ctx context.Context, msgs []Message) map[MessageID]Result {
	results := make(map[MessageID]Result, len(msgs))
	var residual []Message

	for _, msg := range msgs {
		if res, ok := e.classifyLocal(ctx, msg); ok {
			results[msg.ID] = res
			continue
		}
		residual = append(residual, msg)
	}

	if len(residual) > 0 {
		e.classifyRemote(ctx, residual, results)
	}

	for _, msg := range msgs {
		if _, ok := results[msg.ID]; !ok {
			results[msg.ID] = Fallback(msg.ID, "no tier produced a result")
			e.count(func(m *EngineMetrics) { m.Fallbacks++ })
		}
	}

	e.count(func(m *EngineMetrics) { m.Total += int64(len(msgs)) })
	return results
}

// classifyLocal runs the cache, rule and keyword tiers
func (e *Engine) classifyLocal(ctx context.Context, msg Message) (Result, bool) {
	fingerprint := Fingerprint(msg.From, msg.Subject)

	// Tier 1: cache
	if pattern, err := e.cache.Hit(ctx, fingerprint); err == nil {
		e.count(func(m *EngineMetrics) { m.CacheHits++ })
		e.logDecision(msg, pattern.Category, pattern.Confidence, MethodCached)
		return Result{
			ID:          msg.ID,
			Category:    pattern.Category,
			Confidence:  pattern.Confidence,
			Method:      MethodCached,
			Explanation: fmt.Sprintf("cache hit #%d", pattern.HitCount),
			Timestamp:   time.Now(),
		}, true
	}

	// Tier 2: learned rules
	if e.rules != nil {
		if category, confidence, ok := e.rules.Predict(msg.From, msg.Subject); ok {
			e.count(func(m *EngineMetrics) { m.RuleHits++ })
			e.logDecision(msg, category, confidence, MethodRule)
			return Result{
				ID:          msg.ID,
				Category:    category,
				Confidence:  confidence,
				Method:      MethodRule,
				Explanation: "learned rule match",
				Timestamp:   time.Now(),
			}, true
		}
	}

	// Tier 3: keyword heuristics
	if category, confidence, explanation, ok := e.keywords.Score(msg.Subject, msg.Body); ok && confidence >= keywordAccept {
		e.count(func(m *EngineMetrics) { m.KeywordAccepts++ })
		e.storePattern(ctx, fingerprint, msg.From, category, confidence)
		e.logDecision(msg, category, confidence, MethodKeyword)
		return Result{
			ID:          msg.ID,
			Category:    category,
			Confidence:  confidence,
			Method:      MethodKeyword,
			Explanation: explanation,
			Timestamp:   time.Now(),
		}, true
	}

	return Result{}, false
}

// classifyRemote submits the residual set in bounded batches, respecting the
// rate limiter. Remote failures degrade to fallback for the affected
// messages only.
func (e *Engine) classifyRemote(ctx context.Context, residual []Message, results map[MessageID]Result) {
	if e.remote == nil {
		return
	}
	valid := e.categories.Names()

	for start := 0; start < len(residual); start += e.batchSize {
		end := start + e.batchSize
		if end > len(residual) {
			end = len(residual)
		}
		batch := residual[start:end]

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				e.logger.Warn("rate limiter wait aborted", zap.Error(err))
				return
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, e.remoteTimeout)
		remote, err := e.remote.ClassifyBatch(callCtx, batch, valid)
		cancel()
		e.count(func(m *EngineMetrics) { m.RemoteBatchCalls++ })
		if err != nil {
			e.logger.Warn("remote classification failed, degrading to fallback",
				zap.Int("batch_size", len(batch)),
				zap.Error(err))
			continue
		}

		for _, msg := range batch {
			rr, ok := remote[msg.ID]
			if !ok {
				continue
			}
			if rr.Category == CategoryUnknown || !e.categories.Contains(rr.Category) {
				results[msg.ID] = Fallback(msg.ID, rr.Explanation)
				e.count(func(m *EngineMetrics) { m.Fallbacks++ })
				continue
			}
			e.count(func(m *EngineMetrics) { m.RemoteAccepts++ })
			fingerprint := Fingerprint(msg.From, msg.Subject)
			e.storePattern(ctx, fingerprint, msg.From, rr.Category, rr.Confidence)
			e.logDecision(msg, rr.Category, rr.Confidence, MethodRemoteBatch)
			results[msg.ID] = Result{
				ID:          msg.ID,
				Category:    rr.Category,
				Confidence:  rr.Confidence,
				Method:      MethodRemoteBatch,
				Explanation: rr.Explanation,
				Timestamp:   time.Now(),
			}
		}
	}
}

// storePattern records an accepted decision so materially identical future
// messages skip the higher-cost tiers
func (e *Engine) storePattern(ctx context.Context, fingerprint, from, category string, confidence float64) {
	pattern := &CachedPattern{
		Fingerprint: fingerprint,
		Category:    category,
		Confidence:  confidence,
		HitCount:    1,
		LastUsed:    time.Now(),
		FromDomain:  SenderDomain(from),
	}
	if err := e.cache.Store(ctx, pattern); err != nil {
		e.logger.Error("failed to store cache pattern", zap.Error(err))
	}
}

func (e *Engine) logDecision(msg Message, category string, confidence float64, method Method) {
	e.logger.Info("classified message",
		zap.String("id", msg.ID.Key()),
		zap.String("subject", truncate(msg.Subject, 60)),
		zap.String("category", category),
		zap.Float64("confidence", confidence),
		zap.String("method", string(method)))
}

func (e *Engine) count(fn func(*EngineMetrics)) {
	e.mu.Lock()
	fn(&e.metrics)
	e.mu.Unlock()
}

// Metrics returns a snapshot of the accumulated counters
func (e *Engine) Metrics() EngineMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.metrics
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
