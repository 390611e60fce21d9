package privacy

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/embedder"
)

// complianceBase is the starting compliance score per tier, before the
// zero-data-retention bonus and the local-rate bonus are applied.
var complianceBase = map[config.PrivacyLevel]float64{
	config.PrivacyHigh:   80,
	config.PrivacyMedium: 60,
	config.PrivacyLow:    40,
}

// Counters is a snapshot of the router's request counters.
type Counters struct {
	Total    int64
	Local    int64
	External int64
	Filtered int64
}

// Router embeds text according to its configured privacy tier: high always
// stays local; medium anonymises sensitive text before sending it out;
// low always goes out unchanged. It tracks the counters needed to compute
// a compliance score.
type Router struct {
	level    config.PrivacyLevel
	useZDR   bool
	local    *embedder.Local
	external ExternalEmbedder

	total    int64
	local_   int64
	ext      int64
	filtered int64
}

// NewRouter builds a router. external may be nil when level is high, since
// the high tier never reaches it.
func NewRouter(level config.PrivacyLevel, useEnterpriseZDR bool, local *embedder.Local, external ExternalEmbedder) *Router {
	return &Router{
		level:    level,
		useZDR:   useEnterpriseZDR,
		local:    local,
		external: external,
	}
}

// Embed routes text through the configured tier and returns its embedding
// and the method that produced it ("external" for the external embedder,
// otherwise the local embedder's method name).
func (r *Router) Embed(ctx context.Context, text string) (vector []float64, method string, err error) {
	atomic.AddInt64(&r.total, 1)

	if strings.TrimSpace(text) == "" {
		v, m := r.local.Embed(text)
		atomic.AddInt64(&r.local_, 1)
		return v, m, nil
	}

	switch r.level {
	case config.PrivacyHigh:
		v, m := r.local.Embed(text)
		atomic.AddInt64(&r.local_, 1)
		return v, m, nil

	case config.PrivacyMedium:
		sendText := text
		if IsSensitive(text) {
			sendText = Anonymise(text)
			atomic.AddInt64(&r.filtered, 1)
		}
		return r.embedExternal(ctx, sendText)

	case config.PrivacyLow:
		return r.embedExternal(ctx, text)

	default:
		return nil, "", fmt.Errorf("privacy: unknown privacy level %q", r.level)
	}
}

// FitLocal retrains the router's local embedder on corpus. Safe to call
// concurrently with Embed: the local embedder's own sub-transformers guard
// their vocabulary with their own locks.
func (r *Router) FitLocal(corpus []string) {
	r.local.Fit(corpus)
}

// LocalTrained reports whether the local embedder has ever been fit on a
// non-empty corpus.
func (r *Router) LocalTrained() bool {
	return r.local.TFIDF.Trained() || r.local.WordVec.Trained()
}

func (r *Router) embedExternal(ctx context.Context, text string) ([]float64, string, error) {
	if r.external == nil {
		return nil, "", fmt.Errorf("privacy: external embedder required for tier %q but none configured", r.level)
	}
	v, err := r.external.Embed(ctx, text)
	if err != nil {
		return nil, "", err
	}
	atomic.AddInt64(&r.ext, 1)
	return v, "external", nil
}

// Snapshot returns the current request counters.
func (r *Router) Snapshot() Counters {
	return Counters{
		Total:    atomic.LoadInt64(&r.total),
		Local:    atomic.LoadInt64(&r.local_),
		External: atomic.LoadInt64(&r.ext),
		Filtered: atomic.LoadInt64(&r.filtered),
	}
}

// ComplianceScore computes the privacy compliance score: a per-tier base
// (high 80, medium 60, low 40), +15 if the enterprise zero-data-retention
// flag is set, + up to 5 points scaled by the observed local-routing rate,
// capped at 100.
func (r *Router) ComplianceScore() float64 {
	score := complianceBase[r.level]
	if r.useZDR {
		score += 15
	}

	c := r.Snapshot()
	if c.Total > 0 {
		localRate := float64(c.Local) / float64(c.Total)
		score += 5 * localRate
	}

	if score > 100 {
		score = 100
	}
	return score
}
