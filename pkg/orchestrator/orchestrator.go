// Package orchestrator wires the transport, embedding, vector index,
// recency buffer, and response generator together: it is the event loop
// that turns an inbound chat event into an ingested record and, for
// mentions, a generated reply with dispatched actions.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/kvcodec"
	"github.com/chatmind-dev/chatmind/pkg/llm"
	"github.com/chatmind-dev/chatmind/pkg/memory"
	"github.com/chatmind-dev/chatmind/pkg/metaindex"
	"github.com/chatmind-dev/chatmind/pkg/privacy"
	"github.com/chatmind-dev/chatmind/pkg/responder"
	"github.com/chatmind-dev/chatmind/pkg/store"
	"github.com/chatmind-dev/chatmind/pkg/transport"
	"github.com/chatmind-dev/chatmind/pkg/vectordb"
)

// Stats are the orchestrator's own running counters, safe for concurrent
// access and cheap to read via Snapshot. LLM usage and privacy routing
// counts live on their own owning components and are merged in at
// snapshot time rather than duplicated here.
type Stats struct {
	MessagesIngested     int64
	MentionsHandled      int64
	AIResponsesGenerated int64
	AIResponsesFailed    int64
	ActionsDispatched    int64
}

// Snapshot is an immutable copy of the orchestrator's full stats surface
// at one instant, including the delegated LLM and privacy counters and
// the current transport state.
type Snapshot struct {
	MessagesIngested     int64
	MentionsHandled      int64
	AIResponsesGenerated int64
	AIResponsesFailed    int64
	ActionsDispatched    int64
	ReconnectCount       int64
	TransportState       string
	LLM                  llm.Stats
	Privacy              privacy.Counters
}

func (s *Stats) snapshot() Snapshot {
	return Snapshot{
		MessagesIngested:     atomic.LoadInt64(&s.MessagesIngested),
		MentionsHandled:      atomic.LoadInt64(&s.MentionsHandled),
		AIResponsesGenerated: atomic.LoadInt64(&s.AIResponsesGenerated),
		AIResponsesFailed:    atomic.LoadInt64(&s.AIResponsesFailed),
		ActionsDispatched:    atomic.LoadInt64(&s.ActionsDispatched),
	}
}

// corpusRefitEvery is how many newly ingested messages accumulate before
// the local embedder is retrained on the corpus collected so far.
// corpusMaxSize bounds how much of that text is kept in memory between
// refits, discarding the oldest once exceeded.
const (
	corpusRefitEvery = 25
	corpusMaxSize    = 5000
)

// Chat is the subset of transport.Client the orchestrator depends on.
type Chat interface {
	OnEvent(transport.Handler)
	Run(ctx context.Context) error
	SendMessage(ctx context.Context, channel, text string) error
	State() transport.State
	Reconnects() int64
}

// Orchestrator owns the ingest-and-respond event loop.
type Orchestrator struct {
	cfg    config.Config
	db     *vectordb.DB
	router *privacy.Router
	mem    *memory.Memory
	gen    *responder.Generator
	chat   Chat

	stats Stats
	log   *slog.Logger

	corpusMu    sync.Mutex
	corpus      []string
	corpusAdded int // texts accumulated since start, drives the refit cadence

	ctx context.Context
}

// New builds an Orchestrator from its already-constructed collaborators.
func New(cfg config.Config, db *vectordb.DB, router *privacy.Router, mem *memory.Memory, gen *responder.Generator, chat Chat) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		db:     db,
		router: router,
		mem:    mem,
		gen:    gen,
		chat:   chat,
		ctx:    context.Background(),
		log:    slog.Default().With("component", "orchestrator"),
	}
}

// Snapshot returns the current counters, merging in the LLM client's and
// the privacy router's own counters and the transport's current state.
func (o *Orchestrator) Snapshot() Snapshot {
	snap := o.stats.snapshot()
	snap.TransportState = string(o.chat.State())
	snap.ReconnectCount = o.chat.Reconnects()
	snap.LLM = o.gen.UsageSnapshot()
	snap.Privacy = o.router.Snapshot()
	return snap
}

// Run registers the event handler and blocks driving the chat transport
// until ctx is cancelled or the transport gives up reconnecting.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	o.chat.OnEvent(o.handleEvent)
	return o.chat.Run(ctx)
}

// handleEvent is the transport.Handler entrypoint for every non-bot,
// non-subtyped inbound event.
func (o *Orchestrator) handleEvent(ev transport.Event) {
	if !o.channelAllowed(ev.Channel) {
		return
	}

	if err := o.ingest(o.ctx, ev); err != nil {
		o.log.Error("failed to ingest event", "channel", ev.Channel, "ts", ev.TS, "error", err)
		return
	}

	if ev.Type == "app_mention" || o.mentionsBot(ev.Text) {
		atomic.AddInt64(&o.stats.MentionsHandled, 1)
		if err := o.respond(o.ctx, ev); err != nil {
			atomic.AddInt64(&o.stats.AIResponsesFailed, 1)
			o.log.Error("failed to respond", "channel", ev.Channel, "ts", ev.TS, "error", err)
			return
		}
		atomic.AddInt64(&o.stats.AIResponsesGenerated, 1)
	}
}

func (o *Orchestrator) channelAllowed(channel string) bool {
	if len(o.cfg.ChannelWhitelist) == 0 {
		return true
	}
	for _, c := range o.cfg.ChannelWhitelist {
		if c == channel {
			return true
		}
	}
	return false
}

var mentionPattern = regexp.MustCompile(`<@[A-Za-z0-9]+>`)

// mentionsBot reports whether text addresses the bot directly, either
// through a literal @mention token or a configured trigger keyword.
func (o *Orchestrator) mentionsBot(text string) bool {
	if o.cfg.Chat.BotUserID != "" && strings.Contains(text, "<@"+o.cfg.Chat.BotUserID+">") {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range o.cfg.Response.MentionKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ingest embeds the event text through the privacy router and stores it,
// recording it in the per-channel recency buffer and accumulating it into
// the local embedder's training corpus as well.
func (o *Orchestrator) ingest(ctx context.Context, ev transport.Event) error {
	vector, method, err := o.router.Embed(ctx, ev.Text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	o.accumulateCorpus(ev.Text)

	ts := parseTimestamp(ev.TS)
	meta := kvcodec.Metadata{
		"text":          ev.Text,
		"user_id":       ev.User,
		"channel":       ev.Channel,
		"timestamp":     ts,
		"privacy_level": string(o.cfg.Privacy.Level),
		"method":        method,
	}

	id := fmt.Sprintf("chat_%s_%s", ev.TS, ev.Channel)
	rec := store.Record{ID: id, Vector: vector, Metadata: meta}

	if o.db.Exists(id) {
		if err := o.db.Update(id, meta); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	} else {
		if err := o.db.Insert(id, vector, meta); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
	}

	o.mem.Record(ev.Channel, rec)
	atomic.AddInt64(&o.stats.MessagesIngested, 1)
	return nil
}

// accumulateCorpus appends text to the rolling training corpus and, every
// corpusRefitEvery messages, retrains the local embedder on it, so the
// TF-IDF/averaged-word vocabulary stops being empty once enough traffic has
// passed through. The oldest text is dropped once corpusMaxSize is
// exceeded. Messages embedded before the first refit still index (as the
// documented untrained zero-vector case); later ones recall by content
// once the vocabulary is populated.
func (o *Orchestrator) accumulateCorpus(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	o.corpusMu.Lock()
	o.corpus = append(o.corpus, text)
	if len(o.corpus) > corpusMaxSize {
		o.corpus = o.corpus[len(o.corpus)-corpusMaxSize:]
	}
	o.corpusAdded++
	due := o.corpusAdded%corpusRefitEvery == 0
	var snapshot []string
	if due {
		snapshot = make([]string, len(o.corpus))
		copy(snapshot, o.corpus)
	}
	o.corpusMu.Unlock()

	if due {
		o.router.FitLocal(snapshot)
		o.log.Info("refit local embedder", "corpus_size", len(snapshot))
	}
}

// respond strips the mention, embeds the query, recalls context by
// merging a vector search with the channel's recency buffer, generates a
// reply, sends it, and dispatches any high-confidence actions.
func (o *Orchestrator) respond(ctx context.Context, ev transport.Event) error {
	query := strings.TrimSpace(mentionPattern.ReplaceAllString(ev.Text, ""))

	queryVector, _, err := o.router.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("embed query: %w", err)
	}

	recalled, err := o.db.Search(vectordb.Query{
		Vector:    queryVector,
		Limit:     o.cfg.AI.MaxContextMessages,
		Threshold: 0,
		Filters:   metaindex.Filters{"channel": ev.Channel},
	})
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	candidates := mergeCandidates(recalled, o.mem.Recent(ev.Channel))

	caller := responder.Caller{
		Channel: ev.Channel,
		UserID:  ev.User,
		Style:   o.cfg.AI.ConversationStyle,
	}

	result, err := o.gen.Generate(ctx, query, candidates, caller, time.Now())
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if o.cfg.Response.ResponseDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.cfg.Response.ResponseDelay):
		}
	}

	if err := o.chat.SendMessage(ctx, ev.Channel, result.Reply); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}

	if o.cfg.Actions.Enabled {
		o.dispatchActions(ctx, ev.Channel, result.Actions)
	}
	return nil
}

// dispatchActions logs and counts every action above the confidence
// threshold, sending a confirmation message when configured to.
func (o *Orchestrator) dispatchActions(ctx context.Context, channel string, actions []responder.Action) {
	const confidenceThreshold = 0.7

	for _, a := range actions {
		if a.Confidence <= confidenceThreshold {
			continue
		}
		o.log.Info("dispatching action", "channel", channel, "type", a.Type, "confidence", a.Confidence)
		atomic.AddInt64(&o.stats.ActionsDispatched, 1)

		if o.cfg.Actions.ConfirmationRequired {
			msg := fmt.Sprintf("Got it, I'll treat that as a %q action.", a.Type)
			if err := o.chat.SendMessage(ctx, channel, msg); err != nil {
				o.log.Warn("failed to send action confirmation", "channel", channel, "error", err)
			}
		}
	}
}

// mergeCandidates unions two record slices by ID, recalled first, then
// recency, skipping ids already present, and sorts the result newest
// first.
func mergeCandidates(recalled []vectordb.SearchResult, recent []store.Record) []store.Record {
	seen := make(map[string]bool, len(recalled)+len(recent))
	out := make([]store.Record, 0, len(recalled)+len(recent))

	for _, r := range recalled {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r.Record)
	}
	for _, rec := range recent {
		if seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, _ := out[i].Metadata["timestamp"].(float64)
		tj, _ := out[j].Metadata["timestamp"].(float64)
		return ti > tj
	})
	return out
}

func parseTimestamp(ts string) float64 {
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return float64(time.Now().Unix())
	}
	return f
}
