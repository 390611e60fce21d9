// Package responder builds the LLM prompt from a user query and the
// recalled context, calls the LLM client, and parses the reply for
// executable actions.
package responder

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/llm"
	"github.com/chatmind-dev/chatmind/pkg/store"
)

// Caller carries the request-scoped metadata a generated reply is pinned
// to.
type Caller struct {
	Channel  string
	UserID   string
	ThreadID string
	Style    config.ConversationStyle
}

// Action is one parsed suggestion extracted from a reply.
type Action struct {
	Type       string
	Keyword    string
	Window     string
	Confidence float64
}

// Result is what Generate returns.
type Result struct {
	Reply        string
	Actions      []Action
	Model        string
	Tokens       int
	ResponseMS   int64
	ContextCount int
}

// Generator turns a query and recalled context into a reply plus parsed
// actions.
type Generator struct {
	client             *llm.Client
	model              string
	maxTokens          int
	temperature        float64
	maxContextMessages int
	contextWindowHours int
}

// Config controls a Generator's prompt shape and LLM call parameters.
type Config struct {
	Model              string
	MaxTokens          int
	Temperature        float64
	MaxContextMessages int
	ContextWindowHours int
}

// UsageSnapshot returns the underlying LLM client's request/cost counters.
func (g *Generator) UsageSnapshot() llm.Stats {
	return g.client.Snapshot()
}

// New returns a Generator backed by client.
func New(client *llm.Client, cfg Config) *Generator {
	return &Generator{
		client:             client,
		model:              cfg.Model,
		maxTokens:          cfg.MaxTokens,
		temperature:        cfg.Temperature,
		maxContextMessages: cfg.MaxContextMessages,
		contextWindowHours: cfg.ContextWindowHours,
	}
}

// Generate builds the system + context + query prompt, calls the LLM, and
// parses the reply for actions.
func (g *Generator) Generate(ctx context.Context, query string, candidates []store.Record, caller Caller, now time.Time) (Result, error) {
	start := now
	messages := []llm.Message{{Role: "system", Content: g.systemMessage(caller, now)}}

	contextMsgs, count := g.contextMessages(candidates, now)
	messages = append(messages, contextMsgs...)
	messages = append(messages, llm.Message{Role: "user", Content: query})

	res, err := g.client.Chat(ctx, messages, llm.ChatOptions{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		return Result{}, err
	}

	return Result{
		Reply:        res.Content,
		Actions:      ParseActions(res.Content),
		Model:        res.Model,
		Tokens:       res.Usage.Total,
		ResponseMS:   time.Since(start).Milliseconds(),
		ContextCount: count,
	}, nil
}

// Summarise reuses the LLM client at a lower, more deterministic
// temperature to produce a bounded-length summary of records.
func (g *Generator) Summarise(ctx context.Context, records []store.Record, maxChars int) (string, error) {
	var b strings.Builder
	for _, rec := range records {
		text, _ := rec.Metadata["text"].(string)
		if text == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(text)
		b.WriteString("\n")
	}

	prompt := fmt.Sprintf(
		"Summarise the following conversation in at most %d characters. Be concise and factual.\n\n%s",
		maxChars, b.String(),
	)

	res, err := g.client.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}}, llm.ChatOptions{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}
	return res.Content, nil
}

// systemMessage pins the style, channel, current time, user, and the
// house rules every reply must follow.
func (g *Generator) systemMessage(caller Caller, now time.Time) string {
	style := caller.Style
	if style == "" {
		style = config.StyleHelpful
	}
	return fmt.Sprintf(
		"You are a %s assistant in channel %s, talking with %s. The current time is %s.\n"+
			"Rules: keep replies concise; surface actionable suggestions when relevant; respect user privacy and never repeat sensitive details back verbatim.",
		style, caller.Channel, caller.UserID, now.UTC().Format(time.RFC3339),
	)
}

// contextMessages renders up to maxContextMessages candidates, newest
// first, skipping anything older than contextWindowHours, as user-role
// lines "[<relative time>] <user_id>: <text>".
func (g *Generator) contextMessages(candidates []store.Record, now time.Time) ([]llm.Message, int) {
	sorted := make([]store.Record, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return timestampOf(sorted[i]) > timestampOf(sorted[j])
	})

	cutoff := now.Add(-time.Duration(g.contextWindowHours) * time.Hour)

	var out []llm.Message
	for _, rec := range sorted {
		if len(out) >= g.maxContextMessages {
			break
		}
		ts := timestampOf(rec)
		recordTime := time.Unix(int64(ts), 0).UTC()
		if recordTime.Before(cutoff) {
			continue
		}
		text, _ := rec.Metadata["text"].(string)
		userID, _ := rec.Metadata["user_id"].(string)
		out = append(out, llm.Message{
			Role:    "user",
			Content: fmt.Sprintf("[%s] %s: %s", relativeTime(recordTime, now), userID, text),
		})
	}
	return out, len(out)
}

func timestampOf(rec store.Record) float64 {
	return toFloat(rec.Metadata["timestamp"])
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

// relativeTime formats the age of t relative to now as a short human label.
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
