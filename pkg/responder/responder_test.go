package responder

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/kvcodec"
	"github.com/chatmind-dev/chatmind/pkg/llm"
	"github.com/chatmind-dev/chatmind/pkg/store"
)

type staticDoer struct {
	body    string
	lastReq *http.Request
}

func (d *staticDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastReq = req
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(bytes.NewBufferString(d.body))}, nil
}

func newTestGenerator(t *testing.T, replyJSON string) (*Generator, *staticDoer) {
	t.Helper()
	doer := &staticDoer{body: replyJSON}
	client, err := llm.NewClient(llm.Config{Endpoint: "https://gw.example.com", Doer: doer, BaseDelay: time.Millisecond})
	require.NoError(t, err)
	gen := New(client, Config{
		Model:              "m",
		MaxTokens:          100,
		Temperature:        0.7,
		MaxContextMessages: 2,
		ContextWindowHours: 24,
	})
	return gen, doer
}

func TestGenerateReturnsParsedActionsAndContextCount(t *testing.T) {
	gen, _ := newTestGenerator(t, `{"content":"I can help create that.","model":"m","usage":{"prompt_tokens":5,"completion_tokens":5,"total_tokens":10}}`)
	now := time.Unix(1000, 0).UTC()

	candidates := []store.Record{
		{ID: "r1", Metadata: kvcodec.Metadata{"text": "earlier message", "user_id": "U1", "timestamp": float64(now.Add(-time.Hour).Unix())}},
	}

	res, err := gen.Generate(context.Background(), "please make a ticket", candidates, Caller{Channel: "C1", UserID: "U2", Style: config.StyleHelpful}, now)
	require.NoError(t, err)
	assert.Equal(t, "I can help create that.", res.Reply)
	assert.Equal(t, 1, res.ContextCount)
	assert.Equal(t, 10, res.Tokens)
	require.NotEmpty(t, res.Actions)
	assert.Equal(t, "create", res.Actions[0].Type)
}

func TestContextMessagesSkipsOlderThanWindowAndTruncates(t *testing.T) {
	gen, _ := newTestGenerator(t, `{"content":"ok","model":"m","usage":{}}`)
	now := time.Unix(100000, 0).UTC()

	candidates := []store.Record{
		{ID: "old", Metadata: kvcodec.Metadata{"text": "too old", "user_id": "U1", "timestamp": float64(now.Add(-48 * time.Hour).Unix())}},
		{ID: "r1", Metadata: kvcodec.Metadata{"text": "recent 1", "user_id": "U1", "timestamp": float64(now.Add(-1 * time.Hour).Unix())}},
		{ID: "r2", Metadata: kvcodec.Metadata{"text": "recent 2", "user_id": "U1", "timestamp": float64(now.Add(-2 * time.Hour).Unix())}},
		{ID: "r3", Metadata: kvcodec.Metadata{"text": "recent 3", "user_id": "U1", "timestamp": float64(now.Add(-3 * time.Hour).Unix())}},
	}

	msgs, count := gen.contextMessages(candidates, now)
	assert.Equal(t, 2, count) // maxContextMessages = 2
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0].Content, "recent 1")
	assert.Contains(t, msgs[1].Content, "recent 2")
}

func TestSystemMessagePinsStyleChannelAndUser(t *testing.T) {
	gen, _ := newTestGenerator(t, `{"content":"ok","model":"m","usage":{}}`)
	now := time.Unix(1000, 0).UTC()
	msg := gen.systemMessage(Caller{Channel: "C1", UserID: "U1", Style: config.StyleCasual}, now)
	assert.Contains(t, msg, "casual")
	assert.Contains(t, msg, "C1")
	assert.Contains(t, msg, "U1")
}

func TestSummariseUsesLowerTemperature(t *testing.T) {
	gen, doer := newTestGenerator(t, `{"content":"short summary","model":"m","usage":{}}`)
	out, err := gen.Summarise(context.Background(), []store.Record{
		{ID: "r1", Metadata: kvcodec.Metadata{"text": "alpha"}},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, "short summary", out)
	require.NotNil(t, doer.lastReq)
	sent, err := io.ReadAll(doer.lastReq.Body)
	require.NoError(t, err)
	assert.Contains(t, string(sent), `"temperature":0.3`) // below the generator's 0.7
}
