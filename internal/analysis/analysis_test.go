package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/focus/internal/llm"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/screen"
)

// --- Test fakes ---

type stubClient struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	replies []stubReply
}

type stubReply struct {
	text string
	err  error
}

func (c *stubClient) Infer(_ context.Context, prompt string, _ []screen.Image) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompts = append(c.prompts, prompt)
	r := c.replies[min(c.calls, len(c.replies))-1]
	return r.text, r.err
}

// instantTimer fires immediately and records every requested wait.
type instantTimer struct {
	waits *[]time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	*t.waits = append(*t.waits, d)
	t.c <- time.Time{}
}
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

type fixedRandom struct {
	f float64
	n int
}

func (r fixedRandom) Float64() float64 { return r.f }
func (r fixedRandom) IntN(int) int     { return r.n }

func newTestPipeline(client Client, waits *[]time.Duration, r Random) *Pipeline {
	return NewPipeline(Options{
		Client: client,
		Random: r,
		Timer: func() backoff.Timer {
			return &instantTimer{waits: waits, c: make(chan time.Time, 1)}
		},
		Logger: zerolog.Nop(),
	})
}

var oneImage = []screen.Image{{ScreenID: "scr-1", Name: "Display 1", MimeType: "image/jpeg", Data: []byte{1}}}

const goodReply = `{"isDistracted": false, "reason": "editing the report", "confidence": 0.9, "detectedApps": ["LibreOffice"], "aiMessage": "nice"}`

// --- Pipeline tests ---

func TestAnalyze_NeutralWithoutClientOrImages(t *testing.T) {
	p := NewPipeline(Options{Logger: zerolog.Nop()})
	out := p.Analyze(context.Background(), Request{Task: "write report", Images: oneImage})
	assert.Equal(t, models.ResultSourceNone, out.Result.Source)
	assert.False(t, out.Result.IsDistracted)
	assert.Equal(t, "No analysis possible", out.Result.Reason)
	assert.Nil(t, out.Result.AIMessage)

	client := &stubClient{replies: []stubReply{{text: goodReply}}}
	var waits []time.Duration
	out = newTestPipeline(client, &waits, nil).Analyze(context.Background(), Request{Task: "write report"})
	assert.Equal(t, models.ResultSourceNone, out.Result.Source)
	assert.Equal(t, 0, client.calls)
}

func TestAnalyze_FailsTwiceThenSucceeds(t *testing.T) {
	boom := errors.New("connection reset")
	client := &stubClient{replies: []stubReply{{err: boom}, {err: boom}, {text: goodReply}}}
	var waits []time.Duration

	out := newTestPipeline(client, &waits, fixedRandom{f: 0}).Analyze(context.Background(), Request{Task: "write report", Images: oneImage})

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, 3, out.Attempts)
	assert.Empty(t, out.Fallback)
	assert.NoError(t, out.Err)
	assert.Equal(t, models.ResultSourceModel, out.Result.Source)
	assert.Equal(t, "editing the report", out.Result.Reason)
	assert.InDelta(t, 0.9, out.Result.Confidence, 1e-9)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, waits)
}

func TestAnalyze_AlwaysFailsFallsBack(t *testing.T) {
	client := &stubClient{replies: []stubReply{{err: errors.New("503 service unavailable")}}}
	var waits []time.Duration

	out := newTestPipeline(client, &waits, fixedRandom{f: 0.9}).Analyze(context.Background(), Request{Task: "write report", Images: oneImage})

	assert.Equal(t, 3, client.calls)
	assert.Equal(t, FallbackUpstream, out.Fallback)
	assert.False(t, out.AuthFailure)
	assert.Error(t, out.Err)
	assert.Equal(t, models.ResultSourceHeuristic, out.Result.Source)
	assert.Equal(t, "Activity appears focused", out.Result.Reason)
	assert.Nil(t, out.Result.AIMessage)
	assert.Len(t, waits, 2)
}

func TestAnalyze_AuthFailure(t *testing.T) {
	apiErr := &llm.APIError{Provider: "gemini", StatusCode: 400, Message: "API key not valid. Please pass a valid API key."}
	client := &stubClient{replies: []stubReply{{err: apiErr}}}
	var waits []time.Duration

	out := newTestPipeline(client, &waits, fixedRandom{f: 0.9}).Analyze(context.Background(), Request{Task: "t", Images: oneImage})

	assert.True(t, out.AuthFailure)
	assert.Equal(t, FallbackUpstream, out.Fallback)
	assert.Equal(t, models.ResultSourceHeuristic, out.Result.Source)
}

func TestAnalyze_ProseAroundJSON(t *testing.T) {
	reply := "Sure! Here is my judgement:\n```json\n" +
		`{"isDistracted": true, "reason": "social media", "confidence": 0.8, "aiMessage": "focus up", "screenDescriptions": {"screen1": "a feed {with braces}"}}` +
		"\n```\nLet me know if you need more."
	client := &stubClient{replies: []stubReply{{text: reply}}}
	var waits []time.Duration

	out := newTestPipeline(client, &waits, nil).Analyze(context.Background(), Request{Task: "t", Images: oneImage})

	require.Empty(t, out.Fallback)
	assert.True(t, out.Result.IsDistracted)
	assert.Equal(t, "social media", out.Result.Reason)
	assert.Equal(t, "focus up", out.Result.Message())
	assert.Equal(t, "a feed {with braces}", out.Result.ScreenDescriptions["screen1"])
	assert.Empty(t, waits)
}

func TestAnalyze_NoJSONFallsBack(t *testing.T) {
	client := &stubClient{replies: []stubReply{{text: "I cannot see anything useful."}}}
	var waits []time.Duration

	out := newTestPipeline(client, &waits, fixedRandom{f: 0.1, n: 2}).Analyze(context.Background(), Request{Task: "t", Images: oneImage})

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, FallbackParse, out.Fallback)
	assert.ErrorIs(t, out.Err, ErrNoJSON)
	assert.True(t, out.Result.IsDistracted)
	assert.Equal(t, "Gaming activity detected", out.Result.Reason)
}

func TestAnalyze_ContextCanceledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &stubClient{replies: []stubReply{{err: errors.New("timeout")}}}
	p := NewPipeline(Options{
		Client: client,
		Random: fixedRandom{f: 0.9},
		Timer: func() backoff.Timer {
			cancel()
			return &blockingTimer{c: make(chan time.Time)}
		},
		Logger: zerolog.Nop(),
	})

	out := p.Analyze(ctx, Request{Task: "t", Images: oneImage})
	assert.Equal(t, 1, client.calls)
	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, models.ResultSourceHeuristic, out.Result.Source)
}

type blockingTimer struct{ c chan time.Time }

func (t *blockingTimer) Start(time.Duration)  {}
func (t *blockingTimer) Stop()                {}
func (t *blockingTimer) C() <-chan time.Time { return t.c }

// --- Helpers ---

func TestHeuristic(t *testing.T) {
	t.Run("distracted branch", func(t *testing.T) {
		for i, want := range heuristicReasons {
			res := Heuristic(fixedRandom{f: 0.19, n: i})
			assert.True(t, res.IsDistracted)
			assert.Equal(t, want, res.Reason)
			assert.Equal(t, models.ResultSourceHeuristic, res.Source)
		}
	})

	t.Run("focused branch", func(t *testing.T) {
		res := Heuristic(fixedRandom{f: 0.2})
		assert.False(t, res.IsDistracted)
		assert.Equal(t, "Activity appears focused", res.Reason)
	})

	t.Run("seeded source is repeatable", func(t *testing.T) {
		a, b := NewRandom(42), NewRandom(42)
		for range 10 {
			assert.Equal(t, Heuristic(a), Heuristic(b))
		}
	})
}

func TestParseResponse_Defaults(t *testing.T) {
	res, err := ParseResponse(`{"isDistracted": true, "confidence": 7, "aiMessage": "  "}`)
	require.NoError(t, err)
	assert.True(t, res.IsDistracted)
	assert.Equal(t, "Analysis completed", res.Reason)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Nil(t, res.AIMessage)

	res, err = ParseResponse(`{"reason": "reading docs"}`)
	require.NoError(t, err)
	assert.False(t, res.IsDistracted)
	assert.Equal(t, 0.5, res.Confidence)

	_, err = ParseResponse(`{"isDistracted": "yes"}`)
	assert.Error(t, err)
}

func TestIsAuthFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"gemini phrasing", errors.New("API key not valid. Please pass a valid API key."), true},
		{"invalid key", errors.New("Invalid API key provided"), true},
		{"status 401", &llm.APIError{Provider: "anthropic", StatusCode: 401, Message: "nope"}, true},
		{"status 403", &llm.APIError{Provider: "anthropic", StatusCode: 403, Message: "nope"}, true},
		{"wrapped", errors.Join(errors.New("tick"), errors.New("authentication failed")), true},
		{"rate limit", &llm.APIError{Provider: "anthropic", StatusCode: 429, Message: "slow down"}, false},
		{"network", errors.New("dial tcp: connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAuthFailure(tt.err))
		})
	}
}
