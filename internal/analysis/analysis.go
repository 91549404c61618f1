// Package analysis turns screen images and task context into a focus verdict,
// retrying transient model failures and falling back to a heuristic.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/joescharf/focus/internal/metrics"
	"github.com/joescharf/focus/internal/models"
	"github.com/joescharf/focus/internal/screen"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 2 * time.Second
)

// Fallback reasons reported in Outcome.Fallback.
const (
	FallbackParse    = "parse"
	FallbackUpstream = "upstream"
)

// Client is a multimodal model that answers a prompt about a set of images.
type Client interface {
	Infer(ctx context.Context, prompt string, images []screen.Image) (string, error)
}

// Request is everything one analysis needs.
type Request struct {
	SessionID       string
	Task            string
	PersonalContext string
	FeedbackContext string
	Images          []screen.Image
}

// Outcome is the result of Analyze. Result is always well formed.
type Outcome struct {
	Result      models.AnalysisResult
	Attempts    int
	Fallback    string
	AuthFailure bool
	Raw         string
	Err         error
}

// Options configures a Pipeline.
type Options struct {
	Client         Client
	MaxAttempts    int
	InitialBackoff time.Duration
	Random         Random
	// Timer builds the wait timer for each Analyze call. Nil uses real time.
	Timer  func() backoff.Timer
	Logger zerolog.Logger
}

// Pipeline runs the model call with retry and the heuristic fallback.
type Pipeline struct {
	client         Client
	maxAttempts    int
	initialBackoff time.Duration
	random         Random
	timer          func() backoff.Timer
	logger         zerolog.Logger
}

// NewPipeline creates a Pipeline. A nil Client makes every call neutral.
func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		client:         opts.Client,
		maxAttempts:    opts.MaxAttempts,
		initialBackoff: opts.InitialBackoff,
		random:         opts.Random,
		timer:          opts.Timer,
		logger:         opts.Logger.With().Str("component", "analysis").Logger(),
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultMaxAttempts
	}
	if p.initialBackoff <= 0 {
		p.initialBackoff = DefaultInitialBackoff
	}
	if p.random == nil {
		p.random = NewRandom(uint64(time.Now().UnixNano()))
	}
	return p
}

// Configured reports whether a model client is set.
func (p *Pipeline) Configured() bool { return p.client != nil }

// Neutral is the result used when no analysis can be made.
func Neutral() models.AnalysisResult {
	return models.AnalysisResult{
		Reason: "No analysis possible",
		Source: models.ResultSourceNone,
	}
}

// Analyze never fails: upstream and parse errors are recorded in the Outcome
// and a heuristic result is returned in their place.
func (p *Pipeline) Analyze(ctx context.Context, req Request) Outcome {
	if p.client == nil || len(req.Images) == 0 {
		return Outcome{Result: Neutral()}
	}

	log := p.logger.With().Str("session_id", req.SessionID).Logger()
	prompt := BuildPrompt(req)

	var out Outcome
	var raw string
	op := func() error {
		out.Attempts++
		text, err := p.client.Infer(ctx, prompt, req.Images)
		if err != nil {
			metrics.AnalysisAttempts.WithLabelValues("error").Inc()
			return err
		}
		metrics.AnalysisAttempts.WithLabelValues("ok").Inc()
		raw = text
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("attempt", out.Attempts).Dur("wait", wait).Msg("analysis attempt failed, retrying")
	}

	err := backoff.RetryNotifyWithTimer(op, p.backoff(ctx), notify, p.newTimer())
	if err != nil {
		out.Err = err
		out.AuthFailure = IsAuthFailure(err)
		return p.fallback(log, out, FallbackUpstream)
	}

	out.Raw = raw
	res, err := ParseResponse(raw)
	if err != nil {
		out.Err = err
		return p.fallback(log, out, FallbackParse)
	}
	out.Result = res
	return out
}

func (p *Pipeline) fallback(log zerolog.Logger, out Outcome, reason string) Outcome {
	metrics.AnalysisFallbacks.WithLabelValues(reason).Inc()
	ev := log.Warn().Err(out.Err).Str("fallback", reason).Int("attempts", out.Attempts)
	if errors.Is(out.Err, ErrNoJSON) {
		ev = ev.Int("raw_len", len(out.Raw))
	}
	ev.Msg("using heuristic analysis")

	out.Fallback = reason
	out.Result = Heuristic(p.random)
	return out
}

func (p *Pipeline) backoff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.initialBackoff
	eb.Multiplier = 2
	eb.RandomizationFactor = 0
	eb.MaxInterval = p.initialBackoff << p.maxAttempts
	eb.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.maxAttempts-1)), ctx)
}

func (p *Pipeline) newTimer() backoff.Timer {
	if p.timer == nil {
		return nil
	}
	return p.timer()
}
