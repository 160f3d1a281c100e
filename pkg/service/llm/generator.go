package llm

import (
	"context"
	"strings"
	"time"

	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/domain/model/window"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

const (
	DefaultMaxOutputChars = 8000
	DefaultRetryDelay     = 2 * time.Second
	DefaultTimeout        = 60 * time.Second
)

// Generator sends a message window to a gollem client and returns the
// completion text.
type Generator struct {
	client         gollem.LLMClient
	provider       string
	maxOutputChars int
	retryDelay     time.Duration
	timeout        time.Duration
}

var _ interfaces.Generator = &Generator{}

type Option func(*Generator)

// WithProvider names the backing provider in errors and logs.
func WithProvider(provider string) Option {
	return func(g *Generator) {
		g.provider = provider
	}
}

func WithMaxOutputChars(n int) Option {
	return func(g *Generator) {
		g.maxOutputChars = n
	}
}

func WithRetryDelay(d time.Duration) Option {
	return func(g *Generator) {
		g.retryDelay = d
	}
}

// WithTimeout bounds each attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		g.timeout = d
	}
}

func New(client gollem.LLMClient, opts ...Option) *Generator {
	g := &Generator{
		client:         client,
		provider:       "unknown",
		maxOutputChars: DefaultMaxOutputChars,
		retryDelay:     DefaultRetryDelay,
		timeout:        DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Budget is the longest Generate can take: two attempts and the wait
// between them. It is zero when attempts are not bounded.
func Budget(timeout, retryDelay time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return 2*timeout + retryDelay
}

// Generate returns one completion for w. A rate limited call is retried
// once after the retry delay.
func (g *Generator) Generate(ctx context.Context, w window.Window) (string, error) {
	req, err := toRequest(w)
	if err != nil {
		return "", err
	}

	text, err := g.attempt(ctx, req)
	if err != nil && isRateLimited(err) {
		logging.From(ctx).Warn("generation rate limited, retrying once",
			"provider", g.provider,
			"delay", g.retryDelay,
			logging.ErrAttr(err))

		select {
		case <-ctx.Done():
			return "", goerr.Wrap(ctx.Err(), "canceled while waiting for rate limit retry",
				goerr.TV(errs.ProviderKey, g.provider),
				goerr.T(errs.TagGenerationUnavailable),
				goerr.T(errs.TagRateLimit))
		case <-time.After(g.retryDelay):
		}

		text, err = g.attempt(ctx, req)
		if err != nil && isRateLimited(err) {
			return "", goerr.Wrap(err, "generation rate limited after retry",
				goerr.TV(errs.ProviderKey, g.provider),
				goerr.T(errs.TagGenerationUnavailable),
				goerr.T(errs.TagRateLimit))
		}
	}
	if err != nil {
		return "", err
	}

	return logentry.Clip(text, g.maxOutputChars), nil
}

func (g *Generator) attempt(ctx context.Context, req *request) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	opts := []gollem.SessionOption{}
	if req.systemPrompt != "" {
		opts = append(opts, gollem.WithSessionSystemPrompt(req.systemPrompt))
	}
	if req.history != nil {
		opts = append(opts, gollem.WithSessionHistory(req.history))
	}

	ssn, err := g.client.NewSession(ctx, opts...)
	if err != nil {
		return "", goerr.Wrap(err, "failed to create generation session",
			goerr.TV(errs.ProviderKey, g.provider),
			goerr.T(errs.TagGenerationUnavailable))
	}

	resp, err := ssn.GenerateContent(ctx, gollem.Text(req.input))
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate content",
			goerr.TV(errs.ProviderKey, g.provider),
			goerr.T(errs.TagGenerationUnavailable))
	}
	if resp == nil {
		return "", goerr.New("generation returned no response",
			goerr.TV(errs.ProviderKey, g.provider),
			goerr.T(errs.TagGenerationMalformed))
	}

	text := strings.TrimSpace(strings.Join(resp.Texts, ""))
	if text == "" {
		return "", goerr.New("generation returned no text",
			goerr.TV(errs.ProviderKey, g.provider),
			goerr.V("texts", len(resp.Texts)),
			goerr.T(errs.TagGenerationMalformed))
	}

	logging.From(ctx).Debug("generation finished",
		"provider", g.provider,
		"chars", len(text))

	return text, nil
}

// isRateLimited recognises throttling across providers by the text of the
// error, since each SDK reports it with a different type.
func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{"429", "rate limit", "rate_limit", "ratelimit", "resource_exhausted", "resource exhausted"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
