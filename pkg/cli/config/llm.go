package config

import (
	"context"
	"log/slog"
	"time"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/service/llm"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/claude"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gollem/llm/openai"
	"github.com/urfave/cli/v3"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

type LLM struct {
	provider string

	// OpenAI configuration
	openaiAPIKey string `masq:"secret"`
	openaiModel  string

	// Gemini configuration
	geminiModel     string
	geminiProjectID string
	geminiLocation  string

	// Claude configuration
	claudeModel     string
	claudeProjectID string
	claudeLocation  string

	// Sampling, fixed for the lifetime of the client
	temperature      float64
	topP             float64
	maxTokens        int64
	presencePenalty  float64
	frequencyPenalty float64

	// Generation service behaviour
	maxOutputChars int64
	retryDelay     time.Duration
	timeout        time.Duration
}

func (x *LLM) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "llm-provider",
			Usage:       "Generation provider [openai|gemini|claude]",
			Category:    "LLM",
			Value:       ProviderOpenAI,
			Sources:     cli.EnvVars("ECHO_LLM_PROVIDER"),
			Destination: &x.provider,
		},
		&cli.FloatFlag{
			Name:        "llm-temperature",
			Usage:       "Sampling temperature",
			Category:    "LLM",
			Value:       0.7,
			Sources:     cli.EnvVars("ECHO_LLM_TEMPERATURE"),
			Destination: &x.temperature,
		},
		&cli.FloatFlag{
			Name:        "llm-top-p",
			Usage:       "Nucleus sampling threshold (0 keeps the provider default)",
			Category:    "LLM",
			Sources:     cli.EnvVars("ECHO_LLM_TOP_P"),
			Destination: &x.topP,
		},
		&cli.Int64Flag{
			Name:        "llm-max-tokens",
			Usage:       "Maximum completion tokens (0 keeps the provider default)",
			Category:    "LLM",
			Sources:     cli.EnvVars("ECHO_LLM_MAX_TOKENS"),
			Destination: &x.maxTokens,
		},
		&cli.FloatFlag{
			Name:        "llm-presence-penalty",
			Usage:       "Presence penalty (OpenAI only)",
			Category:    "LLM",
			Sources:     cli.EnvVars("ECHO_LLM_PRESENCE_PENALTY"),
			Destination: &x.presencePenalty,
		},
		&cli.FloatFlag{
			Name:        "llm-frequency-penalty",
			Usage:       "Frequency penalty (OpenAI only)",
			Category:    "LLM",
			Sources:     cli.EnvVars("ECHO_LLM_FREQUENCY_PENALTY"),
			Destination: &x.frequencyPenalty,
		},
		&cli.Int64Flag{
			Name:        "llm-max-output-chars",
			Usage:       "Clip completions to this many characters",
			Category:    "LLM",
			Value:       llm.DefaultMaxOutputChars,
			Sources:     cli.EnvVars("ECHO_LLM_MAX_OUTPUT_CHARS"),
			Destination: &x.maxOutputChars,
		},
		&cli.DurationFlag{
			Name:        "llm-retry-delay",
			Usage:       "Wait before the single retry of a rate limited call",
			Category:    "LLM",
			Value:       llm.DefaultRetryDelay,
			Sources:     cli.EnvVars("ECHO_LLM_RETRY_DELAY"),
			Destination: &x.retryDelay,
		},
		&cli.DurationFlag{
			Name:        "llm-timeout",
			Usage:       "Timeout of one generation call",
			Category:    "LLM",
			Value:       llm.DefaultTimeout,
			Sources:     cli.EnvVars("ECHO_LLM_TIMEOUT"),
			Destination: &x.timeout,
		},

		// OpenAI flags
		&cli.StringFlag{
			Name:        "openai-api-key",
			Usage:       "OpenAI API key",
			Category:    "OpenAI",
			Sources:     cli.EnvVars("ECHO_OPENAI_API_KEY", "OPENAI_API_KEY"),
			Destination: &x.openaiAPIKey,
		},
		&cli.StringFlag{
			Name:        "openai-model",
			Usage:       "OpenAI model name",
			Category:    "OpenAI",
			Value:       "gpt-4o",
			Sources:     cli.EnvVars("ECHO_OPENAI_MODEL"),
			Destination: &x.openaiModel,
		},

		// Gemini flags
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model",
			Category:    "Gemini",
			Value:       "gemini-2.5-flash",
			Sources:     cli.EnvVars("ECHO_GEMINI_MODEL"),
			Destination: &x.geminiModel,
		},
		&cli.StringFlag{
			Name:        "gemini-project-id",
			Usage:       "GCP Project ID for Vertex AI",
			Category:    "Gemini",
			Sources:     cli.EnvVars("ECHO_GEMINI_PROJECT_ID"),
			Destination: &x.geminiProjectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "GCP Location for Vertex AI",
			Category:    "Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("ECHO_GEMINI_LOCATION"),
			Destination: &x.geminiLocation,
		},

		// Claude flags
		&cli.StringFlag{
			Name:        "claude-model",
			Usage:       "Claude model name",
			Category:    "Claude",
			Value:       "claude-sonnet-4@20250514",
			Sources:     cli.EnvVars("ECHO_CLAUDE_MODEL"),
			Destination: &x.claudeModel,
		},
		&cli.StringFlag{
			Name:        "claude-project-id",
			Usage:       "Google Cloud Project ID for Claude Vertex AI",
			Category:    "Claude",
			Sources:     cli.EnvVars("ECHO_CLAUDE_PROJECT_ID"),
			Destination: &x.claudeProjectID,
		},
		&cli.StringFlag{
			Name:        "claude-location",
			Usage:       "Google Cloud location for Claude Vertex AI",
			Category:    "Claude",
			Value:       "us-east5",
			Sources:     cli.EnvVars("ECHO_CLAUDE_LOCATION"),
			Destination: &x.claudeLocation,
		},
	}
}

func (x LLM) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("provider", x.provider),
		slog.Float64("temperature", x.temperature),
		slog.Int64("max_output_chars", x.maxOutputChars),
		slog.Duration("timeout", x.timeout),
	}

	switch x.provider {
	case ProviderOpenAI:
		attrs = append(attrs,
			slog.String("openai_model", x.openaiModel),
			slog.Bool("openai_api_key_set", x.openaiAPIKey != ""),
		)
	case ProviderGemini:
		attrs = append(attrs,
			slog.String("gemini_model", x.geminiModel),
			slog.String("gemini_project_id", x.geminiProjectID),
			slog.String("gemini_location", x.geminiLocation),
		)
	case ProviderClaude:
		attrs = append(attrs,
			slog.String("claude_model", x.claudeModel),
			slog.String("claude_project_id", x.claudeProjectID),
			slog.String("claude_location", x.claudeLocation),
		)
	}

	return slog.GroupValue(attrs...)
}

// Configure creates the LLM client of the selected provider.
func (x *LLM) Configure(ctx context.Context) (gollem.LLMClient, error) {
	switch x.provider {
	case ProviderOpenAI:
		return x.configureOpenAI(ctx)
	case ProviderGemini:
		return x.configureGemini(ctx)
	case ProviderClaude:
		return x.configureClaude(ctx)
	default:
		return nil, goerr.New("unknown LLM provider",
			goerr.V("provider", x.provider), goerr.T(errs.TagValidation))
	}
}

// NewGenerator creates the generation service over the configured client.
func (x *LLM) NewGenerator(ctx context.Context) (*llm.Generator, error) {
	client, err := x.Configure(ctx)
	if err != nil {
		return nil, err
	}

	return llm.New(client,
		llm.WithProvider(x.provider),
		llm.WithMaxOutputChars(int(x.maxOutputChars)),
		llm.WithRetryDelay(x.retryDelay),
		llm.WithTimeout(x.timeout),
	), nil
}

// Budget is the worst case duration of one generation call.
func (x *LLM) Budget() time.Duration {
	return llm.Budget(x.timeout, x.retryDelay)
}

func (x *LLM) configureOpenAI(ctx context.Context) (gollem.LLMClient, error) {
	if x.openaiAPIKey == "" {
		return nil, goerr.New("OpenAI API key is not set", goerr.T(errs.TagValidation))
	}

	options := []openai.Option{
		openai.WithModel(x.openaiModel),
		openai.WithTemperature(float32(x.temperature)),
	}
	if x.topP > 0 {
		options = append(options, openai.WithTopP(float32(x.topP)))
	}
	if x.maxTokens > 0 {
		options = append(options, openai.WithMaxTokens(int(x.maxTokens)))
	}
	if x.presencePenalty != 0 {
		options = append(options, openai.WithPresencePenalty(float32(x.presencePenalty)))
	}
	if x.frequencyPenalty != 0 {
		options = append(options, openai.WithFrequencyPenalty(float32(x.frequencyPenalty)))
	}

	client, err := openai.New(ctx, x.openaiAPIKey, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OpenAI client", goerr.V("model", x.openaiModel))
	}
	return client, nil
}

func (x *LLM) configureGemini(ctx context.Context) (gollem.LLMClient, error) {
	if x.geminiProjectID == "" {
		return nil, goerr.New("Gemini project ID is not set", goerr.T(errs.TagValidation))
	}

	options := []gemini.Option{
		gemini.WithModel(x.geminiModel),
		gemini.WithTemperature(float32(x.temperature)),
		gemini.WithThinkingBudget(0),
	}
	if x.topP > 0 {
		options = append(options, gemini.WithTopP(float32(x.topP)))
	}
	if x.maxTokens > 0 {
		options = append(options, gemini.WithMaxTokens(int32(x.maxTokens)))
	}

	client, err := gemini.New(ctx, x.geminiProjectID, x.geminiLocation, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("projectID", x.geminiProjectID),
			goerr.V("location", x.geminiLocation))
	}
	return client, nil
}

func (x *LLM) configureClaude(ctx context.Context) (gollem.LLMClient, error) {
	if x.claudeProjectID == "" {
		return nil, goerr.New("Claude project ID is not set", goerr.T(errs.TagValidation))
	}

	options := []claude.VertexOption{
		claude.WithVertexModel(x.claudeModel),
	}

	client, err := claude.NewWithVertex(ctx, x.claudeLocation, x.claudeProjectID, options...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Claude Vertex AI client",
			goerr.V("projectID", x.claudeProjectID),
			goerr.V("location", x.claudeLocation),
			goerr.V("model", x.claudeModel))
	}
	return client, nil
}
