package test

import (
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
)

// NewGeminiClient returns a live Vertex AI client for integration tests.
func NewGeminiClient(t *testing.T) gollem.LLMClient {
	t.Helper()
	ctx := t.Context()
	vars := NewEnvVars(t, "TEST_GEMINI_PROJECT_ID", "TEST_GEMINI_LOCATION")

	llmClient, err := gemini.New(ctx, vars.Get("TEST_GEMINI_PROJECT_ID"), vars.Get("TEST_GEMINI_LOCATION"),
		gemini.WithThinkingBudget(0),
	)
	if err != nil {
		t.Fatalf("failed to create gemini client: %v", err)
	}

	return llmClient
}
