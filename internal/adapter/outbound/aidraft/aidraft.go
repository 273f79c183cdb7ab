// Package aidraft implements port.AIProposer against the OpenAI chat
// completions API, used by `policyproof propose` to draft a starting
// policy-text document from a corpus summary and a free-text prompt. It
// is the only package in this repository that imports go-openai; the
// core never depends on it.
package aidraft

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"
	openai "github.com/sashabaranov/go-openai"

	"github.com/policyproof/policyproof/internal/apperr"
)

const systemPrompt = `You draft sampling policies in a compact text format for a ` +
	`tail-based trace-sampling proxy. Respond with the policy document only, ` +
	`no prose, no markdown fences. Always include a fallback rule whose match ` +
	`expression is the literal "true".`

// Proposer drafts policy-text documents via the OpenAI chat completions API.
type Proposer struct {
	client *openai.Client
	model  string
}

// New builds a Proposer. model is the chat-completions model name (e.g.
// "gpt-4o-mini"); apiKey is passed through to go-openai's client config.
func New(apiKey, model string) *Proposer {
	return &Proposer{client: openai.NewClient(apiKey), model: model}
}

// Propose sends prompt as a user message alongside a fixed system
// instruction and returns the model's raw text response.
func (p *Proposer) Propose(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", &apperr.LoaderError{Source: "ai-proposer", Cause: err}
	}
	if len(resp.Choices) == 0 {
		return "", &apperr.LoaderError{Source: "ai-proposer", Cause: fmt.Errorf("empty response")}
	}
	return resp.Choices[0].Message.Content, nil
}

// Fingerprint hashes an API key with argon2id so it can be logged and
// compared (e.g. "did the configured key change between runs") without
// ever writing the key itself to disk or to a log line.
func Fingerprint(apiKey string) (string, error) {
	hash, err := argon2id.CreateHash(apiKey, argon2id.DefaultParams)
	if err != nil {
		return "", fmt.Errorf("fingerprint api key: %w", err)
	}
	return hash, nil
}

// VerifyFingerprint reports whether apiKey matches a previously computed
// Fingerprint.
func VerifyFingerprint(apiKey, fingerprint string) (bool, error) {
	return argon2id.ComparePasswordAndHash(apiKey, fingerprint)
}
