// Package ai holds the chat-completion providers the LLM judge talks to.
package ai

import (
	"context"
	"errors"
	"strings"
)

var ErrUnknownProvider = errors.New("unknown ai provider")

type Provider interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, model string, systemPrompt string, prompt string) (string, error)
}

// Registry maps provider names ("openai", "ollama") to providers.
type Registry map[string]Provider

// Get looks a provider up by case-insensitive name.
func (r Registry) Get(name string) (Provider, error) {
	if p, ok := r[strings.ToLower(strings.TrimSpace(name))]; ok && p != nil {
		return p, nil
	}
	return nil, ErrUnknownProvider
}
