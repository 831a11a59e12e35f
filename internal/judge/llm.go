package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiliankoe/promptheist/internal/ai"
)

const DefaultLLMPrompt = `You judge a guessing game. Players see an image and try to guess the prompt that generated it.
Compare the guess with the secret prompt and reply with JSON only:
{"score": <integer 0-100>, "reasoning": "<one short sentence>"}`

// LLM asks a language model for a verdict through an ai.Provider.
type LLM struct {
	Provider     ai.Provider
	Model        string
	SystemPrompt string
}

func (l *LLM) Score(ctx context.Context, guess, secret string) (Verdict, error) {
	system := l.SystemPrompt
	if system == "" {
		system = DefaultLLMPrompt
	}
	prompt := fmt.Sprintf("Secret prompt: %q\nGuess: %q", secret, guess)
	text, err := l.Provider.CompleteWithSystem(ctx, l.Model, system, prompt)
	if err != nil {
		return Verdict{}, err
	}
	return parseVerdict(text)
}

// parseVerdict pulls the first JSON object out of a model reply, tolerating
// markdown code fences and chatter around it.
func parseVerdict(text string) (Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Verdict{}, fmt.Errorf("%w: no JSON in reply", ErrUnusable)
	}
	var out struct {
		Score     *float64 `json:"score"`
		Reasoning string   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrUnusable, err)
	}
	if out.Score == nil {
		return Verdict{}, fmt.Errorf("%w: missing score", ErrUnusable)
	}
	return Verdict{Score: *out.Score, Reasoning: strings.TrimSpace(out.Reasoning), XPDelta: *out.Score}, nil
}
