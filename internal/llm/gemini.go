// Package llm provides text-generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when the text-generation credential is absent.
var ErrMissingAPIKey = errors.New("llm: api key is required")

// GeminiOpts configures a Gemini client.
type GeminiOpts struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Gemini completes prompts with the Gemini API.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGemini creates a Gemini-backed completer. It fails fast when the API key
// is missing.
func NewGemini(ctx context.Context, opts GeminiOpts) (*Gemini, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create gemini client: %w", err)
	}
	return &Gemini{client: client, model: opts.Model, temperature: opts.Temperature}, nil
}

// Model returns the model name used for completions.
func (g *Gemini) Model() string { return g.model }

// Complete sends a single-shot prompt and returns the response text.
func (g *Gemini) Complete(ctx context.Context, system, user string) (string, error) {
	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature: &temp,
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	res, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), cfg)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}
	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("llm: empty response from %s", g.model)
	}
	return text, nil
}
