package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	genai "google.golang.org/genai"

	"askpurposely/internal/scenario"
)

const scenarioBatchPrompt = `You write content for a dating-coaching app.
Produce %d distinct dating dilemmas with thoughtful advice.
Respond with a JSON array; each element is an object with:
  "question": the dilemma, phrased from the user's point of view (at least %d characters),
  "perspective": grounded, non-judgmental advice (at least %d characters),
  "tags": up to three short topical labels.
No markdown, no wrapper object, JSON only.`

const perspectivePrompt = `You write advice for a dating-coaching app.
A user asked the following question. Respond with a single JSON object with
"question" (echo of the question), "perspective" (grounded, non-judgmental
advice of at least %d characters) and "tags" (up to three short labels).
No markdown, JSON only.

[QUESTION]
%s`

// GeminiConfig carries the tunables for the Gemini-backed generator.
type GeminiConfig struct {
	Model string
	RPS   float64
	Burst int
}

// Gemini generates scenarios through the official genai client. Requests ask
// for application/json and retry up to three times with backoff.
type Gemini struct {
	cli   *genai.Client
	model string
	rl    *bucket
}

func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{cli: cli, model: model, rl: newBucket(cfg.RPS, cfg.Burst)}, nil
}

func (g *Gemini) Close() error {
	g.rl.stop()
	return nil
}

func (g *Gemini) Scenarios(ctx context.Context, n int) ([]scenario.Raw, error) {
	if n <= 0 {
		return nil, nil
	}
	prompt := fmt.Sprintf(scenarioBatchPrompt, n, scenario.MinQuestionLen, scenario.MinPerspectiveLen)
	raw, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return decodeBatch(raw)
}

func (g *Gemini) PerspectiveFor(ctx context.Context, question string) (scenario.Raw, error) {
	prompt := fmt.Sprintf(perspectivePrompt, scenario.MinPerspectiveLen, question)
	raw, err := g.generateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return decodeSingle(raw)
}

func (g *Gemini) generateJSON(ctx context.Context, prompt string) (json.RawMessage, error) {
	log.Printf("generator: request (%s): %d bytes", g.model, len(prompt))
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if err := g.rl.acquire(ctx); err != nil {
			return nil, err
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		if err != nil {
			lastErr = err
		} else if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			lastErr = ErrBadResponse
		} else {
			return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(300*(1<<attempt)) * time.Millisecond):
		}
	}
	return nil, lastErr
}

// decodeBatch accepts either a bare JSON array or a {"scenarios": [...]}
// wrapper; models drift between the two.
func decodeBatch(raw json.RawMessage) ([]scenario.Raw, error) {
	var items []scenario.Raw
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var wrapper struct {
		Scenarios []scenario.Raw `json:"scenarios"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Scenarios != nil {
		return wrapper.Scenarios, nil
	}
	return nil, ErrBadResponse
}

func decodeSingle(raw json.RawMessage) (scenario.Raw, error) {
	var item scenario.Raw
	if err := json.Unmarshal(raw, &item); err == nil && len(item) > 0 {
		return item, nil
	}
	var items []scenario.Raw
	if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
		return items[0], nil
	}
	return nil, ErrBadResponse
}
