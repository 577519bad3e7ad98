// Package generator builds strict grounded prompts from retrieved or
// caller-selected context, calls the generation provider, and validates that
// the answer stayed inside the supplied context. Answers that hedge or
// deflect are normalized to the canonical refusal.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"textbook-rag/internal/models"
)

// Generator produces grounded answers coupled to their sources.
type Generator struct {
	model       llms.Model
	maxTokens   int
	temperature float64
}

// New builds a generator around a langchaingo model. Temperature is kept
// low so repeated questions stay consistent.
func New(model llms.Model, maxTokens int, temperature float64) *Generator {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &Generator{model: model, maxTokens: maxTokens, temperature: temperature}
}

// refusal is the QueryResult every ungrounded path collapses to. The empty
// source list and the canonical message always travel together.
func refusal() models.QueryResult {
	return models.QueryResult{Answer: models.RefusalMessage, Sources: []models.SourceReference{}}
}

// AnswerGlobal answers from retrieved chunks. Zero usable chunks
// short-circuits to the refusal without a provider round-trip.
func (g *Generator) AnswerGlobal(ctx context.Context, question string, chunks []models.Chunk, sources []models.SourceReference) (models.QueryResult, error) {
	if len(chunks) == 0 {
		return refusal(), nil
	}

	contextParts := make([]string, len(chunks))
	for i, chunk := range chunks {
		contextParts[i] = fmt.Sprintf("Context %d (Chapter: %s, Page: %d):\n%s",
			i+1, chunk.Chapter, chunk.PageNumber, chunk.Content)
	}
	prompt := fmt.Sprintf(models.GlobalPromptTemplate, strings.Join(contextParts, "\n\n"), question)

	raw, err := generate(ctx, g.model, prompt, g.maxTokens, g.temperature, []string{"Question:", "Context:"})
	if err != nil {
		return models.QueryResult{}, err
	}

	if isRefusal(raw) || isUngroundedFallback(raw) {
		log.Debug().Str("question", question).Msg("answer failed grounding guard")
		return refusal(), nil
	}
	return models.QueryResult{Answer: raw, Sources: sources}, nil
}

// AnswerSelectedText answers from exactly the caller-supplied text. No
// similarity search runs in this mode; empty selected text short-circuits
// to the refusal before any generation call.
func (g *Generator) AnswerSelectedText(ctx context.Context, question, selectedText string) (models.QueryResult, error) {
	if strings.TrimSpace(selectedText) == "" {
		return refusal(), nil
	}

	prompt := fmt.Sprintf(models.SelectedTextPromptTemplate, selectedText, question)
	raw, err := generate(ctx, g.model, prompt, g.maxTokens, g.temperature, []string{"Question:", "Selected Text:"})
	if err != nil {
		return models.QueryResult{}, err
	}

	if isRefusal(raw) || isUngroundedFallback(raw) {
		log.Debug().Str("question", question).Msg("selected-text answer failed grounding guard")
		return refusal(), nil
	}

	return models.QueryResult{
		Answer: raw,
		Sources: []models.SourceReference{
			{Text: models.TruncateText(selectedText, models.SourceExcerptLength)},
		},
	}, nil
}

// isRefusal reports whether the model itself declined with the canonical
// phrase (possibly paraphrased around it).
func isRefusal(answer string) bool {
	return strings.Contains(strings.ToLower(answer), models.RefusalCorePhrase)
}

// isUngroundedFallback detects hedging deflections that do not use the
// canonical phrase; surfacing those as confident answers is how partially
// hedged hallucinations slip through.
func isUngroundedFallback(answer string) bool {
	lower := strings.ToLower(answer)
	if strings.Contains(lower, models.RefusalCorePhrase) {
		return false
	}
	for _, indicator := range models.FallbackIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
