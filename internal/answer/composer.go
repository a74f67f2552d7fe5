// Package answer turns retrieved chunks into a grounded answer with
// citations pointing back into the corpus.
package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/raglinehq/ragline/internal/llm"
	"github.com/raglinehq/ragline/internal/observability"
	"github.com/raglinehq/ragline/internal/retrieve"
	"github.com/raglinehq/ragline/internal/store"
)

// Sentinel is the exact phrase the model must return when the context does
// not contain the answer. Clients match on it verbatim.
const Sentinel = "Not in the context."

// Answer is the structured result returned to clients.
type Answer struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Composer retrieves context and asks the provider for a grounded answer.
type Composer struct {
	retriever *retrieve.Retriever
	provider  llm.Provider
	log       *slog.Logger
}

// New creates a Composer.
func New(r *retrieve.Retriever, p llm.Provider, log *slog.Logger) *Composer {
	if log == nil {
		log = slog.Default()
	}
	return &Composer{retriever: r, provider: p, log: log}
}

// Ask retrieves the k nearest chunks for the question and composes a grounded
// answer. The completion runs at temperature zero so identical inputs yield
// identical answers.
func (c *Composer) Ask(ctx context.Context, question string, k int) (*Answer, error) {
	hits, err := c.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	return c.Compose(ctx, question, hits)
}

// Compose builds the grounding prompt from hits and parses the model output.
func (c *Composer) Compose(ctx context.Context, question string, hits []store.Hit) (*Answer, error) {
	ctx, span := observability.StartAnswerSpan(ctx, c.provider.Name())
	defer span.End()

	prompt, tags := buildPrompt(question, hits)

	resp, err := c.provider.Complete(ctx, llm.UserPrompt(prompt), llm.Deterministic())
	if err != nil {
		observability.RecordError(span, err)
		return nil, fmt.Errorf("answer: complete: %w", err)
	}

	ans := parse(resp.Content, tags)
	span.SetAttributes(
		attribute.Int("ragline.context_chunks", len(hits)),
		attribute.Int("ragline.citations", len(ans.Citations)),
	)
	c.log.Debug("composed answer",
		"chunks", len(hits), "citations", len(ans.Citations),
		"grounded", ans.Answer != Sentinel)
	return ans, nil
}

// buildPrompt renders the tagged context blocks and the instruction text.
// Every block carries a [doc_id:chunk_no] tag; the same tags form the
// fallback citation list.
func buildPrompt(question string, hits []store.Hit) (string, []string) {
	blocks := make([]string, 0, len(hits))
	tags := make([]string, 0, len(hits))
	for _, h := range hits {
		tag := h.Tag()
		tags = append(tags, tag)
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", tag, h.Content))
	}

	var b strings.Builder
	b.WriteString("Answer using ONLY the provided context. If the answer is not in the context, ")
	b.WriteString("reply exactly: '" + Sentinel + "'\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nQuestion: " + question + "\n\n")
	b.WriteString("Return a compact JSON object with keys:\n")
	b.WriteString("  \"answer\": string,\n")
	b.WriteString("  \"citations\": array of strings like \"doc_id:chunk_no\"\n")
	b.WriteString("Do not include any text before or after the JSON.")
	return b.String(), tags
}

// parse interprets raw model output. Well-formed JSON wins; citations the
// model invented are dropped, and an empty citation list falls back to the
// context tags. Anything unparseable becomes a plain-text answer citing the
// whole context.
func parse(raw string, tags []string) *Answer {
	text := llm.StripCodeFence(llm.StripThinkingTags(raw))

	var ans Answer
	if err := json.Unmarshal([]byte(text), &ans); err != nil || ans.Answer == "" {
		return &Answer{Answer: text, Citations: append([]string(nil), tags...)}
	}

	ans.Citations = filterKnown(ans.Citations, tags)
	if len(ans.Citations) == 0 {
		ans.Citations = append([]string(nil), tags...)
	}
	return &ans
}

// filterKnown keeps only citations that name a supplied context block,
// preserving order and removing duplicates.
func filterKnown(citations, tags []string) []string {
	known := make(map[string]bool, len(tags))
	for _, t := range tags {
		known[t] = true
	}
	var kept []string
	seen := make(map[string]bool, len(citations))
	for _, c := range citations {
		c = strings.TrimSpace(c)
		if known[c] && !seen[c] {
			kept = append(kept, c)
			seen[c] = true
		}
	}
	return kept
}
