// Package answer builds the document question prompt and turns every model failure
// into a fixed apology, so callers always get text back.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"doc-chat/internal/llm"
)

// Fallback is returned in place of a reply whenever the model call fails.
// It is stored in the conversation like any other answer.
const Fallback = "I'm sorry, but I ran into an error while processing your request. Please try again."

// promptTemplate answers from the document only. The PDF text and the question
// are inserted as-is, without delimiters or escaping, so a document or question
// can carry instructions of its own.
const promptTemplate = `You are an AI assistant that helps users understand PDF documents.
Answer the question using only the content of the PDF provided below. If the content does not contain the answer, say so.
PDF content: %s
Question: %s
`

// BuildPrompt returns the exact prompt sent for a question about a document.
func BuildPrompt(question, content string) string {
	return fmt.Sprintf(promptTemplate, content, question)
}

// Generator answers questions about a document through an LLM client.
type Generator struct {
	client  llm.Client
	log     *slog.Logger
	timeout time.Duration
}

// NewGenerator wraps client. A zero timeout leaves the call bounded only by ctx.
func NewGenerator(client llm.Client, log *slog.Logger, timeout time.Duration) *Generator {
	return &Generator{client: client, log: log, timeout: timeout}
}

// Answer returns the model's reply unmodified, or Fallback if the call fails for any reason.
func (g *Generator) Answer(ctx context.Context, question, content string) string {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	start := time.Now()
	reply, err := g.client.Generate(ctx, BuildPrompt(question, content))
	if err != nil {
		g.log.Error("answer generation failed",
			"err", err,
			"question_chars", len(question),
			"context_chars", len(content),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return Fallback
	}
	g.log.Debug("answer generated", "reply_chars", len(reply), "duration_ms", time.Since(start).Milliseconds())
	return reply
}
