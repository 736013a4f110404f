package service

import (
	"fmt"
	"strings"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// Fixed answers returned when the pipeline stops early.
const (
	CannotProcessAnswer    = "I couldn't process your question."
	NoRelevantAnswer       = "No relevant information in the documents."
	GenerationFailedAnswer = "I couldn't generate an answer right now."
	InsufficientInfoPhrase = "I don't have enough information to answer this question."
)

const promptTemplate = `You are a helpful assistant that answers questions based on the provided context.

Context:
%s

Question: %s

Answer the question based ONLY on the given context.
If you don't have enough information, say "%s"

Answer:`

// BuildPrompt renders the generation prompt for a question and its context.
func BuildPrompt(question, context string) string {
	return fmt.Sprintf(promptTemplate, context, question, InsufficientInfoPhrase)
}

// FormatAnswer appends the provenance block to a generated answer.
func FormatAnswer(answer string, sources []domain.Source) string {
	lines := make([]string, 0, len(sources))
	for _, src := range sources {
		lines = append(lines, fmt.Sprintf("- %s (Similarity: %.4f)", src.Filename, src.Score))
	}
	return answer + "\n\nSources:\n" + strings.Join(lines, "\n")
}
