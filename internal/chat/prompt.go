package chat

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mchatly/chat-engine/internal/knowledge"
)

// Last N turns of history carried into the prompt; oldest dropped first.
const maxHistoryTurns = 10

var (
	qaPattern     = regexp.MustCompile(`(?is)(?:Q:|Question:)\s*.*?(?:A:|Answer:)\s*(.*)`)
	answerLabel   = regexp.MustCompile(`(?i)^\s*(?:A:|Answer:)\s*`)
	questionLabel = regexp.MustCompile(`(?i)^\s*(?:Q:|Question:)\s*`)
)

// NormalizeFAQAnswer strips "Q: ... A: ..." scaffolding from a stored FAQ
// answer so the generator does not echo the labels back at the visitor.
func NormalizeFAQAnswer(text string) string {
	answer := text
	if m := qaPattern.FindStringSubmatch(text); m != nil {
		answer = m[1]
	}
	answer = answerLabel.ReplaceAllString(answer, "")
	answer = questionLabel.ReplaceAllString(answer, "")
	return strings.TrimSpace(answer)
}

// ComposePrompt assembles the single generation prompt. Pure: no side
// effects, fully determined by its inputs.
func ComposePrompt(instructions string, bestFAQ *knowledge.Candidate, snippets []string, history []Message, query string) string {
	var b strings.Builder

	b.WriteString("You are an AI chatbot assistant for a business. ")
	b.WriteString("Your behavior, tone, and rules are defined by the following instructions from the business owner (between triple dashes):\n")
	b.WriteString("---\n")
	b.WriteString(strings.TrimSpace(instructions))
	b.WriteString("\n---\n")

	if bestFAQ != nil && bestFAQ.Score >= knowledge.FAQDirectThreshold {
		b.WriteString("\nThe user's question matches the following FAQ. Use this FAQ answer to help craft a natural, helpful response.\n")
		b.WriteString("FAQ Question: " + bestFAQ.Question + "\n")
		b.WriteString("FAQ Answer: " + NormalizeFAQAnswer(bestFAQ.Text) + "\n")
	}

	if len(snippets) > 0 {
		b.WriteString("\nHere is some context from the knowledge base and FAQs:\n")
		for i, s := range snippets {
			b.WriteString(fmt.Sprintf("Context %d: %s\n", i+1, s))
		}
	}

	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range history {
			role := "Assistant"
			if m.Sender == SenderVisitor {
				role = "User"
			}
			b.WriteString(role + ": " + m.Text + "\n")
		}
	}

	b.WriteString("\nUser: " + query + "\nAssistant:")
	return b.String()
}
