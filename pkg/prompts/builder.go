// Package prompts renders the text sent to the language model. Building is a
// deterministic concatenation: identical inputs always produce byte-identical
// prompts, which keeps cached answers comparable across requests.
package prompts

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/finsight/analytics-engine/pkg/models"
)

// historyWindow caps rendered conversation context at 3 question/answer pairs.
const historyWindow = 6

// Builder assembles analytical and conversational prompts.
type Builder struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{
		logger: logger.Named("prompts"),
		now:    time.Now,
	}
}

// Build produces the full analytical prompt: base instructions, schema ranked
// by relevance to the question, recent conversation turns, date context, and
// the response format contract, in that order.
func (b *Builder) Build(question string, snapshot *models.SchemaSnapshot, history []models.ConversationTurn) string {
	var sb strings.Builder

	sb.WriteString(baseInstructions)
	sb.WriteString("\n\n")

	ranked := rankTables(question, snapshot.Tables)
	b.logger.Debug("schema ranked for prompt",
		zap.Int("total_tables", len(snapshot.Tables)),
		zap.Int("selected_tables", len(ranked)))

	sb.WriteString("AVAILABLE SCHEMA:\n")
	sb.WriteString(renderSchema(ranked))
	sb.WriteString("\n")

	if len(history) > 0 {
		sb.WriteString("\nCONVERSATION HISTORY:\n")
		sb.WriteString(renderHistory(history))
	}

	sb.WriteString("\n")
	sb.WriteString(b.dateContext())
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("CURRENT QUESTION: %q\n\n", question))
	sb.WriteString(`INSTRUCTIONS:
- Use the conversation history above to understand context and maintain consistency
- When the user refers to "this", "that", "it", or "them", look at the previous questions and data
- Maintain the same time periods and filters unless explicitly asked to change them
- Generate SQL that answers the current question in the context of the conversation

`)
	sb.WriteString(formatContract)

	return sb.String()
}

// BuildGreeting produces the prompt for a casual greeting. No schema, no SQL.
func (b *Builder) BuildGreeting(question string) string {
	return fmt.Sprintf(`The user said: %q

This is a casual greeting. Provide a friendly response that:
1. Acknowledges their greeting
2. Explains that this tool answers analytical questions about financial data
3. Suggests example questions
4. Invites a specific question`, question)
}

// renderHistory renders the last historyWindow turns as "Role: content" lines,
// oldest first.
func renderHistory(history []models.ConversationTurn) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var sb strings.Builder
	for _, turn := range history {
		role := "User"
		if turn.Role == models.ChatRoleAssistant {
			role = "Assistant"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n\n", role, turn.Content))
	}
	return sb.String()
}

func (b *Builder) dateContext() string {
	now := b.now()
	year := now.Year()
	return fmt.Sprintf(`CURRENT DATE CONTEXT:
- Today's date: %s
- Current year: %d
- Default assumption: use current year (%d) data unless specified otherwise
- For "recent performance", "current status", "how are we doing": use %d
`, now.Format("2006-01-02"), year, year, year)
}
