package oracle

import (
	"fmt"
	"strings"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

const systemPrompt = `You are the referee of a story deduction game. The player knows only the premise of a hidden story and asks yes/no questions to uncover its facts. You know the full list of still-hidden facts ("phrases"). Classify the player's question.

Answer with a single JSON object and nothing else:
{"status": "correct_specific" | "correct_general" | "incorrect" | "irrelevant", "phraseId": "<id>", "explanation": "<one short sentence>"}

Rules:
- "correct_specific": the question asserts something true that matches exactly one listed phrase. Set phraseId to that phrase's id, copied verbatim from the list.
- "correct_general": the question asserts something true about the story, but no single listed phrase fully captures it. Omit phraseId.
- "incorrect": the question asserts something false about the story. Omit phraseId.
- "irrelevant": the question is not a yes/no assertion about the story, or has nothing to do with it. Omit phraseId.
- Never invent phrase ids. Never restate hidden phrase text in the explanation unless status is "correct_specific".`

func buildUserPrompt(question, storyContext string, candidates []domain.Phrase) string {
	var sb strings.Builder
	sb.WriteString("Story premise:\n")
	sb.WriteString(storyContext)
	sb.WriteString("\n\nHidden phrases still in play:\n")
	for _, p := range candidates {
		fmt.Fprintf(&sb, "- id=%s: %s\n", p.ID, p.Text)
	}
	sb.WriteString("\nPlayer question:\n")
	sb.WriteString(question)
	return sb.String()
}
