package generation

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// maxPromptContent bounds how much retrieved context is sent to a remote model.
const maxPromptContent = 3000

// SystemPrompt builds the instructions shared by every remote backend.
func SystemPrompt(p *model.GenerationParameters) string {
	c := Distribution(p.AssessmentType, p.NumberOfQuestions)

	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert educator creating assessment questions. Generate high-quality %s questions based on the provided curriculum content.\n\n", p.AssessmentType)
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Create exactly %d questions\n", p.NumberOfQuestions)
	fmt.Fprintf(&b, "- Question mix: %d MCQ, %d Short Answer, %d Long Answer\n", c.MCQ, c.Short, c.Long)
	fmt.Fprintf(&b, "- Difficulty level: %s\n", p.Difficulty)
	b.WriteString("- For MCQs: provide 4 distinct options with one correct answer, and give its 0-based index as correctAnswer\n")
	b.WriteString("- Questions should test understanding, not just memorization\n")
	b.WriteString(`- Return questions in JSON format with structure: {"questions": [{"type": "MCQ/Short Answer/Long Answer", "question": "...", "options": ["A", "B", "C", "D"] (for MCQ), "correctAnswer": 0 (for MCQ), "marks": number, "topic": "..."}]}`)
	return b.String()
}

// UserPrompt builds the request carrying the retrieved curriculum content.
func UserPrompt(content string, p *model.GenerationParameters) string {
	return fmt.Sprintf(
		"Based on the following curriculum content about %s, generate %d %s questions at %s difficulty level.\n\nCurriculum Content:\n%s\n\nGenerate the questions now:",
		strings.Join(p.Topics, ", "), p.NumberOfQuestions, p.AssessmentType, p.Difficulty,
		truncateRunes(content, maxPromptContent),
	)
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
