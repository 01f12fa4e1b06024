package model

// QuestionType is the kind of assessment item.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "MCQ"
	QuestionTypeShortAnswer QuestionType = "Short Answer"
	QuestionTypeLongAnswer  QuestionType = "Long Answer"
)

// MCQOptionCount is the number of options every multiple-choice question carries.
const MCQOptionCount = 4

// Question is a single assessment item. Options and CorrectAnswer are set
// only for MCQ; Rubric and ExpectedLength only for written answers.
type Question struct {
	ID             string       `json:"id"`
	Type           QuestionType `json:"type" binding:"required,oneof=MCQ 'Short Answer' 'Long Answer'"`
	Text           string       `json:"question" binding:"required"`
	Options        []string     `json:"options,omitempty"`
	CorrectAnswer  *int         `json:"correctAnswer,omitempty"`
	Marks          float64      `json:"marks" binding:"omitempty,gt=0"`
	Difficulty     Difficulty   `json:"difficulty,omitempty"`
	Topic          string       `json:"topic,omitempty"`
	Rubric         string       `json:"rubric,omitempty"`
	ExpectedLength string       `json:"expectedLength,omitempty"`
	SourceContent  string       `json:"sourceContent,omitempty"`
}

// MarksOrDefault returns the question's marks, counting a missing value as 1.
func (q Question) MarksOrDefault() float64 {
	if q.Marks <= 0 {
		return 1
	}
	return q.Marks
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }
