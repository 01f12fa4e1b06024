package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// ParseStatus tags the outcome of Parse.
type ParseStatus int

const (
	Unparseable ParseStatus = iota
	Parsed
)

// ParseResult is either Parsed with at least one question, or Unparseable with a reason
// wrapping ErrMalformedResponse. Dropped counts questions discarded as malformed.
type ParseResult struct {
	Status    ParseStatus
	Questions []model.Question
	Reason    error
	Dropped   int
}

// Column widths of assessment_questions.
const (
	maxTopicRunes          = 255
	maxExpectedLengthRunes = 100
)

var (
	codeFence     = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	questionStart = regexp.MustCompile(`(?i)^(\d+[.)]|Q\d*[.):]|Question\s*\d*[.):])\s*`)
	optionStart   = regexp.MustCompile(`^([A-Da-d][.)])\s*`)
	answerLine    = regexp.MustCompile(`(?i)^(?:correct\s+)?answer\s*[:.\-]?\s*\(?([A-Da-d])\b`)
)

// Parse converts raw model output into at most n questions of the canonical
// shape. JSON is tried first, then line-oriented heuristics. Questions that
// break the item rules are discarded; when none remain the output is
// Unparseable. Output is truncated to n but never padded.
func Parse(raw string, t model.AssessmentType, n int) ParseResult {
	text := strings.TrimSpace(raw)
	if text == "" {
		return unparseable("empty output")
	}

	if qs, ok := parseJSON(text, t); ok {
		if len(qs) == 0 {
			return unparseable("json contained no questions")
		}
		return parsed(qs, n)
	}

	qs := parseLines(text, t)
	if len(qs) == 0 {
		return unparseable("no enumerated questions found")
	}
	return parsed(qs, n)
}

func parsed(qs []model.Question, n int) ParseResult {
	kept := make([]model.Question, 0, len(qs))
	for _, q := range qs {
		if q, ok := conform(q); ok {
			kept = append(kept, q)
		}
	}
	if len(kept) == 0 {
		return unparseable(fmt.Sprintf("none of %d questions were well-formed", len(qs)))
	}
	dropped := len(qs) - len(kept)

	if n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	for i := range kept {
		kept[i].ID = fmt.Sprintf("q_%d", i+1)
	}
	return ParseResult{Status: Parsed, Questions: kept, Dropped: dropped}
}

// conform enforces the per-type item shape. An MCQ needs exactly
// MCQOptionCount non-empty, pairwise distinct options and an in-range answer.
// Written answers carry no options and MCQs carry no rubric.
func conform(q model.Question) (model.Question, bool) {
	if q.Type != model.QuestionTypeMCQ {
		q.Options, q.CorrectAnswer = nil, nil
		return q, true
	}
	q.Rubric, q.ExpectedLength = "", ""

	if len(q.Options) != model.MCQOptionCount || q.CorrectAnswer == nil {
		return q, false
	}
	if a := *q.CorrectAnswer; a < 0 || a >= len(q.Options) {
		return q, false
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, o := range q.Options {
		if o == "" {
			return q, false
		}
		if _, dup := seen[o]; dup {
			return q, false
		}
		seen[o] = struct{}{}
	}
	return q, true
}

func unparseable(reason string) ParseResult {
	return ParseResult{Status: Unparseable, Reason: fmt.Errorf("%w: %s", ErrMalformedResponse, reason)}
}

// ─── Tier 1: JSON ──────────────────────────────────────────────────

type jsonQuestion struct {
	Type           string            `json:"type"`
	Question       string            `json:"question"`
	Text           string            `json:"text"`
	Options        []json.RawMessage `json:"options"`
	CorrectAnswer  json.RawMessage   `json:"correctAnswer"`
	Answer         json.RawMessage   `json:"answer"`
	Marks          json.RawMessage   `json:"marks"`
	Difficulty     string            `json:"difficulty"`
	Topic          string            `json:"topic"`
	Rubric         string            `json:"rubric"`
	ExpectedLength string            `json:"expectedLength"`
}

// parseJSON reports ok when text is a JSON array of questions or an object
// with a questions array, optionally inside a code fence or surrounding prose.
func parseJSON(text string, t model.AssessmentType) ([]model.Question, bool) {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	items, ok := decodeQuestions([]byte(text))
	if !ok {
		items, ok = decodeQuestions(outermostJSON(text))
	}
	if !ok {
		return nil, false
	}

	out := make([]model.Question, 0, len(items))
	for _, item := range items {
		if q, ok := item.toQuestion(t); ok {
			out = append(out, q)
		}
	}
	return out, true
}

func decodeQuestions(data []byte) ([]jsonQuestion, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false
	}

	if data[0] == '[' {
		var list []jsonQuestion
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, false
		}
		return list, true
	}

	var wrapper struct {
		Questions *[]jsonQuestion `json:"questions"`
	}
	if err := json.Unmarshal(data, &wrapper); err != nil || wrapper.Questions == nil {
		return nil, false
	}
	return *wrapper.Questions, true
}

// outermostJSON slices from the first opening bracket to the last matching closer.
func outermostJSON(text string) []byte {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return nil
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return nil
	}
	return []byte(text[start : end+1])
}

func (j jsonQuestion) toQuestion(t model.AssessmentType) (model.Question, bool) {
	text := strings.TrimSpace(j.Question)
	if text == "" {
		text = strings.TrimSpace(j.Text)
	}
	if text == "" {
		return model.Question{}, false
	}

	opts := make([]string, 0, len(j.Options))
	for _, raw := range j.Options {
		if o := optionText(raw); o != "" {
			opts = append(opts, o)
		}
	}

	q := model.Question{
		Type:           questionType(j.Type, len(opts), t),
		Text:           text,
		Difficulty:     difficultyOf(j.Difficulty),
		Topic:          truncateRunes(strings.TrimSpace(j.Topic), maxTopicRunes),
		Rubric:         strings.TrimSpace(j.Rubric),
		ExpectedLength: truncateRunes(strings.TrimSpace(j.ExpectedLength), maxExpectedLengthRunes),
		Marks:          number(j.Marks),
	}
	if q.Marks <= 0 {
		q.Marks = defaultMarks(q.Type)
	}

	if q.Type == model.QuestionTypeMCQ {
		q.Options = opts
		answer := j.CorrectAnswer
		if len(answer) == 0 {
			answer = j.Answer
		}
		q.CorrectAnswer = answerIndex(answer, opts)
	}
	return q, true
}

// difficultyOf keeps a per-question difficulty only when it names a known
// level; anything else is left for the caller's default.
func difficultyOf(raw string) model.Difficulty {
	raw = strings.TrimSpace(raw)
	for _, d := range []model.Difficulty{model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard} {
		if strings.EqualFold(raw, string(d)) {
			return d
		}
	}
	return ""
}

func optionText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(optionStart.ReplaceAllString(strings.TrimSpace(s), ""))
	}
	var obj struct {
		Text  string `json:"text"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Text != "" {
			return strings.TrimSpace(obj.Text)
		}
		return strings.TrimSpace(obj.Value)
	}
	return ""
}

// answerIndex accepts an index, a numeric string, an option letter, or the option text.
func answerIndex(raw json.RawMessage, opts []string) *int {
	if len(raw) == 0 || len(opts) == 0 {
		return nil
	}
	valid := func(i int) *int {
		if i >= 0 && i < len(opts) {
			return model.IntPtr(i)
		}
		return nil
	}

	var i int
	if err := json.Unmarshal(raw, &i); err == nil {
		return valid(i)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.Atoi(s); err == nil {
		return valid(i)
	}
	if idx, ok := letterIndex(s); ok {
		return valid(idx)
	}
	for i, o := range opts {
		if strings.EqualFold(o, s) {
			return model.IntPtr(i)
		}
	}
	return nil
}

func letterIndex(s string) (int, bool) {
	s = strings.TrimRight(s, ".)")
	if len(s) != 1 {
		return 0, false
	}
	c := s[0] | 0x20
	if c < 'a' || c > 'd' {
		return 0, false
	}
	return int(c - 'a'), true
}

func number(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		f, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	return f
}

func questionType(raw string, optionCount int, t model.AssessmentType) model.QuestionType {
	s := strings.ToLower(raw)
	switch {
	case s == "mcq" || strings.Contains(s, "multiple") || strings.Contains(s, "choice"):
		return model.QuestionTypeMCQ
	case strings.Contains(s, "short"):
		return model.QuestionTypeShortAnswer
	case strings.Contains(s, "long") || strings.Contains(s, "essay"):
		return model.QuestionTypeLongAnswer
	case optionCount > 1:
		return model.QuestionTypeMCQ
	}
	return typeFor(t)
}

// ─── Tier 2: line heuristics ───────────────────────────────────────

func parseLines(text string, t model.AssessmentType) []model.Question {
	qType := typeFor(t)
	var out []model.Question
	var cur *model.Question

	flush := func() {
		if cur != nil && cur.Text != "" {
			out = append(out, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := questionStart.FindString(line); m != "" {
			flush()
			cur = &model.Question{
				Type:  qType,
				Text:  strings.TrimSpace(line[len(m):]),
				Marks: defaultMarks(qType),
			}
			continue
		}
		if cur == nil {
			continue
		}

		if qType == model.QuestionTypeMCQ {
			if m := optionStart.FindString(line); m != "" {
				cur.Options = append(cur.Options, strings.TrimSpace(line[len(m):]))
				continue
			}
			if m := answerLine.FindStringSubmatch(line); m != nil {
				if idx, ok := letterIndex(m[1]); ok && idx < len(cur.Options) {
					cur.CorrectAnswer = model.IntPtr(idx)
				}
				continue
			}
		}
		// A bare enumerator puts the question text on the following line.
		if cur.Text == "" {
			cur.Text = line
		}
	}
	flush()
	return out
}

func typeFor(t model.AssessmentType) model.QuestionType {
	switch t {
	case model.AssessmentTypeMCQs:
		return model.QuestionTypeMCQ
	case model.AssessmentTypeShortQuestions:
		return model.QuestionTypeShortAnswer
	default:
		return model.QuestionTypeLongAnswer
	}
}

func defaultMarks(t model.QuestionType) float64 {
	switch t {
	case model.QuestionTypeMCQ:
		return mcqMarks
	case model.QuestionTypeShortAnswer:
		return shortMarks
	default:
		return longMarks
	}
}
