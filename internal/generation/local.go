package generation

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// MCQDistractors is the number of wrong options per multiple-choice question.
const MCQDistractors = model.MCQOptionCount - 1

const (
	mcqMarks   = 1
	shortMarks = 3
	longMarks  = 5

	shortExpectedLength = "50-100 words"
	longExpectedLength  = "200-300 words"

	maxSentenceInQuestion = 100
	fallbackKeyword       = "the topic"
)

// LocalGenerator synthesizes questions from templates and context text.
// It never fails and is safe for concurrent use.
type LocalGenerator struct {
	tmpl *Templates

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocalGenerator builds a generator. A nil rng gets a randomly seeded
// source and nil templates use the built-in bank.
func NewLocalGenerator(rng *rand.Rand, tmpl *Templates) *LocalGenerator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if tmpl == nil {
		tmpl = DefaultTemplates()
	}
	return &LocalGenerator{tmpl: tmpl, rng: rng}
}

// Generate produces questions for p from contextOrTopics. Empty context
// falls back to phrasing around the topic names alone.
func (g *LocalGenerator) Generate(contextOrTopics string, p *model.GenerationParameters) []model.Question {
	content := contextOrTopics
	if strings.TrimSpace(content) == "" {
		content = strings.Join(p.Topics, " ")
	}

	s := synthesis{
		tmpl:      g.tmpl,
		params:    p,
		keywords:  ExtractKeywords(content, p.Topics),
		sentences: SplitSentences(content),
	}
	counts := Distribution(p.AssessmentType, p.NumberOfQuestions)
	out := make([]model.Question, 0, counts.Total())

	for i := 0; i < counts.MCQ; i++ {
		q := s.mcq(i)
		g.shuffle(&q)
		out = append(out, q)
	}
	for i := 0; i < counts.Short; i++ {
		out = append(out, s.written(i, counts.MCQ+i, model.QuestionTypeShortAnswer))
	}
	for i := 0; i < counts.Long; i++ {
		out = append(out, s.written(i, counts.MCQ+counts.Short+i, model.QuestionTypeLongAnswer))
	}

	for i := range out {
		out[i].ID = fmt.Sprintf("q_%d", i+1)
	}
	return out
}

// shuffle reorders the options and moves CorrectAnswer to follow the correct one.
// Options are distinct, so locating the correct value afterwards is unambiguous.
func (g *LocalGenerator) shuffle(q *model.Question) {
	correct := q.Options[*q.CorrectAnswer]

	g.mu.Lock()
	g.rng.Shuffle(len(q.Options), func(i, j int) {
		q.Options[i], q.Options[j] = q.Options[j], q.Options[i]
	})
	g.mu.Unlock()

	for i, o := range q.Options {
		if o == correct {
			q.CorrectAnswer = model.IntPtr(i)
			return
		}
	}
}

// synthesis holds the per-request inputs shared by every question.
type synthesis struct {
	tmpl      *Templates
	params    *model.GenerationParameters
	keywords  []string
	sentences []string
}

// keyword cycles through the keyword list.
func (s *synthesis) keyword(i int) string {
	if len(s.keywords) > 0 {
		return s.keywords[i%len(s.keywords)]
	}
	if len(s.params.Topics) > 0 {
		return s.params.Topics[0]
	}
	return fallbackKeyword
}

func (s *synthesis) topic(i int) string {
	if len(s.params.Topics) == 0 {
		return model.DefaultSubject
	}
	return s.params.Topics[i%len(s.params.Topics)]
}

// mcq alternates between asking for the concept in a sentence and asking
// to describe a keyword. The correct option is first; the caller shuffles.
func (s *synthesis) mcq(i int) model.Question {
	k := s.keyword(i)
	topic := s.topic(i)

	var text, source string
	var opts options
	if i%2 == 0 && len(s.sentences) > 0 {
		sentence := truncateRunes(s.sentences[i%len(s.sentences)], maxSentenceInQuestion)
		correct := s.conceptIn(sentence, k)
		opts = newOptions(correct)
		for j := range s.keywords {
			kw := s.keywords[(i+j)%len(s.keywords)]
			if !containsFold(sentence, kw) {
				opts.add(kw)
			}
		}
		for n := 1; !opts.full(); n++ {
			opts.add(fmt.Sprintf("Concept %d", n))
		}
		text = fill(s.tmpl.MCQ[0], correct, sentence, topic)
		source = sentence
	} else {
		tmpl := s.tmpl.MCQ[1+(i/2)%(len(s.tmpl.MCQ)-1)]
		correct := ""
		for _, sentence := range s.sentences {
			if containsFold(sentence, k) {
				correct = sentence
				break
			}
		}
		if correct == "" {
			correct = fill(s.tmpl.DefaultSentence, k, "", topic)
		}
		opts = newOptions(correct)
		for j := range s.sentences {
			sentence := s.sentences[(i+j)%len(s.sentences)]
			if !containsFold(sentence, k) {
				opts.add(sentence)
			}
		}
		for _, f := range s.tmpl.Fillers {
			opts.add(fill(f, k, "", topic))
		}
		for n := 1; !opts.full(); n++ {
			opts.add(fmt.Sprintf("Unrelated statement %d", n))
		}
		text = fill(tmpl, k, "", topic)
		source = correct
	}

	return model.Question{
		Type:          model.QuestionTypeMCQ,
		Text:          text,
		Options:       opts.values,
		CorrectAnswer: model.IntPtr(0),
		Marks:         mcqMarks,
		Difficulty:    s.params.Difficulty,
		Topic:         topic,
		SourceContent: source,
	}
}

// conceptIn picks the answer to "what is the concept in sentence": k when
// the sentence mentions it, else the first keyword the sentence mentions.
func (s *synthesis) conceptIn(sentence, k string) string {
	if containsFold(sentence, k) {
		return k
	}
	for _, kw := range s.keywords {
		if containsFold(sentence, kw) {
			return kw
		}
	}
	return k
}

// written builds a Short or Long Answer question; i indexes within the type,
// cycle indexes the keyword list across all types.
func (s *synthesis) written(i, cycle int, t model.QuestionType) model.Question {
	k := s.keyword(cycle)
	topic := s.topic(i)

	q := model.Question{
		Type:       t,
		Difficulty: s.params.Difficulty,
		Topic:      topic,
	}
	if t == model.QuestionTypeShortAnswer {
		q.Text = fill(s.tmpl.ShortAnswer[i%len(s.tmpl.ShortAnswer)], k, "", topic)
		q.Rubric = fill(s.tmpl.Rubrics.ShortAnswer, k, "", topic)
		q.ExpectedLength = shortExpectedLength
		q.Marks = shortMarks
	} else {
		q.Text = fill(s.tmpl.LongAnswer[i%len(s.tmpl.LongAnswer)], k, "", topic)
		q.Rubric = fill(s.tmpl.Rubrics.LongAnswer, k, "", topic)
		q.ExpectedLength = longExpectedLength
		q.Marks = longMarks
	}
	return q
}

// completeWritten fills a written answer's missing rubric and expected
// length from the template bank, keyed on the question's topic.
func (g *LocalGenerator) completeWritten(q *model.Question) {
	rubric, length := g.tmpl.Rubrics.LongAnswer, longExpectedLength
	switch q.Type {
	case model.QuestionTypeShortAnswer:
		rubric, length = g.tmpl.Rubrics.ShortAnswer, shortExpectedLength
	case model.QuestionTypeLongAnswer:
	default:
		return
	}

	k := q.Topic
	if k == "" {
		k = fallbackKeyword
	}
	if q.Rubric == "" {
		q.Rubric = fill(rubric, k, "", q.Topic)
	}
	if q.ExpectedLength == "" {
		q.ExpectedLength = length
	}
}

// options collects up to MCQOptionCount case-insensitively distinct values.
type options struct {
	values []string
	seen   map[string]struct{}
}

func newOptions(correct string) options {
	o := options{
		values: make([]string, 0, model.MCQOptionCount),
		seen:   make(map[string]struct{}, model.MCQOptionCount),
	}
	o.add(correct)
	return o
}

func (o *options) full() bool { return len(o.values) >= model.MCQOptionCount }

func (o *options) add(v string) {
	key := strings.ToLower(strings.TrimSpace(v))
	if o.full() || key == "" {
		return
	}
	if _, dup := o.seen[key]; dup {
		return
	}
	o.seen[key] = struct{}{}
	o.values = append(o.values, v)
}
