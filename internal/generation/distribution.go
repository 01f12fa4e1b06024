package generation

import "github.com/stemsi/exstem-assessment/internal/model"

// Counts is the number of questions of each type in an assessment.
type Counts struct {
	MCQ   int
	Short int
	Long  int
}

func (c Counts) Total() int { return c.MCQ + c.Short + c.Long }

// shares in percent: MCQ, Short, Long.
var shares = map[model.AssessmentType][3]int{
	model.AssessmentTypeMCQs:           {100, 0, 0},
	model.AssessmentTypeShortQuestions: {0, 100, 0},
	model.AssessmentTypeLongQuestions:  {0, 0, 100},
	model.AssessmentTypeFullPaper:      {40, 35, 25},
	model.AssessmentTypeMixed:          {50, 30, 20},
}

// Distribution splits n questions across types. MCQ and Short shares are
// rounded up and Long is rounded down. Unlike the plain ceil/ceil/floor
// split, the total is capped at n: MCQ keeps its share, Short is cut to what
// remains, then Long. For mixed with n=1 that gives 1/0/0 rather than 1/1/0.
// Unknown types use the mixed split.
func Distribution(t model.AssessmentType, n int) Counts {
	if n <= 0 {
		return Counts{}
	}
	s, ok := shares[t]
	if !ok {
		s = shares[model.AssessmentTypeMixed]
	}

	c := Counts{
		MCQ:   ceilPercent(n, s[0]),
		Short: ceilPercent(n, s[1]),
		Long:  n * s[2] / 100,
	}
	if c.MCQ > n {
		c.MCQ = n
	}
	if c.MCQ+c.Short > n {
		c.Short = n - c.MCQ
	}
	if rest := n - c.MCQ - c.Short; c.Long > rest {
		c.Long = rest
	}
	return c
}

func ceilPercent(n, pct int) int {
	return (n*pct + 99) / 100
}
