package generation

import (
	"testing"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestDistribution(t *testing.T) {
	tests := []struct {
		name string
		typ  model.AssessmentType
		n    int
		want Counts
	}{
		{"full paper of twenty", model.AssessmentTypeFullPaper, 20, Counts{MCQ: 8, Short: 7, Long: 5}},
		{"mixed of ten", model.AssessmentTypeMixed, 10, Counts{MCQ: 5, Short: 3, Long: 2}},
		{"mcqs only", model.AssessmentTypeMCQs, 5, Counts{MCQ: 5}},
		{"short only", model.AssessmentTypeShortQuestions, 4, Counts{Short: 4}},
		{"long only", model.AssessmentTypeLongQuestions, 3, Counts{Long: 3}},
		{"long share floors to zero", model.AssessmentTypeMixed, 4, Counts{MCQ: 2, Short: 2, Long: 0}},
		{"overshoot taken from short", model.AssessmentTypeFullPaper, 3, Counts{MCQ: 2, Short: 1, Long: 0}},
		{"overshoot taken from long", model.AssessmentTypeMixed, 7, Counts{MCQ: 4, Short: 3, Long: 0}},
		{"single question", model.AssessmentTypeFullPaper, 1, Counts{MCQ: 1}},
		{"single mixed question drops the rounded-up short", model.AssessmentTypeMixed, 1, Counts{MCQ: 1}},
		{"unknown type uses mixed", model.AssessmentType("quiz"), 10, Counts{MCQ: 5, Short: 3, Long: 2}},
		{"zero", model.AssessmentTypeMixed, 0, Counts{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distribution(tt.typ, tt.n))
		})
	}
}

func TestDistribution_NeverExceedsRequested(t *testing.T) {
	types := []model.AssessmentType{
		model.AssessmentTypeMCQs, model.AssessmentTypeShortQuestions, model.AssessmentTypeLongQuestions,
		model.AssessmentTypeFullPaper, model.AssessmentTypeMixed,
	}
	for _, typ := range types {
		for n := model.MinQuestions; n <= model.MaxQuestions; n++ {
			c := Distribution(typ, n)
			assert.LessOrEqual(t, c.Total(), n, "%s n=%d", typ, n)
			assert.GreaterOrEqual(t, c.Long, 0)
			assert.GreaterOrEqual(t, c.Short, 0)
		}
	}
}
