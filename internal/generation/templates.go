package generation

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Templates is the phrasing bank used by LocalGenerator.
type Templates struct {
	MCQ         []string `yaml:"mcq"`
	ShortAnswer []string `yaml:"short_answer"`
	LongAnswer  []string `yaml:"long_answer"`
	Rubrics     struct {
		ShortAnswer string `yaml:"short_answer"`
		LongAnswer  string `yaml:"long_answer"`
	} `yaml:"rubrics"`
	DefaultSentence string   `yaml:"default_sentence"`
	Fillers         []string `yaml:"fillers"`
}

// ParseTemplates decodes and checks a YAML template bank.
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// DefaultTemplates returns the built-in template bank.
func DefaultTemplates() *Templates {
	t, err := ParseTemplates(defaultTemplates)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Templates) validate() error {
	switch {
	case len(t.MCQ) < 2:
		return errors.New("templates: mcq needs a sentence template and at least one keyword template")
	case len(t.ShortAnswer) == 0:
		return errors.New("templates: short_answer is empty")
	case len(t.LongAnswer) == 0:
		return errors.New("templates: long_answer is empty")
	case t.DefaultSentence == "":
		return errors.New("templates: default_sentence is empty")
	case len(t.Fillers) < MCQDistractors:
		return fmt.Errorf("templates: need at least %d fillers", MCQDistractors)
	}
	return nil
}

func fill(tmpl, keyword, sentence, topic string) string {
	return strings.NewReplacer(
		"{keyword}", keyword,
		"{sentence}", sentence,
		"{topic}", topic,
	).Replace(tmpl)
}
