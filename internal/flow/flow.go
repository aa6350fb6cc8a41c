// Package flow serves the ordered sequence of standardized questions.
package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mariusarnbjerg/Morton/internal/domain"
)

// QuestionFlow is a deterministic cursor-free view over the question
// list: callers keep their own index and ask for the question at it.
type QuestionFlow struct {
	questions []domain.Question
}

// document is the on-disk shape: either a bare list or wrapped in a
// top-level "questions" key.
type document struct {
	Questions []domain.Question `json:"questions" yaml:"questions"`
}

// Load reads a question document from path. JSON and YAML are both
// accepted; the format is chosen by file extension.
func Load(path string) (*QuestionFlow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return parseJSON(data)
	}
}

func parseJSON(data []byte) (*QuestionFlow, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil || doc.Questions == nil {
		var list []domain.Question
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse question document: %w", err)
		}
		doc.Questions = list
	}
	return New(doc.Questions)
}

func parseYAML(data []byte) (*QuestionFlow, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil || doc.Questions == nil {
		var list []domain.Question
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("failed to parse question document: %w", err)
		}
		doc.Questions = list
	}
	return New(doc.Questions)
}

// New builds a flow from an already-loaded question list.
func New(questions []domain.Question) (*QuestionFlow, error) {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		q := &questions[i]
		if q.ID == "" {
			return nil, fmt.Errorf("question %d has an empty id", i)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if q.Type == "" {
			q.Type = domain.QuestionFreeText
		}
	}
	return &QuestionFlow{questions: questions}, nil
}

// Nth returns the question at index i, or false when the flow is
// exhausted (or i is negative).
func (f *QuestionFlow) Nth(i int) (domain.Question, bool) {
	if i < 0 || i >= len(f.questions) {
		return domain.Question{}, false
	}
	return f.questions[i], true
}

// Len reports the number of questions in the flow.
func (f *QuestionFlow) Len() int {
	return len(f.questions)
}
