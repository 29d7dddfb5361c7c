// internal/workers/syllabus/parse-syllabus/questions.go
package parsesyllabus

import (
	"fmt"
	"strings"

	"github.com/jacobschwantes/syllabase-parser/internal/models"
)

// Question is one extraction target. Its position in a Schema is the only
// link between the question and its answer in the model output.
type Question interface {
	Field() string
	Text() string
	question()
}

// DirectQuestion writes its answer onto the course row under FieldName.
type DirectQuestion struct {
	FieldName    string
	QuestionText string
	// ForceArray keeps a one-element answer as a sequence.
	ForceArray bool
}

func (q DirectQuestion) Field() string { return q.FieldName }
func (q DirectQuestion) Text() string  { return q.QuestionText }
func (DirectQuestion) question()       {}

// ForeignQuestion writes its answer onto a related row. FieldName is the
// course column holding the related row's id; SubFields name the related
// columns, aligned with the answer's elements.
type ForeignQuestion struct {
	FieldName    string
	QuestionText string
	RelatedTable string
	SubFields    []string
}

func (q ForeignQuestion) Field() string { return q.FieldName }
func (q ForeignQuestion) Text() string  { return q.QuestionText }
func (ForeignQuestion) question()       {}

// Schema is an ordered, read-only question catalog.
type Schema []Question

// Validate checks that the schema can drive a prompt and a reconciliation.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no questions")
	}
	seen := make(map[string]bool, len(s))
	for i, q := range s {
		field := q.Field()
		switch {
		case field == "":
			return fmt.Errorf("question %d: empty field name", i)
		case field == models.StatusColumn:
			return fmt.Errorf("question %d: field %q is reserved", i, field)
		case seen[field]:
			return fmt.Errorf("question %d: duplicate field %q", i, field)
		case strings.TrimSpace(q.Text()) == "":
			return fmt.Errorf("question %d (%s): empty question text", i, field)
		}
		seen[field] = true

		if fq, ok := q.(ForeignQuestion); ok {
			if fq.RelatedTable == "" {
				return fmt.Errorf("question %d (%s): foreign question without related table", i, field)
			}
			if len(fq.SubFields) == 0 {
				return fmt.Errorf("question %d (%s): foreign question without sub fields", i, field)
			}
		}
	}
	return nil
}

// DefaultSchema is the course syllabus catalog.
var DefaultSchema = Schema{
	DirectQuestion{
		FieldName:    "full_title",
		QuestionText: "What is the full title of the course? ex. Algorithms and Data Structures",
	},
	ForeignQuestion{
		FieldName:    "instructor",
		QuestionText: "What is the instructor's name and their email?",
		RelatedTable: models.StaffTable,
		SubFields:    []string{"name", "email"},
	},
	DirectQuestion{
		FieldName:    "description",
		QuestionText: "What is a good description of the course?",
	},
	DirectQuestion{
		FieldName:    "policies",
		QuestionText: "What are some of the course policies? Do not list more than 3.",
		ForceArray:   true,
	},
	DirectQuestion{
		FieldName:    "grade_categories",
		QuestionText: "What are the grade categories and their corresponding percentage as [string, number]? ex. [homework, 20]",
		ForceArray:   true,
	},
	DirectQuestion{
		FieldName:    "important_dates",
		QuestionText: "What are the important dates and what it is? ex. midterm, final, etc",
		ForceArray:   true,
	},
	DirectQuestion{
		FieldName:    "course_materials",
		QuestionText: "What is the list of required course materials?",
		ForceArray:   true,
	},
	DirectQuestion{
		FieldName:    "grade_cutoffs",
		QuestionText: "What are the grade cutoffs as [string, number, number]? For example: [['A', 100, 90]]",
		ForceArray:   true,
	},
}
