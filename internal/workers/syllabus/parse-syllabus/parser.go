// internal/workers/syllabus/parse-syllabus/parser.go
package parsesyllabus

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
)

// ParseResponse decodes the model output into one answer per question, in
// schema order. Shape checks on individual answers are left to Reconcile.
func ParseResponse(raw string, schema Schema) ([]interface{}, error) {
	content := strings.TrimSpace(raw)
	if stripped := stripCodeFence(content); stripped != "" {
		content = stripped
	}
	if content == "" {
		return nil, apperrors.NewMalformedResponseError("empty model output", nil)
	}

	var answers []interface{}
	if err := json.Unmarshal([]byte(content), &answers); err != nil {
		return nil, apperrors.NewMalformedResponseError("output is not a JSON array", err)
	}
	if len(answers) != len(schema) {
		return nil, apperrors.NewMalformedResponseError(
			fmt.Sprintf("expected %d answers, got %d", len(schema), len(answers)), nil)
	}
	return answers, nil
}

// stripCodeFence unwraps a single ```-fenced block. It returns "" when
// content is not fenced.
func stripCodeFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return ""
	}
	lines := strings.Split(content, "\n")
	if len(lines) < 2 {
		return ""
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
