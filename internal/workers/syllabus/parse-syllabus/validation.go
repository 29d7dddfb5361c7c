// internal/workers/syllabus/parse-syllabus/validation.go
package parsesyllabus

import (
	"encoding/json"
	"strings"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/validation"
	"github.com/jacobschwantes/syllabase-parser/pkg/registry"
)

// InputValidator checks trigger messages against the activity's registered
// input schema before they are decoded.
type InputValidator struct {
	schema *validation.Schema
}

func NewInputValidator(reg *registry.ActivityRegistry) (*InputValidator, error) {
	activity, err := reg.FindByTaskType(TaskType)
	if err != nil {
		return nil, err
	}
	schema, err := validation.Compile(activity.InputSchema)
	if err != nil {
		return nil, err
	}
	return &InputValidator{schema: schema}, nil
}

// Decode validates a raw trigger message and returns its course id.
// Failures are InvalidInput.
func (v *InputValidator) Decode(message []byte) (*Input, error) {
	if len(strings.TrimSpace(string(message))) == 0 {
		return nil, apperrors.NewInvalidInputError("no trigger message found", nil)
	}

	result := v.schema.ValidateJSON(message)
	if !result.Valid {
		return nil, apperrors.NewInvalidInputError(strings.Join(result.GetErrorMessages(), "; "), nil)
	}

	var input Input
	if err := json.Unmarshal(message, &input); err != nil {
		return nil, apperrors.NewInvalidInputError("decode trigger message", err)
	}
	if input.CourseID == "" {
		return nil, apperrors.NewInvalidInputError("courseId is empty", nil)
	}
	return &input, nil
}
