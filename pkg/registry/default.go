// pkg/registry/default.go
package registry

const (
	ParseSyllabusActivityID = "syllabus.course.parse"
	ParseSyllabusTaskType   = "parse-syllabus"
)

// Default returns the built-in registry describing the workers this module
// ships.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2026-10-19T00:00:00Z",
		Activities: []Activity{
			{
				ID:                   ParseSyllabusActivityID,
				DisplayName:          "Parse Syllabus",
				Description:          "Extracts structured course fields from a raw syllabus with a language model and writes them to the course and its instructor",
				Category:             "syllabus",
				Version:              "1.0.0",
				TaskType:             ParseSyllabusTaskType,
				ImplementationStatus: "completed",
				InputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"courseId"},
					"properties": map[string]interface{}{
						"courseId": map[string]interface{}{
							"type":        []interface{}{"string", "integer"},
							"description": "Id of the course whose raw_syllabus_text is parsed",
							"minLength":   1,
							"pattern":     `\S`,
							"minimum":     0,
						},
					},
				},
				OutputSchema: map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"courseId", "status"},
					"properties": map[string]interface{}{
						"courseId":       map[string]interface{}{"type": "string"},
						"status":         map[string]interface{}{"type": "string", "enum": []interface{}{"active"}},
						"runId":          map[string]interface{}{"type": "string"},
						"foreignUpdates": map[string]interface{}{"type": "integer"},
						"skippedFields":  map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"durationMs":     map[string]interface{}{"type": "integer"},
					},
				},
				ErrorCodes: []string{
					"SYLLABUS_INVALID_INPUT",
					"SYLLABUS_NOT_FOUND",
					"SYLLABUS_MALFORMED_RESPONSE",
					"SYLLABUS_PERSISTENCE_FAILURE",
					"SYLLABUS_MODEL_FAILURE",
				},
				Timeout:   "180s",
				Retries:   3,
				Workflows: []string{"syllabus-upload"},
				Tags:      []string{"llm", "extraction", "postgres"},
			},
		},
	}
}
