// internal/workers/syllabus/parse-syllabus/models.go
package parsesyllabus

import "github.com/jacobschwantes/syllabase-parser/internal/models"

type Input = models.TriggerMessage

type Output struct {
	CourseID       string   `json:"courseId"`
	Status         string   `json:"status"`
	RunID          string   `json:"runId"`
	ForeignUpdates int      `json:"foreignUpdates"`
	SkippedFields  []string `json:"skippedFields,omitempty"`
	DurationMs     int64    `json:"durationMs"`
}
