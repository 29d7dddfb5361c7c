// internal/models/course.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const (
	CourseTable = "courses"
	StaffTable  = "staff"

	RawSyllabusColumn = "raw_syllabus_text"
	StatusColumn      = "status"

	// StatusActive marks a course whose syllabus has been fully extracted.
	StatusActive = "active"
)

// CourseID is a course identifier as carried by trigger messages. Producers
// send it either as a JSON string or a JSON number; both decode to the same
// textual id.
type CourseID string

func (c *CourseID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = CourseID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("courseId must be a string or number: %w", err)
	}
	*c = CourseID(n.String())
	return nil
}

func (c CourseID) String() string { return string(c) }

// TriggerMessage is the body delivered by the queue and by Zeebe job
// variables.
type TriggerMessage struct {
	CourseID CourseID `json:"courseId"`
}
