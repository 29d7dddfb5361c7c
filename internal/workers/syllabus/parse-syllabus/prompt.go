// internal/workers/syllabus/parse-syllabus/prompt.go
package parsesyllabus

import (
	"fmt"
	"strings"

	apperrors "github.com/jacobschwantes/syllabase-parser/internal/common/errors"
	"github.com/jacobschwantes/syllabase-parser/internal/common/llm"
)

const systemPrompt = `You are an AI syllabus parser.
Your task is to extract specific information from a provided syllabus.
Answer the questions in the order they are asked.
For each question asked, provide the answers in a simple array format for example [[answer], [answer, answer], [answer, answer]].
Every answer is an array, even when there is only one value.
Do not include any extraneous information or commentary.
Make every attempt to extrapolate information, using intuition when at all possible, otherwise return an empty list.
Some questions may provide examples or hints for output to help you.
Do not include the questions in your response, only the answers.
Do not number your answers.
You must return it as a valid JSON array.`

// BuildRequest assembles the single completion request that asks every
// question in the schema against rawText.
func BuildRequest(rawText string, schema Schema, cfg *Config) (*llm.Request, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, apperrors.NewInvalidInputError("syllabus text is empty", nil)
	}

	texts := make([]string, len(schema))
	for i, q := range schema {
		texts[i] = q.Text()
	}

	return &llm.Request{
		Deployment: cfg.Deployment,
		Messages: []llm.Message{
			{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf(`Syllabus: "%s". Questions: "%s"`, rawText, strings.Join(texts, " ")),
			},
			{
				Role:    llm.RoleSystem,
				Content: systemPrompt,
			},
		},
		TopP:            1,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}, nil
}
