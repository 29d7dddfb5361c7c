// internal/workers/syllabus/parse-syllabus/config.go
package parsesyllabus

import (
	"time"

	"github.com/jacobschwantes/syllabase-parser/internal/common/config"
)

type Config struct {
	Deployment      string
	MaxOutputTokens int
	// Timeout bounds one whole invocation, model call included.
	Timeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	timeout := 3 * time.Minute
	if wc, ok := cfg.Workers[TaskType]; ok && wc.Timeout > 0 {
		timeout = config.GetDuration(wc.Timeout)
	}
	return &Config{
		Deployment:      cfg.OpenAI.Deployment,
		MaxOutputTokens: cfg.OpenAI.MaxOutputTokens,
		Timeout:         timeout,
	}
}
