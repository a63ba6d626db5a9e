package chat

import (
	"github.com/banao-ai/jarvisctl/pkg/logger"
)

// fallbackQuestions is shown when the backend cannot supply suggestions.
var fallbackQuestions = []string{
	"What is this document about?",
	"Can you summarize the key findings?",
}

// FallbackQuestions returns a copy of the built-in starter questions.
func FallbackQuestions() []string {
	out := make([]string, len(fallbackQuestions))
	copy(out, fallbackQuestions)
	return out
}

// RefreshQuestions asks the backend for example questions, falling back
// to the built-in defaults when the fetch fails or comes back empty.
func (c *Controller) RefreshQuestions() []string {
	questions, err := c.backend.ExampleQuestions(c.ctx)
	if err != nil || len(questions) == 0 {
		if err != nil {
			logger.WarnCF("chat", "Example question fetch failed, using defaults",
				map[string]interface{}{"error": err.Error()})
		}
		questions = FallbackQuestions()
	}

	c.mu.Lock()
	c.questions = questions
	c.publish(EventQuestions)
	c.mu.Unlock()
	return questions
}
