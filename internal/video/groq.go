package video

import (
	"context"
	"fmt"

	"mediaqa/internal/agent"
)

const groqPrompt = `The user uploaded a video file named: **%s**.

Use the filename, web context (DuckDuckGo), and the following query to help:

**%s**

If video content is needed but not available, suggest ways the user could extract meaningful information (like transcription).`

// GroqSummarizer answers from the file name and web search only; the
// video bytes never leave the server.
type GroqSummarizer struct {
	runner Runner
}

// NewGroqSummarizer creates a filename-only summarizer.
func NewGroqSummarizer(runner Runner) *GroqSummarizer {
	return &GroqSummarizer{runner: runner}
}

func (s *GroqSummarizer) Variant() Variant {
	return GroqVariant
}

// Analyze asks the agent about req.File using its original name.
func (s *GroqSummarizer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := validate(GroqVariant, req); err != nil {
		return nil, err
	}
	run, err := s.runner.Run(ctx, GroqPrompt(req.File.OriginalName, req.Query), agent.RunOptions{})
	if err != nil {
		return nil, err
	}
	return resultFrom(run), nil
}

// GroqPrompt builds the filename-only prompt.
func GroqPrompt(filename, query string) string {
	return fmt.Sprintf(groqPrompt, filename, query)
}
