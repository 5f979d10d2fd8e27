// Package video answers questions about uploaded videos with a hosted agent.
package video

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/upload"
)

// Runner runs an agent prompt. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, prompt string, opts agent.RunOptions) (*agent.RunResult, error)
}

// Request is one analysis request.
type Request struct {
	File  *upload.File
	Query string
}

// Result is the rendered outcome of an analysis.
type Result struct {
	Content   string
	ToolCalls []agent.ToolCallRecord
	Usage     core.Usage
	Duration  time.Duration
}

// Summarizer answers a query about an uploaded video.
type Summarizer interface {
	Analyze(ctx context.Context, req Request) (*Result, error)
	Variant() Variant
}

// Analyze validates req, runs s and removes the temporary upload whatever the outcome.
func Analyze(ctx context.Context, s Summarizer, req Request) (*Result, error) {
	defer func() {
		if err := req.File.Remove(); err != nil {
			slog.Warn("failed to remove uploaded video", "path", req.File.Path, "error", err)
		}
	}()

	if err := validate(s.Variant(), req); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := s.Analyze(ctx, req)
	if err != nil {
		slog.Error("video analysis failed",
			"variant", s.Variant().Key,
			"request_id", core.GetRequestID(ctx),
			"kind", core.KindOf(err),
			"error", err,
		)
		return nil, err
	}
	res.Duration = time.Since(start)
	slog.Info("video analysis finished",
		"variant", s.Variant().Key,
		"request_id", core.GetRequestID(ctx),
		"duration", res.Duration,
		"tool_calls", len(res.ToolCalls),
		"total_tokens", res.Usage.TotalTokens,
	)
	return res, nil
}

func validate(v Variant, req Request) error {
	if strings.TrimSpace(req.Query) == "" {
		return core.NewUserInputError(v.EmptyQueryWarning, nil)
	}
	if req.File == nil || req.File.Path == "" {
		return core.NewUserInputError(v.NoFileInfo, nil)
	}
	return nil
}

func resultFrom(run *agent.RunResult) *Result {
	return &Result{
		Content:   run.Content,
		ToolCalls: run.ToolCalls,
		Usage:     run.Usage,
	}
}
