package video

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/providers/gemini"
)

const geminiPrompt = `Analyze the uploaded video for content and context.
Respond to the following query using video insights and supplementary web research:
%s

Provide a detailed, user-friendly, and actionable response.`

// deleteTimeout bounds the best-effort removal of the remote copy.
const deleteTimeout = 30 * time.Second

// RemoteVideos uploads videos and waits for remote processing.
// *gemini.Provider implements it.
type RemoteVideos interface {
	UploadFile(ctx context.Context, path, mimeType, displayName string) (*core.RemoteFile, error)
	WaitForActive(ctx context.Context, file *core.RemoteFile, cfg gemini.PollConfig) (*core.RemoteFile, error)
	DeleteFile(ctx context.Context, name string) error
}

// GeminiSummarizer uploads the video and lets a multimodal agent watch it.
type GeminiSummarizer struct {
	files  RemoteVideos
	runner Runner
	poll   gemini.PollConfig
}

// NewGeminiSummarizer creates a summarizer that sends the video to Gemini.
func NewGeminiSummarizer(files RemoteVideos, runner Runner, poll gemini.PollConfig) *GeminiSummarizer {
	return &GeminiSummarizer{files: files, runner: runner, poll: poll}
}

func (s *GeminiSummarizer) Variant() Variant {
	return GeminiVariant
}

// Analyze uploads req.File, waits until it is processed and asks the agent.
func (s *GeminiSummarizer) Analyze(ctx context.Context, req Request) (*Result, error) {
	if err := validate(GeminiVariant, req); err != nil {
		return nil, err
	}

	remote, err := s.files.UploadFile(ctx, req.File.Path, req.File.MIMEType, req.File.OriginalName)
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	defer s.deleteRemote(ctx, remote.Name)

	processed, err := s.files.WaitForActive(ctx, remote, s.poll)
	if err != nil {
		return nil, fmt.Errorf("process video: %w", err)
	}

	run, err := s.runner.Run(ctx, GeminiPrompt(req.Query), agent.RunOptions{
		Files: []core.RemoteFile{*processed},
	})
	if err != nil {
		return nil, err
	}
	return resultFrom(run), nil
}

func (s *GeminiSummarizer) deleteRemote(ctx context.Context, name string) {
	if name == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if err := s.files.DeleteFile(ctx, name); err != nil {
		slog.Warn("failed to delete remote video", "name", name, "error", err)
	}
}

// GeminiPrompt builds the analysis prompt sent alongside the video.
func GeminiPrompt(query string) string {
	return fmt.Sprintf(geminiPrompt, query)
}
