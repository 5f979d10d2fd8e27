package video

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/providers/gemini"
	"mediaqa/internal/upload"
)

type fakeRunner struct {
	mu      sync.Mutex
	prompts []string
	opts    []agent.RunOptions
	content string
	err     error
}

func (r *fakeRunner) Run(_ context.Context, prompt string, opts agent.RunOptions) (*agent.RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, prompt)
	r.opts = append(r.opts, opts)
	if r.err != nil {
		return nil, r.err
	}
	return &agent.RunResult{Content: r.content, Usage: core.Usage{TotalTokens: 3}}, nil
}

type fakeVideos struct {
	uploadErr error
	waitErr   error
	uploaded  []string
	deleted   []string
	// state of the delete context while DeleteFile runs
	deleteErr      error
	deleteDeadline time.Time
	deleteHasLimit bool
}

func (f *fakeVideos) UploadFile(_ context.Context, path, mimeType, displayName string) (*core.RemoteFile, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.uploaded = append(f.uploaded, displayName)
	return &core.RemoteFile{Name: "files/v1", URI: "https://example/files/v1", MIMEType: mimeType, State: core.FileStateProcessing}, nil
}

func (f *fakeVideos) WaitForActive(_ context.Context, file *core.RemoteFile, _ gemini.PollConfig) (*core.RemoteFile, error) {
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	active := *file
	active.State = core.FileStateActive
	return &active, nil
}

func (f *fakeVideos) DeleteFile(ctx context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	f.deleteErr = ctx.Err()
	f.deleteDeadline, f.deleteHasLimit = ctx.Deadline()
	return nil
}

func saveVideo(t *testing.T, name string) *upload.File {
	t.Helper()
	f, err := upload.Save(t.TempDir(), name, strings.NewReader("fake video"), 0)
	require.NoError(t, err)
	return f
}

func assertRemoved(t *testing.T, f *upload.File) {
	t.Helper()
	_, err := os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err), "temp file %s should be removed", f.Path)
}

func TestGeminiSummarizer_Success(t *testing.T) {
	videos := &fakeVideos{}
	runner := &fakeRunner{content: "A cooking tutorial."}
	s := NewGeminiSummarizer(videos, runner, gemini.PollConfig{})
	file := saveVideo(t, "pad-thai.mp4")

	res, err := Analyze(context.Background(), s, Request{File: file, Query: "What dish is cooked?"})
	require.NoError(t, err)

	assert.Equal(t, "A cooking tutorial.", res.Content)
	assert.Equal(t, 3, res.Usage.TotalTokens)
	assertRemoved(t, file)

	assert.Equal(t, []string{"pad-thai.mp4"}, videos.uploaded)
	assert.Equal(t, []string{"files/v1"}, videos.deleted)

	require.Len(t, runner.prompts, 1)
	assert.Equal(t, GeminiPrompt("What dish is cooked?"), runner.prompts[0])
	assert.Contains(t, runner.prompts[0], "Analyze the uploaded video for content and context.")
	require.Len(t, runner.opts[0].Files, 1)
	assert.Equal(t, core.FileStateActive, runner.opts[0].Files[0].State)
}

func TestGeminiSummarizer_FailureStillCleansUp(t *testing.T) {
	videos := &fakeVideos{}
	runner := &fakeRunner{err: core.NewTransientError("gemini", 503, "overloaded", nil)}
	s := NewGeminiSummarizer(videos, runner, gemini.PollConfig{})
	file := saveVideo(t, "clip.mov")

	_, err := Analyze(context.Background(), s, Request{File: file, Query: "summarize"})
	require.Error(t, err)
	assert.Equal(t, core.KindTransientRemote, core.KindOf(err))

	assertRemoved(t, file)
	assert.Equal(t, []string{"files/v1"}, videos.deleted)
}

func TestGeminiSummarizer_ProcessingTimeout(t *testing.T) {
	videos := &fakeVideos{waitErr: core.NewProcessingTimeoutError("gemini", "still processing", nil)}
	runner := &fakeRunner{}
	s := NewGeminiSummarizer(videos, runner, gemini.PollConfig{})
	file := saveVideo(t, "long.avi")

	_, err := Analyze(context.Background(), s, Request{File: file, Query: "summarize"})
	assert.Equal(t, core.KindProcessingTimeout, core.KindOf(err))
	assert.Empty(t, runner.prompts, "agent must not run before the video is processed")
	assertRemoved(t, file)
	assert.Equal(t, []string{"files/v1"}, videos.deleted)
}

func TestGeminiSummarizer_UploadFailure(t *testing.T) {
	videos := &fakeVideos{uploadErr: core.NewConfigurationError("GOOGLE_API_KEY is not set", nil)}
	s := NewGeminiSummarizer(videos, &fakeRunner{}, gemini.PollConfig{})
	file := saveVideo(t, "a.mp4")

	_, err := Analyze(context.Background(), s, Request{File: file, Query: "q"})
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
	assert.Empty(t, videos.deleted)
	assertRemoved(t, file)
}

func TestGeminiSummarizer_DeleteOutlivesCanceledRequest(t *testing.T) {
	videos := &fakeVideos{}
	runner := &fakeRunner{err: context.Canceled}
	s := NewGeminiSummarizer(videos, runner, gemini.PollConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Analyze(ctx, Request{File: saveVideo(t, "a.mp4"), Query: "q"})
	require.ErrorIs(t, err, context.Canceled)

	require.Equal(t, []string{"files/v1"}, videos.deleted)
	assert.NoError(t, videos.deleteErr, "the delete must not inherit the canceled request context")
	assert.True(t, videos.deleteHasLimit)
	assert.WithinDuration(t, time.Now().Add(deleteTimeout), videos.deleteDeadline, 5*time.Second)
}

func TestGroqSummarizer_UsesOriginalFileName(t *testing.T) {
	runner := &fakeRunner{content: "Probably a travel vlog."}
	s := NewGroqSummarizer(runner)
	file := saveVideo(t, "bali-trip.mp4")

	res, err := Analyze(context.Background(), s, Request{File: file, Query: "Where was this filmed?"})
	require.NoError(t, err)
	assert.Equal(t, "Probably a travel vlog.", res.Content)
	assertRemoved(t, file)

	require.Len(t, runner.prompts, 1)
	assert.Equal(t, GroqPrompt("bali-trip.mp4", "Where was this filmed?"), runner.prompts[0])
	assert.Contains(t, runner.prompts[0], "named: **bali-trip.mp4**")
	assert.Empty(t, runner.opts[0].Files, "video content is never sent to groq")
}

func TestAnalyze_EmptyQuery(t *testing.T) {
	for _, s := range []Summarizer{
		NewGeminiSummarizer(&fakeVideos{}, &fakeRunner{}, gemini.PollConfig{}),
		NewGroqSummarizer(&fakeRunner{}),
	} {
		t.Run(s.Variant().Key, func(t *testing.T) {
			file := saveVideo(t, "a.mp4")
			_, err := Analyze(context.Background(), s, Request{File: file, Query: "  \n"})
			require.Error(t, err)
			assert.Equal(t, core.KindUserInput, core.KindOf(err))
			assert.Equal(t, s.Variant().EmptyQueryWarning, core.UserMessage(err))
			assertRemoved(t, file)
		})
	}
}

func TestAnalyze_EmptyQueryDoesNotInvokeAgent(t *testing.T) {
	runner := &fakeRunner{}
	videos := &fakeVideos{}
	s := NewGeminiSummarizer(videos, runner, gemini.PollConfig{})

	_, err := Analyze(context.Background(), s, Request{File: saveVideo(t, "a.mp4")})
	require.Error(t, err)
	assert.Empty(t, runner.prompts)
	assert.Empty(t, videos.uploaded)
}

func TestAnalyze_MissingFile(t *testing.T) {
	_, err := Analyze(context.Background(), NewGroqSummarizer(&fakeRunner{}), Request{Query: "q"})
	assert.Equal(t, core.KindUserInput, core.KindOf(err))
	assert.Equal(t, GroqVariant.NoFileInfo, core.UserMessage(err))
}

func TestAnalyze_WrapsUnclassifiedErrors(t *testing.T) {
	s := NewGroqSummarizer(&fakeRunner{err: errors.New("boom")})
	file := saveVideo(t, "a.mp4")
	_, err := Analyze(context.Background(), s, Request{File: file, Query: "q"})
	assert.Equal(t, core.KindInternal, core.KindOf(err))
	assertRemoved(t, file)
}
