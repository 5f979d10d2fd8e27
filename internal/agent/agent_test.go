package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediaqa/internal/core"
)

// scriptedModel returns queued responses and records every request.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*core.GenerateResponse
	err       error
	requests  []*core.GenerateRequest
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(_ context.Context, req *core.GenerateRequest) (*core.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return &core.GenerateResponse{Content: "done"}, nil
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, nil
}

func toolCall(id, name, args string) core.ToolCall {
	return core.ToolCall{ID: id, Type: "function", Function: core.FunctionCall{Name: name, Arguments: args}}
}

func echoTool() Tool {
	return NewFunctionTool("echo", "Echo the input", map[string]any{
		"type":       "object",
		"properties": map[string]any{"text": map[string]any{"type": "string"}},
		"required":   []string{"text"},
	}, func(_ context.Context, args json.RawMessage) (string, error) {
		var in struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(args, &in); err != nil {
			return "", err
		}
		return "echo: " + in.Text, nil
	})
}

type recordingObserver struct {
	mu    sync.Mutex
	runs  []error
	tools []string
}

func (o *recordingObserver) ObserveRun(_, _ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, err)
}

func (o *recordingObserver) ObserveToolCall(_, tool string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tools = append(o.tools, tool)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))

	_, err = New(Config{Model: &scriptedModel{}, Tools: []Tool{echoTool(), echoTool()}})
	assert.Equal(t, core.KindConfiguration, core.KindOf(err))
}

func TestRun_PlainAnswer(t *testing.T) {
	model := &scriptedModel{responses: []*core.GenerateResponse{
		{Content: "The video shows a cat.", Usage: core.Usage{TotalTokens: 10}},
	}}
	a, err := New(Config{
		Name:         "Video AI Summarizer",
		Model:        model,
		Tools:        []Tool{echoTool()},
		Instructions: []string{"Be concise."},
		Markdown:     true,
	})
	require.NoError(t, err)

	files := []core.RemoteFile{{Name: "files/abc", URI: "u", MIMEType: "video/mp4"}}
	res, err := a.Run(context.Background(), "what is in the video?", RunOptions{Files: files})
	require.NoError(t, err)

	assert.Equal(t, "The video shows a cat.", res.Content)
	assert.Equal(t, 10, res.Usage.TotalTokens)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, core.RoleUser, res.Messages[0].Role)
	assert.Equal(t, core.RoleAssistant, res.Messages[1].Role)

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, "Be concise.\n"+markdownInstruction, req.System)
	assert.Equal(t, files, req.Files)
	assert.Len(t, req.Tools, 1)
}

func TestRun_ExecutesTools(t *testing.T) {
	model := &scriptedModel{responses: []*core.GenerateResponse{
		{ToolCalls: []core.ToolCall{toolCall("1", "echo", `{"text":"hi"}`)}, Usage: core.Usage{TotalTokens: 5}},
		{Content: "final", Usage: core.Usage{TotalTokens: 7}},
	}}
	obs := &recordingObserver{}
	a, err := New(Config{Model: model, Tools: []Tool{echoTool()}, ShowToolCalls: true, Observer: obs})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "say hi", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "final", res.Content)
	assert.Equal(t, 12, res.Usage.TotalTokens)
	require.Len(t, res.ToolCalls, 1)
	assert.Equal(t, "echo: hi", res.ToolCalls[0].Result)
	assert.Empty(t, res.ToolCalls[0].Error)

	require.Len(t, model.requests, 2)
	second := model.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, core.RoleTool, second[2].Role)
	assert.Equal(t, "1", second[2].ToolCallID)
	assert.Equal(t, "echo", second[2].Name)
	assert.Equal(t, "echo: hi", second[2].Content)

	assert.Equal(t, []string{"echo"}, obs.tools)
	require.Len(t, obs.runs, 1)
	assert.NoError(t, obs.runs[0])
}

func TestRun_ToolFailuresAreReportedToModel(t *testing.T) {
	failing := NewFunctionTool("fail", "always fails", nil, func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("backend down")
	})
	model := &scriptedModel{responses: []*core.GenerateResponse{
		{ToolCalls: []core.ToolCall{
			toolCall("1", "missing", `{}`),
			toolCall("2", "echo", `{not json`),
			toolCall("3", "fail", ``),
		}},
		{Content: "sorry"},
	}}
	a, err := New(Config{Model: model, Tools: []Tool{echoTool(), failing}, ShowToolCalls: true})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "go", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sorry", res.Content)

	require.Len(t, res.ToolCalls, 3)
	assert.Contains(t, res.ToolCalls[0].Error, "unknown tool")
	assert.Contains(t, res.ToolCalls[1].Error, "not valid JSON")
	assert.Contains(t, res.ToolCalls[2].Error, "backend down")

	toolMsgs := model.requests[1].Messages[2:]
	require.Len(t, toolMsgs, 3)
	for _, m := range toolMsgs {
		assert.Contains(t, m.Content, "error: ")
	}
}

func TestRun_FinalRoundWithoutTools(t *testing.T) {
	loop := &core.GenerateResponse{ToolCalls: []core.ToolCall{toolCall("1", "echo", `{"text":"again"}`)}}
	model := &scriptedModel{responses: []*core.GenerateResponse{loop, loop, {Content: "forced answer", ToolCalls: loop.ToolCalls}}}
	a, err := New(Config{Model: model, Tools: []Tool{echoTool()}, MaxToolRounds: 2})
	require.NoError(t, err)

	res, err := a.Run(context.Background(), "loop forever", RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, "forced answer", res.Content)
	assert.Empty(t, res.ToolCalls, "tool calls are only recorded when ShowToolCalls is set")

	require.Len(t, model.requests, 3)
	assert.NotEmpty(t, model.requests[1].Tools)
	assert.Empty(t, model.requests[2].Tools)
}

func TestRun_History(t *testing.T) {
	model := &scriptedModel{}
	a, err := New(Config{Model: model})
	require.NoError(t, err)

	history := []core.Message{
		{Role: core.RoleUser, Content: "earlier"},
		{Role: core.RoleAssistant, Content: "reply"},
	}
	_, err = a.Run(context.Background(), "now", RunOptions{History: history})
	require.NoError(t, err)

	msgs := model.requests[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "earlier", msgs[0].Content)
	assert.Equal(t, "now", msgs[2].Content)
}

func TestRun_Errors(t *testing.T) {
	a, err := New(Config{Model: &scriptedModel{}})
	require.NoError(t, err)
	_, err = a.Run(context.Background(), "   ", RunOptions{})
	assert.Equal(t, core.KindUserInput, core.KindOf(err))

	obs := &recordingObserver{}
	model := &scriptedModel{err: core.NewTransientError("scripted", 503, "overloaded", nil)}
	a, err = New(Config{Name: "failing", Model: model, Observer: obs})
	require.NoError(t, err)

	_, err = a.Run(context.Background(), "hello", RunOptions{})
	require.Error(t, err)
	assert.Equal(t, core.KindTransientRemote, core.KindOf(err))
	assert.Contains(t, err.Error(), "failing")
	require.Len(t, obs.runs, 1)
	assert.Error(t, obs.runs[0])
}

func TestFormatToolCalls(t *testing.T) {
	assert.Empty(t, FormatToolCalls(nil))
	got := FormatToolCalls([]ToolCallRecord{{Name: "search_knowledge_base", Arguments: `{"query":"pad thai"}`}})
	assert.Equal(t, "Running:\n - search_knowledge_base({\"query\":\"pad thai\"})\n", got)
}
