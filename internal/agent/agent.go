// Package agent runs a hosted model in a tool-calling loop.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediaqa/internal/core"
)

// DefaultMaxToolRounds bounds how many times tools may be called in one run.
const DefaultMaxToolRounds = 5

const markdownInstruction = "Use markdown to format your answers."

// Observer receives run and tool-call measurements.
type Observer interface {
	ObserveRun(agent, provider string, duration time.Duration, err error)
	ObserveToolCall(agent, tool string, duration time.Duration, err error)
}

// Config describes an agent.
type Config struct {
	Name          string
	Model         core.ChatModel
	Tools         []Tool
	Instructions  []string
	Markdown      bool
	MaxToolRounds int
	// ShowToolCalls records every tool invocation in RunResult.ToolCalls
	ShowToolCalls bool
	Observer      Observer
	Logger        *slog.Logger
}

// Agent drives a model through prompt, tool calls and final answer.
// It is safe for concurrent use; each Run keeps its own message list.
type Agent struct {
	name          string
	model         core.ChatModel
	tools         map[string]Tool
	definitions   []core.ToolDefinition
	system        string
	maxToolRounds int
	showToolCalls bool
	observer      Observer
	logger        *slog.Logger
}

// RunOptions carries per-run inputs besides the prompt.
type RunOptions struct {
	// Files are remote files attached to the prompt
	Files []core.RemoteFile
	// History is prepended to the prompt, oldest first
	History []core.Message
}

// ToolCallRecord describes one executed tool call.
type ToolCallRecord struct {
	Name      string        `json:"name"`
	Arguments string        `json:"arguments"`
	Result    string        `json:"result"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// RunResult is the outcome of Run.
type RunResult struct {
	Content   string
	ToolCalls []ToolCallRecord
	// Messages holds the new messages of this run, starting with the prompt
	Messages []core.Message
	Usage    core.Usage
}

// New creates an agent from cfg.
func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, core.NewConfigurationError("agent requires a model", nil)
	}
	a := &Agent{
		name:          cfg.Name,
		model:         cfg.Model,
		tools:         make(map[string]Tool, len(cfg.Tools)),
		maxToolRounds: cfg.MaxToolRounds,
		showToolCalls: cfg.ShowToolCalls,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
	}
	if a.name == "" {
		a.name = "agent"
	}
	if a.maxToolRounds <= 0 {
		a.maxToolRounds = DefaultMaxToolRounds
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	for _, t := range cfg.Tools {
		def := t.Definition()
		name := def.Function.Name
		if name == "" {
			return nil, core.NewConfigurationError("tool definition has no name", nil)
		}
		if _, dup := a.tools[name]; dup {
			return nil, core.NewConfigurationError("duplicate tool: "+name, nil)
		}
		a.tools[name] = t
		a.definitions = append(a.definitions, def)
	}

	instructions := append([]string{}, cfg.Instructions...)
	if cfg.Markdown {
		instructions = append(instructions, markdownInstruction)
	}
	a.system = strings.Join(instructions, "\n")
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string {
	return a.name
}

// Run sends prompt to the model and executes tool calls until the model
// answers in plain text. After MaxToolRounds rounds the model is asked
// once more without tools so it has to answer.
func (a *Agent) Run(ctx context.Context, prompt string, opts RunOptions) (result *RunResult, err error) {
	start := time.Now()
	defer func() {
		if a.observer != nil {
			a.observer.ObserveRun(a.name, a.model.Name(), time.Since(start), err)
		}
	}()

	if strings.TrimSpace(prompt) == "" {
		return nil, core.NewUserInputError("prompt is empty", nil)
	}

	history := append([]core.Message{}, opts.History...)
	turn := []core.Message{{Role: core.RoleUser, Content: prompt}}
	result = &RunResult{}

	for round := 0; ; round++ {
		req := &core.GenerateRequest{
			System:   a.system,
			Messages: append(append([]core.Message{}, history...), turn...),
			Files:    opts.Files,
		}
		final := round >= a.maxToolRounds
		if !final {
			req.Tools = a.definitions
		}

		resp, err := a.model.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.name, err)
		}
		result.Usage = result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 || final {
			turn = append(turn, core.Message{Role: core.RoleAssistant, Content: resp.Content})
			result.Content = resp.Content
			result.Messages = turn
			a.logger.Debug("agent run finished",
				"agent", a.name,
				"rounds", round+1,
				"tool_calls", len(result.ToolCalls),
				"total_tokens", result.Usage.TotalTokens,
			)
			return result, nil
		}

		turn = append(turn, core.Message{
			Role:      core.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			record := a.callTool(ctx, call)
			if a.showToolCalls {
				result.ToolCalls = append(result.ToolCalls, record)
			}
			output := record.Result
			if record.Error != "" {
				output = "error: " + record.Error
			}
			turn = append(turn, core.Message{
				Role:       core.RoleTool,
				Name:       call.Function.Name,
				ToolCallID: call.ID,
				Content:    output,
			})
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// callTool runs a single tool call. Failures are reported back to the
// model rather than aborting the run.
func (a *Agent) callTool(ctx context.Context, call core.ToolCall) (record ToolCallRecord) {
	record = ToolCallRecord{Name: call.Function.Name, Arguments: call.Function.Arguments}
	start := time.Now()

	var err error
	defer func() {
		record.Duration = time.Since(start)
		if a.observer != nil {
			a.observer.ObserveToolCall(a.name, call.Function.Name, record.Duration, err)
		}
	}()

	tool, ok := a.tools[call.Function.Name]
	if !ok {
		err = fmt.Errorf("unknown tool %q", call.Function.Name)
		record.Error = err.Error()
		return record
	}

	args := json.RawMessage(call.Function.Arguments)
	if len(strings.TrimSpace(call.Function.Arguments)) == 0 {
		args = json.RawMessage("{}")
	}
	if !json.Valid(args) {
		err = errors.New("arguments are not valid JSON")
		record.Error = err.Error()
		return record
	}

	out, callErr := tool.Call(ctx, args)
	if callErr != nil {
		err = callErr
		record.Error = core.UserMessage(callErr)
		a.logger.Warn("tool call failed", "agent", a.name, "tool", call.Function.Name, "error", callErr)
		return record
	}
	record.Result = out
	a.logger.Debug("tool call", "agent", a.name, "tool", call.Function.Name, "duration", time.Since(start))
	return record
}

// FormatToolCalls renders tool calls the way the CLI and web UI show them.
func FormatToolCalls(calls []ToolCallRecord) string {
	if len(calls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Running:\n")
	for _, c := range calls {
		fmt.Fprintf(&b, " - %s(%s)\n", c.Name, c.Arguments)
	}
	return b.String()
}
