// Package assistant implements the interactive PDF question-answering assistant.
package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/session"
)

// Name is the agent name used in logs and metrics.
const Name = "PDF Assistant"

// Default limits
const (
	DefaultHistoryLimit = 20
	DefaultUser         = "user"
)

var instructions = []string{
	"You are a helpful assistant that answers questions using a knowledge base of PDF documents.",
	"Search the knowledge base before answering questions about its contents.",
	"Use the chat history tool when the user refers to earlier parts of the conversation.",
	"If the knowledge base has no relevant information, say so.",
}

// ResolveRun picks the run to continue. Unless fresh is set, the user's newest run
// is reused; otherwise, or when the user has no runs, a new run is created.
func ResolveRun(ctx context.Context, store session.Store, user string, fresh bool) (run *session.Run, resumed bool, err error) {
	if user == "" {
		user = DefaultUser
	}
	if !fresh {
		ids, err := store.ListRunIDs(ctx, user)
		if err != nil {
			return nil, false, fmt.Errorf("list runs: %w", err)
		}
		if len(ids) > 0 {
			run, err := store.Get(ctx, ids[0])
			if err != nil {
				return nil, false, fmt.Errorf("load run %s: %w", ids[0], err)
			}
			return run, true, nil
		}
	}

	run = session.NewRun(user)
	if err := store.Create(ctx, run); err != nil {
		return nil, false, fmt.Errorf("create run: %w", err)
	}
	return run, false, nil
}

// Config describes an Assistant
type Config struct {
	Model core.ChatModel
	Store session.Store
	Run   *session.Run
	// Tools are added next to the chat history tool, typically the knowledge search tool
	Tools         []agent.Tool
	HistoryLimit  int
	MaxToolRounds int
	Observer      agent.Observer
	Logger        *slog.Logger
}

// Assistant answers questions within one persisted run.
type Assistant struct {
	agent        *agent.Agent
	store        session.Store
	runID        string
	historyLimit int
	logger       *slog.Logger
}

// New creates an assistant bound to cfg.Run.
func New(cfg Config) (*Assistant, error) {
	if cfg.Store == nil || cfg.Run == nil {
		return nil, core.NewConfigurationError("assistant requires a run store and a run", nil)
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tools := append([]agent.Tool{}, cfg.Tools...)
	tools = append(tools, NewChatHistoryTool(cfg.Store, cfg.Run.ID))

	a, err := agent.New(agent.Config{
		Name:          Name,
		Model:         cfg.Model,
		Tools:         tools,
		Instructions:  instructions,
		Markdown:      true,
		MaxToolRounds: cfg.MaxToolRounds,
		ShowToolCalls: true,
		Observer:      cfg.Observer,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	return &Assistant{
		agent:        a,
		store:        cfg.Store,
		runID:        cfg.Run.ID,
		historyLimit: historyLimit,
		logger:       logger,
	}, nil
}

// RunID returns the ID of the run the assistant appends to.
func (a *Assistant) RunID() string {
	return a.runID
}

// Ask answers question with recent conversation as context and appends
// the exchange to the run.
func (a *Assistant) Ask(ctx context.Context, question string) (*agent.RunResult, error) {
	run, err := a.store.Get(ctx, a.runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}

	result, err := a.agent.Run(ctx, question, agent.RunOptions{
		History: conversation(run.Messages, a.historyLimit),
	})
	if err != nil {
		return nil, err
	}

	if err := a.store.AppendMessages(ctx, a.runID, result.Messages); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}
	a.logger.Debug("assistant turn saved", "run_id", a.runID, "messages", len(result.Messages))
	return result, nil
}

// conversation returns the last limit user and assistant text messages.
// Tool traffic is left out so the history never starts inside a tool exchange.
func conversation(msgs []core.Message, limit int) []core.Message {
	out := make([]core.Message, 0, len(msgs))
	for _, m := range msgs {
		switch {
		case m.Role == core.RoleUser && m.Content != "":
			out = append(out, core.Message{Role: m.Role, Content: m.Content})
		case m.Role == core.RoleAssistant && m.Content != "" && len(m.ToolCalls) == 0:
			out = append(out, core.Message{Role: m.Role, Content: m.Content})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
