package assistant

import (
	"context"
	"encoding/json"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
	"mediaqa/internal/session"
)

// ChatHistoryToolName is the function name the model sees
const ChatHistoryToolName = "get_chat_history"

const defaultHistoryChats = 3

type chatEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewChatHistoryTool lets the model read the run's earlier messages.
func NewChatHistoryTool(store session.Store, runID string) agent.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"num_chats": map[string]any{
				"type":        "integer",
				"description": "Number of previous user and assistant exchanges to return.",
			},
		},
	}
	return agent.NewFunctionTool(ChatHistoryToolName,
		"Use this function to get the chat history between the user and assistant.",
		params,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				NumChats int `json:"num_chats"`
			}
			if len(args) > 0 {
				if err := json.Unmarshal(args, &in); err != nil {
					return "", core.NewUserInputError("invalid chat history arguments", err)
				}
			}
			if in.NumChats <= 0 {
				in.NumChats = defaultHistoryChats
			}

			run, err := store.Get(ctx, runID)
			if err != nil {
				return "", err
			}
			msgs := conversation(run.Messages, 2*in.NumChats)
			entries := make([]chatEntry, len(msgs))
			for i, m := range msgs {
				entries[i] = chatEntry{Role: m.Role, Content: m.Content}
			}
			b, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				return "", err
			}
			return string(b), nil
		})
}
