package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
)

// ToolName is the function name the model sees
const ToolName = "search_knowledge_base"

type searchResult struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	Content string `json:"content"`
}

// NewSearchTool exposes kb to an agent.
func NewSearchTool(kb *KnowledgeBase, limit int) agent.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The query to search for.",
			},
		},
		"required": []string{"query"},
	}
	return agent.NewFunctionTool(ToolName,
		"Use this function to search the knowledge base for information about a query.",
		params,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", core.NewUserInputError("invalid search arguments", err)
			}
			docs, err := kb.Search(ctx, in.Query, limit)
			if err != nil {
				return "", err
			}
			return formatDocuments(docs)
		})
}

func formatDocuments(docs []Document) (string, error) {
	if len(docs) == 0 {
		return "No documents found.", nil
	}
	results := make([]searchResult, len(docs))
	for i, d := range docs {
		results[i] = searchResult{
			Source:  d.Source,
			Page:    d.Page,
			Content: strings.TrimSpace(fmt.Sprintf("Page %d\n%s", d.Page, d.Content)),
		}
	}
	b, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
