package websearch

import (
	"context"
	"encoding/json"
	"fmt"

	"mediaqa/internal/agent"
	"mediaqa/internal/core"
)

// ToolName is the function name the model calls.
const ToolName = "duckduckgo_search"

// NewTool exposes Search to an agent.
func NewTool(c *Client, maxResults int) agent.Tool {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The query to search for.",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": fmt.Sprintf("The maximum number of results to return (default %d).", maxResults),
			},
		},
		"required": []string{"query"},
	}

	return agent.NewFunctionTool(ToolName,
		"Use this function to search DuckDuckGo for a query.",
		params,
		func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query      string `json:"query"`
				MaxResults int    `json:"max_results"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", core.NewUserInputError("invalid search arguments", err)
			}
			n := in.MaxResults
			if n <= 0 || n > maxResults {
				n = maxResults
			}
			results, err := c.Search(ctx, in.Query, n)
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "No results found.", nil
			}
			out, err := json.MarshalIndent(results, "", "  ")
			if err != nil {
				return "", err
			}
			return string(out), nil
		})
}
