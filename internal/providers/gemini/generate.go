package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"mediaqa/internal/core"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// Generate sends one agent turn to Gemini.
func (p *Provider) Generate(ctx context.Context, req *core.GenerateRequest) (*core.GenerateResponse, error) {
	contents, system, err := buildContents(req)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		Temperature: p.temperature,
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{buildTool(req.Tools)}
	}

	resp, err := p.models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return nil, mapError("generate content", err)
	}
	return convertResponse(p.model, resp)
}

// buildContents converts provider-neutral messages to genai contents.
// Consecutive tool results are merged into a single user turn and remote
// files are attached ahead of the text of the last user message.
func buildContents(req *core.GenerateRequest) ([]*genai.Content, string, error) {
	systemParts := []string{}
	if req.System != "" {
		systemParts = append(systemParts, req.System)
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	lastUser := -1

	for _, msg := range req.Messages {
		switch msg.Role {
		case core.RoleSystem:
			if msg.Content != "" {
				systemParts = append(systemParts, msg.Content)
			}
		case core.RoleUser:
			contents = append(contents, &genai.Content{
				Role:  roleUser,
				Parts: []*genai.Part{{Text: msg.Content}},
			})
			lastUser = len(contents) - 1
		case core.RoleAssistant:
			parts := make([]*genai.Part, 0, 1+len(msg.ToolCalls))
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				args := map[string]any{}
				if call.Function.Arguments != "" {
					if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
						return nil, "", core.NewUserInputError(
							fmt.Sprintf("tool call %s has invalid arguments", call.Function.Name), err)
					}
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   call.ID,
					Name: call.Function.Name,
					Args: args,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: roleModel, Parts: parts})
		case core.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{"output": msg.Content},
			}}
			if n := len(contents); n > 0 && contents[n-1].Role == roleUser && isFunctionResponses(contents[n-1]) {
				contents[n-1].Parts = append(contents[n-1].Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{part}})
		default:
			return nil, "", core.NewUserInputError("unsupported message role: "+msg.Role, nil)
		}
	}

	if len(req.Files) > 0 {
		if lastUser < 0 {
			return nil, "", core.NewUserInputError("files require a user message", nil)
		}
		fileParts := make([]*genai.Part, 0, len(req.Files))
		for _, f := range req.Files {
			if f.URI == "" {
				return nil, "", core.NewUserInputError("file "+f.Name+" has no URI", nil)
			}
			fileParts = append(fileParts, &genai.Part{FileData: &genai.FileData{
				FileURI:  f.URI,
				MIMEType: f.MIMEType,
			}})
		}
		target := contents[lastUser]
		target.Parts = append(fileParts, target.Parts...)
	}

	if len(contents) == 0 {
		return nil, "", core.NewUserInputError("at least one message is required", nil)
	}
	return contents, strings.Join(systemParts, "\n\n"), nil
}

func isFunctionResponses(c *genai.Content) bool {
	for _, part := range c.Parts {
		if part.FunctionResponse == nil {
			return false
		}
	}
	return len(c.Parts) > 0
}

func buildTool(defs []core.ToolDefinition) *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, def := range defs {
		decl := &genai.FunctionDeclaration{
			Name:        def.Function.Name,
			Description: def.Function.Description,
		}
		if len(def.Function.Parameters) > 0 {
			decl.Parameters = toSchema(def.Function.Parameters)
		}
		decls = append(decls, decl)
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func convertResponse(model string, resp *genai.GenerateContentResponse) (*core.GenerateResponse, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		msg := "response contained no candidates"
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + string(resp.PromptFeedback.BlockReason)
		}
		return nil, core.NewPermanentError(providerName, http.StatusBadGateway, msg, nil)
	}

	out := &core.GenerateResponse{Model: model}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}

	var text strings.Builder
	for i, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.Text != "" {
			text.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, core.NewPermanentError(providerName, http.StatusBadGateway, "invalid function call arguments", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i)
			}
			out.ToolCalls = append(out.ToolCalls, core.ToolCall{
				ID:   id,
				Type: "function",
				Function: core.FunctionCall{
					Name:      part.FunctionCall.Name,
					Arguments: string(args),
				},
			})
		}
	}
	out.Content = text.String()

	if u := resp.UsageMetadata; u != nil {
		out.Usage = core.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
