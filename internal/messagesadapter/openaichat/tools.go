package openaichat

import (
	"strings"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// toChatTools transforms Anthropic tools to function tools. Tools with a blank name are
// skipped; nil is returned when nothing remains so the key is omitted.
func toChatTools(tools []types.Tool) []Tool {
	if len(tools) == 0 {
		return nil
	}

	chatTools := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		name := strings.TrimSpace(tool.Name)
		if name == "" {
			continue
		}

		description := ""
		if tool.Description != nil {
			description = *tool.Description
		}

		// input_schema is already a flat JSON Schema object, which is exactly what
		// function parameters expect.
		chatTools = append(chatTools, Tool{
			Type: "function",
			Function: FunctionDefinition{
				Name:        name,
				Description: description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	if len(chatTools) == 0 {
		return nil
	}
	return chatTools
}

// toChatToolChoice converts Anthropic tool_choice.
//
// "any" (the model must call some tool) has no exact equivalent: "required" is not supported
// by every compatible backend, so it degrades to "auto". "none" and unknown types also become
// "auto". A missing choice stays missing.
func toChatToolChoice(choice *types.ToolChoice) *ToolChoice {
	if choice == nil {
		return nil
	}

	switch choice.Type {
	case types.ToolChoiceTool:
		if choice.Name != "" {
			return &ToolChoice{Function: choice.Name}
		}
		return &ToolChoice{Mode: "auto"}
	default:
		return &ToolChoice{Mode: "auto"}
	}
}
