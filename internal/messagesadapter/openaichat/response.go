package openaichat

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// TranslateResponse converts a complete chat completion to an Anthropic message.
//
// model is the model name the client asked for; Anthropic clients expect it echoed back
// rather than the backend model. Translation never fails: unparseable tool arguments become
// an empty input object and an empty completion becomes a single empty text block.
func TranslateResponse(resp ChatCompletion, model string) types.Message {
	id := resp.ID
	if id == "" {
		id = newMessageID()
	}
	msg := types.NewMessage(id, model)

	stopReason := types.StopReasonEndTurn
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]

		if choice.Message.Content != nil {
			msg.Content = append(msg.Content, types.TextBlock{Text: *choice.Message.Content})
		}
		for _, call := range choice.Message.ToolCalls {
			msg.Content = append(msg.Content, toToolUseBlock(call))
		}
		stopReason = toStopReason(choice.FinishReason)
	}

	if len(msg.Content) == 0 {
		msg.Content = append(msg.Content, types.TextBlock{Text: ""})
	}

	msg.StopReason = &stopReason
	msg.Usage = toUsage(resp.Usage)
	return msg
}

// toToolUseBlock converts a returned tool call. Arguments that are not a JSON object decode
// to an empty input.
func toToolUseBlock(call ToolCall) types.ToolUseBlock {
	id := call.ID
	if id == "" {
		id = newToolUseID()
	}
	return types.ToolUseBlock{
		ID:    id,
		Name:  call.Function.Name,
		Input: parseToolArguments(call.Function.Arguments),
	}
}

func parseToolArguments(arguments string) map[string]any {
	input := map[string]any{}
	if arguments == "" {
		return input
	}
	if err := json.Unmarshal([]byte(arguments), &input); err != nil || input == nil {
		return map[string]any{}
	}
	return input
}

// toStopReason maps backend finish reasons to Anthropic stop reasons. "stop" and anything
// unrecognized (content_filter, null) end the turn normally.
func toStopReason(finishReason string) types.StopReason {
	switch finishReason {
	case FinishReasonToolCalls, FinishReasonFunctionCall:
		return types.StopReasonToolUse
	case FinishReasonLength:
		return types.StopReasonMaxTokens
	case FinishReasonError:
		return types.StopReasonError
	default:
		return types.StopReasonEndTurn
	}
}

// newMessageID generates an Anthropic-style message ID (msg_<uuid>).
func newMessageID() string {
	return "msg_" + uuid.NewString()
}

// newToolUseID generates an Anthropic-style tool use ID (toolu_<uuid>).
func newToolUseID() string {
	return "toolu_" + uuid.NewString()
}
