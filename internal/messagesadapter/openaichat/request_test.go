package openaichat

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

var testConfig = Config{
	Models:    ModelMapper{Big: "gpt-4o", Middle: "gpt-4o", Small: "gpt-4o-mini"},
	MinTokens: 100,
	MaxTokens: 4096,
}

func userText(text string) types.MessageParam {
	return types.MessageParam{Role: types.RoleUser, Content: types.TextContent(text)}
}

func TestTranslateRequestMinimal(t *testing.T) {
	req := types.MessagesRequest{
		Model:     "claude-3-5-haiku-20241022",
		MaxTokens: 1000,
		Messages:  []types.MessageParam{userText("Hi")},
	}

	got := TranslateRequest(req, testConfig)

	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", got.Model)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != RoleUser || *got.Messages[0].Content.Text != "Hi" {
		t.Errorf("messages = %+v, want single user message", got.Messages)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"tools"`, `"tool_choice"`, `"thinking"`, `"stream_options"`, `"temperature"`} {
		if strings.Contains(string(data), key) {
			t.Errorf("unexpected key %s in %s", key, data)
		}
	}
}

func TestTranslateRequestClampsMaxTokens(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{1, 100},
		{100, 100},
		{2048, 2048},
		{4096, 4096},
		{100000, 4096},
	}
	for _, tt := range tests {
		req := types.MessagesRequest{Model: "gpt-4o", MaxTokens: tt.in, Messages: []types.MessageParam{userText("x")}}
		if got := TranslateRequest(req, testConfig).MaxTokens; got != tt.want {
			t.Errorf("max_tokens %d: got %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTranslateRequestSystemPrompt(t *testing.T) {
	tests := []struct {
		name   string
		system *types.SystemPrompt
		want   string
	}{
		{"string trimmed", types.SystemText("  be brief \n"), "be brief"},
		{
			"list joined, non-text skipped",
			types.SystemBlocks(
				types.SystemBlock{Type: "text", Text: "first"},
				types.SystemBlock{Type: "image"},
				types.SystemBlock{Type: "text", Text: "second"},
			),
			"first\n\nsecond",
		},
		{"blank omitted", types.SystemText("   "), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := types.MessagesRequest{Model: "m", MaxTokens: 200, System: tt.system, Messages: []types.MessageParam{userText("x")}}
			got := TranslateRequest(req, testConfig)

			if tt.want == "" {
				if got.Messages[0].Role == RoleSystem {
					t.Errorf("blank system prompt must not produce a system message")
				}
				return
			}
			if got.Messages[0].Role != RoleSystem || *got.Messages[0].Content.Text != tt.want {
				t.Errorf("first message = %+v, want system %q", got.Messages[0], tt.want)
			}
		})
	}
}

func TestTranslateRequestToolResultAdjacency(t *testing.T) {
	req := types.MessagesRequest{
		Model:     "claude-3-opus",
		MaxTokens: 500,
		Messages: []types.MessageParam{
			userText("What is 10*10?"),
			{Role: types.RoleAssistant, Content: types.BlocksContent(
				types.ToolUseBlock{ID: "t1", Name: "calc", Input: map[string]any{"expr": "10*10"}},
			)},
			{Role: types.RoleUser, Content: types.BlocksContent(
				types.ToolResultBlock{ToolUseID: "t1", Content: types.ToolResultText("100")},
			)},
		},
	}

	got := TranslateRequest(req, testConfig).Messages
	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3: %+v", len(got), got)
	}
	if got[1].Role != RoleAssistant || len(got[1].ToolCalls) != 1 || got[1].ToolCalls[0].ID != "t1" {
		t.Errorf("message 1 = %+v, want assistant with tool call t1", got[1])
	}
	if got[2].Role != RoleTool || got[2].ToolCallID != "t1" || *got[2].Content.Text != "100" {
		t.Errorf("message 2 = %+v, want tool result for t1", got[2])
	}
}

func TestTranslateRequestOptionalFields(t *testing.T) {
	temperature := 0.2
	topP := 0.9
	topK := 5
	budget := 2048
	description := "Look up weather"

	req := types.MessagesRequest{
		Model:         "claude-sonnet-4",
		MaxTokens:     1024,
		Messages:      []types.MessageParam{userText("weather?")},
		Temperature:   &temperature,
		TopP:          &topP,
		TopK:          &topK,
		StopSequences: []string{"END"},
		Stream:        true,
		Metadata:      &types.Metadata{UserID: "user-1"},
		Tools: []types.Tool{
			{Name: "weather", Description: &description, InputSchema: map[string]any{"type": "object"}},
			{Name: "   ", InputSchema: map[string]any{"type": "object"}},
			{Name: "noop"},
		},
		ToolChoice: &types.ToolChoice{Type: types.ToolChoiceTool, Name: "weather"},
		Thinking:   &types.ThinkingConfig{Type: "enabled", BudgetTokens: &budget},
	}

	got := TranslateRequest(req, testConfig)

	if got.Temperature == nil || *got.Temperature != 0.2 || got.TopP == nil || *got.TopP != 0.9 {
		t.Errorf("sampling params not copied: temperature=%v top_p=%v", got.Temperature, got.TopP)
	}
	if len(got.Stop) != 1 || got.Stop[0] != "END" {
		t.Errorf("stop = %v", got.Stop)
	}
	if !got.Stream || got.StreamOptions == nil || !got.StreamOptions.IncludeUsage {
		t.Errorf("stream options = %+v, want include_usage", got.StreamOptions)
	}
	if got.User != "user-1" {
		t.Errorf("user = %q", got.User)
	}
	if len(got.Tools) != 2 {
		t.Fatalf("got %d tools, want 2 (blank name dropped)", len(got.Tools))
	}
	if got.Tools[0].Function.Description != "Look up weather" || got.Tools[1].Function.Description != "" {
		t.Errorf("descriptions = %q, %q", got.Tools[0].Function.Description, got.Tools[1].Function.Description)
	}
	if got.ToolChoice == nil || got.ToolChoice.Function != "weather" {
		t.Errorf("tool_choice = %+v, want pinned weather", got.ToolChoice)
	}
	if got.Thinking == nil || got.Thinking.Type != "enabled" || *got.Thinking.BudgetTokens != 2048 {
		t.Errorf("thinking = %+v", got.Thinking)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"tool_choice":{"function":{"name":"weather"},"type":"function"}`) {
		t.Errorf("pinned tool_choice not encoded as function object: %s", data)
	}
	if strings.Contains(string(data), "top_k") {
		t.Errorf("top_k must not be forwarded: %s", data)
	}
}

func TestTranslateRequestOnlyBlankToolOmitsTools(t *testing.T) {
	req := types.MessagesRequest{
		Model:      "gpt-4o",
		MaxTokens:  200,
		Messages:   []types.MessageParam{userText("x")},
		Tools:      []types.Tool{{Name: ""}},
		ToolChoice: &types.ToolChoice{Type: types.ToolChoiceAny},
	}

	got := TranslateRequest(req, testConfig)
	if got.Tools != nil || got.ToolChoice != nil {
		t.Errorf("tools = %+v, tool_choice = %+v, want both omitted", got.Tools, got.ToolChoice)
	}
}

func TestTranslateRequestToolChoiceWithoutToolsOmitted(t *testing.T) {
	req := types.MessagesRequest{
		Model:      "gpt-4o",
		MaxTokens:  200,
		Messages:   []types.MessageParam{userText("x")},
		ToolChoice: &types.ToolChoice{Type: types.ToolChoiceTool, Name: "weather"},
	}

	got := TranslateRequest(req, testConfig)
	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got.ToolChoice != nil || strings.Contains(string(data), `"tool_choice"`) {
		t.Errorf("tool_choice sent without tools: %s", data)
	}
}

func TestToChatToolChoice(t *testing.T) {
	tests := []struct {
		name   string
		choice *types.ToolChoice
		want   string
	}{
		{"missing", nil, ""},
		{"auto", &types.ToolChoice{Type: types.ToolChoiceAuto}, `"auto"`},
		{"any degrades to auto", &types.ToolChoice{Type: types.ToolChoiceAny}, `"auto"`},
		{"none", &types.ToolChoice{Type: types.ToolChoiceNone}, `"auto"`},
		{"tool without name", &types.ToolChoice{Type: types.ToolChoiceTool}, `"auto"`},
		{"unknown", &types.ToolChoice{Type: "bogus"}, `"auto"`},
		{"tool", &types.ToolChoice{Type: types.ToolChoiceTool, Name: "f"}, `{"function":{"name":"f"},"type":"function"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toChatToolChoice(tt.choice)
			if tt.want == "" {
				if got != nil {
					t.Errorf("got %+v, want nil", got)
				}
				return
			}
			data, err := json.Marshal(got)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("got %s, want %s", data, tt.want)
			}
		})
	}
}

func TestToThinking(t *testing.T) {
	if got := toThinking(nil); got != nil {
		t.Errorf("nil thinking: got %+v", got)
	}
	if got := toThinking(&types.ThinkingConfig{}); got != nil {
		t.Errorf("empty thinking: got %+v", got)
	}
	got := toThinking(&types.ThinkingConfig{Type: "enabled"})
	data, _ := json.Marshal(got)
	if string(data) != `{"type":"enabled"}` {
		t.Errorf("got %s, want budget omitted", data)
	}

	budget := 1024
	got = toThinking(&types.ThinkingConfig{BudgetTokens: &budget})
	data, _ = json.Marshal(got)
	if string(data) != `{"budget_tokens":1024}` {
		t.Errorf("got %s, want type omitted", data)
	}
}
