package openaichat

import "testing"

func TestModelMapperMap(t *testing.T) {
	mapper := ModelMapper{Big: "gpt-4o", Middle: "gpt-4.1", Small: "gpt-4o-mini"}

	tests := []struct {
		model string
		want  string
	}{
		{"claude-3-5-haiku-20241022", "gpt-4o-mini"},
		{"claude-3-5-HAIKU-x", "gpt-4o-mini"},
		{"claude-sonnet-4-20250514", "gpt-4.1"},
		{"claude-3-opus-20240229", "gpt-4o"},
		{"claude-unknown", "gpt-4o"},
		{"", "gpt-4o"},
		{"gpt-4o", "gpt-4o"},
		{"gpt-3.5-turbo", "gpt-3.5-turbo"},
		{"o1-mini", "o1-mini"},
		{"o3-mini", "o3-mini"},
		{"deepseek-chat", "deepseek-chat"},
		{"doubao-pro-32k", "doubao-pro-32k"},
		{"ep-20240101-abc", "ep-20240101-abc"},
		// Passthrough prefixes are case-sensitive; tier markers are not.
		{"GPT-4-haiku", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := mapper.Map(tt.model); got != tt.want {
				t.Errorf("Map(%q) = %q, want %q", tt.model, got, tt.want)
			}
		})
	}
}

func TestModelMapperMiddleDefaultsToBig(t *testing.T) {
	mapper := ModelMapper{Big: "big-model", Small: "small-model"}
	if got := mapper.Map("claude-3-7-sonnet"); got != "big-model" {
		t.Errorf("Map(sonnet) = %q, want big model when middle is unset", got)
	}
}
