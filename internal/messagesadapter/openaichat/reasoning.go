package openaichat

import (
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// toThinking forwards Anthropic's thinking configuration as the top-level "thinking"
// extension understood by reasoning-capable compatible backends (DeepSeek, Doubao, vLLM
// deployments of Claude-style models). Backends without the feature ignore unknown fields.
//
// Only the fields present in the input are emitted:
//
//	thinking: {"type": "enabled", "budget_tokens": 16000}
//	      →   thinking: {"type": "enabled", "budget_tokens": 16000}
//	thinking: {}
//	      →   (no extension)
func toThinking(thinking *types.ThinkingConfig) *Thinking {
	if thinking == nil || (thinking.Type == "" && thinking.BudgetTokens == nil) {
		return nil
	}
	return &Thinking{
		Type:         thinking.Type,
		BudgetTokens: thinking.BudgetTokens,
	}
}
