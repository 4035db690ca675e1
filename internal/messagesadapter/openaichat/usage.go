package openaichat

import (
	"github.com/florianilch/claudebridge/internal/messagesadapter/types"
)

// toUsage converts backend usage to Anthropic usage. A missing usage object reports zeros.
func toUsage(usage *CompletionUsage) types.Usage {
	if usage == nil {
		return types.Usage{}
	}

	u := types.Usage{
		InputTokens:  usage.PromptTokens,
		OutputTokens: usage.CompletionTokens,
	}

	// cached_tokens maps directly to Anthropic's prompt cache read counter.
	if usage.PromptTokensDetails != nil && usage.PromptTokensDetails.CachedTokens > 0 {
		u.CacheReadInputTokens = types.Ptr(usage.PromptTokensDetails.CachedTokens)
	}

	// CompletionTokensDetails transformation: reasoning_tokens are already part of
	// completion_tokens and Anthropic usage has no separate counter for them.

	return u
}

// toDeltaUsage converts backend usage to the usage object of message_delta.
func toDeltaUsage(usage *CompletionUsage) types.DeltaUsage {
	if usage == nil {
		return types.DeltaUsage{}
	}
	return types.DeltaUsage{
		InputTokens:  types.Ptr(usage.PromptTokens),
		OutputTokens: usage.CompletionTokens,
	}
}
